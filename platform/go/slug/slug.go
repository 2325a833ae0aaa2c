// Package slug derives URL-safe identifiers from display titles and resolves
// collisions against an entity store.
package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxAttempts bounds the number of existence checks performed by Resolve.
const DefaultMaxAttempts = 10000

// ErrSlugResolutionExhausted is returned when every candidate up to the attempt bound is taken.
var ErrSlugResolutionExhausted = errors.New("slug resolution exhausted")

var (
	disallowedRun = regexp.MustCompile(`[^a-z0-9]+`)
	canonical     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// ExistsFunc reports whether a record other than the caller's already holds candidate.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Derive lower-cases title, collapses every run of characters outside [a-z0-9]
// into a single hyphen and strips one leading and one trailing hyphen.
// The result is empty when title holds no ASCII letters or digits.
func Derive(title string) string {
	base := disallowedRun.ReplaceAllString(strings.ToLower(title), "-")
	base = strings.TrimPrefix(base, "-")
	return strings.TrimSuffix(base, "-")
}

// IsCanonical reports whether value is a non-empty slug as produced by Derive.
func IsCanonical(value string) bool {
	return canonical.MatchString(value)
}

// Resolver appends numeric suffixes to a base form until the existence check reports it free.
type Resolver struct {
	// MaxAttempts caps existence checks; zero means DefaultMaxAttempts.
	MaxAttempts int
	// Observe, when set, receives the number of checks a successful resolution took.
	Observe func(attempts int)
}

// Resolve runs the default resolver.
func Resolve(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	return Resolver{}.Resolve(ctx, base, exists)
}

// Resolve returns base when it is free, otherwise base-1, base-2, ... in order.
// The check is optimistic: a concurrent writer can still claim the returned value
// before it is persisted, so callers rely on the store's unique index to catch that.
func (r Resolver) Resolve(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	if exists == nil {
		return "", errors.New("slug exists func is required")
	}

	limit := r.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}

	candidate := base
	for attempt := 1; attempt <= limit; attempt++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			if r.Observe != nil {
				r.Observe(attempt)
			}
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(attempt)
	}

	return "", fmt.Errorf("%w: %q after %d attempts", ErrSlugResolutionExhausted, base, limit)
}
