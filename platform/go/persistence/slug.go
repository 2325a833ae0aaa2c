package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/marmoreal/stonecms/platform/go/slug"
)

// ErrInvalidSlug is returned when a write carries a slug that is not in canonical form.
var ErrInvalidSlug = errors.New("invalid slug")

// checkSlug rejects values the slug generator could not have produced. Stores never normalize
// a slug; they only refuse malformed ones.
func checkSlug(value string) error {
	if !slug.IsCanonical(value) {
		return fmt.Errorf("%w %q: must match ^[a-z0-9]+(?:-[a-z0-9]+)*$", ErrInvalidSlug, value)
	}
	return nil
}

func validateSluggedName(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	return checkSlug(value)
}
