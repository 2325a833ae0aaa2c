// Package cache provides the read-through caches used for public catalog reads and site settings.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache stores opaque values by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Noop never stores anything; every Get is a miss.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error          { return nil }
func (Noop) Delete(context.Context, ...string) error            { return nil }
func (Noop) Close() error                                       { return nil }

// Memory is an in-process LRU with per-entry expiry.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory returns an LRU holding at most size entries for ttl each.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := m.lru.Get(key)
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.lru.Remove(key)
	}
	return nil
}

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}

// Typed stores JSON encoded values of T under a key prefix.
type Typed[T any] struct {
	backend Cache
	prefix  string
	observe func(hit bool)
}

// NewTyped wraps backend. A nil backend behaves like Noop. observe may be nil.
func NewTyped[T any](backend Cache, prefix string, observe func(hit bool)) *Typed[T] {
	if backend == nil {
		backend = Noop{}
	}
	return &Typed[T]{backend: backend, prefix: prefix, observe: observe}
}

// Get returns the cached value for key. Corrupt entries are dropped and reported as a miss.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	raw, ok, err := t.backend.Get(ctx, t.key(key))
	if err != nil {
		return zero, false, fmt.Errorf("cache get %s: %w", t.key(key), err)
	}
	t.record(ok)
	if !ok {
		return zero, false, nil
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		_ = t.backend.Delete(ctx, t.key(key))
		return zero, false, fmt.Errorf("cache decode %s: %w", t.key(key), err)
	}
	return value, true, nil
}

// Set stores value under key.
func (t *Typed[T]) Set(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", t.key(key), err)
	}
	if err := t.backend.Set(ctx, t.key(key), raw); err != nil {
		return fmt.Errorf("cache set %s: %w", t.key(key), err)
	}
	return nil
}

// Invalidate removes every given key. Empty keys are skipped.
func (t *Typed[T]) Invalidate(ctx context.Context, keys ...string) error {
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			full = append(full, t.key(key))
		}
	}
	if len(full) == 0 {
		return nil
	}
	if err := t.backend.Delete(ctx, full...); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (t *Typed[T]) key(key string) string {
	return t.prefix + ":" + key
}

func (t *Typed[T]) record(hit bool) {
	if t.observe != nil {
		t.observe(hit)
	}
}
