// Package cache holds the per-job lookup caches used while importing order files.
// Caches are filled batch by batch, never evicted, and are not safe for concurrent use.
package cache

import (
	"context"
)

// Loader resolves keys in one round trip. Keys missing from the result are remembered as misses.
type Loader[V any] func(ctx context.Context, keys []string) (map[string]V, error)

type entry[V any] struct {
	value V
	found bool
}

// Lookup maps raw field values from an import file to resolved entities
type Lookup[V any] struct {
	load    Loader[V]
	entries map[string]entry[V]
}

// NewLookup creates an empty cache backed by load
func NewLookup[V any](load Loader[V]) *Lookup[V] {
	return &Lookup[V]{
		load:    load,
		entries: make(map[string]entry[V]),
	}
}

// Warm loads every key that was never looked up before. Empty keys are ignored.
func (c *Lookup[V]) Warm(ctx context.Context, keys []string) error {
	pending := make(map[string]struct{})
	var missing []string
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := c.entries[key]; ok {
			continue
		}
		if _, ok := pending[key]; ok {
			continue
		}
		pending[key] = struct{}{}
		missing = append(missing, key)
	}

	if len(missing) == 0 {
		return nil
	}

	found, err := c.load(ctx, missing)
	if err != nil {
		return err
	}

	for _, key := range missing {
		value, ok := found[key]
		c.entries[key] = entry[V]{value: value, found: ok}
	}

	return nil
}

// Find returns the cached entity for key; ok is false for misses and unknown keys.
func (c *Lookup[V]) Find(key string) (V, bool) {
	e := c.entries[key]
	return e.value, e.found
}

// Len returns the number of keys resolved so far, misses included
func (c *Lookup[V]) Len() int {
	return len(c.entries)
}
