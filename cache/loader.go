package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// FillFunc fetches a fresh entry for a key on cache miss.
type FillFunc func(ctx context.Context) (Entry, error)

// Loader wraps a Cache with read-cached-or-refresh semantics.
//
// Concurrent loads of the same key while no live entry exists collapse
// into a single FillFunc call; the winner's entry replaces the cached
// value atomically and every waiter receives it. Fill errors are never
// cached.
type Loader struct {
	cache Cache
	group singleflight.Group
}

// NewLoader creates a loader over the given cache.
func NewLoader(c Cache) *Loader {
	return &Loader{cache: c}
}

// Load returns the live cached entry for key, or runs fill to produce
// one. The bool reports whether the entry came from cache.
func (l *Loader) Load(ctx context.Context, key string, fill FillFunc) (Entry, bool, error) {
	if entry, ok := l.cache.Get(ctx, key); ok {
		return entry, true, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		// Another caller may have refreshed while we queued.
		if entry, ok := l.cache.Get(ctx, key); ok {
			return entry, nil
		}

		entry, err := fill(ctx)
		if err != nil {
			return Entry{}, err
		}
		if err := l.cache.Set(ctx, key, entry); err != nil {
			return Entry{}, err
		}
		return entry, nil
	})
	if err != nil {
		return Entry{}, false, err
	}

	return v.(Entry), false, nil
}

// Invalidate drops the cached entry for key.
func (l *Loader) Invalidate(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}
