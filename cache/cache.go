package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 256

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Entry is one cached bearer value with its absolute expiry.
// The expiry is authoritative: a Get past ExpiresAt is a miss.
type Entry struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at time now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Cache stores short-lived bearer values keyed by derivation source.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns (Entry{}, false) on miss or expiry.
// - Expiry: entries never outlive Entry.ExpiresAt.
type Cache interface {
	// Get retrieves a live entry. Returns (Entry{}, false) on miss.
	Get(ctx context.Context, key string) (Entry, bool)

	// Set stores an entry. Entries already expired are not stored.
	Set(ctx context.Context, key string, entry Entry) error

	// Delete removes an entry. Idempotent.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error
}

// ValidateKey checks that a key is usable for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
