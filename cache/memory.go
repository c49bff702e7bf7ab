package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory cache implementation.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Get retrieves a live entry. Expired entries are removed lazily.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}

	if entry.Expired(time.Now()) {
		m.mu.Lock()
		// Re-check under the write lock; a refresh may have replaced it.
		if current, still := m.entries[key]; still && current.Expired(time.Now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return Entry{}, false
	}

	return entry, true
}

// Set stores an entry, replacing any previous value atomically.
func (m *Memory) Set(_ context.Context, key string, entry Entry) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if entry.Expired(time.Now()) {
		return nil
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Delete removes an entry. Idempotent.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including any not yet
// lazily expired.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Ensure Memory implements Cache
var _ Cache = (*Memory)(nil)
