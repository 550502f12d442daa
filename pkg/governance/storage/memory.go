package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-process map. It is the default
// backend; all data is lost when the process exits, which degrades the
// durable cache tier and usage counters to process lifetime.
//
// MemoryStore is thread-safe using sync.RWMutex.
type MemoryStore struct {
	entries map[string]*Entry
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves the entry for a key.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}

	// Copy so callers cannot mutate stored state.
	cp := *entry
	cp.Value = append([]byte(nil), entry.Value...)
	return &cp, nil
}

// Set writes an entry, overwriting any previous value.
func (m *MemoryStore) Set(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if entry.Key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	cp := *entry
	cp.Value = append([]byte(nil), entry.Value...)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[cp.Key] = &cp
	return nil
}

// Delete removes the entry for a key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Keys returns all keys with the given prefix.
func (m *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// PurgeExpired removes all entries past expiration.
func (m *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			purged++
		}
	}
	return purged, nil
}

// Close releases resources. For the memory store it is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// Size returns the current number of stored entries. Useful for tests.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
