package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type entryKey struct {
	collection string
	itemID     string
}

// MemoryStore is an in-memory fingerprint cache
type MemoryStore struct {
	entries map[entryKey]Entry
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[entryKey]Entry),
	}
}

// Put stores entries
func (m *MemoryStore) Put(ctx context.Context, entries ...Entry) error {
	for _, e := range entries {
		if e.Key.IsZero() {
			return fmt.Errorf("empty fingerprint for %s/%s", e.Collection, e.ItemID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.entries[entryKey{e.Collection, e.ItemID}] = e
	}
	return nil
}

// Get returns the entry for an item
func (m *MemoryStore) Get(ctx context.Context, collection, itemID string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[entryKey{collection, itemID}]
	return e, ok, nil
}

// List returns all entries of a collection
func (m *MemoryStore) List(ctx context.Context, collection string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for k, e := range m.entries {
		if k.collection == collection {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

// Delete removes an entry
func (m *MemoryStore) Delete(ctx context.Context, collection, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, entryKey{collection, itemID})
	return nil
}

// Clear removes all entries
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[entryKey]Entry)
	return nil
}

// Count returns the number of stored entries
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
