// Package store caches item fingerprints between runs so that unchanged
// items are not sent to the embedding model again.
package store

import (
	"context"
	"time"

	"github.com/iishyfishyy/lookalike/internal/fingerprint"
)

// Store manages cached item fingerprints
type Store interface {
	// Put stores entries, replacing any with the same collection and item ID
	Put(ctx context.Context, entries ...Entry) error

	// Get returns the entry for an item
	Get(ctx context.Context, collection, itemID string) (Entry, bool, error)

	// List returns all entries of a collection ordered by item ID
	List(ctx context.Context, collection string) ([]Entry, error)

	// Delete removes an entry
	Delete(ctx context.Context, collection, itemID string) error

	// Clear removes all entries
	Clear(ctx context.Context) error

	// Count returns the number of stored entries
	Count() int
}

// Entry is the cached fingerprint of one item
type Entry struct {
	Collection string
	ItemID     string
	Key        fingerprint.Fingerprint
	SourceTime time.Time // modification time of the item's source when hashed
}

// Fresh reports whether the entry was computed from a source last modified
// at t. Times are compared to the nanosecond.
func (e Entry) Fresh(t time.Time) bool {
	return e.SourceTime.UnixNano() == t.UnixNano()
}

// Meta describes how the cached fingerprints were produced. Entries are only
// reusable while all fields match.
type Meta struct {
	Provider string
	Model    string
	Bits     int
	Seed     uint64
}
