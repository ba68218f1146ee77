package store

import (
	"context"
	"fmt"

	"github.com/iishyfishyy/lookalike/internal/dataset"
)

// HydrateStats reports what Hydrate did to a collection.
type HydrateStats struct {
	Hydrated int // items that got a cached hash key
	Stale    int // cached entries older than their item's source
	Pruned   int // cached entries whose item no longer exists
}

// Hydrate attaches cached hash keys to the items of c that have none.
// Entries are only used when their source time matches the item's
// UpdatedAt. Entries for items missing from c are deleted from st.
func Hydrate(ctx context.Context, st Store, c *dataset.Collection) (HydrateStats, error) {
	var stats HydrateStats

	entries, err := st.List(ctx, c.Name())
	if err != nil {
		return stats, fmt.Errorf("failed to list cached fingerprints: %w", err)
	}

	for _, e := range entries {
		item, ok := c.Get(e.ItemID)
		if !ok {
			if err := st.Delete(ctx, e.Collection, e.ItemID); err != nil {
				return stats, fmt.Errorf("failed to prune %s/%s: %w", e.Collection, e.ItemID, err)
			}
			stats.Pruned++
			continue
		}

		if len(item.HashKeys()) > 0 {
			continue
		}
		if !e.Fresh(item.UpdatedAt) {
			stats.Stale++
			continue
		}

		hydrated := item.Clone()
		hydrated.AttachHashKey(e.Key)
		c.Put(hydrated)
		stats.Hydrated++
	}

	return stats, nil
}

// Persist writes the hash key of every item in c that has exactly one.
// It returns the number of entries written.
func Persist(ctx context.Context, st Store, c *dataset.Collection) (int, error) {
	var entries []Entry
	for _, item := range c.Items() {
		keys := item.HashKeys()
		if len(keys) != 1 || keys[0].IsZero() {
			continue
		}
		entries = append(entries, Entry{
			Collection: c.Name(),
			ItemID:     item.ID,
			Key:        keys[0],
			SourceTime: item.UpdatedAt,
		})
	}

	if len(entries) == 0 {
		return 0, nil
	}
	if err := st.Put(ctx, entries...); err != nil {
		return 0, err
	}
	return len(entries), nil
}
