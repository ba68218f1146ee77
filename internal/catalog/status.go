package catalog

import (
	"context"
	"os"
	"time"

	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/store"
)

// CollectionStatus describes one configured collection
type CollectionStatus struct {
	Name    string
	Path    string
	Items   int
	Images  int // items with media
	Keyed   int // items whose source already carries a hash key
	Cached  int // fingerprints in the cache
	LoadErr error
}

// CacheStatus describes the fingerprint cache
type CacheStatus struct {
	Path      string
	Exists    bool
	Meta      store.Meta
	Entries   int
	IndexedAt time.Time
}

// Status loads the collections and reports how many of their items have
// fingerprints, without building the explorer or contacting the model
func (m *Manager) Status(ctx context.Context) ([]CollectionStatus, *CacheStatus, error) {
	cache := &CacheStatus{}
	path, err := m.cfg.CacheFile()
	if err != nil {
		return nil, nil, err
	}
	cache.Path = path

	var sqlStore *store.SQLiteStore
	if _, err := os.Stat(path); err == nil {
		sqlStore, err = store.OpenSQLiteStore(path)
		if err != nil {
			m.logger.Warn("failed to open fingerprint cache", "path", path, "error", err)
		}
	}
	if sqlStore != nil {
		defer sqlStore.Close()
		cache.Exists = true
		cache.Meta = sqlStore.Meta()
		cache.Entries = sqlStore.Count()
		cache.IndexedAt, _ = sqlStore.IndexedAt()
	}

	statuses := make([]CollectionStatus, 0, len(m.cfg.Collections))
	for _, cc := range m.cfg.Collections {
		st := CollectionStatus{Name: cc.Name, Path: cc.Path}

		coll, err := m.loadCollection(ctx, cc)
		st.LoadErr = err
		if coll != nil {
			st.Items = coll.Len()
			for _, item := range coll.Items() {
				if item.Media != nil {
					st.Images++
				}
				if len(item.HashKeys()) > 0 {
					st.Keyed++
				}
			}
		}

		if sqlStore != nil {
			entries, err := sqlStore.List(ctx, cc.Name)
			if err != nil {
				return nil, nil, err
			}
			st.Cached = countLive(entries, coll)
		}

		statuses = append(statuses, st)
	}

	return statuses, cache, nil
}

// countLive counts entries whose item still exists in coll
func countLive(entries []store.Entry, coll *dataset.Collection) int {
	if coll == nil {
		return len(entries)
	}
	n := 0
	for _, e := range entries {
		if _, ok := coll.Get(e.ItemID); ok {
			n++
		}
	}
	return n
}
