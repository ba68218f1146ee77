// Package catalog ties the pieces together: it loads the configured
// collections, restores cached fingerprints, builds the explorer and writes
// new fingerprints back to the cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iishyfishyy/lookalike/internal/config"
	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/embeddings"
	"github.com/iishyfishyy/lookalike/internal/explorer"
	"github.com/iishyfishyy/lookalike/internal/store"
)

// ErrNotIndexed is returned by queries before Index has run.
var ErrNotIndexed = errors.New("collections are not indexed")

// Manager coordinates loading, caching and indexing of collections
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger

	embedder embeddings.Embedder
	meta     store.Meta
	store    store.Store
	ownStore bool // store was opened by the manager and must be closed

	collections []*dataset.Collection
	explorer    *explorer.Explorer
	indexTime   time.Time
	mu          sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithEmbedder uses e instead of building one from the config. meta
// describes e's fingerprints for cache validation.
func WithEmbedder(e embeddings.Embedder, meta store.Meta) Option {
	return func(m *Manager) {
		m.embedder = e
		m.meta = meta
	}
}

// WithStore uses st as the fingerprint cache instead of the SQLite file
// named in the config
func WithStore(st store.Store) Option {
	return func(m *Manager) {
		m.store = st
	}
}

// NewManager creates a manager for cfg
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no configuration (run 'lookalike configure' first)")
	}

	m := &Manager{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger.Debug("manager created", "provider", cfg.Provider, "collections", len(cfg.Collections))
	return m, nil
}

// Load reads every configured collection. Items that fail to parse are
// logged and skipped; a collection that cannot be read at all is an error.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.load(ctx)
}

func (m *Manager) load(ctx context.Context) error {
	if len(m.cfg.Collections) == 0 {
		return fmt.Errorf("no collections configured")
	}

	collections := make([]*dataset.Collection, 0, len(m.cfg.Collections))
	for _, cc := range m.cfg.Collections {
		coll, err := m.loadCollection(ctx, cc)
		if coll == nil {
			return fmt.Errorf("failed to load collection %s: %w", cc.Name, err)
		}
		if err != nil {
			m.logger.Warn("some items were skipped", "collection", cc.Name, "error", err)
		}
		m.logger.Debug("loaded collection", "collection", cc.Name, "path", cc.Path, "items", coll.Len())
		collections = append(collections, coll)
	}

	m.collections = collections
	return nil
}

func (m *Manager) loadCollection(ctx context.Context, cc config.CollectionConfig) (*dataset.Collection, error) {
	if bucket, prefix, ok := dataset.ParseS3URL(cc.Path); ok {
		client, err := dataset.NewS3Client(m.cfg.S3Options())
		if err != nil {
			return nil, err
		}
		return dataset.NewS3Loader(client, m.logger).Load(ctx, cc.Name, bucket, prefix)
	}

	dir, err := config.ExpandHome(cc.Path)
	if err != nil {
		return nil, err
	}
	return dataset.NewLoader(m.logger).LoadDir(cc.Name, dir)
}

// IndexResult summarizes an Index run
type IndexResult struct {
	Report      explorer.Report
	Hydrated    int    // fingerprints restored from the cache
	Stale       int    // cached fingerprints ignored because the item changed
	Pruned      int    // cached fingerprints removed because the item is gone
	Persisted   int    // fingerprints written to the cache
	CacheReset  string // why the cache was dropped, if it was
	Collections int
}

// Index loads the collections, restores cached fingerprints and builds the
// explorer. Fingerprints computed during the build are written back to the
// cache. With force set the cache is cleared first.
func (m *Manager) Index(ctx context.Context, force bool) (*IndexResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return nil, err
	}

	if err := m.ensureEmbedder(); err != nil {
		return nil, err
	}

	result := &IndexResult{Collections: len(m.collections)}

	reason, err := m.openStore()
	if err != nil {
		return nil, err
	}
	result.CacheReset = reason

	if force {
		m.logger.Debug("clearing fingerprint cache")
		if err := m.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear cache: %w", err)
		}
		result.CacheReset = "forced"
	}

	for _, coll := range m.collections {
		stats, err := store.Hydrate(ctx, m.store, coll)
		if err != nil {
			return nil, err
		}
		m.logger.Debug("hydrated collection",
			"collection", coll.Name(),
			"hydrated", stats.Hydrated,
			"stale", stats.Stale,
			"pruned", stats.Pruned)
		result.Hydrated += stats.Hydrated
		result.Stale += stats.Stale
		result.Pruned += stats.Pruned
	}

	ex, err := explorer.New(ctx, m.embedder, m.collections, m.explorerOptions()...)
	if err != nil {
		return nil, err
	}
	result.Report = ex.Report()

	for _, coll := range m.collections {
		n, err := store.Persist(ctx, m.store, coll)
		if err != nil {
			return nil, fmt.Errorf("failed to cache fingerprints for %s: %w", coll.Name(), err)
		}
		result.Persisted += n
	}

	if sqlStore, ok := m.store.(*store.SQLiteStore); ok {
		if err := sqlStore.UpdateIndexTime(); err != nil {
			m.logger.Warn("failed to record index time", "error", err)
		}
	}

	m.explorer = ex
	m.indexTime = time.Now()
	return result, nil
}

func (m *Manager) explorerOptions() []explorer.Option {
	e := m.cfg.Explorer
	return []explorer.Option{
		explorer.WithLogger(m.logger),
		explorer.WithTopK(e.TopK),
		explorer.WithConcurrency(e.Concurrency),
		explorer.WithRateLimit(e.RateLimit, e.Burst),
	}
}

// ensureEmbedder builds the embedder from the config unless one was given
func (m *Manager) ensureEmbedder() error {
	if m.embedder != nil {
		return nil
	}

	text, image, err := embeddings.NewModel(m.cfg.Embedding())
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	hasher, err := embeddings.NewHasher(text, image, m.cfg.Hashing.Bits, m.cfg.Hashing.Seed)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	m.embedder = hasher
	m.meta = store.Meta{
		Provider: string(m.cfg.Provider),
		Model:    hasher.Name(),
		Bits:     hasher.Bits(),
		Seed:     hasher.Seed(),
	}
	m.logger.Debug("embedder ready", "model", hasher.Name(), "bits", hasher.Bits())
	return nil
}

// openStore opens the SQLite cache unless a store was given. It returns why
// existing entries were dropped, if they were.
func (m *Manager) openStore() (string, error) {
	if m.store != nil {
		return "", nil
	}

	path, err := m.cfg.CacheFile()
	if err != nil {
		return "", err
	}

	var reason string
	if existing, err := store.OpenSQLiteStore(path); err == nil {
		if valid, why := existing.IsValid(m.meta); !valid {
			reason = why
			m.logger.Info("fingerprint cache invalidated", "reason", why)
		}
		existing.Close()
	}

	sqlStore, err := store.NewSQLiteStore(path, m.meta)
	if err != nil {
		// Fall back to memory so indexing still works
		m.logger.Warn("failed to open fingerprint cache, fingerprints won't be persisted", "path", path, "error", err)
		m.store = store.NewMemoryStore()
		m.ownStore = false
		return reason, nil
	}

	m.store = sqlStore
	m.ownStore = true
	return reason, nil
}

// Query runs q against the explorer built by Index
func (m *Manager) Query(ctx context.Context, q any, opts ...explorer.QueryOption) ([]explorer.Match, error) {
	m.mu.RLock()
	ex := m.explorer
	m.mu.RUnlock()

	if ex == nil {
		return nil, ErrNotIndexed
	}
	return ex.Explore(ctx, q, opts...)
}

// FindItem resolves a "collection/item-id" reference. Item IDs may contain
// slashes; the collection name may not.
func (m *Manager) FindItem(ref string) (*dataset.Item, *dataset.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, id, ok := strings.Cut(ref, "/")
	if !ok || name == "" || id == "" {
		return nil, nil, fmt.Errorf("invalid item reference %q (want collection/item-id)", ref)
	}

	for _, coll := range m.collections {
		if coll.Name() != name {
			continue
		}
		item, ok := coll.Get(id)
		if !ok {
			return nil, nil, fmt.Errorf("item %q not found in collection %s", id, name)
		}
		return item, coll, nil
	}

	return nil, nil, fmt.Errorf("unknown collection: %s", name)
}

// Collections returns the loaded collections
func (m *Manager) Collections() []*dataset.Collection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*dataset.Collection, len(m.collections))
	copy(out, m.collections)
	return out
}

// Explorer returns the explorer built by the last Index call, or nil
func (m *Manager) Explorer() *explorer.Explorer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.explorer
}

// GetIndexTime returns when Index last succeeded
func (m *Manager) GetIndexTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexTime
}

// Close releases the cache
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ownStore {
		return nil
	}
	m.ownStore = false
	if c, ok := m.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
