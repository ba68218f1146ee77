package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iishyfishyy/lookalike/internal/config"
	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/embeddings"
	"github.com/iishyfishyy/lookalike/internal/explorer"
	"github.com/iishyfishyy/lookalike/internal/fingerprint"
	"github.com/iishyfishyy/lookalike/internal/store"
)

// firstByteEmbedder fingerprints text by its first byte.
type firstByteEmbedder struct {
	calls atomic.Int32
}

func (f *firstByteEmbedder) EmbedItem(ctx context.Context, item *dataset.Item) (fingerprint.Fingerprint, error) {
	f.calls.Add(1)
	return f.EmbedText(ctx, item.Text)
}

func (f *firstByteEmbedder) EmbedText(_ context.Context, text string) (fingerprint.Fingerprint, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return fingerprint.Fingerprint{}, embeddings.ErrNoFingerprint
	}
	return fingerprint.FromBytes([]byte{text[0]}), nil
}

var testMeta = store.Meta{Provider: "test", Model: "first-byte", Bits: 8, Seed: 1}

func setup(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"alpha.txt": "apple",
		"beta.md":   "---\ncaption: banana\nlabels: [fruit]\n---\nyellow",
		"gamma.txt": "cherry",
		"empty.txt": "",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	cfg := config.Default()
	cfg.Collections = []config.CollectionConfig{{Name: "docs", Path: dir}}
	cfg.CachePath = filepath.Join(t.TempDir(), "fingerprints.db")
	return cfg, dir
}

func newManager(t *testing.T, cfg *config.Config, emb embeddings.Embedder, meta store.Meta) *Manager {
	t.Helper()
	m, err := NewManager(cfg, WithEmbedder(emb, meta))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_IndexAndQuery(t *testing.T) {
	ctx := context.Background()
	cfg, _ := setup(t)
	emb := &firstByteEmbedder{}
	m := newManager(t, cfg, emb, testMeta)

	_, err := m.Query(ctx, "apple")
	assert.ErrorIs(t, err, ErrNotIndexed)

	res, err := m.Index(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Collections)
	assert.Equal(t, 4, res.Report.Total)
	assert.Equal(t, 3, res.Report.Indexed)
	require.Len(t, res.Report.Failures, 1)
	assert.Equal(t, "empty.txt", res.Report.Failures[0].ItemID)
	assert.Equal(t, 3, res.Persisted)
	assert.Zero(t, res.Hydrated)
	assert.Equal(t, int32(4), emb.calls.Load())
	assert.False(t, m.GetIndexTime().IsZero())

	matches, err := m.Query(ctx, "cranberry", explorer.TopK(1))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "gamma.txt", matches[0].Item.ID)
	assert.Equal(t, "docs", matches[0].Collection)
	assert.Zero(t, matches[0].Distance)

	item, coll, err := m.FindItem("docs/beta.md")
	require.NoError(t, err)
	assert.Equal(t, "docs", coll.Name())
	assert.Equal(t, []string{"fruit"}, item.Labels())

	byItem, err := m.Query(ctx, item, explorer.TopK(1))
	require.NoError(t, err)
	assert.Same(t, item, byItem[0].Item)
}

func TestManager_ReusesCache(t *testing.T) {
	ctx := context.Background()
	cfg, dir := setup(t)

	first := &firstByteEmbedder{}
	m := newManager(t, cfg, first, testMeta)
	_, err := m.Index(ctx, false)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	// Unchanged sources: everything comes from the cache.
	second := &firstByteEmbedder{}
	m2 := newManager(t, cfg, second, testMeta)
	res, err := m2.Index(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Hydrated)
	assert.Empty(t, res.CacheReset)
	assert.Equal(t, int32(1), second.calls.Load(), "only the empty item is retried")
	require.NoError(t, m2.Close())

	// A touched file is recomputed.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "alpha.txt"), future, future))
	third := &firstByteEmbedder{}
	m3 := newManager(t, cfg, third, testMeta)
	res, err = m3.Index(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Hydrated)
	assert.Equal(t, 1, res.Stale)
	assert.Equal(t, int32(2), third.calls.Load())
	require.NoError(t, m3.Close())

	// A deleted file is pruned.
	require.NoError(t, os.Remove(filepath.Join(dir, "gamma.txt")))
	m4 := newManager(t, cfg, &firstByteEmbedder{}, testMeta)
	res, err = m4.Index(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)
	require.NoError(t, m4.Close())

	// New hashing settings drop the cache.
	changed := testMeta
	changed.Seed = 99
	m5 := newManager(t, cfg, &firstByteEmbedder{}, changed)
	res, err = m5.Index(ctx, false)
	require.NoError(t, err)
	assert.Contains(t, res.CacheReset, "seed changed")
	assert.Zero(t, res.Hydrated)
	require.NoError(t, m5.Close())

	// Force clears it too.
	m6 := newManager(t, cfg, &firstByteEmbedder{}, changed)
	res, err = m6.Index(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "forced", res.CacheReset)
	assert.Zero(t, res.Hydrated)
}

func TestManager_Status(t *testing.T) {
	ctx := context.Background()
	cfg, _ := setup(t)
	m := newManager(t, cfg, &firstByteEmbedder{}, testMeta)

	statuses, cache, err := m.Status(ctx)
	require.NoError(t, err)
	assert.False(t, cache.Exists)
	require.Len(t, statuses, 1)
	assert.Equal(t, 4, statuses[0].Items)
	assert.Zero(t, statuses[0].Cached)

	_, err = m.Index(ctx, false)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	statuses, cache, err = m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, cache.Exists)
	assert.Equal(t, testMeta, cache.Meta)
	assert.Equal(t, 3, cache.Entries)
	assert.False(t, cache.IndexedAt.IsZero())
	assert.Equal(t, 3, statuses[0].Cached)
	assert.NoError(t, statuses[0].LoadErr)
}

func TestManager_Errors(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)

	cfg, _ := setup(t)
	m := newManager(t, cfg, &firstByteEmbedder{}, testMeta)
	require.NoError(t, m.Load(context.Background()))

	for _, ref := range []string{"docs", "/alpha.txt", "docs/"} {
		_, _, err := m.FindItem(ref)
		assert.ErrorContains(t, err, "invalid item reference", ref)
	}
	_, _, err = m.FindItem("nope/alpha.txt")
	assert.ErrorContains(t, err, "unknown collection")
	_, _, err = m.FindItem("docs/missing.txt")
	assert.ErrorContains(t, err, "not found")

	cfg.Collections = []config.CollectionConfig{{Name: "gone", Path: filepath.Join(t.TempDir(), "missing")}}
	m2 := newManager(t, cfg, &firstByteEmbedder{}, testMeta)
	_, err = m2.Index(context.Background(), false)
	assert.ErrorContains(t, err, "failed to load collection gone")

	cfg.Collections = nil
	m3 := newManager(t, cfg, &firstByteEmbedder{}, testMeta)
	assert.ErrorContains(t, m3.Load(context.Background()), "no collections")
}

func TestManager_WithMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg, _ := setup(t)
	st := store.NewMemoryStore()

	m, err := NewManager(cfg, WithEmbedder(&firstByteEmbedder{}, testMeta), WithStore(st))
	require.NoError(t, err)
	_, err = m.Index(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count())
	assert.NoError(t, m.Close())

	_, err = os.Stat(cfg.CachePath)
	assert.True(t, os.IsNotExist(err), "no SQLite file is created")
}
