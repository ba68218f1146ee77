// Package explorer finds the items closest to a query by Hamming distance
// between binary fingerprints.
//
// New builds an immutable in-memory index from one or more collections,
// running the embedder only for items that do not already carry a hash key.
// Explore then answers top-k queries given an item, free text or a raw
// fingerprint.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/embeddings"
	"github.com/iishyfishyy/lookalike/internal/fingerprint"
)

type state int

const (
	stateUninitialized state = iota
	stateBuilding
	stateReady
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateBuilding:
		return "building"
	case stateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Failure is an item that could not be indexed.
type Failure struct {
	Collection string
	ItemID     string
	Err        error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s/%s: %v", f.Collection, f.ItemID, f.Err)
}

// Report summarizes index construction.
type Report struct {
	Total    int // items seen across all collections
	Cached   int // items that already had a hash key
	Inferred int // items that got a hash key from the embedder
	Indexed  int // rows in the index
	Failures []Failure
	Duration time.Duration
}

// Err joins the failure errors, or returns nil when there were none.
func (r Report) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("%s/%s: %w", f.Collection, f.ItemID, f.Err)
	}
	return errors.Join(errs...)
}

func (r Report) String() string {
	s := fmt.Sprintf("%d of %d items indexed", r.Indexed, r.Total)
	if len(r.Failures) == 0 {
		return s
	}
	parts := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		parts[i] = f.String()
	}
	return s + ", failures: [" + strings.Join(parts, "; ") + "]"
}

// Explorer is a fingerprint index over a fixed set of items.
//
// The zero value is not ready; use New. A ready Explorer is immutable and
// safe for concurrent Explore calls as long as its embedder is.
type Explorer struct {
	state    state
	embedder embeddings.Embedder
	matrix   *fingerprint.Matrix
	items    []*dataset.Item // items[i] owns matrix row i
	origins  []string        // collection name of items[i]
	report   Report
	opts     options
	limiter  *rate.Limiter
}

// pending is an item queued for inference.
type pending struct {
	coll *dataset.Collection
	item *dataset.Item // clone of the collection's item
}

// New builds an Explorer over collections.
//
// Items without a hash key are sent to embedder. Each fingerprint it returns
// is attached to a copy of the item as a HashKey annotation, and the copy
// replaces the item in its collection, so the collections carry the new
// keys afterwards. Items that end up without a usable fingerprint are listed
// in the report rather than failing the build.
//
// An item with more than one hash key fails the build with an
// AmbiguousFingerprintError. Embedder errors other than
// embeddings.ErrNoFingerprint are returned as is. When no item can be indexed
// New returns ErrEmptyIndex.
func New(ctx context.Context, embedder embeddings.Embedder, collections []*dataset.Collection, opts ...Option) (*Explorer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Explorer{
		state:    stateBuilding,
		embedder: embedder,
		opts:     o,
		limiter:  rate.NewLimiter(o.limit, o.burst),
	}
	start := time.Now()

	var queue []pending
	for _, c := range collections {
		with, without, err := Partition(c)
		if err != nil {
			return nil, err
		}
		e.report.Total += c.Len()
		e.report.Cached += with.Len()
		for _, item := range without.Items() {
			queue = append(queue, pending{coll: c, item: item.Clone()})
		}
	}

	o.logger.Debug("partitioned collections",
		"collections", len(collections),
		"items", e.report.Total,
		"cached", e.report.Cached,
		"pending", len(queue))

	results, reasons, err := e.infer(ctx, queue)
	if err != nil {
		return nil, err
	}

	merged := make(map[*dataset.Collection]*dataset.Collection)
	for i, p := range queue {
		fp := results[i]
		if fp.IsZero() {
			reason := reasons[i]
			if reason == nil {
				reason = embeddings.ErrNoFingerprint
			}
			e.fail(p.coll, p.item, reason)
			continue
		}
		p.item.AttachHashKey(fp)
		m, ok := merged[p.coll]
		if !ok {
			m = dataset.NewCollection(p.coll.Name())
			merged[p.coll] = m
		}
		m.Put(p.item)
		e.report.Inferred++
	}
	for c, m := range merged {
		c.Update(m)
	}

	if err := e.collect(collections); err != nil {
		return nil, err
	}
	e.report.Duration = time.Since(start)

	if len(e.items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyIndex, e.report)
	}

	for _, f := range e.report.Failures {
		o.logger.Warn("item not indexed", "collection", f.Collection, "item", f.ItemID, "error", f.Err)
	}
	o.logger.Info("index built",
		"summary", e.report.String(),
		"bits", e.matrix.Bits(),
		"inferred", e.report.Inferred,
		"duration", e.report.Duration)

	e.state = stateReady
	return e, nil
}

// collect walks the collections in order and fills the matrix.
func (e *Explorer) collect(collections []*dataset.Collection) error {
	for _, c := range collections {
		for _, item := range c.Items() {
			fp, ok, err := FingerprintOf(item)
			if err != nil {
				var ae *AmbiguousFingerprintError
				if errors.As(err, &ae) {
					ae.Collection = c.Name()
				}
				return err
			}
			if !ok {
				// already reported by infer
				continue
			}
			if fp.IsZero() {
				e.fail(c, item, fmt.Errorf("%w: empty hash key", ErrMissingFingerprint))
				continue
			}

			if e.matrix == nil {
				e.matrix = fingerprint.NewMatrix(fp.Bits())
			}
			if err := e.matrix.Append(fp); err != nil {
				e.fail(c, item, fmt.Errorf("%w: %d bits, index has %d", ErrFingerprintWidth, fp.Bits(), e.matrix.Bits()))
				continue
			}
			e.items = append(e.items, item)
			e.origins = append(e.origins, c.Name())
		}
	}
	e.report.Indexed = len(e.items)
	return nil
}

func (e *Explorer) fail(c *dataset.Collection, item *dataset.Item, err error) {
	e.report.Failures = append(e.report.Failures, Failure{
		Collection: c.Name(),
		ItemID:     item.ID,
		Err:        err,
	})
}

// infer computes fingerprints for queue. A zero fingerprint in the result
// means the embedder had nothing to fingerprint; reasons holds the
// embedder's ErrNoFingerprint error for it when there was one.
func (e *Explorer) infer(ctx context.Context, queue []pending) ([]fingerprint.Fingerprint, []error, error) {
	out := make([]fingerprint.Fingerprint, len(queue))
	reasons := make([]error, len(queue))
	if len(queue) == 0 {
		return out, reasons, nil
	}

	var (
		mu   sync.Mutex
		done int
	)
	advance := func(n int) {
		if e.opts.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done += n
		e.opts.progress(done, len(queue))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.concurrency)

	if batcher, ok := e.embedder.(embeddings.BatchEmbedder); ok {
		for start := 0; start < len(queue); start += e.opts.batchSize {
			end := min(start+e.opts.batchSize, len(queue))
			g.Go(func() error {
				items := make([]*dataset.Item, end-start)
				for i := range items {
					items[i] = queue[start+i].item
				}
				if err := e.limiter.Wait(gctx); err != nil {
					return err
				}
				fps, err := batcher.EmbedItems(gctx, items)
				if err != nil {
					return err
				}
				if len(fps) != len(items) {
					return fmt.Errorf("embedder returned %d fingerprints for %d items", len(fps), len(items))
				}
				copy(out[start:end], fps)
				advance(len(items))
				return nil
			})
		}
	} else {
		for i := range queue {
			g.Go(func() error {
				if err := e.limiter.Wait(gctx); err != nil {
					return err
				}
				fp, err := e.embedder.EmbedItem(gctx, queue[i].item)
				if errors.Is(err, embeddings.ErrNoFingerprint) {
					reasons[i] = err
				} else if err != nil {
					return err
				} else {
					out[i] = fp
				}
				advance(1)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, reasons, nil
}

// Explore returns the items closest to query, nearest first.
//
// query is a *dataset.Item, a string or a fingerprint.Fingerprint. An item
// that already has a hash key is not sent to the embedder. Ties keep index
// order, and k larger than the index returns every item.
func (e *Explorer) Explore(ctx context.Context, query any, opts ...QueryOption) ([]Match, error) {
	if e == nil {
		return nil, ErrNotReady
	}
	if e.state != stateReady {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, e.state)
	}

	qo := queryOptions{k: e.opts.topK}
	for _, opt := range opts {
		opt(&qo)
	}
	if qo.k < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, qo.k)
	}
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	if qo.k == 0 {
		return []Match{}, nil
	}

	fp, err := e.resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if fp.Bits() != e.matrix.Bits() {
		return nil, fmt.Errorf("%w: query has %d bits, index has %d", ErrFingerprintWidth, fp.Bits(), e.matrix.Bits())
	}

	distances, err := e.matrix.Hamming(fp, nil)
	if err != nil {
		return nil, err
	}

	top := selectTopK(distances, qo.k)
	matches := make([]Match, len(top))
	for rank, row := range top {
		matches[rank] = Match{
			Item:       e.items[row],
			Collection: e.origins[row],
			Distance:   distances[row],
			Rank:       rank,
		}
	}

	e.opts.logger.Debug("explore", "query", fmt.Sprintf("%T", query), "k", qo.k, "results", len(matches))
	return matches, nil
}

// validateQuery rejects query values resolve cannot handle, without calling
// the embedder.
func validateQuery(query any) error {
	switch q := query.(type) {
	case *dataset.Item:
		if q == nil {
			return &UnsupportedQueryTypeError{Type: "nil *dataset.Item"}
		}
	case string, fingerprint.Fingerprint:
	default:
		return &UnsupportedQueryTypeError{Type: fmt.Sprintf("%T", query)}
	}
	return nil
}

// resolve turns a query into a fingerprint.
func (e *Explorer) resolve(ctx context.Context, query any) (fingerprint.Fingerprint, error) {
	var (
		fp  fingerprint.Fingerprint
		err error
	)

	switch q := query.(type) {
	case *dataset.Item:
		if q == nil {
			return fingerprint.Fingerprint{}, &UnsupportedQueryTypeError{Type: "nil *dataset.Item"}
		}
		cached, ok, ferr := FingerprintOf(q)
		if ferr != nil {
			return fingerprint.Fingerprint{}, ferr
		}
		if ok {
			fp = cached
			break
		}
		if err = e.limiter.Wait(ctx); err != nil {
			return fingerprint.Fingerprint{}, err
		}
		fp, err = e.embedder.EmbedItem(ctx, q)
	case string:
		if err = e.limiter.Wait(ctx); err != nil {
			return fingerprint.Fingerprint{}, err
		}
		fp, err = e.embedder.EmbedText(ctx, q)
	case fingerprint.Fingerprint:
		fp = q
	default:
		return fingerprint.Fingerprint{}, &UnsupportedQueryTypeError{Type: fmt.Sprintf("%T", query)}
	}

	if errors.Is(err, embeddings.ErrNoFingerprint) {
		return fingerprint.Fingerprint{}, fmt.Errorf("%w: %w", ErrMissingFingerprint, err)
	}
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	if fp.IsZero() {
		return fingerprint.Fingerprint{}, ErrMissingFingerprint
	}
	return fp, nil
}

// Len returns the number of indexed items.
func (e *Explorer) Len() int {
	return len(e.items)
}

// Bits returns the fingerprint width of the index, or 0 when not ready.
func (e *Explorer) Bits() int {
	if e.matrix == nil {
		return 0
	}
	return e.matrix.Bits()
}

// TopK returns the result count Explore uses when no TopK option is given.
func (e *Explorer) TopK() int {
	return e.opts.topK
}

// Report returns the construction report.
func (e *Explorer) Report() Report {
	return e.report
}

// Ready reports whether the explorer accepts queries.
func (e *Explorer) Ready() bool {
	return e != nil && e.state == stateReady
}
