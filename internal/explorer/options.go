package explorer

import (
	"log/slog"

	"golang.org/x/time/rate"
)

// DefaultTopK is the number of results Explore returns when neither
// WithTopK nor TopK is given.
const DefaultTopK = 10

// DefaultBatchSize is the number of items sent per EmbedItems call when the
// embedder supports batching.
const DefaultBatchSize = 32

type options struct {
	topK        int
	batchSize   int
	concurrency int
	limit       rate.Limit
	burst       int
	logger      *slog.Logger
	progress    func(done, total int)
}

func defaultOptions() options {
	return options{
		topK:        DefaultTopK,
		batchSize:   DefaultBatchSize,
		concurrency: 1,
		limit:       rate.Inf,
		logger:      slog.New(slog.DiscardHandler),
	}
}

// Option configures New.
type Option func(*options)

// WithTopK sets the default result count for Explore. Values below one are
// ignored.
func WithTopK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithLogger sets the logger. nil keeps the default, which discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConcurrency bounds the number of embedder calls New runs in parallel.
// Anything above 1 requires an embedder that is safe for concurrent use.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithBatchSize sets how many items go into one EmbedItems call.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithRateLimit allows at most perSecond embedder calls per second, with the
// given burst. It applies to inference in New and to queries in Explore.
// perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		if perSecond <= 0 {
			o.limit = rate.Inf
			return
		}
		o.limit = rate.Limit(perSecond)
		o.burst = max(burst, 1)
	}
}

// WithProgress registers fn to be called after each inference step with the
// number of items processed so far. Calls are serialized.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

type queryOptions struct {
	k int
}

// QueryOption configures a single Explore call.
type QueryOption func(*queryOptions)

// TopK overrides the number of results for one query. 0 yields an empty
// result; negative values are rejected with ErrInvalidK.
func TopK(k int) QueryOption {
	return func(o *queryOptions) {
		o.k = k
	}
}
