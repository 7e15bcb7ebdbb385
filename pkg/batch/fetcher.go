package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/jokepool/pkg/joke"
	"github.com/Sternrassler/jokepool/pkg/provider"
)

// ErrInvalidBatchSize is returned when BatchSize is not positive. It is a deployment defect.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

var (
	batchCandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jokepool_batch_candidates_total",
		Help: "Total candidates successfully fetched by the batch fetcher",
	})

	batchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jokepool_batch_failures_total",
		Help: "Total failed fetches swallowed by the batch fetcher, by outcome kind",
	}, []string{"kind"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jokepool_batch_duration_seconds",
		Help:    "Duration of a FetchMany call",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Config holds batch fetcher configuration.
type Config struct {
	// BatchSize is both the chunk size and the in-flight bound.
	BatchSize int

	// Timeout per single fetch (0 disables it).
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize: 10,
	}
}

// Report summarizes a FetchMany call.
type Report struct {
	Requested int
	Batches   int
	Fetched   int
	Failures  map[provider.Kind]int
}

// Failed returns the number of fetches that did not yield a candidate.
func (r Report) Failed() int {
	n := 0
	for _, c := range r.Failures {
		n += c
	}
	return n
}

// TotalTransportFailure reports whether something was requested and every single fetch
// failed at the transport level, i.e. the provider was unreachable.
func (r Report) TotalTransportFailure() bool {
	return r.Requested > 0 && r.Fetched == 0 && r.Failures[provider.KindTransportFailed] == r.Requested
}

// Fetcher handles batched fetching of candidates.
type Fetcher struct {
	fetcher provider.Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a new batch fetcher. BatchSize is validated on each FetchMany call.
func New(fetcher provider.Fetcher, config Config, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// FetchMany fetches up to total candidates. Fewer candidates than requested is not an error.
// The returned error is non-nil only for a bad configuration or a cancelled context; in the
// latter case the candidates collected so far are returned alongside it.
func (f *Fetcher) FetchMany(ctx context.Context, total int) ([]joke.Candidate, Report, error) {
	report := Report{Requested: total, Failures: make(map[provider.Kind]int)}

	size := f.config.BatchSize
	if size <= 0 {
		f.logger.Error().Int("batch_size", size).Msg("Invalid batch size")
		return nil, report, fmt.Errorf("%w (got %d)", ErrInvalidBatchSize, size)
	}
	if total < 0 {
		return nil, report, fmt.Errorf("total must be >= 0 (got %d)", total)
	}
	if total == 0 {
		return nil, report, nil
	}

	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	batches := (total + size - 1) / size
	candidates := make([]joke.Candidate, 0, total)

	f.logger.Info().
		Int("total", total).
		Int("batch_size", size).
		Int("batches", batches).
		Msg("Starting batch fetch")

	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			f.logger.Warn().
				Int("batch", b).
				Int("fetched", report.Fetched).
				Msg("Batch fetch cancelled - returning partial results")
			return candidates, report, fmt.Errorf("batch fetch cancelled: %w", err)
		}

		n := min(size, total-b*size)
		candidates = f.fetchBatch(ctx, b, n, candidates, &report)
		report.Batches++
	}

	if err := ctx.Err(); err != nil {
		return candidates, report, fmt.Errorf("batch fetch cancelled: %w", err)
	}

	f.logger.Info().
		Int("requested", total).
		Int("fetched", report.Fetched).
		Int("failed", report.Failed()).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return candidates, report, nil
}

// fetchBatch runs n fetches concurrently and appends successes in completion order.
func (f *Fetcher) fetchBatch(ctx context.Context, batchNum, n int, candidates []joke.Candidate, report *Report) []joke.Candidate {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(f.config.BatchSize)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			out := f.fetchOne(ctx)

			mu.Lock()
			defer mu.Unlock()
			candidates = f.record(batchNum, out, candidates, report)
			return nil
		})
	}
	// Per-item failures never abort siblings, so Wait cannot fail.
	_ = g.Wait()

	return candidates
}

// fetchOne runs a single fetch under the per-fetch timeout, if any. A fetch that runs
// out its own timeout while ctx is still live counts as a transport failure: the
// provider did not answer in time, nobody cancelled the work.
func (f *Fetcher) fetchOne(ctx context.Context) provider.Outcome {
	if f.config.Timeout <= 0 {
		return f.fetcher.FetchOne(ctx)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	out := f.fetcher.FetchOne(fetchCtx)
	if out.Kind == provider.KindCancelled && ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		out.Kind = provider.KindTransportFailed
		out.Cause = fmt.Errorf("no response within %s: %w", f.config.Timeout, context.DeadlineExceeded)
	}
	return out
}

// record folds one outcome into the result. The switch is exhaustive over provider.Kind.
func (f *Fetcher) record(batchNum int, out provider.Outcome, candidates []joke.Candidate, report *Report) []joke.Candidate {
	switch out.Kind {
	case provider.KindSuccess:
		report.Fetched++
		batchCandidatesTotal.Inc()
		return append(candidates, out.Candidate)

	case provider.KindRateLimited, provider.KindClientRejected, provider.KindInvalidBody, provider.KindTransportFailed:
		f.logger.Warn().
			Err(out.Err()).
			Int("batch", batchNum).
			Str("outcome", string(out.Kind)).
			Int("status", out.StatusCode).
			Int("attempts", out.Attempts).
			Msg("Fetch failed - skipping item")

	case provider.KindCancelled:
		f.logger.Debug().
			Int("batch", batchNum).
			Msg("Fetch cancelled")

	default:
		f.logger.Error().
			Str("outcome", string(out.Kind)).
			Msg("Unknown fetch outcome - skipping item")
	}

	report.Failures[out.Kind]++
	batchFailuresTotal.WithLabelValues(string(out.Kind)).Inc()
	return candidates
}
