package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/jokepool/pkg/batch"
	"github.com/Sternrassler/jokepool/pkg/dedup"
	"github.com/Sternrassler/jokepool/pkg/joke"
	"github.com/Sternrassler/jokepool/pkg/store"
)

// Bounds for the requested count.
const (
	MinCount = 1
	MaxCount = 100
)

var (
	// ErrInvalidArgument is returned when count is outside [MinCount, MaxCount].
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProviderUnavailable is returned when the pool is empty and every fetch failed
	// at the transport level, so no progress at all was possible.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

var (
	poolTopUpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jokepool_pool_topups_total",
		Help: "Total top-ups by result",
	}, []string{"result"}) // "filled", "partial", "empty", "error"

	poolItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jokepool_pool_items_added_total",
		Help: "Total items persisted by top-ups",
	})

	poolItemsServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jokepool_pool_items_served_total",
		Help: "Total items returned to callers",
	})

	poolShortfall = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jokepool_pool_shortfall",
		Help:    "Number of items missing from the pool when a top-up starts",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})
)

// CandidateSource fetches up to total candidates. *batch.Fetcher implements it.
type CandidateSource interface {
	FetchMany(ctx context.Context, total int) ([]joke.Candidate, batch.Report, error)
}

// persistTimeout bounds the store calls that keep a top-up's partial results after
// the caller's context has ended.
const persistTimeout = 10 * time.Second

// Service is the pool orchestrator.
type Service struct {
	store       store.Store
	source      CandidateSource
	logger      zerolog.Logger
	fetchBudget time.Duration
}

// New creates a pool service.
func New(s store.Store, source CandidateSource, logger zerolog.Logger) *Service {
	if s == nil {
		panic("store cannot be nil")
	}
	if source == nil {
		panic("candidate source cannot be nil")
	}
	return &Service{
		store:  s,
		source: source,
		logger: logger,
	}
}

// SetFetchBudget caps how long a single top-up may spend fetching. When the budget runs
// out the candidates fetched so far are still stored and served. Zero means no cap
// beyond the caller's context.
func (s *Service) SetFetchBudget(d time.Duration) {
	s.fetchBudget = d
}

// ValidateCount checks count against [MinCount, MaxCount].
func ValidateCount(count int) error {
	if count < MinCount || count > MaxCount {
		return fmt.Errorf("%w: count must be between %d and %d (got %d)", ErrInvalidArgument, MinCount, MaxCount, count)
	}
	return nil
}

// GetItems returns up to count items, topping up the pool first when it is short.
// Returning fewer than count items is not an error, and neither is a top-up that runs
// out of time: whatever was fetched by then is stored and served with the existing
// items. A cancelled ctx still yields an error once the partial results are stored.
func (s *Service) GetItems(ctx context.Context, count int) ([]joke.ResponseItem, error) {
	if err := ValidateCount(count); err != nil {
		return nil, err
	}

	existing, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}

	if shortfall := count - len(existing); shortfall > 0 {
		added, err := s.topUp(ctx, existing, shortfall)
		if err != nil {
			return nil, err
		}
		existing = append(existing, added...)
	}

	n := min(count, len(existing))
	out := make([]joke.ResponseItem, n)
	for i, item := range existing[:n] {
		out[i] = joke.ResponseItem{
			ID:       uuid.NewString(),
			Question: item.Question,
			Answer:   item.Answer,
		}
	}
	poolItemsServedTotal.Add(float64(n))

	s.logger.Debug().
		Int("count", count).
		Int("returned", n).
		Msg("Items served")

	return out, nil
}

// topUp fetches shortfall candidates and persists the ones not yet in the pool.
func (s *Service) topUp(ctx context.Context, existing []joke.Item, shortfall int) ([]joke.Item, error) {
	start := time.Now()
	poolShortfall.Observe(float64(shortfall))

	s.logger.Info().
		Int("pool_size", len(existing)).
		Int("shortfall", shortfall).
		Msg("Topping up pool")

	fetchCtx := ctx
	if s.fetchBudget > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchBudget)
		defer cancel()
	}

	candidates, report, cutShort := s.source.FetchMany(fetchCtx, shortfall)
	if cutShort != nil && !isContextErr(cutShort) {
		poolTopUpsTotal.WithLabelValues("error").Inc()
		if errors.Is(cutShort, batch.ErrInvalidBatchSize) {
			s.logger.Error().Err(cutShort).Msg("Pool top-up misconfigured")
			return nil, cutShort
		}
		return nil, fmt.Errorf("top up: %w", cutShort)
	}

	// Candidates fetched before a deadline or cancellation are still worth keeping.
	if cutShort != nil {
		s.logger.Warn().
			Err(cutShort).
			Int("shortfall", shortfall).
			Int("fetched", len(candidates)).
			Int("failed", report.Failed()).
			Msg("Top-up cut short - keeping partial results")

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
	}

	if len(existing) == 0 && report.TotalTransportFailure() {
		poolTopUpsTotal.WithLabelValues("error").Inc()
		s.logger.Error().
			Int("requested", report.Requested).
			Msg("Provider unreachable and pool is empty")
		return nil, fmt.Errorf("%w: %d of %d fetches failed at transport level",
			ErrProviderUnavailable, report.Failed(), report.Requested)
	}

	unique := dedup.FilterUnique(candidates, existing)
	fresh, err := dedup.VerifyAbsent(ctx, unique, s.store.ExistsByQuestion)
	if err != nil {
		poolTopUpsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("verify candidates: %w", err)
	}

	if len(fresh) == 0 {
		poolTopUpsTotal.WithLabelValues("empty").Inc()
		if errors.Is(cutShort, context.Canceled) {
			return nil, fmt.Errorf("top up: %w", cutShort)
		}
		s.logger.Warn().
			Int("shortfall", shortfall).
			Int("fetched", len(candidates)).
			Int("failed", report.Failed()).
			Msg("Top-up added no items")
		return nil, nil
	}

	items := make([]joke.Item, len(fresh))
	for i, c := range fresh {
		items[i] = c.ToItem()
	}

	saved, err := s.store.SaveAll(ctx, items)
	if err != nil {
		poolTopUpsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("save items: %w", err)
	}
	poolItemsAddedTotal.Add(float64(len(saved)))

	if errors.Is(cutShort, context.Canceled) {
		poolTopUpsTotal.WithLabelValues("partial").Inc()
		return nil, fmt.Errorf("top up: %w", cutShort)
	}

	result := "filled"
	if len(saved) < shortfall {
		result = "partial"
	}
	poolTopUpsTotal.WithLabelValues(result).Inc()

	s.logger.Info().
		Int("shortfall", shortfall).
		Int("fetched", len(candidates)).
		Int("added", len(saved)).
		Int("failed", report.Failed()).
		Dur("duration", time.Since(start)).
		Msg("Pool topped up")

	return saved, nil
}

// isContextErr reports whether err comes from a cancelled or expired context.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Items returns the whole persisted pool in arrival order.
func (s *Service) Items(ctx context.Context) ([]joke.Item, error) {
	items, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	return items, nil
}
