package provider

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	providerRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jokepool_provider_retries_total",
		Help: "Total number of retry attempts after a 429 answer",
	})

	providerRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jokepool_provider_retry_backoff_seconds",
		Help:    "Backoff duration before a retry",
		Buckets: []float64{1, 2, 4, 8, 16, 32},
	})

	providerRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jokepool_provider_retry_exhausted_total",
		Help: "Total number of fetches that stayed rate limited for every attempt",
	})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// BaseBackoff is multiplied by 2^n, n being the number of attempts already made.
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration: 5 attempts, waits of 2s, 4s, 8s, 16s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseBackoff: 1 * time.Second,
	}
}

// Backoff returns the wait after the given (1-based) failed attempt.
// Uncapped; MaxAttempts bounds it.
func (r RetryConfig) Backoff(attempt int) time.Duration {
	return r.BaseBackoff * time.Duration(1<<uint(attempt))
}

// SleepFunc waits for d or until ctx ends, whichever comes first.
// It returns ctx.Err() when interrupted.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shouldRetry determines if an outcome should be retried. Only rate limiting is transient.
func shouldRetry(kind Kind) bool {
	switch kind {
	case KindRateLimited:
		return true
	case KindSuccess, KindClientRejected, KindInvalidBody, KindTransportFailed, KindCancelled:
		return false
	default:
		return false
	}
}

// retryWithBackoff runs fn until it yields a non-retryable outcome or attempts run out.
// The wait between attempts is interruptible through ctx.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, sleep SleepFunc, logger zerolog.Logger, fn func(attempt int) Outcome) Outcome {
	var out Outcome

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		out = fn(attempt)
		out.Attempts = attempt

		if !shouldRetry(out.Kind) {
			if attempt > 1 && out.OK() {
				logger.Info().
					Int("attempt", attempt).
					Msg("Fetch succeeded after retry")
			}
			return out
		}

		// If this was the last attempt, don't wait
		if attempt >= cfg.MaxAttempts {
			break
		}

		wait := cfg.Backoff(attempt)
		providerRetriesTotal.Inc()
		providerRetryBackoffSeconds.Observe(wait.Seconds())

		logger.Warn().
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Provider rate limited, retrying after backoff")

		if err := sleep(ctx, wait); err != nil {
			logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			cancelled := failure(KindCancelled, out.StatusCode, err)
			cancelled.Attempts = attempt
			return cancelled
		}
	}

	providerRetryExhaustedTotal.Inc()
	logger.Warn().
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return out
}
