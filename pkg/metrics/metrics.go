// Package metrics exposes the Prometheus registry used by jokepool.
// All metrics are defined in their respective packages (provider, batch, dedup, pool, store,
// server) to maintain modularity and avoid circular dependencies.
//
// This package provides the exposition handler and a reference of all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by jokepool.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the exposition handler for everything registered in Registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Provider Metrics (pkg/provider):
//   - jokepool_provider_requests_total{outcome} (Counter): HTTP attempts by outcome kind
//   - jokepool_provider_request_duration_seconds (Histogram): HTTP attempt duration
//   - jokepool_provider_retries_total (Counter): Retries after a 429 answer
//   - jokepool_provider_retry_backoff_seconds (Histogram): Backoff before a retry
//   - jokepool_provider_retry_exhausted_total (Counter): Fetches rate limited on every attempt
//
// Batch Metrics (pkg/batch):
//   - jokepool_batch_candidates_total (Counter): Candidates fetched
//   - jokepool_batch_failures_total{kind} (Counter): Swallowed fetch failures by kind
//   - jokepool_batch_duration_seconds (Histogram): FetchMany duration
//
// Dedup Metrics (pkg/dedup):
//   - jokepool_dedup_dropped_total{phase} (Counter): Candidates dropped (snapshot, batch, live, invalid)
//
// Pool Metrics (pkg/pool):
//   - jokepool_pool_topups_total{result} (Counter): Top-ups by result (filled, partial, empty, error)
//   - jokepool_pool_items_added_total (Counter): Items persisted by top-ups
//   - jokepool_pool_items_served_total (Counter): Items returned to callers
//   - jokepool_pool_shortfall (Histogram): Missing items when a top-up starts
//
// Store Metrics (pkg/store):
//   - jokepool_store_items_saved_total{backend} (Counter): Inserted items by backend
//   - jokepool_store_errors_total{backend, operation} (Counter): Store operation errors
//
// HTTP Metrics (internal/server):
//   - jokepool_http_requests_total{route, status} (Counter): Requests by route and status
//   - jokepool_http_request_duration_seconds{route} (Histogram): Request duration by route
//
// Example Prometheus Queries:
//
//   # Share of provider attempts answered 429
//   sum(rate(jokepool_provider_requests_total{outcome="rate_limited"}[5m])) /
//   sum(rate(jokepool_provider_requests_total[5m]))
//
//   # Top-ups that could not fill the shortfall
//   rate(jokepool_pool_topups_total{result=~"partial|empty"}[5m])
//
//   # Duplicates caught by the live re-check (concurrent writers)
//   rate(jokepool_dedup_dropped_total{phase="live"}[5m])
//
//   # P95 /jokes latency
//   histogram_quantile(0.95, rate(jokepool_http_request_duration_seconds_bucket{route="/jokes"}[5m]))
