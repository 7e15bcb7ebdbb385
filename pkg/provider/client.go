// Package provider implements the acquisition client: one fetch of a single joke from the
// external provider, with 429-only retry, exponential backoff and response validation.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

// DefaultAPIURL is the public random joke endpoint.
const DefaultAPIURL = "https://official-joke-api.appspot.com/random_joke"

// maxBodyBytes bounds how much of a provider answer is read.
const maxBodyBytes = 64 << 10

// Prometheus metrics for provider requests.
var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jokepool_provider_requests_total",
		Help: "Total provider HTTP attempts by outcome",
	}, []string{"outcome"})

	providerRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jokepool_provider_request_duration_seconds",
		Help:    "Provider HTTP attempt duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// Fetcher fetches one candidate. *Client implements it.
type Fetcher interface {
	FetchOne(ctx context.Context) Outcome
}

// Config holds the client configuration.
type Config struct {
	// APIURL is the full provider endpoint returning one joke per GET.
	APIURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// Retry policy for rate-limited answers.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration for the given endpoint.
func DefaultConfig(apiURL string) Config {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return Config{
		APIURL:    apiURL,
		UserAgent: "jokepool/0.1.0",
		Timeout:   10 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// Client is the acquisition client.
type Client struct {
	httpClient *http.Client
	config     Config
	sleep      SleepFunc
	logger     zerolog.Logger
}

// New creates a new acquisition client.
func New(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api url is required")
	}
	u, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http(s) (got %q)", cfg.APIURL)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		sleep:      sleepContext,
		logger:     log.With().Str("component", "provider").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleep replaces the backoff wait (for testing).
func (c *Client) SetSleep(sleep SleepFunc) {
	c.sleep = sleep
}

// SetLogger replaces the component logger.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// FetchOne performs one logical fetch, retrying only while the provider answers 429.
func (c *Client) FetchOne(ctx context.Context) Outcome {
	out := retryWithBackoff(ctx, c.config.Retry, c.sleep, c.logger, func(attempt int) Outcome {
		return c.attempt(ctx, attempt)
	})

	if !out.OK() {
		c.logger.Debug().
			Str("outcome", string(out.Kind)).
			Int("status", out.StatusCode).
			Int("attempts", out.Attempts).
			Err(out.Cause).
			Msg("Fetch failed")
	}
	return out
}

// attempt performs a single HTTP exchange and classifies it.
func (c *Client) attempt(ctx context.Context, attempt int) (out Outcome) {
	start := time.Now()
	defer func() {
		providerRequestDuration.Observe(time.Since(start).Seconds())
		providerRequestsTotal.WithLabelValues(string(out.Kind)).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.APIURL, nil)
	if err != nil {
		return failure(KindTransportFailed, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", c.config.APIURL).
		Int("attempt", attempt).
		Msg("Executing provider request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return failure(KindCancelled, 0, ctx.Err())
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Provider request failed")
		return failure(KindTransportFailed, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return failure(KindCancelled, resp.StatusCode, ctx.Err())
		}
		return failure(KindTransportFailed, resp.StatusCode, fmt.Errorf("read response body: %w", err))
	}

	if kind := classifyStatus(resp.StatusCode); kind != KindSuccess {
		return failure(kind, resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Kind:       kind,
			Message:    resp.Status,
		})
	}

	candidate, err := decodeCandidate(body)
	if err != nil {
		c.logger.Warn().Err(err).Int("status", resp.StatusCode).Msg("Invalid provider response")
		return failure(KindInvalidBody, resp.StatusCode, err)
	}

	return success(candidate, resp.StatusCode)
}

// classifyStatus maps an HTTP status onto an outcome kind.
func classifyStatus(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return KindSuccess
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 400 && status < 500:
		return KindClientRejected
	default:
		return KindTransportFailed
	}
}

// apiResponse is the provider's wire shape.
type apiResponse struct {
	Type      *string `json:"type"`
	Setup     *string `json:"setup"`
	Punchline *string `json:"punchline"`
}

var errMissingFields = errors.New("setup and punchline are required")

// decodeCandidate parses and validates a provider body.
func decodeCandidate(body []byte) (joke.Candidate, error) {
	var r apiResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return joke.Candidate{}, fmt.Errorf("decode body: %w", err)
	}

	c := joke.Candidate{Category: r.Type, Question: r.Setup, Answer: r.Punchline}
	if !c.Valid() {
		return joke.Candidate{}, errMissingFields
	}
	return c, nil
}
