// Package server exposes the pool over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/jokepool/pkg/batch"
	"github.com/Sternrassler/jokepool/pkg/joke"
	"github.com/Sternrassler/jokepool/pkg/metrics"
	"github.com/Sternrassler/jokepool/pkg/pool"
)

// ItemService returns up to count items. *pool.Service implements it.
type ItemService interface {
	GetItems(ctx context.Context, count int) ([]joke.ResponseItem, error)
}

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Server serves GET /jokes, /health and /metrics.
type Server struct {
	items  ItemService
	config Config
	logger zerolog.Logger
	router chi.Router
}

// New creates the server and its routes.
func New(items ItemService, config Config, logger zerolog.Logger) *Server {
	if items == nil {
		panic("item service cannot be nil")
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 15 * time.Second
	}

	s := &Server{
		items:  items,
		config: config,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/jokes", s.handleJokes)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Dur("timeout", s.config.ShutdownTimeout).Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleJokes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		writeText(w, http.StatusBadRequest, "count is required")
		return
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("count must be an integer (got %q)", raw))
		return
	}
	if err := pool.ValidateCount(count); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	items, err := s.items.GetItems(ctx, count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []joke.ResponseItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(items); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// writeError maps orchestrator errors onto plain-text responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

	switch {
	case errors.Is(err, pool.ErrInvalidArgument):
		writeText(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pool.ErrProviderUnavailable):
		logger.Error().Err(err).Msg("Provider unavailable")
		writeText(w, http.StatusInternalServerError, "joke provider unavailable")
	case errors.Is(err, batch.ErrInvalidBatchSize):
		logger.Error().Err(err).Msg("Invalid configuration")
		writeText(w, http.StatusInternalServerError, "server misconfigured: "+err.Error())
	case r.Context().Err() != nil:
		// client went away; nobody reads the answer
		logger.Debug().Err(err).Msg("Request abandoned by client")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Dur("timeout", s.config.RequestTimeout).Msg("Request timed out")
		writeText(w, http.StatusInternalServerError, "request timed out")
	default:
		logger.Error().Err(err).Msg("Request failed")
		writeText(w, http.StatusInternalServerError, "internal error")
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, msg)
}
