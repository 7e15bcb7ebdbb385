package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/jokepool/internal/testutil"
	"github.com/Sternrassler/jokepool/pkg/batch"
	"github.com/Sternrassler/jokepool/pkg/joke"
	"github.com/Sternrassler/jokepool/pkg/pool"
	"github.com/Sternrassler/jokepool/pkg/provider"
	"github.com/Sternrassler/jokepool/pkg/store"
)

type stubItems struct {
	mu     sync.Mutex
	calls  []int
	items  []joke.ResponseItem
	err    error
	sawCtx context.Context
	block  bool
}

func (s *stubItems) GetItems(ctx context.Context, count int) ([]joke.ResponseItem, error) {
	s.mu.Lock()
	s.calls = append(s.calls, count)
	s.sawCtx = ctx
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, fmt.Errorf("load pool: %w", ctx.Err())
	}
	return s.items, s.err
}

func (s *stubItems) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestServer(items ItemService, cfg Config) *Server {
	return New(items, cfg, zerolog.Nop())
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubItems{}, Config{})

	rec := get(t, srv.Handler(), "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(&stubItems{}, Config{})
	get(t, srv.Handler(), "/health")

	rec := get(t, srv.Handler(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "jokepool_http_requests_total")
}

func TestJokes_BadCount(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"missing", "/jokes", "count is required"},
		{"empty", "/jokes?count=", "count is required"},
		{"not a number", "/jokes?count=five", "must be an integer"},
		{"float", "/jokes?count=2.5", "must be an integer"},
		{"zero", "/jokes?count=0", "between 1 and 100"},
		{"negative", "/jokes?count=-4", "between 1 and 100"},
		{"too large", "/jokes?count=101", "between 1 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := &stubItems{}
			srv := newTestServer(items, Config{})

			rec := get(t, srv.Handler(), tt.target)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
			require.Contains(t, rec.Body.String(), tt.want)
			require.Zero(t, items.callCount(), "service must not be called")
		})
	}
}

func TestJokes_OK(t *testing.T) {
	items := &stubItems{items: []joke.ResponseItem{
		{ID: "a", Question: "q1", Answer: "a1"},
		{ID: "b", Question: "q2", Answer: "a2"},
	}}
	srv := newTestServer(items, Config{})

	rec := get(t, srv.Handler(), "/jokes?count=2")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `[{"id":"a","question":"q1","answer":"a1"},{"id":"b","question":"q2","answer":"a2"}]`, rec.Body.String())
	require.Equal(t, []int{2}, items.calls)
}

func TestJokes_EmptyResultIsArray(t *testing.T) {
	srv := newTestServer(&stubItems{}, Config{})

	rec := get(t, srv.Handler(), "/jokes?count=3")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestJokes_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid argument", fmt.Errorf("%w: nope", pool.ErrInvalidArgument), http.StatusBadRequest, "nope"},
		{"provider unavailable", fmt.Errorf("%w: all failed", pool.ErrProviderUnavailable), http.StatusInternalServerError, "joke provider unavailable"},
		{"invalid batch size", fmt.Errorf("%w (got 0)", batch.ErrInvalidBatchSize), http.StatusInternalServerError, "server misconfigured"},
		{"store failure", errors.New("load pool: connection refused"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubItems{err: tt.err}, Config{})

			rec := get(t, srv.Handler(), "/jokes?count=1")

			require.Equal(t, tt.wantCode, rec.Code)
			require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
			require.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestJokes_SustainedRateLimitServesPool(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetFallback(testutil.NewRateLimitResponse())

	config := provider.DefaultConfig(mock.URL())
	config.Retry.BaseBackoff = 10 * time.Millisecond
	client, err := provider.New(config)
	require.NoError(t, err)
	client.SetLogger(zerolog.Nop())

	st := store.NewMemoryStore()
	_, err = st.SaveAll(context.Background(), []joke.Item{{Question: "q1", Answer: "a1"}})
	require.NoError(t, err)

	svc := pool.New(st, batch.New(client, batch.Config{BatchSize: 10}, zerolog.Nop()), zerolog.Nop())
	srv := newTestServer(svc, Config{RequestTimeout: 200 * time.Millisecond})

	rec := get(t, srv.Handler(), "/jokes?count=100")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got []joke.ResponseItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "q1", got[0].Question)
	require.Positive(t, mock.RequestCount())
}

func TestJokes_StoreTimeout(t *testing.T) {
	// stands in for a store that never answers
	items := &stubItems{block: true}
	srv := newTestServer(items, Config{RequestTimeout: 20 * time.Millisecond})

	rec := get(t, srv.Handler(), "/jokes?count=1")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "timed out")
	_, hasDeadline := items.sawCtx.Deadline()
	require.True(t, hasDeadline)
}

func TestJokes_ClientGone(t *testing.T) {
	items := &stubItems{block: true}
	srv := newTestServer(items, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/jokes?count=1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.Handler().ServeHTTP(rec, req)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client cancelled")
	}
	require.Empty(t, rec.Body.String())
}

func TestJokes_EndToEnd(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.Enqueue(
		testutil.NewJokeResponse("general", "q1", "a1"),
		testutil.NewJokeResponse("general", "q2", "a2"),
		testutil.NewJokeResponse("general", "q3", "a3"),
	)

	client, err := provider.New(provider.DefaultConfig(mock.URL()))
	require.NoError(t, err)
	client.SetLogger(zerolog.Nop())

	st := store.NewMemoryStore()
	svc := pool.New(st, batch.New(client, batch.Config{BatchSize: 10}, zerolog.Nop()), zerolog.Nop())
	srv := newTestServer(svc, Config{RequestTimeout: 10 * time.Second})

	rec := get(t, srv.Handler(), "/jokes?count=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []joke.ResponseItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)

	ids := map[string]bool{}
	for _, item := range got {
		require.NotEmpty(t, item.ID)
		require.False(t, ids[item.ID], "duplicate id %s", item.ID)
		ids[item.ID] = true
	}
	require.Equal(t, 3, st.Len())

	// satisfied from the pool, no more provider traffic
	rec = get(t, srv.Handler(), "/jokes?count=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, mock.RequestCount())
}

func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := newTestServer(&stubItems{}, Config{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNew_Panic(t *testing.T) {
	require.Panics(t, func() { New(nil, Config{}, zerolog.Nop()) })
}
