package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/Sternrassler/jokepool/pkg/joke"
	"github.com/Sternrassler/jokepool/pkg/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubFetcher scripts FetchOne outcomes by call number and tracks concurrency.
type stubFetcher struct {
	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
	delay       time.Duration
	outcome     func(call int) provider.Outcome
}

func (s *stubFetcher) FetchOne(ctx context.Context) provider.Outcome {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return provider.Outcome{Kind: provider.KindCancelled, Cause: ctx.Err()}
		}
	}
	return s.outcome(call)
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func distinct(call int) provider.Outcome {
	return provider.Outcome{
		Kind:      provider.KindSuccess,
		Candidate: joke.NewCandidate("general", fmt.Sprintf("question %d", call), fmt.Sprintf("answer %d", call)),
	}
}

func newTestFetcher(stub *stubFetcher, size int) *Fetcher {
	return New(stub, Config{BatchSize: size}, zerolog.Nop())
}

func TestFetchMany_InvalidBatchSize(t *testing.T) {
	for _, size := range []int{0, -3} {
		stub := &stubFetcher{outcome: distinct}
		got, _, err := newTestFetcher(stub, size).FetchMany(context.Background(), 5)

		if !errors.Is(err, ErrInvalidBatchSize) {
			t.Errorf("size %d: err = %v, want ErrInvalidBatchSize", size, err)
		}
		if len(got) != 0 {
			t.Errorf("size %d: got %d candidates, want 0", size, len(got))
		}
		if stub.callCount() != 0 {
			t.Errorf("size %d: calls = %d, want 0", size, stub.callCount())
		}
	}
}

func TestFetchMany_ZeroTotal(t *testing.T) {
	stub := &stubFetcher{outcome: distinct}
	got, report, err := newTestFetcher(stub, 10).FetchMany(context.Background(), 0)

	if err != nil {
		t.Fatalf("FetchMany() error = %v", err)
	}
	if len(got) != 0 || stub.callCount() != 0 || report.Batches != 0 {
		t.Errorf("expected no work, got %d candidates, %d calls, %d batches", len(got), stub.callCount(), report.Batches)
	}
}

func TestFetchMany_NegativeTotal(t *testing.T) {
	stub := &stubFetcher{outcome: distinct}
	if _, _, err := newTestFetcher(stub, 10).FetchMany(context.Background(), -1); err == nil {
		t.Error("expected error for negative total")
	}
}

func TestFetchMany_Batching(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		batchSize   int
		wantBatches int
	}{
		{"exact multiple", 20, 10, 2},
		{"partial last batch", 25, 10, 3},
		{"smaller than batch", 3, 10, 1},
		{"batch of one", 4, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubFetcher{outcome: distinct, delay: time.Millisecond}
			got, report, err := newTestFetcher(stub, tt.batchSize).FetchMany(context.Background(), tt.total)

			if err != nil {
				t.Fatalf("FetchMany() error = %v", err)
			}
			if len(got) != tt.total {
				t.Errorf("candidates = %d, want %d", len(got), tt.total)
			}
			if stub.callCount() != tt.total {
				t.Errorf("calls = %d, want %d", stub.callCount(), tt.total)
			}
			if report.Batches != tt.wantBatches {
				t.Errorf("Batches = %d, want %d", report.Batches, tt.wantBatches)
			}
			if stub.maxInFlight > tt.batchSize {
				t.Errorf("maxInFlight = %d, exceeds batch size %d", stub.maxInFlight, tt.batchSize)
			}
		})
	}
}

func TestFetchMany_SwallowsPerItemFailures(t *testing.T) {
	kinds := []provider.Kind{
		provider.KindRateLimited,
		provider.KindClientRejected,
		provider.KindInvalidBody,
		provider.KindTransportFailed,
	}
	stub := &stubFetcher{outcome: func(call int) provider.Outcome {
		if call%2 == 0 {
			return provider.Outcome{Kind: kinds[(call/2)%len(kinds)]}
		}
		return distinct(call)
	}}

	got, report, err := newTestFetcher(stub, 4).FetchMany(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchMany() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("candidates = %d, want 5", len(got))
	}
	if report.Fetched != 5 || report.Failed() != 5 {
		t.Errorf("report = %+v, want 5 fetched / 5 failed", report)
	}
	if stub.callCount() != 10 {
		t.Errorf("calls = %d, want 10 (no abort on failure)", stub.callCount())
	}
	if report.TotalTransportFailure() {
		t.Error("partial failure must not be reported as total transport failure")
	}
}

func TestFetchMany_AllTransportFailures(t *testing.T) {
	stub := &stubFetcher{outcome: func(int) provider.Outcome {
		return provider.Outcome{Kind: provider.KindTransportFailed}
	}}

	got, report, err := newTestFetcher(stub, 3).FetchMany(context.Background(), 7)
	if err != nil {
		t.Fatalf("FetchMany() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("candidates = %d, want 0", len(got))
	}
	if !report.TotalTransportFailure() {
		t.Errorf("TotalTransportFailure() = false, report %+v", report)
	}
}

func TestFetchMany_Cancelled(t *testing.T) {
	stub := &stubFetcher{outcome: distinct, delay: 20 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	got, report, err := newTestFetcher(stub, 2).FetchMany(ctx, 20)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if stub.callCount() >= 20 {
		t.Errorf("calls = %d, expected cancellation to stop further batches", stub.callCount())
	}
	if len(got) != report.Fetched {
		t.Errorf("candidates = %d, report.Fetched = %d", len(got), report.Fetched)
	}
}

func TestFetchMany_PerFetchTimeout(t *testing.T) {
	stub := &stubFetcher{outcome: distinct, delay: time.Second}
	fetcher := New(stub, Config{BatchSize: 2, Timeout: 10 * time.Millisecond}, zerolog.Nop())

	got, report, err := fetcher.FetchMany(context.Background(), 4)
	if err != nil {
		t.Fatalf("FetchMany() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("candidates = %d, want 0", len(got))
	}
	if report.Failures[provider.KindTransportFailed] != 4 {
		t.Errorf("transport failures = %d, want 4 (report %+v)", report.Failures[provider.KindTransportFailed], report)
	}
	if report.Failures[provider.KindCancelled] != 0 {
		t.Errorf("cancelled = %d, want 0", report.Failures[provider.KindCancelled])
	}
	if !report.TotalTransportFailure() {
		t.Error("a provider that never answers must count as unreachable")
	}
}

func TestFetchMany_ParentDeadlineBeatsFetchTimeout(t *testing.T) {
	stub := &stubFetcher{outcome: distinct, delay: time.Second}
	fetcher := New(stub, Config{BatchSize: 2, Timeout: 500 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, report, err := fetcher.FetchMany(ctx, 2)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if report.Failures[provider.KindCancelled] != 2 {
		t.Errorf("cancelled = %d, want 2 (report %+v)", report.Failures[provider.KindCancelled], report)
	}
	if report.TotalTransportFailure() {
		t.Error("caller cancellation must not look like an unreachable provider")
	}
}

func TestReport_Failed(t *testing.T) {
	r := Report{Failures: map[provider.Kind]int{
		provider.KindRateLimited: 2,
		provider.KindInvalidBody: 1,
	}}
	if r.Failed() != 3 {
		t.Errorf("Failed() = %d, want 3", r.Failed())
	}
}
