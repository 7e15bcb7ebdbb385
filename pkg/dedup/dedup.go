// Package dedup keeps duplicate questions out of the pool in two separate phases:
// an in-memory pass against a snapshot of persisted items, and a live existence check
// against the store right before insert.
package dedup

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

// Phase labels for the dropped-candidates metric.
const (
	PhaseSnapshot = "snapshot"
	PhaseBatch    = "batch"
	PhaseLive     = "live"
	PhaseInvalid  = "invalid"
)

var droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jokepool_dedup_dropped_total",
	Help: "Candidates dropped before insert, by phase",
}, []string{"phase"})

// ExistsFunc reports whether an item with the given question is already stored.
type ExistsFunc func(ctx context.Context, question string) (bool, error)

// FilterUnique returns the candidates whose key is neither in existing nor used by an
// earlier candidate of the same slice. Order is preserved and the first occurrence wins.
// Candidates without a question or answer are dropped as well.
func FilterUnique(candidates []joke.Candidate, existing []joke.Item) []joke.Candidate {
	persisted := make(map[joke.Key]struct{}, len(existing))
	for _, item := range existing {
		persisted[item.Key()] = struct{}{}
	}

	admitted := make(map[joke.Key]struct{}, len(candidates))
	unique := make([]joke.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Valid() {
			droppedTotal.WithLabelValues(PhaseInvalid).Inc()
			continue
		}
		key := c.Key()
		if _, dup := persisted[key]; dup {
			droppedTotal.WithLabelValues(PhaseSnapshot).Inc()
			continue
		}
		if _, dup := admitted[key]; dup {
			droppedTotal.WithLabelValues(PhaseBatch).Inc()
			continue
		}
		admitted[key] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}

// VerifyAbsent re-checks each candidate against the store's live existence predicate and
// drops those another writer inserted since the snapshot was taken. Order is preserved.
//
// This narrows the check-then-insert window but does not close it: two writers passing
// the check at the same moment can both insert.
func VerifyAbsent(ctx context.Context, candidates []joke.Candidate, exists ExistsFunc) ([]joke.Candidate, error) {
	absent := make([]joke.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := exists(ctx, string(c.Key()))
		if err != nil {
			return nil, fmt.Errorf("check existence: %w", err)
		}
		if found {
			droppedTotal.WithLabelValues(PhaseLive).Inc()
			continue
		}
		absent = append(absent, c)
	}
	return absent, nil
}
