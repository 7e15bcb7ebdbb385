// Package store persists jokes. Every backend supports reading the whole pool in
// arrival order, checking a question for existence, and inserting many items at once.
//
// Stores do not enforce question uniqueness themselves; callers dedupe before SaveAll.
// Two writers racing on the same question can both insert it.
package store

import (
	"context"
	"errors"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

var (
	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid stored entry")

	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store is the persistence collaborator of the pool.
type Store interface {
	// FindAll returns every item in arrival order.
	FindAll(ctx context.Context) ([]joke.Item, error)

	// ExistsByQuestion reports whether an item with exactly this question is stored.
	ExistsByQuestion(ctx context.Context, question string) (bool, error)

	// SaveAll inserts items in one bulk operation, assigning IDs and creation times.
	// The returned items are in input order.
	SaveAll(ctx context.Context, items []joke.Item) ([]joke.Item, error)

	// Close releases the backend's resources.
	Close() error
}
