package store

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

// MemoryStore keeps the pool in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	items     []joke.Item
	questions map[string]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{questions: make(map[string]int)}
}

// FindAll returns a copy of every item in arrival order.
func (s *MemoryStore) FindAll(ctx context.Context) ([]joke.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]joke.Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

// ExistsByQuestion reports whether the question is stored.
func (s *MemoryStore) ExistsByQuestion(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.questions[question] > 0, nil
}

// SaveAll appends items with fresh ULIDs.
func (s *MemoryStore) SaveAll(ctx context.Context, items []joke.Item) ([]joke.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	saved := make([]joke.Item, len(items))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range items {
		item.ID = ulid.Make().String()
		item.CreatedAt = now
		saved[i] = item
		s.items = append(s.items, item)
		s.questions[item.Question]++
	}
	ItemsSaved.WithLabelValues("memory").Add(float64(len(saved)))

	return saved, nil
}

// Len returns the number of stored items.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
