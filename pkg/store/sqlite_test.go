package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "jokes.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return newTestSQLiteStore(t)
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "jokes.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	saved, err := s.SaveAll(ctx, []joke.Item{{Category: "general", Question: "q", Answer: "a"}})
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	s.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	items, err := reopened.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("FindAll() = %d items, want 1", len(items))
	}
	if items[0].ID != saved[0].ID || items[0].Category != "general" {
		t.Errorf("FindAll()[0] = %+v, want %+v", items[0], saved[0])
	}
	if !items[0].CreatedAt.Equal(saved[0].CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", items[0].CreatedAt, saved[0].CreatedAt)
	}
}
