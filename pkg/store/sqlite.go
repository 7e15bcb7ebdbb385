package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jokes (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	category   TEXT NOT NULL DEFAULT '',
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jokes_question ON jokes(question);
`

// SQLiteStore keeps the pool in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(10000)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// FindAll returns every item in insertion order.
func (s *SQLiteStore) FindAll(ctx context.Context) ([]joke.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, category, question, answer, created_at FROM jokes ORDER BY seq`)
	if err != nil {
		StoreErrors.WithLabelValues("sqlite", opFindAll).Inc()
		return nil, fmt.Errorf("query jokes: %w", err)
	}
	defer rows.Close()

	var items []joke.Item
	for rows.Next() {
		var (
			item    joke.Item
			created string
		)
		if err := rows.Scan(&item.ID, &item.Category, &item.Question, &item.Answer, &created); err != nil {
			StoreErrors.WithLabelValues("sqlite", opFindAll).Inc()
			return nil, fmt.Errorf("scan joke: %w", err)
		}
		item.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			StoreErrors.WithLabelValues("sqlite", opFindAll).Inc()
			return nil, fmt.Errorf("%w: created_at %q", ErrInvalidEntry, created)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		StoreErrors.WithLabelValues("sqlite", opFindAll).Inc()
		return nil, fmt.Errorf("iterate jokes: %w", err)
	}
	return items, nil
}

// ExistsByQuestion reports whether the question is stored.
func (s *SQLiteStore) ExistsByQuestion(ctx context.Context, question string) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jokes WHERE question = ?)`, question).Scan(&found)
	if err != nil {
		StoreErrors.WithLabelValues("sqlite", opExists).Inc()
		return false, fmt.Errorf("check question: %w", err)
	}
	return found, nil
}

// SaveAll inserts all items with a single prepared statement.
func (s *SQLiteStore) SaveAll(ctx context.Context, items []joke.Item) ([]joke.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		StoreErrors.WithLabelValues("sqlite", opSaveAll).Inc()
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO jokes (id, category, question, answer, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		StoreErrors.WithLabelValues("sqlite", opSaveAll).Inc()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	saved := make([]joke.Item, len(items))
	for i, item := range items {
		item.ID = ulid.Make().String()
		item.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, item.ID, item.Category, item.Question, item.Answer, now.Format(time.RFC3339Nano)); err != nil {
			StoreErrors.WithLabelValues("sqlite", opSaveAll).Inc()
			return nil, fmt.Errorf("insert joke: %w", err)
		}
		saved[i] = item
	}

	if err := tx.Commit(); err != nil {
		StoreErrors.WithLabelValues("sqlite", opSaveAll).Inc()
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	ItemsSaved.WithLabelValues("sqlite").Add(float64(len(saved)))

	return saved, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
