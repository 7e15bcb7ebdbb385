package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jokes (
	id         BIGSERIAL PRIMARY KEY,
	category   TEXT NOT NULL DEFAULT '',
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS jokes_question_idx ON jokes (question);
`

// PostgresStore keeps the pool in PostgreSQL using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs the store and creates its table if needed.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// FindAll returns every item ordered by ID.
func (s *PostgresStore) FindAll(ctx context.Context) ([]joke.Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category, question, answer, created_at
		FROM jokes
		ORDER BY id
	`)
	if err != nil {
		StoreErrors.WithLabelValues("postgres", opFindAll).Inc()
		return nil, fmt.Errorf("query jokes: %w", err)
	}
	defer rows.Close()

	var items []joke.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			StoreErrors.WithLabelValues("postgres", opFindAll).Inc()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		StoreErrors.WithLabelValues("postgres", opFindAll).Inc()
		return nil, fmt.Errorf("iterate jokes: %w", err)
	}
	return items, nil
}

// ExistsByQuestion reports whether the question is stored.
func (s *PostgresStore) ExistsByQuestion(ctx context.Context, question string) (bool, error) {
	var found bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jokes WHERE question = $1)`, question).Scan(&found)
	if err != nil {
		StoreErrors.WithLabelValues("postgres", opExists).Inc()
		return false, fmt.Errorf("check question: %w", err)
	}
	return found, nil
}

// SaveAll sends every insert in one pgx batch.
func (s *PostgresStore) SaveAll(ctx context.Context, items []joke.Item) ([]joke.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO jokes (category, question, answer)
			VALUES ($1, $2, $3)
			RETURNING id, category, question, answer, created_at
		`, item.Category, item.Question, item.Answer)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	saved := make([]joke.Item, 0, len(items))
	for range items {
		item, err := scanItem(results.QueryRow())
		if err != nil {
			StoreErrors.WithLabelValues("postgres", opSaveAll).Inc()
			return nil, err
		}
		saved = append(saved, item)
	}
	if err := results.Close(); err != nil {
		StoreErrors.WithLabelValues("postgres", opSaveAll).Inc()
		return nil, fmt.Errorf("close batch: %w", err)
	}
	ItemsSaved.WithLabelValues("postgres").Add(float64(len(saved)))

	return saved, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (joke.Item, error) {
	var (
		item    joke.Item
		id      int64
		created time.Time
	)
	if err := row.Scan(&id, &item.Category, &item.Question, &item.Answer, &created); err != nil {
		return joke.Item{}, fmt.Errorf("scan joke: %w", err)
	}
	item.ID = strconv.FormatInt(id, 10)
	item.CreatedAt = created.UTC()
	return item, nil
}
