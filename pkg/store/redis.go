package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

// RedisStore keeps the pool in Redis:
//   - items: a list of JSON-encoded items in arrival order
//   - questions: a set of stored questions for existence checks
//   - seq: a counter handing out monotonic IDs
type RedisStore struct {
	redis     *redis.Client
	items     string
	questions string
	seq       string
}

// NewRedisStore creates a store backed by Redis.
func NewRedisStore(redisClient *redis.Client, namespace string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:     redisClient,
		items:     RedisKey{Namespace: namespace, Name: "items"}.String(),
		questions: RedisKey{Namespace: namespace, Name: "questions"}.String(),
		seq:       RedisKey{Namespace: namespace, Name: "seq"}.String(),
	}
}

// FindAll returns every item in arrival order.
func (s *RedisStore) FindAll(ctx context.Context) ([]joke.Item, error) {
	raw, err := s.redis.LRange(ctx, s.items, 0, -1).Result()
	if err != nil {
		StoreErrors.WithLabelValues("redis", opFindAll).Inc()
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	items := make([]joke.Item, 0, len(raw))
	for _, entry := range raw {
		var item joke.Item
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			StoreErrors.WithLabelValues("redis", opFindAll).Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ExistsByQuestion reports whether the question is in the questions set.
func (s *RedisStore) ExistsByQuestion(ctx context.Context, question string) (bool, error) {
	found, err := s.redis.SIsMember(ctx, s.questions, question).Result()
	if err != nil {
		StoreErrors.WithLabelValues("redis", opExists).Inc()
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return found, nil
}

// SaveAll reserves a block of IDs, then appends items and questions in one pipeline.
func (s *RedisStore) SaveAll(ctx context.Context, items []joke.Item) ([]joke.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	last, err := s.redis.IncrBy(ctx, s.seq, int64(len(items))).Result()
	if err != nil {
		StoreErrors.WithLabelValues("redis", opSaveAll).Inc()
		return nil, fmt.Errorf("redis incrby: %w", err)
	}
	first := last - int64(len(items)) + 1

	now := time.Now().UTC()
	saved := make([]joke.Item, len(items))
	pipe := s.redis.Pipeline()
	for i, item := range items {
		item.ID = strconv.FormatInt(first+int64(i), 10)
		item.CreatedAt = now

		data, err := json.Marshal(item)
		if err != nil {
			StoreErrors.WithLabelValues("redis", opSaveAll).Inc()
			return nil, fmt.Errorf("marshal item: %w", err)
		}
		pipe.RPush(ctx, s.items, data)
		pipe.SAdd(ctx, s.questions, item.Question)
		saved[i] = item
	}

	if _, err := pipe.Exec(ctx); err != nil {
		StoreErrors.WithLabelValues("redis", opSaveAll).Inc()
		return nil, fmt.Errorf("redis pipeline: %w", err)
	}
	ItemsSaved.WithLabelValues("redis").Add(float64(len(saved)))

	return saved, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}
