package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pending:"

// RedisStore is the shared pending backend for multi-instance deployments.
// Expiry rides on the Redis key TTL; Take maps to GETDEL so concurrent
// confirms still resolve to one winner.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode pending entry: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+e.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Entry, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load pending entry: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Take(ctx context.Context, id string) (Entry, error) {
	data, err := s.client.GetDel(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("take pending entry: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete pending entry: %w", err)
	}
	return nil
}

func decode(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode pending entry: %w", err)
	}
	return e, nil
}
