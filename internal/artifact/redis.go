package artifact

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists artifacts in Redis, one key per locator. Useful when
// several runner processes share a cache without a common filesystem.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. All keys are namespaced under
// the given prefix.
func NewRedisStore(addr, prefix string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

func (s *RedisStore) key(locator string) string {
	return s.prefix + ":" + locator
}

// Write implements Store.
func (s *RedisStore) Write(ctx context.Context, locator string, data []byte) error {
	if err := s.client.Set(ctx, s.key(locator), data, 0).Err(); err != nil {
		return fmt.Errorf("writing artifact %q to redis: %w", locator, err)
	}
	return nil
}

// Read implements Store.
func (s *RedisStore) Read(ctx context.Context, locator string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(locator)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("reading artifact %q from redis: %w", locator, err)
	}
	return data, nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, locator string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(locator)).Result()
	if err != nil {
		return false, fmt.Errorf("checking artifact %q in redis: %w", locator, err)
	}
	return n > 0, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
