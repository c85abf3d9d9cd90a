package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient adapts *redis.Client (github.com/redis/go-redis/v9) to the
// Client interface, the production backend for MergerViewSession. Same
// field-wraps-driver-client shape as teacher's RedisTrending
// (internal/storage/redis_trending.go).
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient wraps an existing go-redis client.
func NewRedisClient(rdb *redis.Client) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("session: redis exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, NewNotFoundError(key)
		}
		return nil, fmt.Errorf("session: redis get %q: %w", key, err)
	}
	return b, nil
}

func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set %q: %w", key, err)
	}
	return nil
}
