// internal/app/system/ratelimit/redis.go
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a fixed-window Counter shared by every replica that
// points at the same Redis.
type RedisCounter struct {
	rdb      redis.UniversalClient
	prefix   string
	limit    int64
	duration time.Duration
}

// NewRedisCounter creates a Counter storing windows under prefix.
func NewRedisCounter(rdb redis.UniversalClient, prefix string, limit int, duration time.Duration) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix, limit: int64(limit), duration: duration}
}

// Allow increments key's counter, starting the window on the first hit.
func (c *RedisCounter) Allow(ctx context.Context, key string) (bool, error) {
	k := c.prefix + key

	n, err := c.rdb.Incr(ctx, k).Result()
	if err != nil {
		return true, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, k, c.duration).Err(); err != nil {
			return true, err
		}
	}
	return n <= c.limit, nil
}

// Reset deletes key's window.
func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}
