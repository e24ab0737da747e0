package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/schoolcrm/enrichment/internal/core"
)

// RedisCache is the hot tier of the intent cache. Every call runs under its
// own timeout so callers can fall back to Postgres quickly.
type RedisCache struct {
	client  redis.UniversalClient
	timeout time.Duration
}

var _ core.CacheRepository = (*RedisCache)(nil)

// NewRedisCache wraps client. A non-positive timeout leaves calls bounded only
// by the caller's context.
func NewRedisCache(client redis.UniversalClient, timeout time.Duration) *RedisCache {
	return &RedisCache{client: client, timeout: timeout}
}

func (c *RedisCache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Set writes value under key. A zero ttl stores it without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is empty")
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	if err := c.client.Set(ctx, key, value, max(ttl, 0)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get returns nil, nil for a missing key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("cache key is empty")
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	b, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Delete unlinks key and reports whether it existed.
func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("cache key is empty")
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	n, err := c.client.Unlink(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis unlink %s: %w", key, err)
	}
	return n > 0, nil
}

// Health pings Redis for the readiness probe.
func (c *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.client.Ping(ctx).Err()
}
