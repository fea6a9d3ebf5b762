// Package kv provides the Redis-backed cache store used for smart-group
// results and spike records. The cache is best-effort everywhere: callers
// treat any failure here as "proceed without cache".
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skywatch/skywatch/internal/skywatch"
)

// DefaultTimeout bounds the initial connection attempt.
const DefaultTimeout = 5 * time.Second

// RedisCache implements skywatch.CacheStore on a Redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// ConnectLoop opens a Redis client and pings it with retries until
// connTimeout is reached. Unlike the analytical store, an unreachable cache
// is not fatal to the service; callers may log and continue degraded.
func ConnectLoop(
	ctx context.Context,
	addr, password string,
	db int,
	connTimeout time.Duration,
	logger *slog.Logger,
) (*redis.Client, func() error, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	err := client.Ping(ctx).Err()
	if err == nil {
		return client, client.Close, nil
	}
	logger.Warn("redis: ping problem", slog.Any("error", err))

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	timeoutExceeded := time.After(connTimeout)

	for {
		select {
		case <-timeoutExceeded:
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis: connection failed after %s timeout", connTimeout)
		case <-ticker.C:
			if err = client.Ping(ctx).Err(); err == nil {
				return client, client.Close, nil
			}
			logger.Warn("redis: ping problem", slog.Any("error", err))
		case <-ctx.Done():
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis: connection failed, ctx done: %w", ctx.Err())
		}
	}
}

// Get returns the value stored under key, or skywatch.ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, skywatch.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: get %q: %w", key, err)
	}
	return b, nil
}

// Set stores value under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

// PushRecent prepends value to the list at key and trims the list to
// capacity entries, dropping the oldest.
func (c *RedisCache) PushRecent(ctx context.Context, key, value string, capacity int64) error {
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: push recent %q: %w", key, err)
	}
	return nil
}

// ListRecent returns up to limit entries from the head of the list at key.
func (c *RedisCache) ListRecent(ctx context.Context, key string, limit int64) ([]string, error) {
	values, err := c.client.LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list recent %q: %w", key, err)
	}
	return values, nil
}

// Ping reports whether the cache is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
