package mock

import (
	"context"
	"time"
)

// CacheStore is a mock implementation of skywatch.CacheStore.
type CacheStore struct {
	GetFn        func(ctx context.Context, key string) ([]byte, error)
	SetFn        func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	PushRecentFn func(ctx context.Context, key, value string, capacity int64) error
	ListRecentFn func(ctx context.Context, key string, limit int64) ([]string, error)
	PingFn       func(ctx context.Context) error
}

func (m *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	return m.GetFn(ctx, key)
}

func (m *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.SetFn(ctx, key, value, ttl)
}

func (m *CacheStore) PushRecent(ctx context.Context, key, value string, capacity int64) error {
	return m.PushRecentFn(ctx, key, value, capacity)
}

func (m *CacheStore) ListRecent(ctx context.Context, key string, limit int64) ([]string, error) {
	return m.ListRecentFn(ctx, key, limit)
}

func (m *CacheStore) Ping(ctx context.Context) error {
	return m.PingFn(ctx)
}
