package skywatch

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by CacheStore.Get when the key is absent or its
// value has expired.
var ErrCacheMiss = errors.New("cache: key not found")

// CacheStore encapsulates the best-effort key-value cache. Every interaction
// point in the engines treats a failing cache as "proceed without cache";
// no cache error ever surfaces to a caller as a hard failure.
type CacheStore interface {
	// Get returns the value stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// PushRecent prepends value to the list and trims it to at most capacity
	// entries, oldest falling off first.
	PushRecent(ctx context.Context, key, value string, capacity int64) error
	// ListRecent returns up to limit entries from the head of the list.
	ListRecent(ctx context.Context, key string, limit int64) ([]string, error)
	// Ping reports whether the cache is reachable and operational.
	Ping(ctx context.Context) error
}
