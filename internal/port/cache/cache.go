// Package cache defines the port interface for in-process caching of derived
// read models such as plan status summaries.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching. Implementations may
// evict entries at any time; callers must treat a miss as authoritative
// "recompute" rather than an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
