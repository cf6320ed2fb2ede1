package cache

import (
	"context"
	"time"
)

// NullCache stands in when page caching is off: lookups miss and stores
// are dropped. Reason records why, for logs.
type NullCache struct {
	Reason string
}

// NewNullCache returns a disabled cache.
func NewNullCache(reason string) *NullCache {
	return &NullCache{Reason: reason}
}

func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

func (c *NullCache) Delete(ctx context.Context, key string) error { return nil }

func (c *NullCache) Close() error { return nil }

// Disabled reports whether c never stores anything, and why. A nil cache
// counts as disabled.
func Disabled(c Cache) (reason string, ok bool) {
	switch n := c.(type) {
	case nil:
		return "no cache configured", true
	case *NullCache:
		return n.Reason, true
	}
	return "", false
}

var _ Cache = (*NullCache)(nil)
