// Package cache provides byte-level caching for rendered source pages.
//
// Rendering a page (decoding, scaling and converting it to gray) is the most
// expensive step of a conversion, and the same documents are often converted
// repeatedly with different output settings. The cache stores rendered rasters
// keyed by a fingerprint of the page content and the render width.
//
// # Backends
//
//   - [FileCache]: one file per entry under a directory, for the CLI
//   - [RedisCache]: shared cache for `reflow serve` deployments
//   - [NullCache]: disables caching
//
// # Keys
//
// Keys are built by a [Keyer] so that all callers agree on their layout.
// [ScopedKeyer] adds a prefix, which lets several servers share one Redis
// database without colliding.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value for key. hit is false when the key is absent or
	// expired; that is not an error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
