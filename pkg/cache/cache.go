// Package cache defines a small byte-oriented key-value cache contract used
// for derived artifacts (thumbnails, rendered previews) that are expensive
// to compute but safe to lose.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque byte values under string keys with a TTL.
//
// Caches hold only derived data: a miss is never an error condition for the
// caller beyond recomputing, and implementations may evict at any time.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Cache interface {
	// Get returns the cached value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
