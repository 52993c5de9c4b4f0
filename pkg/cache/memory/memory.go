// Package memory provides an in-memory cache.Cache for tests and
// single-node deployments that don't run Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aeriallabs/registry/pkg/cache"
)

type item struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a thread-safe in-memory cache.Cache with lazy expiry:
// expired items are dropped when read, not by a background sweeper.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]item
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]item)}
}

// Get returns the cached value for key, or cache.ErrMiss.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, cache.ErrMiss
	}
	if !it.expires.IsZero() && time.Now().After(it.expires) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, cache.ErrMiss
	}

	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, nil
}

// Set stores value under key. A zero ttl means no expiry.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = item{value: stored, expires: expires}
	c.mu.Unlock()
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}
