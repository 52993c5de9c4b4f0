// Package cached provides a caching decorator for index implementations
// that can render thumbnails. Rendering a preview means pulling the object
// bytes and decoding an image, which is far too expensive to repeat for
// every gallery view; the decorator keys cached renders by content hash so
// a re-uploaded identical file hits the cache immediately and a changed
// file naturally misses it.
package cached

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/aeriallabs/registry/pkg/cache"
	"github.com/aeriallabs/registry/pkg/index"
)

// DefaultTTL is used when the decorator is created with a zero TTL.
const DefaultTTL = 24 * time.Hour

// Manager decorates an index.Manager so every index it hands out that can
// render thumbnails gets the caching wrapper. Indexes without rendering
// support pass through untouched.
type Manager struct {
	inner index.Manager
	cache cache.Cache
	ttl   time.Duration
}

// NewManager wraps inner with thumbnail caching.
func NewManager(inner index.Manager, c cache.Cache, ttl time.Duration) *Manager {
	return &Manager{inner: inner, cache: c, ttl: ttl}
}

func (m *Manager) Get(orgSlug string, internalRef uuid.UUID) (index.Index, error) {
	idx, err := m.inner.Get(orgSlug, internalRef)
	if err != nil {
		return nil, err
	}
	if renderer, ok := idx.(index.Thumbnailer); ok {
		return NewCachedIndex(idx, renderer, m.cache, m.ttl), nil
	}
	return idx, nil
}

func (m *Manager) Delete(orgSlug string, internalRef uuid.UUID) error {
	return m.inner.Delete(orgSlug, internalRef)
}

// Close closes the wrapped manager when it supports closing.
func (m *Manager) Close() error {
	if closer, ok := m.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// CachedIndex wraps an index.Index, passing every metadata operation
// through untouched and serving Thumbnail from the cache when possible.
type CachedIndex struct {
	index.Index

	renderer index.Thumbnailer
	cache    cache.Cache
	ttl      time.Duration
}

// NewCachedIndex decorates idx with thumbnail caching. renderer produces
// previews on a miss; usually it is idx itself when the implementation
// supports rendering, but any renderer over the same dataset works.
func NewCachedIndex(idx index.Index, renderer index.Thumbnailer, c cache.Cache, ttl time.Duration) *CachedIndex {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &CachedIndex{
		Index:    idx,
		renderer: renderer,
		cache:    c,
		ttl:      ttl,
	}
}

func thumbnailKey(hash string, size int) string {
	return fmt.Sprintf("thumb:%s:%d", hash, size)
}

// Thumbnail returns a cached preview of the entry at path, rendering and
// backfilling the cache on a miss. Cache failures degrade to rendering
// rather than failing the request.
func (c *CachedIndex) Thumbnail(ctx context.Context, path string, size int) ([]byte, error) {
	entry, err := c.Index.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if entry.Hash == "" {
		return nil, fmt.Errorf("entry %s has no content to render", path)
	}

	key := thumbnailKey(entry.Hash, size)
	if data, err := c.cache.Get(ctx, key); err == nil {
		return data, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		// Degrade to a render on cache errors; the cache is best-effort.
		_ = err
	}

	data, err := c.renderer.Thumbnail(ctx, path, size)
	if err != nil {
		return nil, err
	}

	// Backfill is best-effort too.
	_ = c.cache.Set(ctx, key, data, c.ttl)

	return data, nil
}
