package cached

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachememory "github.com/aeriallabs/registry/pkg/cache/memory"
	"github.com/aeriallabs/registry/pkg/index"
	indexmemory "github.com/aeriallabs/registry/pkg/index/memory"
)

// countingRenderer counts renders so tests can observe cache hits.
type countingRenderer struct {
	renders int
}

func (r *countingRenderer) Thumbnail(ctx context.Context, path string, size int) ([]byte, error) {
	r.renders++
	return []byte("png:" + path), nil
}

func newFixture(t *testing.T) (*CachedIndex, *countingRenderer, index.Index) {
	t.Helper()

	idx := indexmemory.NewMemoryIndex()
	renderer := &countingRenderer{}
	cached := NewCachedIndex(idx, renderer, cachememory.NewMemoryCache(), time.Minute)
	return cached, renderer, idx
}

func TestThumbnail_CachesByHash(t *testing.T) {
	cached, renderer, idx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, index.Entry{
		Path: "photo.jpg", Type: index.TypeImage, Hash: "abc123",
	}))

	first, err := cached.Thumbnail(ctx, "photo.jpg", 256)
	require.NoError(t, err)
	assert.Equal(t, "png:photo.jpg", string(first))
	assert.Equal(t, 1, renderer.renders)

	// Second request is served from the cache.
	second, err := cached.Thumbnail(ctx, "photo.jpg", 256)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, renderer.renders)

	// A different size is a different cache key.
	_, err = cached.Thumbnail(ctx, "photo.jpg", 512)
	require.NoError(t, err)
	assert.Equal(t, 2, renderer.renders)
}

func TestThumbnail_ContentChangeInvalidates(t *testing.T) {
	cached, renderer, idx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, index.Entry{
		Path: "photo.jpg", Type: index.TypeImage, Hash: "v1",
	}))
	_, err := cached.Thumbnail(ctx, "photo.jpg", 256)
	require.NoError(t, err)

	// Overwriting the file changes its hash, so the cached render for the
	// old content no longer applies.
	require.NoError(t, idx.Upsert(ctx, index.Entry{
		Path: "photo.jpg", Type: index.TypeImage, Hash: "v2",
	}))
	_, err = cached.Thumbnail(ctx, "photo.jpg", 256)
	require.NoError(t, err)
	assert.Equal(t, 2, renderer.renders)
}

func TestThumbnail_MissingEntry(t *testing.T) {
	cached, _, _ := newFixture(t)

	_, err := cached.Thumbnail(context.Background(), "ghost.jpg", 256)
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestThumbnail_DirectoryHasNoContent(t *testing.T) {
	cached, renderer, idx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, index.Entry{Path: "Sub", Type: index.TypeDirectory}))

	_, err := cached.Thumbnail(ctx, "Sub", 256)
	require.Error(t, err)
	assert.Zero(t, renderer.renders)
}
