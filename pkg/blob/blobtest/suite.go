// Package blobtest provides a conformance test suite for blob.Store
// implementations. Every backend must pass the same suite so the object
// manager can rely on identical semantics regardless of configuration.
package blobtest

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeriallabs/registry/pkg/blob"
)

// StoreTestSuite runs the blob.Store conformance tests against the store
// produced by NewStore. NewStore is called once per subtest so tests are
// isolated from each other.
type StoreTestSuite struct {
	NewStore func(t *testing.T) blob.Store
}

// Run executes the full suite.
func (s *StoreTestSuite) Run(t *testing.T) {
	t.Run("PutGetRoundtrip", s.testPutGetRoundtrip)
	t.Run("GetMissing", s.testGetMissing)
	t.Run("Overwrite", s.testOverwrite)
	t.Run("DeleteIdempotent", s.testDeleteIdempotent)
	t.Run("ListPrefix", s.testListPrefix)
	t.Run("Exists", s.testExists)
	t.Run("Copy", s.testCopy)
	t.Run("BucketIsolation", s.testBucketIsolation)
}

func (s *StoreTestSuite) testPutGetRoundtrip(t *testing.T) {
	store := s.NewStore(t)
	ctx := context.Background()

	payload := []byte("drone image bytes")
	require.NoError(t, store.Put(ctx, "bucket", "Sub/DJI_0048.JPG", bytes.NewReader(payload)))

	reader, err := store.Get(ctx, "bucket", "Sub/DJI_0048.JPG")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func (s *StoreTestSuite) testGetMissing(t *testing.T) {
	store := s.NewStore(t)

	_, err := store.Get(context.Background(), "bucket", "nope.bin")
	require.Error(t, err)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (s *StoreTestSuite) testOverwrite(t *testing.T) {
	store := s.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "bucket", "file.txt", strings.NewReader("first")))
	require.NoError(t, store.Put(ctx, "bucket", "file.txt", strings.NewReader("second")))

	reader, err := store.Get(ctx, "bucket", "file.txt")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func (s *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := s.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "bucket", "gone.txt", strings.NewReader("x")))
	require.NoError(t, store.Delete(ctx, "bucket", "gone.txt"))

	// Deleting again must not fail: compensation paths rely on this.
	require.NoError(t, store.Delete(ctx, "bucket", "gone.txt"))

	_, err := store.Get(ctx, "bucket", "gone.txt")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func (s *StoreTestSuite) testListPrefix(t *testing.T) {
	store := s.NewStore(t)
	ctx := context.Background()

	for _, key := range []string{"a.txt", "Sub/b.txt", "Sub/c.txt", "Sub/Deep/d.txt", "other.txt"} {
		require.NoError(t, store.Put(ctx, "bucket", key, strings.NewReader(key)))
	}

	keys, err := store.List(ctx, "bucket", "Sub/")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sub/Deep/d.txt", "Sub/b.txt", "Sub/c.txt"}, keys)

	all, err := store.List(ctx, "bucket", "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	empty, err := store.List(ctx, "missing-bucket", "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func (s *StoreTestSuite) testExists(t *testing.T) {
	store := s.NewStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "bucket", "thing.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, "bucket", "thing.bin", strings.NewReader("data")))

	exists, err = store.Exists(ctx, "bucket", "thing.bin")
	require.NoError(t, err)
	assert.True(t, exists)
}

func (s *StoreTestSuite) testCopy(t *testing.T) {
	store := s.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "bucket", "src.jpg", strings.NewReader("jpeg bytes")))
	require.NoError(t, store.Copy(ctx, "bucket", "src.jpg", "Sub/dst.jpg"))

	reader, err := store.Get(ctx, "bucket", "Sub/dst.jpg")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	// Source must be untouched.
	exists, err := store.Exists(ctx, "bucket", "src.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}

func (s *StoreTestSuite) testBucketIsolation(t *testing.T) {
	store := s.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "bucket-a", "file.txt", strings.NewReader("a")))

	_, err := store.Get(ctx, "bucket-b", "file.txt")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
