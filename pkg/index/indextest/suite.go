// Package indextest provides a conformance test suite for index.Index
// implementations, so the memory and Badger backends stay interchangeable.
package indextest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeriallabs/registry/pkg/index"
)

// IndexTestSuite runs the index.Index conformance tests against the index
// produced by NewIndex. NewIndex is called once per subtest.
type IndexTestSuite struct {
	NewIndex func(t *testing.T) index.Index
}

// Run executes the full suite.
func (s *IndexTestSuite) Run(t *testing.T) {
	t.Run("UpsertGet", s.testUpsertGet)
	t.Run("GetMissing", s.testGetMissing)
	t.Run("UpsertReplaces", s.testUpsertReplaces)
	t.Run("RemoveMissing", s.testRemoveMissing)
	t.Run("SearchScope", s.testSearchScope)
	t.Run("SearchGlob", s.testSearchGlob)
	t.Run("Attributes", s.testAttributes)
	t.Run("Version", s.testVersion)
}

func seed(t *testing.T, idx index.Index, paths ...index.Entry) {
	t.Helper()
	for _, entry := range paths {
		require.NoError(t, idx.Upsert(context.Background(), entry))
	}
}

func file(path string) index.Entry {
	return index.Entry{
		Path:         path,
		Type:         index.TypeImage,
		Size:         1024,
		Hash:         "deadbeef",
		ModifiedTime: time.Unix(1700000000, 0).UTC(),
	}
}

func folder(path string) index.Entry {
	return index.Entry{Path: path, Type: index.TypeDirectory}
}

func paths(entries []index.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func (s *IndexTestSuite) testUpsertGet(t *testing.T) {
	idx := s.NewIndex(t)
	ctx := context.Background()

	want := file("Sub/DJI_0048.JPG")
	require.NoError(t, idx.Upsert(ctx, want))

	got, err := idx.Get(ctx, "Sub/DJI_0048.JPG")
	require.NoError(t, err)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, index.TypeImage, got.Type)
	assert.Equal(t, int64(1024), got.Size)
	assert.Equal(t, "deadbeef", got.Hash)
	assert.True(t, want.ModifiedTime.Equal(got.ModifiedTime))
}

func (s *IndexTestSuite) testGetMissing(t *testing.T) {
	idx := s.NewIndex(t)

	_, err := idx.Get(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func (s *IndexTestSuite) testUpsertReplaces(t *testing.T) {
	idx := s.NewIndex(t)
	ctx := context.Background()

	entry := file("data.bin")
	require.NoError(t, idx.Upsert(ctx, entry))

	entry.Size = 2048
	entry.Hash = "cafebabe"
	require.NoError(t, idx.Upsert(ctx, entry))

	got, err := idx.Get(ctx, "data.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), got.Size)
	assert.Equal(t, "cafebabe", got.Hash)
}

func (s *IndexTestSuite) testRemoveMissing(t *testing.T) {
	idx := s.NewIndex(t)
	ctx := context.Background()

	assert.ErrorIs(t, idx.Remove(ctx, "ghost.txt"), index.ErrNotFound)

	require.NoError(t, idx.Upsert(ctx, file("real.txt")))
	require.NoError(t, idx.Remove(ctx, "real.txt"))
	assert.ErrorIs(t, idx.Remove(ctx, "real.txt"), index.ErrNotFound)
}

func (s *IndexTestSuite) testSearchScope(t *testing.T) {
	idx := s.NewIndex(t)
	ctx := context.Background()

	seed(t, idx,
		file("a.jpg"),
		file("b.jpg"),
		folder("Sub"),
		file("Sub/c.jpg"),
		file("Sub/d.jpg"),
		folder("Sub/Deep"),
		file("Sub/Deep/e.jpg"),
	)

	// Root, non-recursive: folder counts as a child, its contents don't.
	root, err := idx.Search(ctx, "", "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sub", "a.jpg", "b.jpg"}, paths(root))

	// Root, recursive: everything.
	all, err := idx.Search(ctx, "", "", true)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	// Scoped, non-recursive: the scope folder is excluded from its own
	// listing.
	sub, err := idx.Search(ctx, "", "Sub", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sub/Deep", "Sub/c.jpg", "Sub/d.jpg"}, paths(sub))

	// Scoped, recursive.
	subAll, err := idx.Search(ctx, "", "Sub", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sub/Deep", "Sub/Deep/e.jpg", "Sub/c.jpg", "Sub/d.jpg"}, paths(subAll))
}

func (s *IndexTestSuite) testSearchGlob(t *testing.T) {
	idx := s.NewIndex(t)
	ctx := context.Background()

	seed(t, idx,
		file("DJI_0019.JPG"),
		file("DJI_0020.JPG"),
		file("report.pdf"),
		folder("Sub"),
		file("Sub/DJI_0048.JPG"),
	)

	// Glob is case-insensitive and matches the entry name only.
	matches, err := idx.Search(ctx, "dji*", "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"DJI_0019.JPG", "DJI_0020.JPG", "Sub/DJI_0048.JPG"}, paths(matches))

	// Non-recursive search doesn't see into Sub.
	matches, err = idx.Search(ctx, "DJI*", "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"DJI_0019.JPG", "DJI_0020.JPG"}, paths(matches))

	// No matches is an empty result, not an error.
	matches, err = idx.Search(ctx, "*.las", "", true)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func (s *IndexTestSuite) testAttributes(t *testing.T) {
	idx := s.NewIndex(t)
	ctx := context.Background()

	attrs, err := idx.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Empty(t, attrs)

	require.NoError(t, idx.SetAttributes(ctx, map[string]string{"public": "true", "license": "CC-BY"}))
	require.NoError(t, idx.SetAttributes(ctx, map[string]string{"public": "false"}))

	attrs, err = idx.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"public": "false", "license": "CC-BY"}, attrs)
}

func (s *IndexTestSuite) testVersion(t *testing.T) {
	idx := s.NewIndex(t)

	version, err := idx.Version(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}
