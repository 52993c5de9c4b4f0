package objects

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/registry"
)

func TestAddNew_File(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	entry, err := manager.AddNew(ctx, org, ds, "Sub/DJI_0048.JPG", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)

	assert.Equal(t, "Sub/DJI_0048.JPG", entry.Path)
	assert.Equal(t, index.TypeImage, entry.Type)
	assert.Equal(t, int64(10), entry.Size)
	assert.NotEmpty(t, entry.Hash)
	assert.False(t, entry.ModifiedTime.IsZero())

	got, err := manager.Get(ctx, org, ds, "Sub/DJI_0048.JPG")
	require.NoError(t, err)
	assert.Equal(t, entry.Hash, got.Hash)
}

func TestAddNew_TypeDetection(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		path string
		want index.EntryType
	}{
		{"ortho.tif", index.TypeGeoRaster},
		{"cloud.laz", index.TypePointCloud},
		{"backup.zip", index.TypeContainer},
		{"photo.png", index.TypeImage},
		{"notes.xyz", index.TypeGeneric},
	}
	for _, tt := range tests {
		entry, err := manager.AddNew(ctx, org, ds, tt.path, strings.NewReader("content"))
		require.NoError(t, err)
		assert.Equal(t, tt.want, entry.Type, "path %s", tt.path)
	}
}

func TestAddNew_Replace(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	first, err := manager.AddNew(ctx, org, ds, "file.txt", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := manager.AddNew(ctx, org, ds, "file.txt", strings.NewReader("two!"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Hash, second.Hash)
	assert.Equal(t, int64(4), second.Size)

	entries, err := manager.List(ctx, org, ds, "", false)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAddNew_RejectsBadPaths(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	_, err := manager.AddNew(ctx, org, ds, "", strings.NewReader("x"))
	assert.True(t, registry.IsBadRequest(err))

	_, err = manager.AddNew(ctx, org, ds, "../escape.txt", strings.NewReader("x"))
	assert.True(t, registry.IsBadRequest(err))

	_, err = manager.AddNew(ctx, org, ds, "a//b.txt", strings.NewReader("x"))
	assert.True(t, registry.IsBadRequest(err))
}

func TestAddNew_Quota(t *testing.T) {
	manager, org, ds := newTestManager(t)
	manager.maxStorageBytes = 10
	ctx := context.Background()

	_, err := manager.AddNew(ctx, org, ds, "small.txt", strings.NewReader("12345"))
	require.NoError(t, err)

	_, err = manager.AddNew(ctx, org, ds, "big.txt", strings.NewReader("123456789"))
	assert.True(t, registry.IsQuotaExceeded(err))

	// The rejected write left nothing behind.
	_, err = manager.Get(ctx, org, ds, "big.txt")
	assert.True(t, registry.IsNotFound(err))

	// Replacing an existing file counts only the delta.
	_, err = manager.AddNew(ctx, org, ds, "small.txt", strings.NewReader("1234567890"))
	require.NoError(t, err)
}

func TestMove_PreservesContent(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	original, err := manager.AddNew(ctx, org, ds, "a.jpg", strings.NewReader("image content"))
	require.NoError(t, err)

	require.NoError(t, manager.Move(ctx, org, ds, "a.jpg", "Sub/b.jpg"))

	moved, err := manager.Get(ctx, org, ds, "Sub/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, original.Hash, moved.Hash)
	assert.Equal(t, original.Size, moved.Size)

	payload, err := manager.Download(ctx, org, ds, []string{"Sub/b.jpg"})
	require.NoError(t, err)
	var buf strings.Builder
	require.NoError(t, payload.Stream(&buf))
	assert.Equal(t, "image content", buf.String())

	// The source is gone.
	_, err = manager.Get(ctx, org, ds, "a.jpg")
	assert.True(t, registry.IsNotFound(err))
}

func TestMove_Directory(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	_, err := manager.AddNew(ctx, org, ds, "Sub", nil)
	require.NoError(t, err)
	addFile(t, manager, org, ds, "Sub/a.txt", "aaa")
	addFile(t, manager, org, ds, "Sub/Deep/b.txt", "bbb")

	require.NoError(t, manager.Move(ctx, org, ds, "Sub", "Renamed"))

	entries, err := manager.List(ctx, org, ds, "Renamed", true)
	require.NoError(t, err)
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	assert.ElementsMatch(t, []string{"Renamed/a.txt", "Renamed/Deep/b.txt"}, paths)

	direct, err := manager.List(ctx, org, ds, "Renamed", false)
	require.NoError(t, err)
	paths = paths[:0]
	for _, e := range direct {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"Renamed/a.txt", "Renamed/Deep"}, paths)

	_, err = manager.List(ctx, org, ds, "Sub", false)
	assert.True(t, registry.IsNotFound(err))
}

func TestMove_Errors(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	addFile(t, manager, org, ds, "a.txt", "a")
	addFile(t, manager, org, ds, "b.txt", "b")

	err := manager.Move(ctx, org, ds, "ghost.txt", "dest.txt")
	assert.True(t, registry.IsNotFound(err))

	err = manager.Move(ctx, org, ds, "a.txt", "b.txt")
	assert.True(t, registry.IsConflict(err))
}

func TestMove_IntoOwnSubtree(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	_, err := manager.AddNew(ctx, org, ds, "Sub", nil)
	require.NoError(t, err)
	addFile(t, manager, org, ds, "Sub/a.jpg", "x")

	err = manager.Move(ctx, org, ds, "Sub", "Sub/inner")
	assert.True(t, registry.IsBadRequest(err))
	err = manager.Move(ctx, org, ds, "Sub", "Sub")
	assert.True(t, registry.IsBadRequest(err))

	// Nothing moved.
	_, err = manager.Get(ctx, org, ds, "Sub/a.jpg")
	require.NoError(t, err)
}

func TestMove_OntoImpliedFolder(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	addFile(t, manager, org, ds, "a.jpg", "root image")
	// "Deep" has no record of its own, it exists only as a path prefix.
	addFile(t, manager, org, ds, "Deep/b.jpg", "nested image")

	err := manager.Move(ctx, org, ds, "a.jpg", "Deep")
	assert.True(t, registry.IsConflict(err))

	_, err = manager.Get(ctx, org, ds, "Deep/b.jpg")
	require.NoError(t, err)
	_, err = manager.Get(ctx, org, ds, "a.jpg")
	require.NoError(t, err)
}

func TestMove_DirectoryDescendantCollision(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	_, err := manager.AddNew(ctx, org, ds, "A", nil)
	require.NoError(t, err)
	addFile(t, manager, org, ds, "A/f.jpg", "source")
	addFile(t, manager, org, ds, "B/f.jpg", "existing")

	// A/f.jpg would land on B/f.jpg; the whole move is rejected before any
	// copy happens.
	err = manager.Move(ctx, org, ds, "A", "B")
	assert.True(t, registry.IsConflict(err))

	payload, err := manager.Download(ctx, org, ds, []string{"B/f.jpg"})
	require.NoError(t, err)
	data, err := io.ReadAll(streamToReader(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))
	_, err = manager.Get(ctx, org, ds, "A/f.jpg")
	require.NoError(t, err)
}

func TestDelete_File(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	addFile(t, manager, org, ds, "a.txt", "a")
	require.NoError(t, manager.Delete(ctx, org, ds, "a.txt"))

	_, err := manager.Get(ctx, org, ds, "a.txt")
	assert.True(t, registry.IsNotFound(err))

	// Deleting again fails NotFound at this layer; the blob layer already
	// treats it as a no-op.
	err = manager.Delete(ctx, org, ds, "a.txt")
	assert.True(t, registry.IsNotFound(err))
}

func TestDelete_DirectoryRecursive(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	_, err := manager.AddNew(ctx, org, ds, "Sub", nil)
	require.NoError(t, err)
	addFile(t, manager, org, ds, "Sub/a.txt", "a")
	addFile(t, manager, org, ds, "Sub/Deep/b.txt", "b")
	addFile(t, manager, org, ds, "keep.txt", "k")

	require.NoError(t, manager.Delete(ctx, org, ds, "Sub"))

	entries, err := manager.List(ctx, org, ds, "", true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", entries[0].Path)
}

func TestDownloadStream(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	addFile(t, manager, org, ds, "report.pdf", "pdf bytes")

	payload, err := manager.Download(ctx, org, ds, []string{"report.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", payload.Name)
	assert.Equal(t, "application/pdf", payload.ContentType)
	assert.Equal(t, int64(9), payload.Size)

	data, err := io.ReadAll(streamToReader(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
}

func streamToReader(t *testing.T, p *Payload) io.Reader {
	t.Helper()
	var buf strings.Builder
	require.NoError(t, p.Stream(&buf))
	return strings.NewReader(buf.String())
}
