package objects

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_ArchiveFidelity(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	contents := map[string]string{
		"a.jpg":     "first image bytes",
		"b.jpg":     "second image bytes",
		"Sub/c.jpg": "nested image bytes",
	}
	for path, data := range contents {
		addFile(t, manager, org, ds, path, data)
	}

	payload, err := manager.Download(ctx, org, ds, []string{"a.jpg", "b.jpg", "Sub/c.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "application/zip", payload.ContentType)
	assert.Equal(t, int64(-1), payload.Size)
	assert.Regexp(t, `^survey-\d{14}\.zip$`, payload.Name)

	var buf bytes.Buffer
	require.NoError(t, payload.Stream(&buf))

	archive, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, archive.File, 3)

	// Every member must decompress to exactly the source object's bytes:
	// sub-folder prefixes preserved, checksums identical.
	for _, member := range archive.File {
		want, ok := contents[member.Name]
		require.True(t, ok, "unexpected archive member %s", member.Name)

		reader, err := member.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		reader.Close()

		assert.Equal(t, md5.Sum([]byte(want)), md5.Sum(got), "member %s", member.Name)
	}
}

func TestDownload_DirectoryExpandsToArchive(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	_, err := manager.AddNew(ctx, org, ds, "Sub", nil)
	require.NoError(t, err)
	addFile(t, manager, org, ds, "Sub/only.txt", "x")

	// A single directory path still produces an archive, not a raw stream.
	payload, err := manager.Download(ctx, org, ds, []string{"Sub"})
	require.NoError(t, err)
	assert.Equal(t, "application/zip", payload.ContentType)

	var buf bytes.Buffer
	require.NoError(t, payload.Stream(&buf))

	archive, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, archive.File, 1)
	assert.Equal(t, "Sub/only.txt", archive.File[0].Name)
}

func TestDownload_MissingPathFailsEarly(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	addFile(t, manager, org, ds, "a.jpg", "x")

	_, err := manager.Download(ctx, org, ds, []string{"a.jpg", "ghost.jpg"})
	require.Error(t, err)
}
