package objects

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/registry"
)

// Payload is a downloadable response: either one raw object or a zip
// archive of several. Stream writes the bytes; it may be called once.
type Payload struct {
	// Name is the suggested file name for the response.
	Name string

	// ContentType is the MIME type of the stream.
	ContentType string

	// Size is the byte length of the stream, or -1 when not known up front
	// (archives are sized only once built).
	Size int64

	stream func(w io.Writer) error
}

// Stream writes the payload to w. Aborting the write (by returning an error
// from w) cancels the download without side effects; archive building is
// read-only.
func (p *Payload) Stream(w io.Writer) error {
	return p.stream(w)
}

// Download resolves paths and returns a streamable payload. A single file
// path streams the raw blob with its content type; multiple paths (or one
// directory) produce a zip archive preserving relative paths. Any path that
// does not resolve fails NotFound before a byte is streamed.
func (m *Manager) Download(ctx context.Context, orgSlug, datasetSlug string, paths []string) (*Payload, error) {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}

	var files []index.Entry
	expandedDir := false
	for _, raw := range paths {
		p, err := normalizePath(raw)
		if err != nil {
			return nil, err
		}
		if p == "" {
			return nil, registry.BadRequest("empty download path")
		}

		entry, err := ds.index.Get(ctx, p)
		if err != nil {
			if errors.Is(err, index.ErrNotFound) {
				return nil, registry.NotFound("path not found", p)
			}
			return nil, err
		}
		if !entry.IsDirectory() {
			files = append(files, *entry)
			continue
		}

		// A directory expands to all file descendants.
		expandedDir = true
		descendants, err := ds.index.Search(ctx, "", p, true)
		if err != nil {
			return nil, err
		}
		for _, child := range descendants {
			if !child.IsDirectory() {
				files = append(files, child)
			}
		}
	}
	if len(files) == 0 {
		return nil, registry.NotFound("nothing to download")
	}

	if len(files) == 1 && !expandedDir {
		return m.rawPayload(ctx, ds, files[0]), nil
	}
	return m.archivePayload(ctx, ds, files), nil
}

// rawPayload streams a single object as-is.
func (m *Manager) rawPayload(ctx context.Context, ds *dataset, entry index.Entry) *Payload {
	return &Payload{
		Name:        index.BaseName(entry.Path),
		ContentType: contentTypeFor(entry.Path),
		Size:        entry.Size,
		stream: func(w io.Writer) error {
			reader, err := m.blobs.Get(ctx, ds.bucket, entry.Path)
			if err != nil {
				return err
			}
			defer reader.Close()
			_, err = io.Copy(w, reader)
			return err
		},
	}
}

// archivePayload streams a zip of the given files. Members are stored under
// their dataset-relative paths; bytes are copied verbatim so member
// checksums match the source objects exactly.
func (m *Manager) archivePayload(ctx context.Context, ds *dataset, files []index.Entry) *Payload {
	return &Payload{
		Name:        fmt.Sprintf("%s-%s.zip", ds.record.Slug, time.Now().UTC().Format("20060102150405")),
		ContentType: "application/zip",
		Size:        -1,
		stream: func(w io.Writer) error {
			archive := zip.NewWriter(w)
			archive.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
				return flate.NewWriter(out, flate.BestSpeed)
			})

			for _, entry := range files {
				modified := entry.ModifiedTime
				if modified.IsZero() {
					modified = time.Now().UTC()
				}
				member, err := archive.CreateHeader(&zip.FileHeader{
					Name:     entry.Path,
					Method:   zip.Deflate,
					Modified: modified,
				})
				if err != nil {
					return err
				}

				reader, err := m.blobs.Get(ctx, ds.bucket, entry.Path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", entry.Path, err)
				}
				if _, err := io.Copy(member, reader); err != nil {
					reader.Close()
					return fmt.Errorf("failed to archive %s: %w", entry.Path, err)
				}
				reader.Close()
			}
			return archive.Close()
		},
	}
}
