package objects

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aeriallabs/registry/internal/logger"
	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/registry"
)

// AddNew creates an object at path. A nil data creates an empty directory
// entry; otherwise the content is stored and a file entry is indexed.
//
// The blob is written before the index entry. If the index upsert fails the
// blob write is compensated with a single best-effort delete, so the dataset
// never shows an index entry without its blob and, on this path, no blob
// without its entry either.
func (m *Manager) AddNew(ctx context.Context, orgSlug, datasetSlug, path string, data io.Reader) (*index.Entry, error) {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}
	path, err = normalizePath(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, registry.BadRequest("path is required")
	}

	now := time.Now().UTC()

	if data == nil {
		entry := index.Entry{Path: path, Type: index.TypeDirectory, ModifiedTime: now}
		if err := ds.index.Upsert(ctx, entry); err != nil {
			return nil, err
		}
		return &entry, nil
	}

	staged, err := spool(data)
	if err != nil {
		return nil, err
	}
	defer staged.Close()

	if err := m.checkQuota(ctx, ds, path, staged.size); err != nil {
		return nil, err
	}

	reader, err := staged.Reader()
	if err != nil {
		return nil, err
	}
	if err := m.blobs.Put(ctx, ds.bucket, path, reader); err != nil {
		return nil, err
	}

	entry := index.Entry{
		Path:         path,
		Type:         detectType(path, staged),
		Size:         staged.size,
		Hash:         staged.hash,
		ModifiedTime: now,
	}
	if err := ds.index.Upsert(ctx, entry); err != nil {
		// Compensate the blob write once; the index error is what the
		// caller needs to see.
		if delErr := m.blobs.Delete(ctx, ds.bucket, path); delErr != nil {
			logger.Warn("orphan blob left at %s/%s after failed index upsert: %v", ds.bucket, path, delErr)
		}
		return nil, err
	}

	return &entry, nil
}

// checkQuota rejects a write that would push the dataset past its storage
// ceiling. Replacements count only the size delta.
func (m *Manager) checkQuota(ctx context.Context, ds *dataset, path string, incoming int64) error {
	if m.maxStorageBytes <= 0 {
		return nil
	}

	entries, err := ds.index.Search(ctx, "", "", true)
	if err != nil {
		return err
	}
	var used int64
	for _, entry := range entries {
		if entry.Path == path {
			continue
		}
		used += entry.Size
	}
	if used+incoming > m.maxStorageBytes {
		return registry.QuotaExceeded("dataset storage limit reached", path)
	}
	return nil
}

// Move renames an object. Files are copied to the destination, indexed
// there, then removed from the source; directories move every descendant
// the same way.
//
// A directory move is best-effort, not atomic: a mid-sequence failure rolls
// back the already-moved descendants one by one and reports the original
// error, but a crash can still leave the move half-applied.
func (m *Manager) Move(ctx context.Context, orgSlug, datasetSlug, source, dest string) error {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return err
	}
	source, err = normalizePath(source)
	if err != nil {
		return err
	}
	dest, err = normalizePath(dest)
	if err != nil {
		return err
	}
	if source == "" || dest == "" {
		return registry.BadRequest("source and destination are required")
	}
	if dest == source || strings.HasPrefix(dest, source+"/") {
		return registry.BadRequest("destination is inside the source", dest)
	}

	if _, err := ds.index.Get(ctx, dest); err == nil {
		return registry.Conflict("destination already exists", dest)
	}
	// An implied folder occupies the destination just as much as an explicit
	// record does, and anything under dest would collide with a moved
	// descendant. Checking the whole dest scope up front keeps the move from
	// overwriting entries it never looked at.
	occupied, err := ds.index.Search(ctx, "", dest, true)
	if err != nil {
		return err
	}
	if len(occupied) > 0 {
		return registry.Conflict("destination already exists", dest)
	}

	entry, err := ds.index.Get(ctx, source)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return registry.NotFound("source not found", source)
		}
		return err
	}

	if !entry.IsDirectory() {
		return m.moveFile(ctx, ds, *entry, dest)
	}

	descendants, err := ds.index.Search(ctx, "", source, true)
	if err != nil {
		return err
	}

	var moved [][2]string
	for _, child := range descendants {
		target := dest + child.Path[len(source):]
		if child.IsDirectory() {
			if err := m.moveDirEntry(ctx, ds, child, target); err != nil {
				m.rollbackMoves(ctx, ds, moved)
				return err
			}
		} else {
			if err := m.moveFile(ctx, ds, child, target); err != nil {
				m.rollbackMoves(ctx, ds, moved)
				return err
			}
		}
		moved = append(moved, [2]string{child.Path, target})
	}

	// Finally relocate the directory's own record.
	if err := m.moveDirEntry(ctx, ds, *entry, dest); err != nil {
		m.rollbackMoves(ctx, ds, moved)
		return err
	}
	return nil
}

// moveFile performs the copy-index-delete sequence for one file. A failure
// after the blob copy removes the copy so no duplicate object survives.
func (m *Manager) moveFile(ctx context.Context, ds *dataset, entry index.Entry, dest string) error {
	if err := m.blobs.Copy(ctx, ds.bucket, entry.Path, dest); err != nil {
		return err
	}

	moved := entry
	moved.Path = dest
	moved.ModifiedTime = time.Now().UTC()
	if err := ds.index.Upsert(ctx, moved); err != nil {
		if delErr := m.blobs.Delete(ctx, ds.bucket, dest); delErr != nil {
			logger.Warn("orphan blob left at %s/%s after failed move: %v", ds.bucket, dest, delErr)
		}
		return err
	}

	if err := m.blobs.Delete(ctx, ds.bucket, entry.Path); err != nil {
		return err
	}
	if err := ds.index.Remove(ctx, entry.Path); err != nil && !errors.Is(err, index.ErrNotFound) {
		return err
	}
	return nil
}

// moveDirEntry relocates a directory record, which has no blob.
func (m *Manager) moveDirEntry(ctx context.Context, ds *dataset, entry index.Entry, dest string) error {
	moved := entry
	moved.Path = dest
	moved.ModifiedTime = time.Now().UTC()
	if err := ds.index.Upsert(ctx, moved); err != nil {
		return err
	}
	if err := ds.index.Remove(ctx, entry.Path); err != nil && !errors.Is(err, index.ErrNotFound) {
		return err
	}
	return nil
}

// rollbackMoves undoes completed per-descendant moves after a mid-sequence
// failure, best-effort.
func (m *Manager) rollbackMoves(ctx context.Context, ds *dataset, moved [][2]string) {
	for i := len(moved) - 1; i >= 0; i-- {
		source, target := moved[i][0], moved[i][1]
		entry, err := ds.index.Get(ctx, target)
		if err != nil {
			continue
		}
		if entry.IsDirectory() {
			if err := m.moveDirEntry(ctx, ds, *entry, source); err != nil {
				logger.Warn("rollback of directory move %s -> %s failed: %v", target, source, err)
			}
			continue
		}
		if err := m.moveFile(ctx, ds, *entry, source); err != nil {
			logger.Warn("rollback of move %s -> %s failed: %v", target, source, err)
		}
	}
}

// Delete removes the object at path; directories are removed recursively.
//
// For each object the blob is deleted before the index entry, and a missing
// blob on delete counts as success, so retrying a half-applied delete
// converges instead of failing.
func (m *Manager) Delete(ctx context.Context, orgSlug, datasetSlug, path string) error {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return err
	}
	path, err = normalizePath(path)
	if err != nil {
		return err
	}
	if path == "" {
		return registry.BadRequest("path is required")
	}

	entry, err := ds.index.Get(ctx, path)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return registry.NotFound("path not found", path)
		}
		return err
	}

	if !entry.IsDirectory() {
		return m.deleteFile(ctx, ds, path)
	}

	descendants, err := ds.index.Search(ctx, "", path, true)
	if err != nil {
		return err
	}
	for _, child := range descendants {
		if child.IsDirectory() {
			continue
		}
		if err := m.deleteFile(ctx, ds, child.Path); err != nil {
			return err
		}
	}
	// Remove folder records innermost-first so none is left pointing into
	// a deleted subtree.
	for i := len(descendants) - 1; i >= 0; i-- {
		if !descendants[i].IsDirectory() {
			continue
		}
		if err := ds.index.Remove(ctx, descendants[i].Path); err != nil && !errors.Is(err, index.ErrNotFound) {
			return err
		}
	}
	if err := ds.index.Remove(ctx, path); err != nil && !errors.Is(err, index.ErrNotFound) {
		return err
	}
	return nil
}

func (m *Manager) deleteFile(ctx context.Context, ds *dataset, path string) error {
	if err := m.blobs.Delete(ctx, ds.bucket, path); err != nil {
		return err
	}
	if err := ds.index.Remove(ctx, path); err != nil && !errors.Is(err, index.ErrNotFound) {
		return err
	}
	return nil
}
