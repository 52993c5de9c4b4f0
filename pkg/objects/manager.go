// Package objects implements the object manager: path-tree semantics over a
// flat blob store, mirrored into a per-dataset metadata index.
//
// Every write follows the same dual-write discipline. On create, the blob is
// written before the index entry; on delete, the blob is removed before the
// index entry. A crash between the two steps can therefore leave an orphan
// blob, which is harmless garbage, but never an index entry pointing at a
// missing blob. Partial failures are compensated once, best-effort, and the
// original error is surfaced.
package objects

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/aeriallabs/registry/internal/logger"
	"github.com/aeriallabs/registry/pkg/blob"
	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/registry"
)

// Manager coordinates the blob store, the metadata index and the relational
// dataset records.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writers to the same path race with
// last-write-wins semantics on the index; no cross-call ordering is
// guaranteed.
type Manager struct {
	db      *gorm.DB
	blobs   blob.Store
	indexes index.Manager

	// maxStorageBytes caps the total size of a dataset. 0 means unlimited.
	maxStorageBytes int64
}

// ManagerConfig contains the collaborators and limits for a Manager.
type ManagerConfig struct {
	DB      *gorm.DB
	Blobs   blob.Store
	Indexes index.Manager

	// MaxStorageBytes caps each dataset's total size. 0 means unlimited.
	MaxStorageBytes int64
}

// NewManager creates an object manager.
func NewManager(config ManagerConfig) *Manager {
	return &Manager{
		db:              config.DB,
		blobs:           config.Blobs,
		indexes:         config.Indexes,
		maxStorageBytes: config.MaxStorageBytes,
	}
}

// dataset bundles everything needed to operate on one dataset's storage.
type dataset struct {
	record *registry.Dataset
	bucket string
	index  index.Index
}

// resolve loads the dataset row and opens its index.
func (m *Manager) resolve(ctx context.Context, orgSlug, datasetSlug string) (*dataset, error) {
	record, err := registry.GetDataset(ctx, m.db, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}
	idx, err := m.indexes.Get(orgSlug, record.InternalRef)
	if err != nil {
		return nil, err
	}
	return &dataset{record: record, bucket: record.Bucket(), index: idx}, nil
}

// normalizePath trims separators and rejects traversal segments.
func normalizePath(p string) (string, error) {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "", nil
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", registry.BadRequest("invalid path", p)
		}
	}
	return p, nil
}

// List returns the entries at path.
//
// An empty path lists the dataset root. A path naming a file returns that
// single entry. A path naming a directory returns its children, direct only
// unless recursive is set, with intermediate folders synthesized from path
// prefixes even when no explicit directory record exists. Listing a
// directory that matches nothing fails NotFound.
func (m *Manager) List(ctx context.Context, orgSlug, datasetSlug, path string, recursive bool) ([]index.Entry, error) {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}
	path, err = normalizePath(path)
	if err != nil {
		return nil, err
	}

	if path != "" {
		entry, getErr := ds.index.Get(ctx, path)
		if getErr == nil && !entry.IsDirectory() {
			return []index.Entry{*entry}, nil
		}

		// Not a file: treat path as a directory scope. It exists if it has
		// an explicit record or any descendant.
		children, err := m.scopedEntries(ctx, ds, path, recursive)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 && getErr != nil {
			return nil, registry.NotFound("path not found", path)
		}
		return children, nil
	}

	return m.scopedEntries(ctx, ds, "", recursive)
}

// scopedEntries queries the index for a directory scope and synthesizes
// implied folders that have no record of their own.
func (m *Manager) scopedEntries(ctx context.Context, ds *dataset, scope string, recursive bool) ([]index.Entry, error) {
	entries, err := ds.index.Search(ctx, "", scope, recursive)
	if err != nil {
		return nil, err
	}
	if recursive {
		return entries, nil
	}

	// Direct listings must show a folder row for deeper paths even when the
	// folder was never created explicitly. Find first segments below the
	// scope that only exist as prefixes of deeper entries.
	all, err := ds.index.Search(ctx, "", scope, true)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		present[entry.Path] = true
	}

	var synthesized []index.Entry
	for _, entry := range all {
		rel := entry.Path
		if scope != "" {
			rel = strings.TrimPrefix(entry.Path, scope+"/")
		}
		slash := strings.Index(rel, "/")
		if slash < 0 {
			continue
		}
		child := rel[:slash]
		if scope != "" {
			child = scope + "/" + child
		}
		if !present[child] {
			present[child] = true
			synthesized = append(synthesized, index.Entry{
				Path: child,
				Type: index.TypeDirectory,
			})
		}
	}

	entries = append(entries, synthesized...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Search returns entries whose name matches the glob query, scoped exactly
// like List. An empty result is not an error.
func (m *Manager) Search(ctx context.Context, orgSlug, datasetSlug, query, path string, recursive bool) ([]index.Entry, error) {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}
	path, err = normalizePath(path)
	if err != nil {
		return nil, err
	}

	entries, err := ds.index.Search(ctx, query, path, recursive)
	if err != nil {
		return nil, err
	}
	logger.Debug("search %s/%s query=%q path=%q -> %d entries", orgSlug, datasetSlug, query, path, len(entries))
	return entries, nil
}

// Get returns the entry record at path, or NotFound.
func (m *Manager) Get(ctx context.Context, orgSlug, datasetSlug, path string) (*index.Entry, error) {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}
	path, err = normalizePath(path)
	if err != nil {
		return nil, err
	}

	entry, err := ds.index.Get(ctx, path)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return nil, registry.NotFound("path not found", path)
		}
		return nil, err
	}
	return entry, nil
}

// GetAttributes returns the dataset-level attribute map.
func (m *Manager) GetAttributes(ctx context.Context, orgSlug, datasetSlug string) (map[string]string, error) {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}
	return ds.index.GetAttributes(ctx)
}

// SetAttributes merges attrs into the dataset-level attribute map and
// returns the resulting map.
func (m *Manager) SetAttributes(ctx context.Context, orgSlug, datasetSlug string, attrs map[string]string) (map[string]string, error) {
	ds, err := m.resolve(ctx, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}
	if err := ds.index.SetAttributes(ctx, attrs); err != nil {
		return nil, err
	}
	return ds.index.GetAttributes(ctx)
}
