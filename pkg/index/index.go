// Package index defines the per-dataset metadata index contract.
//
// The index is the searchable mirror of a dataset's blob bucket: every stored
// object has exactly one index entry recording its path, type, size, content
// hash, timestamps and optional geometry. The index never holds object bytes;
// keeping it consistent with the blob store is the object manager's job.
package index

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entry does not exist.
	ErrNotFound = errors.New("entry not found")
)

// EntryType classifies an object by its content.
//
// The numeric values are part of the persisted representation and follow the
// classification used by the geospatial inspection engine; do not reorder.
type EntryType int

const (
	TypeUndefined EntryType = iota
	TypeDirectory
	TypeGeneric
	TypeGeoImage
	TypeGeoRaster
	TypePointCloud
	TypeImage
	TypeContainer
)

func (t EntryType) String() string {
	switch t {
	case TypeDirectory:
		return "directory"
	case TypeGeneric:
		return "generic"
	case TypeGeoImage:
		return "geoimage"
	case TypeGeoRaster:
		return "georaster"
	case TypePointCloud:
		return "pointcloud"
	case TypeImage:
		return "image"
	case TypeContainer:
		return "container"
	default:
		return "undefined"
	}
}

// Geometry is a GeoJSON-style geometry attached to an entry by content
// inspection. The registry core treats it as opaque.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// Entry is one object in a dataset's path tree.
//
// Directories have Size 0 and an empty Hash. Geometry fields are populated
// by the external geospatial engine when it can extract one from the
// content; the core passes them through untouched.
type Entry struct {
	Path            string            `json:"path"`
	Type            EntryType         `json:"type"`
	Size            int64             `json:"size"`
	Hash            string            `json:"hash,omitempty"`
	ModifiedTime    time.Time         `json:"mtime"`
	PointGeometry   *Geometry         `json:"point_geom,omitempty"`
	PolygonGeometry *Geometry         `json:"polygon_geom,omitempty"`
	Properties      map[string]string `json:"properties,omitempty"`
}

// IsDirectory reports whether the entry is a folder.
func (e *Entry) IsDirectory() bool {
	return e.Type == TypeDirectory
}

// Index is the searchable metadata mirror of one dataset.
//
// Search matches glob against the final path segment (the file or folder
// name), case-insensitively, using * and ? wildcards; an empty glob matches
// everything. The path argument narrows the scope to entries under that
// directory; with recursive false only direct children are candidates.
//
// Attribute maps are dataset-scoped free-form metadata, a separate namespace
// from the per-entry Properties.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Index interface {
	// Upsert inserts or replaces the entry at its path.
	Upsert(ctx context.Context, entry Entry) error

	// Remove deletes the entry at path. Returns ErrNotFound if absent.
	Remove(ctx context.Context, path string) error

	// Get returns the entry at exactly path, or ErrNotFound.
	Get(ctx context.Context, path string) (*Entry, error)

	// Search returns entries matching glob within the scope, sorted by path.
	// An empty result is not an error.
	Search(ctx context.Context, glob string, path string, recursive bool) ([]Entry, error)

	// GetAttributes returns the dataset-level attribute map.
	GetAttributes(ctx context.Context) (map[string]string, error)

	// SetAttributes merges the given attributes into the dataset-level map.
	SetAttributes(ctx context.Context, attrs map[string]string) error

	// Version returns an opaque version string for the index format.
	Version(ctx context.Context) (string, error)
}

// Thumbnailer is an optional capability of an Index: rendering a small
// preview of an image entry. Implementations that cannot render previews
// simply don't implement it.
type Thumbnailer interface {
	// Thumbnail renders a size x size preview of the entry at path.
	Thumbnail(ctx context.Context, path string, size int) ([]byte, error)
}

// Manager hands out the per-dataset index instances.
//
// A dataset is identified by its owning organization slug and its immutable
// internal reference, mirroring the blob bucket naming, so renaming a
// dataset never orphans its index.
type Manager interface {
	// Get returns the index for a dataset, creating it on first use.
	Get(orgSlug string, internalRef uuid.UUID) (Index, error)

	// Delete destroys a dataset's index and all its entries.
	Delete(orgSlug string, internalRef uuid.UUID) error
}
