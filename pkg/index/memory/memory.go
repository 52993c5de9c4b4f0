// Package memory provides in-memory index.Index and index.Manager
// implementations. Data is lost on restart; intended for tests and
// development setups.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aeriallabs/registry/pkg/index"
)

// MemoryIndex is a thread-safe in-memory index.Index.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]index.Entry
	attrs   map[string]string
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[string]index.Entry),
		attrs:   make(map[string]string),
	}
}

// Upsert inserts or replaces the entry at its path.
func (m *MemoryIndex) Upsert(ctx context.Context, entry index.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Path = strings.Trim(entry.Path, "/")
	m.entries[entry.Path] = entry
	return nil
}

// Remove deletes the entry at path.
func (m *MemoryIndex) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = strings.Trim(path, "/")
	if _, ok := m.entries[path]; !ok {
		return index.ErrNotFound
	}
	delete(m.entries, path)
	return nil
}

// Get returns the entry at exactly path.
func (m *MemoryIndex) Get(ctx context.Context, path string) (*index.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[strings.Trim(path, "/")]
	if !ok {
		return nil, index.ErrNotFound
	}
	return &entry, nil
}

// Search returns entries whose final path segment matches glob within the
// given scope, sorted by path.
func (m *MemoryIndex) Search(ctx context.Context, glob string, path string, recursive bool) ([]index.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []index.Entry
	for _, entry := range m.entries {
		if !index.InScope(entry.Path, path, recursive) {
			continue
		}
		if !index.MatchName(glob, index.BaseName(entry.Path)) {
			continue
		}
		results = append(results, entry)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// GetAttributes returns a copy of the dataset-level attribute map.
func (m *MemoryIndex) GetAttributes(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.attrs))
	for k, v := range m.attrs {
		out[k] = v
	}
	return out, nil
}

// SetAttributes merges attrs into the dataset-level map.
func (m *MemoryIndex) SetAttributes(ctx context.Context, attrs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range attrs {
		m.attrs[k] = v
	}
	return nil
}

// Version returns the in-memory format version.
func (m *MemoryIndex) Version(ctx context.Context) (string, error) {
	return "memory/1", nil
}

// MemoryManager hands out per-dataset MemoryIndex instances.
type MemoryManager struct {
	mu      sync.Mutex
	indexes map[string]*MemoryIndex
}

// NewMemoryManager creates an empty manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{indexes: make(map[string]*MemoryIndex)}
}

func datasetKey(orgSlug string, internalRef uuid.UUID) string {
	return orgSlug + "/" + internalRef.String()
}

// Get returns the index for a dataset, creating it on first use.
func (m *MemoryManager) Get(orgSlug string, internalRef uuid.UUID) (index.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := datasetKey(orgSlug, internalRef)
	idx, ok := m.indexes[key]
	if !ok {
		idx = NewMemoryIndex()
		m.indexes[key] = idx
	}
	return idx, nil
}

// Delete destroys a dataset's index.
func (m *MemoryManager) Delete(orgSlug string, internalRef uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.indexes, datasetKey(orgSlug, internalRef))
	return nil
}
