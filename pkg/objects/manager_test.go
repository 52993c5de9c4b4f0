package objects

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobmemory "github.com/aeriallabs/registry/pkg/blob/memory"
	"github.com/aeriallabs/registry/pkg/index"
	indexmemory "github.com/aeriallabs/registry/pkg/index/memory"
	"github.com/aeriallabs/registry/pkg/registry"
)

// newTestManager wires a manager against in-memory stores and a throwaway
// SQLite database seeded with one organization and dataset.
func newTestManager(t *testing.T) (*Manager, string, string) {
	t.Helper()

	db, err := registry.Open(registry.DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "registry.db"),
	})
	require.NoError(t, err)

	org := &registry.Organization{Slug: "aerial", Name: "Aerial Labs", OwnerName: "admin"}
	require.NoError(t, db.Create(org).Error)

	ds := &registry.Dataset{
		Slug:             "survey",
		OrganizationSlug: "aerial",
		Name:             "Survey",
		InternalRef:      uuid.New(),
	}
	require.NoError(t, db.Create(ds).Error)

	manager := NewManager(ManagerConfig{
		DB:      db,
		Blobs:   blobmemory.NewMemoryStore(),
		Indexes: indexmemory.NewMemoryManager(),
	})
	return manager, "aerial", "survey"
}

func addFile(t *testing.T, m *Manager, org, ds, path, content string) {
	t.Helper()
	_, err := m.AddNew(context.Background(), org, ds, path, strings.NewReader(content))
	require.NoError(t, err)
}

// seedDroneDataset loads 26 entries: 18 root images, the "Sub" folder and 7
// images from a second flight inside it.
func seedDroneDataset(t *testing.T, m *Manager, org, ds string) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 18; i++ {
		addFile(t, m, org, ds, fmt.Sprintf("DJI_00%02d.JPG", i+10), "root image")
	}

	_, err := m.AddNew(ctx, org, ds, "Sub", nil)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		addFile(t, m, org, ds, fmt.Sprintf("Sub/1444_04%02d.JPG", i+30), "sub image")
	}
	addFile(t, m, org, ds, "Sub/1444_0438.JPG", "sub image")
}

func TestList_Root(t *testing.T) {
	manager, org, ds := newTestManager(t)
	seedDroneDataset(t, manager, org, ds)

	entries, err := manager.List(context.Background(), org, ds, "", false)
	require.NoError(t, err)

	// 18 root files plus the Sub folder; its contents are not re-listed.
	assert.Len(t, entries, 19)
}

func TestList_EmptyFolder(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	entry, err := manager.AddNew(ctx, org, ds, "Test", nil)
	require.NoError(t, err)
	assert.Equal(t, "Test", entry.Path)
	assert.True(t, entry.IsDirectory())
	assert.Zero(t, entry.Size)

	// An explicitly created empty folder lists as empty, not NotFound.
	entries, err := manager.List(ctx, org, ds, "Test", false)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestList_SingleFile(t *testing.T) {
	manager, org, ds := newTestManager(t)
	addFile(t, manager, org, ds, "report.pdf", "pdf bytes")

	entries, err := manager.List(context.Background(), org, ds, "report.pdf", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "report.pdf", entries[0].Path)
}

func TestList_SynthesizesImpliedFolders(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	// No explicit record for "Deep" was ever created.
	addFile(t, manager, org, ds, "Deep/nested/file.txt", "x")

	entries, err := manager.List(ctx, org, ds, "", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Deep", entries[0].Path)
	assert.True(t, entries[0].IsDirectory())

	inner, err := manager.List(ctx, org, ds, "Deep", false)
	require.NoError(t, err)
	require.Len(t, inner, 1)
	assert.Equal(t, "Deep/nested", inner[0].Path)
	assert.True(t, inner[0].IsDirectory())
}

func TestList_NotFound(t *testing.T) {
	manager, org, ds := newTestManager(t)
	addFile(t, manager, org, ds, "a.txt", "x")

	_, err := manager.List(context.Background(), org, ds, "nope", false)
	assert.True(t, registry.IsNotFound(err))

	_, err = manager.List(context.Background(), org, "ghost-dataset", "", false)
	assert.True(t, registry.IsNotFound(err))
}

func TestSearch_Glob(t *testing.T) {
	manager, org, ds := newTestManager(t)
	seedDroneDataset(t, manager, org, ds)
	ctx := context.Background()

	matches, err := manager.Search(ctx, org, ds, "DJI*", "", true)
	require.NoError(t, err)
	assert.Len(t, matches, 18)

	matches, err = manager.Search(ctx, org, ds, "*1444*", "", true)
	require.NoError(t, err)
	assert.Len(t, matches, 7)

	matches, err = manager.Search(ctx, org, ds, "*438*", "Sub", false)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Sub/1444_0438.JPG", matches[0].Path)

	// No matches is an empty result, not an error.
	matches, err = manager.Search(ctx, org, ds, "*.las", "", true)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// faultyIndex fails every operation with an infrastructure error, standing
// in for an unreachable index backend.
type faultyIndex struct{}

var errIndexDown = fmt.Errorf("index storage offline")

func (faultyIndex) Upsert(context.Context, index.Entry) error  { return errIndexDown }
func (faultyIndex) Remove(context.Context, string) error       { return errIndexDown }
func (faultyIndex) Get(context.Context, string) (*index.Entry, error) {
	return nil, errIndexDown
}
func (faultyIndex) Search(context.Context, string, string, bool) ([]index.Entry, error) {
	return nil, errIndexDown
}
func (faultyIndex) GetAttributes(context.Context) (map[string]string, error) {
	return nil, errIndexDown
}
func (faultyIndex) SetAttributes(context.Context, map[string]string) error { return errIndexDown }
func (faultyIndex) Version(context.Context) (string, error)                { return "", errIndexDown }

type faultyIndexManager struct{}

func (faultyIndexManager) Get(string, uuid.UUID) (index.Index, error) { return faultyIndex{}, nil }
func (faultyIndexManager) Delete(string, uuid.UUID) error             { return nil }

func TestGet_IndexFailureIsNotNotFound(t *testing.T) {
	db, err := registry.Open(registry.DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "registry.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Create(&registry.Organization{Slug: "aerial", Name: "Aerial Labs", OwnerName: "admin"}).Error)
	require.NoError(t, db.Create(&registry.Dataset{
		Slug: "survey", OrganizationSlug: "aerial", Name: "Survey", InternalRef: uuid.New(),
	}).Error)

	manager := NewManager(ManagerConfig{
		DB:      db,
		Blobs:   blobmemory.NewMemoryStore(),
		Indexes: faultyIndexManager{},
	})

	// A broken index is an infrastructure failure, not a missing path.
	_, err = manager.Get(context.Background(), "aerial", "survey", "a.jpg")
	require.Error(t, err)
	assert.False(t, registry.IsNotFound(err))
	assert.ErrorIs(t, err, errIndexDown)
}

func TestAttributes_Roundtrip(t *testing.T) {
	manager, org, ds := newTestManager(t)
	ctx := context.Background()

	attrs, err := manager.GetAttributes(ctx, org, ds)
	require.NoError(t, err)
	assert.Empty(t, attrs)

	merged, err := manager.SetAttributes(ctx, org, ds, map[string]string{"public": "true"})
	require.NoError(t, err)
	assert.Equal(t, "true", merged["public"])

	merged, err = manager.SetAttributes(ctx, org, ds, map[string]string{"license": "CC-BY"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"public": "true", "license": "CC-BY"}, merged)
}
