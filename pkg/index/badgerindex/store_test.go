package badgerindex

import (
	"context"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/index/indextest"
)

func newTestManager(t *testing.T) *BadgerManager {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewBadgerManagerWithDB(db)
}

// TestBadgerIndex runs the index conformance suite against the Badger
// implementation.
func TestBadgerIndex(t *testing.T) {
	suite := &indextest.IndexTestSuite{
		NewIndex: func(t *testing.T) index.Index {
			manager := newTestManager(t)
			idx, err := manager.Get("aerial", uuid.New())
			require.NoError(t, err)
			return idx
		},
	}
	suite.Run(t)
}

func TestBadgerManager_DatasetIsolation(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	refA, refB := uuid.New(), uuid.New()
	idxA, err := manager.Get("aerial", refA)
	require.NoError(t, err)
	idxB, err := manager.Get("aerial", refB)
	require.NoError(t, err)

	require.NoError(t, idxA.Upsert(ctx, index.Entry{Path: "only-in-a.txt", Type: index.TypeGeneric}))

	_, err = idxB.Get(ctx, "only-in-a.txt")
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestBadgerManager_Delete(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	ref := uuid.New()
	idx, err := manager.Get("aerial", ref)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, index.Entry{Path: "a.txt", Type: index.TypeGeneric}))
	require.NoError(t, idx.SetAttributes(ctx, map[string]string{"public": "true"}))

	require.NoError(t, manager.Delete("aerial", ref))

	_, err = idx.Get(ctx, "a.txt")
	assert.ErrorIs(t, err, index.ErrNotFound)

	attrs, err := idx.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Empty(t, attrs)
}
