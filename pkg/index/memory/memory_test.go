package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/index/indextest"
)

// TestMemoryIndex runs the index conformance suite against the in-memory
// implementation.
func TestMemoryIndex(t *testing.T) {
	suite := &indextest.IndexTestSuite{
		NewIndex: func(t *testing.T) index.Index {
			return NewMemoryIndex()
		},
	}
	suite.Run(t)
}

func TestMemoryManager_GetIsStable(t *testing.T) {
	manager := NewMemoryManager()
	ref := uuid.New()

	first, err := manager.Get("aerial", ref)
	require.NoError(t, err)
	second, err := manager.Get("aerial", ref)
	require.NoError(t, err)

	// Same dataset must map to the same index instance.
	assert.Same(t, first, second)

	other, err := manager.Get("aerial", uuid.New())
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestMemoryManager_Delete(t *testing.T) {
	manager := NewMemoryManager()
	ref := uuid.New()

	idx, err := manager.Get("aerial", ref)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), index.Entry{Path: "a.txt", Type: index.TypeGeneric}))

	require.NoError(t, manager.Delete("aerial", ref))

	fresh, err := manager.Get("aerial", ref)
	require.NoError(t, err)
	_, err = fresh.Get(context.Background(), "a.txt")
	assert.ErrorIs(t, err, index.ErrNotFound)
}
