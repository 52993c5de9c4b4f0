package fs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aeriallabs/registry/pkg/blob"
	"github.com/aeriallabs/registry/pkg/blob/blobtest"
)

// TestFSStore runs the blob.Store conformance suite against the filesystem
// implementation.
func TestFSStore(t *testing.T) {
	suite := &blobtest.StoreTestSuite{
		NewStore: func(t *testing.T) blob.Store {
			store, err := NewFSStore(t.TempDir())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "bucket", "../escape.txt", strings.NewReader("x"))
	require.Error(t, err)
	require.NotErrorIs(t, err, blob.ErrNotFound)
}
