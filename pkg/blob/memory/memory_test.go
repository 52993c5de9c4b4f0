package memory

import (
	"testing"

	"github.com/aeriallabs/registry/pkg/blob"
	"github.com/aeriallabs/registry/pkg/blob/blobtest"
)

// TestMemoryStore runs the blob.Store conformance suite against the
// in-memory implementation.
func TestMemoryStore(t *testing.T) {
	suite := &blobtest.StoreTestSuite{
		NewStore: func(t *testing.T) blob.Store {
			return NewMemoryStore()
		},
	}
	suite.Run(t)
}
