package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store provides bucket-keyed binary storage for dataset objects.
//
// Each dataset owns exactly one bucket; keys inside a bucket are the logical
// object paths. The store holds raw bytes only — object metadata (type, hash,
// geometry, attributes) lives in the dataset's metadata index. Keeping the
// two in sync is the object manager's job, not the store's.
//
// Semantics required from every implementation:
//   - Put creates the bucket implicitly if it does not exist and overwrites
//     any existing object at the key.
//   - Get returns ErrNotFound for a missing bucket or key.
//   - Delete is idempotent: deleting a missing object succeeds. This is what
//     makes the object manager's compensation logic safe to retry.
//   - List returns the keys under the given prefix in lexicographic order;
//     a missing bucket yields an empty list.
//   - Copy duplicates an object within one bucket without round-tripping the
//     bytes through the caller.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writes to the same key are last-write-wins.
type Store interface {
	// Put stores an object, overwriting any previous content at the key.
	Put(ctx context.Context, bucket, key string, data io.Reader) error

	// Get returns a reader for the object. The caller must close it.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing object is a no-op.
	Delete(ctx context.Context, bucket, key string) error

	// List returns all keys in the bucket starting with prefix, sorted.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Exists reports whether the object exists.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// Copy duplicates src to dst within the bucket.
	Copy(ctx context.Context, bucket, src, dst string) error
}
