package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aeriallabs/registry/pkg/blob"
)

// FSStore implements blob.Store on the local filesystem.
//
// Each bucket is a directory under the base path and each key is a relative
// file path inside it, so the on-disk layout mirrors the logical dataset
// tree and stays inspectable with ordinary tools.
//
// Writes are atomic: data goes to a temp file in the destination directory
// first and is renamed into place, so a crash mid-write never leaves a
// half-written object at the final key.
//
// Thread Safety:
// Filesystem operations are safe at the OS level; concurrent writes to the
// same key are last-write-wins by rename order.
type FSStore struct {
	basePath string
}

// NewFSStore creates a filesystem blob store rooted at basePath, creating
// the directory if needed.
func NewFSStore(basePath string) (*FSStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("filesystem blob store: path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{basePath: basePath}, nil
}

// objectPath maps bucket/key to a filesystem path, rejecting traversal.
func (s *FSStore) objectPath(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bucket and key are required")
	}

	full := filepath.Join(s.basePath, bucket, filepath.FromSlash(key))

	// The joined path must stay inside the bucket directory.
	bucketRoot := filepath.Join(s.basePath, bucket)
	if full != bucketRoot && !strings.HasPrefix(full, bucketRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}

	return full, nil
}

func (s *FSStore) Put(ctx context.Context, bucket, key string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write object data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to finalize object: %w", err)
	}

	return nil
}

func (s *FSStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(target)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, blob.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	if fi.IsDir() {
		// A directory is not an object; only files are addressable.
		f.Close()
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, blob.ErrNotFound)
	}

	return f, nil
}

func (s *FSStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

func (s *FSStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bucketRoot := filepath.Join(s.basePath, bucket)
	if _, err := os.Stat(bucketRoot); os.IsNotExist(err) {
		return nil, nil
	}

	var keys []string
	err := filepath.WalkDir(bucketRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(bucketRoot, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	target, err := s.objectPath(bucket, key)
	if err != nil {
		return false, err
	}

	fi, err := os.Stat(target)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return !fi.IsDir(), nil
}

func (s *FSStore) Copy(ctx context.Context, bucket, src, dst string) error {
	reader, err := s.Get(ctx, bucket, src)
	if err != nil {
		return err
	}
	defer reader.Close()

	return s.Put(ctx, bucket, dst, reader)
}
