package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aeriallabs/registry/pkg/blob"
)

// MemoryStore implements blob.Store using in-memory maps.
//
// Designed for tests and ephemeral deployments: all operations are
// memory-speed and all data is lost when the process exits.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on both
// write and read so callers can never race with the store's own buffers.
type MemoryStore struct {
	buckets map[string]map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string][]byte),
	}
}

func (s *MemoryStore) Put(ctx context.Context, bucket, key string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read object data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		s.buckets[bucket] = b
	}
	b[key] = payload

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, blob.ErrNotFound)
	}

	// Copy so later writes to the key can't corrupt an open reader.
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	return io.NopCloser(bytes.NewReader(dataCopy)), nil
}

func (s *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets[bucket], key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

func (s *MemoryStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.buckets[bucket][key]
	return ok, nil
}

func (s *MemoryStore) Copy(ctx context.Context, bucket, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.buckets[bucket][src]
	if !ok {
		return fmt.Errorf("%s/%s: %w", bucket, src, blob.ErrNotFound)
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	s.buckets[bucket][dst] = dataCopy

	return nil
}
