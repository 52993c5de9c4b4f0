// Package badgerindex implements index.Index and index.Manager on top of
// BadgerDB for persistence.
//
// This implementation provides a persistent metadata index backed by
// BadgerDB, a fast embedded key-value store. It is suitable for:
//   - Production environments requiring persistence across restarts
//   - Single-node deployments where an external database is overkill
//   - Datasets with up to millions of entries
//
// Storage Model:
// All datasets share one BadgerDB database. Keys are namespaced per dataset:
//
//	ds:<org>/<internal-ref>:entry:<path>  -> JSON-encoded index.Entry
//	ds:<org>/<internal-ref>:attr:<key>    -> attribute value bytes
//
// This layout makes per-dataset range scans (directory listings, search,
// wholesale deletion) efficient prefix iterations.
package badgerindex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/aeriallabs/registry/pkg/index"
)

// formatVersion identifies the on-disk key/value schema.
const formatVersion = "badger/1"

// BadgerManagerConfig contains configuration for creating a Badger-backed
// index manager.
type BadgerManagerConfig struct {
	// DBPath is the directory where BadgerDB stores its files.
	// BadgerDB creates multiple files in this directory (value log, LSM tree).
	DBPath string

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64).
	BlockCacheSizeMB int64

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32).
	IndexCacheSizeMB int64
}

// BadgerManager hands out per-dataset index views over a shared BadgerDB
// database. Safe for concurrent use; BadgerDB transactions provide the
// isolation.
type BadgerManager struct {
	db *badger.DB
}

// NewBadgerManager opens (or creates) the BadgerDB database at the
// configured path and returns a manager ready for use.
func NewBadgerManager(config BadgerManagerConfig) (*BadgerManager, error) {
	opts := badger.DefaultOptions(config.DBPath)

	// Index values are small JSON documents; compression overhead is not
	// worth it and WARNING keeps Badger's logger quiet.
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerManager{db: db}, nil
}

// NewBadgerManagerWithDB wraps an already-open BadgerDB database. Used by
// tests that want an in-memory database.
func NewBadgerManagerWithDB(db *badger.DB) *BadgerManager {
	return &BadgerManager{db: db}
}

func datasetPrefix(orgSlug string, internalRef uuid.UUID) string {
	return fmt.Sprintf("ds:%s/%s:", orgSlug, internalRef)
}

// Get returns the index view for a dataset. The view is cheap; no state is
// created until the first write.
func (m *BadgerManager) Get(orgSlug string, internalRef uuid.UUID) (index.Index, error) {
	return &badgerIndex{
		db:     m.db,
		prefix: datasetPrefix(orgSlug, internalRef),
	}, nil
}

// Delete removes every key belonging to the dataset.
func (m *BadgerManager) Delete(orgSlug string, internalRef uuid.UUID) error {
	prefix := []byte(datasetPrefix(orgSlug, internalRef))

	// Collect keys first, then delete in batches. Deleting while iterating
	// inside the same transaction can exceed Badger's transaction size.
	var keys [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan dataset keys: %w", err)
	}

	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("failed to delete dataset key: %w", err)
		}
	}
	return wb.Flush()
}

// Close closes the underlying database. Call once during shutdown.
func (m *BadgerManager) Close() error {
	return m.db.Close()
}

// badgerIndex is a per-dataset view over the shared database.
type badgerIndex struct {
	db     *badger.DB
	prefix string
}

func (b *badgerIndex) entryKey(path string) []byte {
	return []byte(b.prefix + "entry:" + strings.Trim(path, "/"))
}

func (b *badgerIndex) attrKey(key string) []byte {
	return []byte(b.prefix + "attr:" + key)
}

// Upsert inserts or replaces the entry at its path.
func (b *badgerIndex) Upsert(ctx context.Context, entry index.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry.Path = strings.Trim(entry.Path, "/")
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", entry.Path, err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.entryKey(entry.Path), data)
	})
}

// Remove deletes the entry at path.
func (b *badgerIndex) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := b.entryKey(path)
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return index.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// Get returns the entry at exactly path.
func (b *badgerIndex) Get(ctx context.Context, path string) (*index.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry index.Entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.entryKey(path))
		if err == badger.ErrKeyNotFound {
			return index.ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Search scans the dataset's entry namespace and returns matches sorted by
// path. The scan is a single prefix iteration; scope and glob filtering
// happen in memory.
func (b *badgerIndex) Search(ctx context.Context, glob string, path string, recursive bool) ([]index.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scanPrefix := []byte(b.prefix + "entry:")
	if scope := strings.Trim(path, "/"); scope != "" {
		// Narrow the iteration to the subtree. The scope entry itself is
		// filtered out by InScope below.
		scanPrefix = []byte(b.prefix + "entry:" + scope)
	}

	var results []index.Entry
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			var entry index.Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			if !index.InScope(entry.Path, path, recursive) {
				continue
			}
			if !index.MatchName(glob, index.BaseName(entry.Path)) {
				continue
			}
			results = append(results, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// GetAttributes returns the dataset-level attribute map.
func (b *badgerIndex) GetAttributes(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attrs := make(map[string]string)
	prefix := []byte(b.prefix + "attr:")
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), string(prefix))
			err := item.Value(func(val []byte) error {
				attrs[name] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// SetAttributes merges attrs into the dataset-level map.
func (b *badgerIndex) SetAttributes(ctx context.Context, attrs map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for k, v := range attrs {
			if err := txn.Set(b.attrKey(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Version returns the on-disk schema version.
func (b *badgerIndex) Version(ctx context.Context) (string, error) {
	return formatVersion, nil
}
