package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "filesystem", cfg.Blob.Type)
	assert.Equal(t, "badger", cfg.Index.Type)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 32, cfg.Share.TokenLength)
	assert.Equal(t, 16, cfg.Share.NameLength)
	assert.False(t, cfg.GC.Enabled)
	assert.Equal(t, "24h", cfg.GC.Interval)
}

func TestLoad_FromFile(t *testing.T) {
	content := `
logging:
  level: debug
  output: stderr
database:
  driver: sqlite
  dsn: /tmp/registry-test.db
blob:
  type: memory
index:
  type: memory
share:
  token_length: 40
  max_storage_bytes: 1073741824
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "memory", cfg.Blob.Type)
	assert.Equal(t, "memory", cfg.Index.Type)
	assert.Equal(t, 40, cfg.Share.TokenLength)
	assert.Equal(t, int64(1<<30), cfg.Share.MaxStorageBytes)
}

func TestValidate_Rejections(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "LOUD"
	assert.Error(t, Validate(cfg))

	cfg = GetDefaultConfig()
	cfg.Blob.Type = "s3"
	cfg.Blob.S3 = map[string]any{"region": "eu-west-1"}
	assert.Error(t, Validate(cfg))

	cfg = GetDefaultConfig()
	cfg.Cache.Type = "redis"
	assert.Error(t, Validate(cfg))

	cfg = GetDefaultConfig()
	cfg.Share.TokenLength = 4
	assert.Error(t, Validate(cfg))

	cfg = GetDefaultConfig()
	cfg.GC.Interval = "soon"
	assert.Error(t, Validate(cfg))
}

func TestCreateBlobStore(t *testing.T) {
	ctx := context.Background()

	store, err := CreateBlobStore(ctx, &BlobConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, store)

	store, err = CreateBlobStore(ctx, &BlobConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"base_path": t.TempDir()},
	})
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = CreateBlobStore(ctx, &BlobConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestCreateIndexManager(t *testing.T) {
	manager, err := CreateIndexManager(&IndexConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, manager)

	manager, err = CreateIndexManager(&IndexConfig{
		Type:   "badger",
		Badger: map[string]any{"db_path": t.TempDir()},
	})
	require.NoError(t, err)
	assert.NotNil(t, manager)
}

func TestCreateCache(t *testing.T) {
	c, err := CreateCache(&CacheConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = CreateCache(&CacheConfig{Type: "redis", Redis: map[string]any{}})
	assert.Error(t, err)
}
