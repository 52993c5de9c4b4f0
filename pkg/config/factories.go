package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"

	"github.com/aeriallabs/registry/pkg/blob"
	blobfs "github.com/aeriallabs/registry/pkg/blob/fs"
	blobmemory "github.com/aeriallabs/registry/pkg/blob/memory"
	blobs3 "github.com/aeriallabs/registry/pkg/blob/s3"
	"github.com/aeriallabs/registry/pkg/cache"
	cachememory "github.com/aeriallabs/registry/pkg/cache/memory"
	cacheredis "github.com/aeriallabs/registry/pkg/cache/redis"
	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/index/badgerindex"
	indexmemory "github.com/aeriallabs/registry/pkg/index/memory"
	"github.com/aeriallabs/registry/pkg/registry"
)

// OpenDatabase opens the relational database selected by the config and
// runs migrations.
func OpenDatabase(cfg *DatabaseConfig) (*gorm.DB, error) {
	return registry.Open(registry.DBConfig{Driver: cfg.Driver, DSN: cfg.DSN})
}

// CreateBlobStore creates the blob store selected by the config.
func CreateBlobStore(ctx context.Context, cfg *BlobConfig) (blob.Store, error) {
	switch cfg.Type {
	case "memory":
		return blobmemory.NewMemoryStore(), nil
	case "filesystem":
		return createFilesystemBlobStore(cfg.Filesystem)
	case "s3":
		return createS3BlobStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}

func createFilesystemBlobStore(options map[string]any) (blob.Store, error) {
	type fsStoreConfig struct {
		BasePath string `mapstructure:"base_path"`
	}

	var storeCfg fsStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem blob store config: %w", err)
	}
	if storeCfg.BasePath == "" {
		return nil, fmt.Errorf("filesystem blob store: base_path is required")
	}

	return blobfs.NewFSStore(storeCfg.BasePath)
}

func createS3BlobStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type s3StoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
	}

	var storeCfg s3StoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 blob store config: %w", err)
	}
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 blob store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 blob store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Custom endpoints cover MinIO, Localstack and other S3-compatible
	// providers.
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awsS3.NewFromConfig(awsCfg, func(o *awsS3.Options) {
		// Path-style addressing is what MinIO and friends expect.
		o.UsePathStyle = storeCfg.Endpoint != ""
	})

	return blobs3.NewS3Store(ctx, blobs3.S3StoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
}

// CreateIndexManager creates the metadata index manager selected by the
// config.
func CreateIndexManager(cfg *IndexConfig) (index.Manager, error) {
	switch cfg.Type {
	case "memory":
		return indexmemory.NewMemoryManager(), nil
	case "badger":
		return createBadgerIndexManager(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}

func createBadgerIndexManager(options map[string]any) (index.Manager, error) {
	type badgerConfig struct {
		DBPath           string `mapstructure:"db_path"`
		BlockCacheSizeMB int64  `mapstructure:"block_cache_size_mb"`
		IndexCacheSizeMB int64  `mapstructure:"index_cache_size_mb"`
	}

	var storeCfg badgerConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger index config: %w", err)
	}
	if storeCfg.DBPath == "" {
		return nil, fmt.Errorf("badger index: db_path is required")
	}

	return badgerindex.NewBadgerManager(badgerindex.BadgerManagerConfig{
		DBPath:           storeCfg.DBPath,
		BlockCacheSizeMB: storeCfg.BlockCacheSizeMB,
		IndexCacheSizeMB: storeCfg.IndexCacheSizeMB,
	})
}

// CreateCache creates the derived-artifact cache selected by the config.
func CreateCache(cfg *CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case "memory":
		return cachememory.NewMemoryCache(), nil
	case "redis":
		return createRedisCache(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

func createRedisCache(options map[string]any) (cache.Cache, error) {
	type redisConfig struct {
		URL       string `mapstructure:"url"`
		KeyPrefix string `mapstructure:"key_prefix"`
	}

	var cacheCfg redisConfig
	if err := mapstructure.Decode(options, &cacheCfg); err != nil {
		return nil, fmt.Errorf("failed to decode redis cache config: %w", err)
	}
	if cacheCfg.URL == "" {
		return nil, fmt.Errorf("redis cache: url is required")
	}

	return cacheredis.NewRedisCache(cacheredis.RedisCacheConfig{
		URL:       cacheCfg.URL,
		KeyPrefix: cacheCfg.KeyPrefix,
	})
}
