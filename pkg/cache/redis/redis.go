// Package redis provides a Redis-backed cache.Cache for multi-node
// deployments where derived artifacts should be shared between instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aeriallabs/registry/pkg/cache"
)

// RedisCacheConfig contains configuration for creating a Redis cache.
type RedisCacheConfig struct {
	// URL is a standard connection string:
	// redis://<user>:<password>@<host>:<port>/<db>
	URL string

	// KeyPrefix namespaces all keys written by this cache. Defaults to
	// "registry:".
	KeyPrefix string
}

// RedisCache implements cache.Cache on a Redis server.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache connects to the Redis server described by the config.
// The connection is verified with a ping so misconfiguration fails at
// startup rather than on the first cache access.
func NewRedisCache(config RedisCacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "registry:"
	}

	return &RedisCache{client: client, keyPrefix: prefix}, nil
}

// Get returns the cached value for key, or cache.ErrMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

// Set stores value under key. A zero ttl means no expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Close releases the client's connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
