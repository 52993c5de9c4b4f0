// Package config loads, defaults and validates the registry configuration,
// and builds the configured store implementations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete registry configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (REGISTRY_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// The Blob, Index and Cache sections each carry a Type selector plus
// type-specific option maps; only the section matching the selected type is
// decoded, by the factory for that implementation.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Database configures the relational store for organizations, datasets
	// and batches
	Database DatabaseConfig `mapstructure:"database"`

	// Blob specifies the blob store type and type-specific configuration
	Blob BlobConfig `mapstructure:"blob"`

	// Index specifies the metadata index type and type-specific configuration
	Index IndexConfig `mapstructure:"index"`

	// Cache specifies the derived-artifact cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Share controls the batch upload protocol
	Share ShareConfig `mapstructure:"share"`

	// GC controls orphan blob garbage collection
	GC GCConfig `mapstructure:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path (rotated)
	Output string `mapstructure:"output" validate:"required"`

	// MaxSizeMB is the size at which a log file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb" validate:"gte=0"`

	// MaxBackups is how many rotated files to keep
	MaxBackups int `mapstructure:"max_backups" validate:"gte=0"`

	// MaxAgeDays is how long rotated files are kept
	MaxAgeDays int `mapstructure:"max_age_days" validate:"gte=0"`
}

// DatabaseConfig selects the relational database.
type DatabaseConfig struct {
	// Driver is the database driver
	// Valid values: sqlite, postgres
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`

	// DSN is the driver-specific connection string
	DSN string `mapstructure:"dsn" validate:"required"`
}

// BlobConfig specifies blob store configuration.
type BlobConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// IndexConfig specifies metadata index configuration.
type IndexConfig struct {
	// Type specifies which index implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// CacheConfig specifies the thumbnail/preview cache.
type CacheConfig struct {
	// Type specifies which cache implementation to use
	// Valid values: memory, redis
	Type string `mapstructure:"type" validate:"required,oneof=memory redis"`

	// Redis contains Redis-specific configuration
	// Only used when Type = "redis"
	Redis map[string]any `mapstructure:"redis"`
}

// ShareConfig controls the batch upload protocol.
type ShareConfig struct {
	// TokenLength is the length of generated batch tokens
	TokenLength int `mapstructure:"token_length" validate:"gte=16,lte=64"`

	// NameLength is the length of generated dataset names
	NameLength int `mapstructure:"name_length" validate:"gte=8,lte=64"`

	// MaxStorageBytes caps each dataset's total size; 0 means unlimited
	MaxStorageBytes int64 `mapstructure:"max_storage_bytes" validate:"gte=0"`
}

// GCConfig controls orphan blob garbage collection.
type GCConfig struct {
	// Enabled turns the background sweeper on
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to sweep, as a Go duration string (e.g. "24h")
	Interval string `mapstructure:"interval" validate:"required"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the REGISTRY_ prefix and underscores.
	// Example: REGISTRY_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is fine; defaults and environment cover everything.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "registry")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "registry")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
