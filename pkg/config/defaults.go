package config

import (
	"strings"

	"github.com/aeriallabs/registry/pkg/naming"
)

// ApplyDefaults fills in default values for any unset configuration.
//
// Called after unmarshaling and before validation so a minimal (or missing)
// config file still yields a runnable setup: SQLite next to the binary,
// filesystem blobs, Badger index, in-memory cache.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyDatabaseDefaults(&cfg.Database)
	applyBlobDefaults(&cfg.Blob)
	applyIndexDefaults(&cfg.Index)
	applyCacheDefaults(&cfg.Cache)
	applyShareDefaults(&cfg.Share)
	applyGCDefaults(&cfg.GC)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 28
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.DSN == "" && cfg.Driver == "sqlite" {
		cfg.DSN = "registry.db"
	}
}

func applyBlobDefaults(cfg *BlobConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}
	if cfg.Type == "filesystem" {
		if cfg.Filesystem == nil {
			cfg.Filesystem = map[string]any{}
		}
		if _, ok := cfg.Filesystem["base_path"]; !ok {
			cfg.Filesystem["base_path"] = "./data/blobs"
		}
	}
}

func applyIndexDefaults(cfg *IndexConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}
	if cfg.Type == "badger" {
		if cfg.Badger == nil {
			cfg.Badger = map[string]any{}
		}
		if _, ok := cfg.Badger["db_path"]; !ok {
			cfg.Badger["db_path"] = "./data/index"
		}
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
}

func applyShareDefaults(cfg *ShareConfig) {
	if cfg.TokenLength == 0 {
		cfg.TokenLength = naming.DefaultTokenLength
	}
	if cfg.NameLength == 0 {
		cfg.NameLength = naming.DefaultNameLength
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == "" {
		cfg.Interval = "24h"
	}
}

// GetDefaultConfig returns a fully defaulted configuration, used by the
// init command to write a starter config file.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
