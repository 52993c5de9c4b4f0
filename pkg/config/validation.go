package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Declarative constraints live in the struct tags; rules that span sections
// (a selected type requiring its option block) are checked here.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Blob.Type == "s3" {
		if cfg.Blob.S3 == nil {
			return fmt.Errorf("blob: s3 store selected but no s3 section configured")
		}
		if bucket, _ := cfg.Blob.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("blob.s3: bucket is required")
		}
	}

	if cfg.Blob.Type == "filesystem" {
		if base, _ := cfg.Blob.Filesystem["base_path"].(string); base == "" {
			return fmt.Errorf("blob.filesystem: base_path is required")
		}
	}

	if cfg.Index.Type == "badger" {
		if path, _ := cfg.Index.Badger["db_path"].(string); path == "" {
			return fmt.Errorf("index.badger: db_path is required")
		}
	}

	if cfg.Cache.Type == "redis" {
		if url, _ := cfg.Cache.Redis["url"].(string); url == "" {
			return fmt.Errorf("cache.redis: url is required")
		}
	}

	if _, err := time.ParseDuration(cfg.GC.Interval); err != nil {
		return fmt.Errorf("gc: invalid interval %q: %w", cfg.GC.Interval, err)
	}

	return nil
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, fieldErr := range validationErrors {
		return fmt.Errorf("config field %s failed validation: %s (value: %v)",
			fieldErr.Namespace(), fieldErr.Tag(), fieldErr.Value())
	}
	return err
}
