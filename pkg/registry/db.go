package registry

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig selects and configures the relational backend for registry rows
// (organizations, datasets, batches and their entries).
type DBConfig struct {
	// Driver selects the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver"`

	// DSN is the driver-specific connection string.
	// sqlite: a file path; postgres: a key=value DSN.
	DSN string `mapstructure:"dsn"`
}

// Open connects to the configured database and migrates the registry schema.
//
// The returned handle is safe for concurrent use; GORM maintains the
// underlying connection pool.
func Open(cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite", "":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite database: dsn is required")
		}
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres database: dsn is required")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the registry schema on an existing connection.
// Useful for tests and for callers that manage their own GORM handle.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&Organization{}, &Dataset{}, &Batch{}, &BatchEntry{})
	if err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	// At most one Running batch per dataset, enforced by the database. Under
	// read committed two concurrent batch opens can each see zero running
	// rows to supersede; the partial index makes the second insert fail so
	// the caller can retry against the now-visible winner.
	err = db.Exec(fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_one_running_batch ON batches(dataset_id) WHERE status = %d",
		BatchRunning)).Error
	if err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}
