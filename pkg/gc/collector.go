// Package gc provides garbage collection for orphaned blobs.
//
// The dual-write protocol writes blobs before index entries and compensates
// failures best-effort, so a crash at the wrong moment can leave a blob
// with no index entry. Orphans are harmless but cost storage; the collector
// periodically scans each dataset's bucket against its index and removes
// keys nothing references.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/aeriallabs/registry/internal/logger"
	"github.com/aeriallabs/registry/pkg/blob"
	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/registry"
	"gorm.io/gorm"
)

// Collector performs periodic garbage collection of orphaned blobs.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	db      *gorm.DB
	blobs   blob.Store
	indexes index.Manager
	config  Config
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether garbage collection is active
	Enabled bool

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration

	// DryRun logs what would be deleted without actually deleting.
	// Useful for validating a deployment before turning the sweeper loose.
	DryRun bool
}

// Stats summarizes one collection run.
type Stats struct {
	DatasetsScanned int
	BlobsScanned    int
	OrphansFound    int
	OrphansDeleted  int
	Duration        time.Duration
}

// Summary returns a human-readable one-liner.
func (s *Stats) Summary() string {
	return fmt.Sprintf("datasets=%d blobs=%d orphans=%d deleted=%d duration=%s",
		s.DatasetsScanned, s.BlobsScanned, s.OrphansFound, s.OrphansDeleted, s.Duration)
}

// NewCollector creates a garbage collector. Call Start to begin background
// collection.
func NewCollector(db *gorm.DB, blobs blob.Store, indexes index.Manager, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}

	return &Collector{
		db:      db,
		blobs:   blobs,
		indexes: indexes,
		config:  config,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins background garbage collection.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("garbage collection disabled")
		return
	}

	logger.Info("starting garbage collector: interval=%s dry_run=%v",
		c.config.Interval, c.config.DryRun)
	go c.worker()
}

// Stop stops the collector and waits for any in-progress run, bounded by
// ctx.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	close(c.stopCh)
	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		logger.Warn("garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate collection run and blocks until it finishes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("garbage collection failed: %v", err)
			} else {
				logger.Info("garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect sweeps every dataset once.
//
// A blob written by an AddNew whose index upsert hasn't landed yet looks
// like an orphan to the scan. Entries are re-checked right before deletion
// to shrink that window; running the sweeper off-peak shrinks it further.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	var datasets []registry.Dataset
	if err := c.db.WithContext(ctx).Find(&datasets).Error; err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := c.collectDataset(ctx, &ds, stats); err != nil {
			logger.Warn("sweep of %s/%s failed: %v", ds.OrganizationSlug, ds.Slug, err)
		}
		stats.DatasetsScanned++
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (c *Collector) collectDataset(ctx context.Context, ds *registry.Dataset, stats *Stats) error {
	idx, err := c.indexes.Get(ds.OrganizationSlug, ds.InternalRef)
	if err != nil {
		return err
	}

	keys, err := c.blobs.List(ctx, ds.Bucket(), "")
	if err != nil {
		return err
	}
	stats.BlobsScanned += len(keys)

	for _, key := range keys {
		if _, err := idx.Get(ctx, key); err == nil {
			continue
		}
		stats.OrphansFound++

		if c.config.DryRun {
			logger.Info("dry-run: would delete orphan blob %s/%s", ds.Bucket(), key)
			continue
		}

		// Re-check right before deleting; an upload may have indexed the
		// key since the scan.
		if _, err := idx.Get(ctx, key); err == nil {
			stats.OrphansFound--
			continue
		}
		if err := c.blobs.Delete(ctx, ds.Bucket(), key); err != nil {
			logger.Warn("failed to delete orphan blob %s/%s: %v", ds.Bucket(), key, err)
			continue
		}
		stats.OrphansDeleted++
	}
	return nil
}
