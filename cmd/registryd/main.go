// Command registryd runs the dataset registry: it opens the configured
// stores and exposes the object and share managers to the API layer, plus a
// small local command surface for administration and scripting.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aeriallabs/registry/internal/logger"
	"github.com/aeriallabs/registry/pkg/config"
	"github.com/aeriallabs/registry/pkg/gc"
	"github.com/aeriallabs/registry/pkg/index/cached"
	"github.com/aeriallabs/registry/pkg/naming"
	"github.com/aeriallabs/registry/pkg/objects"
	"github.com/aeriallabs/registry/pkg/registry"
	"github.com/aeriallabs/registry/pkg/share"
)

var version = "dev"

const usage = `Usage: registryd [flags] <command> [args]

Commands:
  serve                          Open the stores and run until signalled (default)
  ls <org/dataset> [path]        List entries of a dataset
  share [org/dataset]            Open an upload batch; prints the token
  push <token> <file> [path]     Upload a file into a batch
  commit <token>                 Commit a batch
  batches <org/dataset>          List a dataset's batches
  gc                             Run one orphan blob sweep and exit

Flags:
`

type app struct {
	cfg       *config.Config
	objects   *objects.Manager
	share     *share.Manager
	collector *gc.Collector
	close     func()
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	user := flag.String("user", "admin", "Acting user for share commands")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("registryd %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Configure(cfg.Logging.Level, cfg.Logging.Output, logger.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start registry: %v", err)
	}
	defer a.close()

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}

	switch command {
	case "serve":
		err = a.serve(cancel)
	case "ls":
		err = a.list(ctx, flag.Arg(1), flag.Arg(2))
	case "share":
		err = a.openBatch(ctx, *user, flag.Arg(1))
	case "push":
		err = a.push(ctx, flag.Arg(1), flag.Arg(2), flag.Arg(3))
	case "commit":
		err = a.commit(ctx, flag.Arg(1))
	case "batches":
		err = a.batches(ctx, flag.Arg(1))
	case "gc":
		err = a.sweep(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

// buildApp opens every configured store and wires the managers.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := config.OpenDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("database ready (%s)", cfg.Database.Driver)

	blobStore, err := config.CreateBlobStore(ctx, &cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("create blob store: %w", err)
	}
	logger.Info("blob store ready (%s)", cfg.Blob.Type)

	rawIndexes, err := config.CreateIndexManager(&cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("create index manager: %w", err)
	}
	logger.Info("metadata index ready (%s)", cfg.Index.Type)

	artifactCache, err := config.CreateCache(&cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	logger.Info("cache ready (%s)", cfg.Cache.Type)

	indexManager := cached.NewManager(rawIndexes, artifactCache, 0)

	objectManager := objects.NewManager(objects.ManagerConfig{
		DB:              db,
		Blobs:           blobStore,
		Indexes:         indexManager,
		MaxStorageBytes: cfg.Share.MaxStorageBytes,
	})

	shareManager := share.NewManager(db, objectManager,
		&naming.TokenGenerator{Length: cfg.Share.TokenLength},
		&naming.NameGenerator{Length: cfg.Share.NameLength},
	)

	gcInterval, _ := time.ParseDuration(cfg.GC.Interval)
	collector := gc.NewCollector(db, blobStore, indexManager, gc.Config{
		Enabled:  cfg.GC.Enabled,
		Interval: gcInterval,
		DryRun:   cfg.GC.DryRun,
	})

	closeAll := func() {
		if err := indexManager.Close(); err != nil {
			logger.Error("failed to close index manager: %v", err)
		}
		if closer, ok := artifactCache.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close cache: %v", err)
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Error("failed to close database: %v", err)
			}
		}
	}

	return &app{cfg: cfg, objects: objectManager, share: shareManager, collector: collector, close: closeAll}, nil
}

// serve blocks until SIGINT/SIGTERM.
func (a *app) serve(cancel context.CancelFunc) error {
	a.collector.Start()
	logger.Info("registry %s ready", version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received %s, shutting down", sig)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := a.collector.Stop(stopCtx); err != nil {
		logger.Warn("garbage collector did not stop cleanly: %v", err)
	}

	cancel()
	return nil
}

func (a *app) list(ctx context.Context, tagArg, path string) error {
	tag, err := registry.ParseTag(tagArg)
	if err != nil {
		return err
	}

	entries, err := a.objects.List(ctx, tag.OrganizationSlug, tag.DatasetSlug, path, false)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Printf("%-12s %10d  %s\n", entry.Type, entry.Size, entry.Path)
	}
	return nil
}

func (a *app) openBatch(ctx context.Context, user, tagArg string) error {
	req := &share.InitRequest{}
	if tagArg != "" {
		req.Tag = &tagArg
	}

	result, err := a.share.Initialize(ctx, user, req)
	if err != nil {
		return err
	}
	fmt.Printf("batch opened on %s\ntoken: %s\n", result.Tag, result.Token)
	return nil
}

func (a *app) push(ctx context.Context, token, file, path string) error {
	if token == "" || file == "" {
		return fmt.Errorf("usage: push <token> <file> [path]")
	}
	if path == "" {
		path = filepath.Base(file)
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	entry, err := a.share.Upload(ctx, token, path, f)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %s (%d bytes, %s)\n", entry.Path, entry.Size, entry.Hash)
	return nil
}

func (a *app) commit(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("usage: commit <token>")
	}

	result, err := a.share.Commit(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("committed %s -> %s\n", result.Tag, result.URL)
	return nil
}

func (a *app) sweep(ctx context.Context) error {
	stats, err := a.collector.RunNow(ctx)
	if err != nil {
		return err
	}
	fmt.Println(stats.Summary())
	return nil
}

func (a *app) batches(ctx context.Context, tagArg string) error {
	tag, err := registry.ParseTag(tagArg)
	if err != nil {
		return err
	}

	batches, err := a.share.ListBatches(ctx, tag.OrganizationSlug, tag.DatasetSlug)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		fmt.Printf("%s  %-10s  %s  %d entries\n",
			batch.Token, batch.Status, batch.Start.Format("2006-01-02 15:04:05"), len(batch.Entries))
	}
	return nil
}
