// Package main wires together the relay service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/api"
	"github.com/pagerelay/pagerelay/internal/archive"
	"github.com/pagerelay/pagerelay/internal/clock/system"
	"github.com/pagerelay/pagerelay/internal/config"
	"github.com/pagerelay/pagerelay/internal/extract"
	"github.com/pagerelay/pagerelay/internal/fetcher/direct"
	"github.com/pagerelay/pagerelay/internal/fetcher/scraperapi"
	"github.com/pagerelay/pagerelay/internal/keyring"
	"github.com/pagerelay/pagerelay/internal/ledger"
	"github.com/pagerelay/pagerelay/internal/logging"
	"github.com/pagerelay/pagerelay/internal/metrics"
	pubsubpublisher "github.com/pagerelay/pagerelay/internal/publisher/pubsub"
	"github.com/pagerelay/pagerelay/internal/relay"
	"github.com/pagerelay/pagerelay/internal/scrape"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()

	store, err := buildLedgerStore(ctx, cfg)
	if err != nil {
		logger.Fatal("ledger store init failed", zap.Error(err))
	}

	keys := config.LoadKeysFromEnv()
	ring := keyring.New(keyring.Config{
		Keys:       keys,
		MonthlyCap: cfg.Scrape.MonthlyCap,
	}, store, clock, logger.Named("keyring"))
	ring.MaybeRollPeriod(clock.Now())
	if ring.Empty() {
		logger.Warn("no scraper api keys configured, falling back to direct fetch")
	} else {
		logger.Info("scraper api keys loaded", zap.Int("count", len(keys)))
	}

	serviceFetcher := scraperapi.New(scraperapi.Config{
		Endpoint: cfg.Scrape.Endpoint,
		Timeout:  time.Duration(cfg.Scrape.TimeoutSeconds) * time.Second,
	}, logger.Named("scraperapi"))
	directFetcher := direct.New(direct.Config{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   time.Duration(cfg.Scrape.DirectTimeoutSeconds) * time.Second,
	})

	pipe := extract.New(extract.Config{
		MinParagraphLen:   cfg.Extract.MinParagraphLen,
		LooseParagraphLen: cfg.Extract.LooseParagraphLen,
		RawExcerptLen:     cfg.Extract.RawExcerptLen,
	})

	blobs, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}
	events, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}

	service := scrape.New(
		ring,
		serviceFetcher,
		directFetcher,
		pipe,
		blobs,
		events,
		clock,
		scrape.Config{
			BatchConcurrency: cfg.Scrape.BatchConcurrency,
			ArchivePrefix:    cfg.Archive.Prefix,
			EventTopic:       cfg.Publish.Topic,
		},
		logger.Named("scrape"),
	)

	apiServer := api.NewServer(service, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildLedgerStore(ctx context.Context, cfg config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "postgres":
		store, err := ledger.NewPostgresStore(ctx, ledger.PostgresStoreConfig{
			DSN:   cfg.Ledger.DSN,
			Table: cfg.Ledger.Table,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := ledger.NewFileStore(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (relay.BlobStore, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	switch cfg.Archive.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		store, err := archive.NewGCSStore(client, archive.GCSConfig{Bucket: cfg.Archive.Bucket})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		logger.Info("archiving captures locally", zap.String("dir", cfg.Archive.Dir))
		store, err := archive.NewLocalStore(archive.LocalConfig{BaseDir: cfg.Archive.Dir})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (relay.Publisher, error) {
	if !cfg.Publish.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.Publish.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return pubsubpublisher.New(client), nil
}
