// Command indexer builds the publication index artifact.
//
// It reads publications from the configured source (a crawler JSON dump or
// the PostgreSQL publications table), writes the artifact atomically and
// announces it on Kafka. Unless -once is given it keeps running, rebuilding
// on rebuildInterval and whenever the ingestion service reports new
// publications.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-once]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	once := flag.Bool("once", false, "build the artifact once and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("indexer", cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *once); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting indexer service",
		"source", cfg.Indexer.Source,
		"artifact", cfg.Indexer.ArtifactPath,
		"once", once,
	)

	m := metrics.New(nil)
	if cfg.Metrics.Enabled && !once {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "indexer")
		defer shutdownMetrics(context.Background())
	}

	var src indexer.Source
	switch cfg.Indexer.Source {
	case config.SourcePostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing schema: %w", err)
		}
		src = source.Postgres(db)
	default:
		src = source.File(cfg.Indexer.InputPath)
	}

	opts := []indexer.Option{indexer.WithMetrics(m)}
	if cfg.Kafka.Enabled() {
		notifier := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer notifier.Close()
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector := analytics.NewCollector(analyticsProducer, analytics.CollectorConfig{
			BufferSize:    cfg.Analytics.BufferSize,
			BatchSize:     cfg.Analytics.BatchSize,
			FlushInterval: cfg.Analytics.FlushInterval,
		})
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, indexer.WithNotifier(notifier), indexer.WithTracker(collector))
		slog.Info("kafka notifications enabled", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	engine := indexer.NewEngine(src, artifact.NewWriter(cfg.Indexer.ArtifactPath), opts...)
	if _, err := engine.Rebuild(ctx); err != nil {
		if once {
			return err
		}
		slog.Warn("initial build failed, waiting for the next trigger", "error", err)
	}
	if once {
		return nil
	}

	engine.StartRebuildLoop(ctx, cfg.Indexer.RebuildInterval, cfg.Indexer.RebuildSettle)

	if !cfg.Kafka.Enabled() {
		slog.Info("indexer running without kafka, rebuilding on schedule only")
		<-ctx.Done()
		slog.Info("indexer service stopped")
		return nil
	}

	ingestConsumer := consumer.New(cfg.Kafka, engine)
	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.PublicationsIngested,
		"group", consumer.GroupID(cfg.Kafka),
	)
	if err := ingestConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("indexer service stopped")
	return nil
}
