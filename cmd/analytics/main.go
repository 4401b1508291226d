// Command analytics starts the fleet-wide analytics aggregation service.
//
// It consumes the analytics topic fed by the searcher, indexer and ingestion
// services, aggregates the events in memory (query totals, latency
// percentiles, cache hit rate, zero-result queries, index builds, ingested
// publications) and serves them at GET /api/v1/analytics. When PostgreSQL is
// reachable the aggregate is restored from the newest snapshot at startup and
// saved every snapshotInterval.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("analytics", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)
	if !cfg.Kafka.Enabled() {
		slog.Error("analytics service requires kafka brokers")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "analytics")
		defer shutdownMetrics(context.Background())
	}

	agg := analytics.NewAggregator()
	checker := health.NewChecker()

	if cfg.Analytics.SnapshotInterval > 0 {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer db.Close()
			if err := db.EnsureSchema(ctx); err != nil {
				slog.Warn("failed to prepare schema", "error", err)
			}
			snapshots := aggregator.NewStore(db, cfg.Analytics.SnapshotRetention)
			latest, err := snapshots.LatestSnapshot(ctx)
			switch {
			case err != nil:
				slog.Warn("failed to restore analytics snapshot", "error", err)
			case latest != nil:
				agg.Restore(*latest)
				slog.Info("analytics restored from snapshot", "total_searches", latest.TotalSearches)
			}
			saved := snapshots.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
			defer func() { <-saved }()
			checker.RegisterOptional("postgres", health.Ping(db.Ping))
		}
	}

	consumer := kafka.NewConsumerWithGroup(
		cfg.Kafka,
		cfg.Kafka.Topics.AnalyticsEvents,
		cfg.Kafka.ConsumerGroup+"-analytics",
		analytics.HandleEvent(agg),
	)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker.Register("kafka", health.Ping(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}))

	mux := http.NewServeMux()
	analytics.NewHandler(agg).Register(mux)
	checker.Mount(mux)

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("analytics service stopped")
}
