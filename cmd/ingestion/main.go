// Command ingestion starts the publication ingestion HTTP service.
//
// The crawler posts publications to POST /api/v1/publications. They are
// validated, stored in PostgreSQL with duplicate pub_urls skipped, and each
// batch that added publications is announced on Kafka so the indexer
// rebuilds.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/auth"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/ingestion/publisher"
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
	logger.Setup("ingestion", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "ingestion")
		defer shutdownMetrics(context.Background())
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	var (
		producer publisher.EventProducer
		tracker  publisher.Tracker
	)
	if cfg.Kafka.Enabled() {
		ingestProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PublicationsIngested)
		defer ingestProducer.Close()
		producer = ingestProducer

		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector := analytics.NewCollector(analyticsProducer, analytics.CollectorConfig{
			BufferSize:    cfg.Analytics.BufferSize,
			BatchSize:     cfg.Analytics.BatchSize,
			FlushInterval: cfg.Analytics.FlushInterval,
		})
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.PublicationsIngested)
	} else {
		slog.Warn("kafka disabled, the indexer only sees new publications on its schedule")
	}

	pub := publisher.New(db, producer, tracker, m)
	h := handler.New(pub)

	checker := health.NewChecker()
	checker.Register("postgres", health.Ping(db.Ping))

	mux := http.NewServeMux()
	h.Register(mux)
	checker.Mount(mux)

	var chain http.Handler = mux
	if cfg.Auth.Enabled {
		chain = auth.RequireKey(apikey.NewStore(db), ratelimit.New(ctx, cfg.Auth.RateLimitWindow))(chain)
		slog.Info("crawler api keys required", "rate_limit_window", cfg.Auth.RateLimitWindow)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("ingestion service stopped")
}
