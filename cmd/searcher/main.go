// Command searcher serves TF-IDF search over the publication index artifact.
//
// The artifact is read once at startup and kept in memory. It is replaced only
// by POST /api/v1/index/reload, SIGHUP, or an index.complete event from the
// indexer. Results are cached in Redis when it is reachable.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/store"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("searcher", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"artifact", cfg.Indexer.ArtifactPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "searcher")
		defer shutdownMetrics(context.Background())
	}

	st := store.New(cfg.Indexer.ArtifactPath, m)

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis, m)
		st.OnReload(queryCache.InvalidateOnReload)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	// Hooks are registered first so the initial load also clears results
	// cached against an earlier artifact.
	if err := st.Load(ctx); err != nil {
		slog.Warn("no index loaded, searches return 503 until a reload succeeds", "error", err)
	}

	// Local aggregation always runs; with Kafka the same batches also go to
	// the analytics topic for the fleet-wide analytics service.
	aggregator := analytics.NewAggregator()
	var analyticsPub analytics.Publisher = aggregator
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		analyticsPub = analytics.Tee(producer, aggregator)
	}
	collector := analytics.NewCollector(analyticsPub, analytics.CollectorConfig{
		BufferSize:    cfg.Analytics.BufferSize,
		BatchSize:     cfg.Analytics.BatchSize,
		FlushInterval: cfg.Analytics.FlushInterval,
	})
	collector.Start(ctx)
	defer collector.Close()

	if cfg.Kafka.Enabled() {
		// Every searcher must see every index.complete event, so each
		// instance joins its own consumer group.
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, host)
		reloadConsumer := kafka.NewConsumerWithGroup(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group, reload.HandleIndexComplete(st))
		go func() {
			if err := reloadConsumer.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("listening for index notifications",
			"topic", cfg.Kafka.Topics.IndexComplete,
			"group", group,
		)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				slog.Info("SIGHUP received, reloading index")
				if _, err := st.Reload(ctx); err != nil {
					slog.Error("index reload failed", "error", err)
				}
			}
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := st.Current()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no artifact loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", snap.Generation, snap.Artifact.Len()),
		}
	})
	checker.RegisterOptional("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	exec := executor.New(st, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	h := handler.New(exec, st, queryCache, collector, m)

	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator).Register(mux)
	checker.Mount(mux)

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("search service stopped")
}
