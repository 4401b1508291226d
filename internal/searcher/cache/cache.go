package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/store"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	backend Backend
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over backend. m may be nil.
func New(backend Backend, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		backend: backend,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data string
	found := false
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.cfg.OpTimeout, "redis-get", func(ctx context.Context) error {
			v, err := c.backend.Get(ctx, key)
			if err != nil {
				if pkgredis.IsNilError(err) {
					return nil
				}
				return err
			}
			data = v
			found = true
			return nil
		})
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	if !found {
		c.recordMiss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.cfg.OpTimeout, "redis-set", func(ctx context.Context) error {
			return c.backend.Set(ctx, key, data, c.cfg.CacheTTL)
		})
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for the query against the artifact
// identified by version, or computes and stores it. Concurrent misses for the same key share one computation. The
// second return value reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	version string,
	plan *parser.QueryPlan,
	opts executor.Options,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := BuildKey(version, plan.Terms, opts)
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// InvalidateOnReload is a store hook that drops results computed against
// older artifacts.
func (c *QueryCache) InvalidateOnReload(ctx context.Context, snap *store.Snapshot) {
	if _, err := c.Invalidate(ctx); err != nil {
		c.logger.Warn("cache invalidation after reload failed",
			"generation", snap.Generation,
			"fingerprint", snap.Artifact.Fingerprint(),
			"error", err,
		)
	}
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the state of the Redis circuit breaker.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}

func (c *QueryCache) BreakerStats() resilience.BreakerStats {
	return c.breaker.Stats()
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key for a query. version is the artifact
// fingerprint, so searchers sharing Redis only share results for the same
// artifact. Terms are already normalized and distinct; their order is kept
// because it affects scores.
func BuildKey(version string, terms []string, opts executor.Options) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%d",
		version,
		strings.Join(terms, " "),
		opts.Sort,
		opts.Offset,
		opts.Limit,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
