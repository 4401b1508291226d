// Package aggregator persists aggregated analytics to PostgreSQL so the
// fleet-wide counters survive restarts of the analytics service.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/postgres"
)

const (
	insertSnapshot = `INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`
	pruneSnapshots = `DELETE FROM analytics_snapshots WHERE id NOT IN (
	SELECT id FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1)`
	latestSnapshot = `SELECT data FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`
)

// Store writes AggregatedStats to the analytics_snapshots table and keeps at
// most retain rows (0 keeps all).
type Store struct {
	db     *postgres.Client
	retain int
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(db *postgres.Client, retain int) *Store {
	return &Store{
		db:     db,
		retain: retain,
		logger: slog.Default().With("component", "analytics-store"),
		now:    time.Now,
	}
}

// SaveSnapshot inserts stats and prunes rows beyond the retention limit in
// one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	var pruned int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSnapshot, data, s.now().UTC()); err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		if s.retain <= 0 {
			return nil
		}
		res, err := tx.ExecContext(ctx, pruneSnapshots, s.retain)
		if err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
		pruned, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"index_builds", stats.IndexBuilds,
		"publications_added", stats.PublicationsAdded,
		"pruned", pruned,
	)
	return nil
}

// LatestSnapshot returns the newest snapshot, or nil if there is none.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx, latestSnapshot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// counters identifies a snapshot's content; derived figures such as
// queries per minute are left out so an idle service writes nothing.
type counters struct {
	searches, zero, awaiting, errors int64
	hits, misses                     int64
	builds, failures, published      int64
	lastBuilt                        int64
}

func countersOf(st analytics.AggregatedStats) counters {
	return counters{
		searches:  st.TotalSearches,
		zero:      st.ZeroResultCount,
		awaiting:  st.AwaitingInput,
		errors:    st.SearchErrors,
		hits:      st.CacheHits,
		misses:    st.CacheMisses,
		builds:    st.IndexBuilds,
		failures:  st.IndexFailures,
		published: st.PublicationsAdded,
		lastBuilt: st.LastBuiltAt,
	}
}

// StartPeriodicSave snapshots agg every interval while its counters change,
// and once more when ctx is done. The returned channel closes after that
// final write.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var last counters
		save := func(ctx context.Context, reason string) {
			stats := agg.Stats()
			c := countersOf(stats)
			if c == last {
				return
			}
			if err := s.SaveSnapshot(ctx, stats); err != nil {
				s.logger.Error("snapshot failed", "reason", reason, "error", err)
				return
			}
			last = c
		}
		for {
			select {
			case <-ticker.C:
				save(ctx, "interval")
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				save(shutdownCtx, "shutdown")
				cancel()
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval, "retain", s.retain)
	return done
}
