// Package store holds the artifact the searcher serves. The current
// artifact is published through an atomic pointer so queries never take a
// lock; reloads build a complete replacement off to the side and swap it in.
// The artifact is only replaced by an explicit Reload.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
)

// Snapshot is one loaded artifact. Generation increases by one on every
// successful load in this process; Artifact.Fingerprint identifies the
// content across processes.
type Snapshot struct {
	Artifact   *index.Artifact
	Format     artifact.Format
	Generation uint64
	LoadedAt   time.Time
}

// Hook runs after a successful reload, with the new snapshot.
type Hook func(ctx context.Context, snap *Snapshot)

// LoadFunc reads an artifact from path.
type LoadFunc func(path string) (*index.Artifact, artifact.Format, error)

type Store struct {
	path    string
	load    LoadFunc
	current atomic.Pointer[Snapshot]
	reload  sync.Mutex
	hooksMu sync.RWMutex
	hooks   []Hook
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Store that reads the artifact at path. m may be nil.
func New(path string, m *metrics.Metrics) *Store {
	return NewWithLoader(path, artifact.LoadFormat, m)
}

// NewWithLoader is New with a custom loader.
func NewWithLoader(path string, load LoadFunc, m *metrics.Metrics) *Store {
	return &Store{
		path:    path,
		load:    load,
		metrics: m,
		logger:  slog.Default().With("component", "artifact-store"),
	}
}

// Path returns the artifact path the store reads.
func (s *Store) Path() string { return s.path }

// Load performs the initial load. It is Reload under another name so that
// startup reads the same way in callers.
func (s *Store) Load(ctx context.Context) error {
	_, err := s.Reload(ctx)
	return err
}

// Reload reads the artifact from disk and swaps it in. Concurrent calls are
// serialized. On failure the previous snapshot stays current.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.reload.Lock()
	defer s.reload.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	a, format, err := s.load(s.path)
	if err != nil {
		s.observeReload("error")
		s.logger.Error("artifact reload failed",
			"path", s.path,
			"error", err,
			"serving_generation", s.Generation(),
		)
		return nil, fmt.Errorf("loading artifact: %w", err)
	}

	var gen uint64 = 1
	if prev := s.current.Load(); prev != nil {
		gen = prev.Generation + 1
	}
	snap := &Snapshot{
		Artifact:   a,
		Format:     format,
		Generation: gen,
		LoadedAt:   time.Now(),
	}
	s.current.Store(snap)
	s.observeReload("success")
	if s.metrics != nil {
		s.metrics.ArtifactDocuments.Set(float64(a.Len()))
		s.metrics.ArtifactVocabulary.Set(float64(a.VocabularySize()))
	}
	s.logger.Info("artifact loaded",
		"path", s.path,
		"format", format,
		"documents", a.Len(),
		"vocabulary", a.VocabularySize(),
		"built_at", a.BuiltAt,
		"fingerprint", a.Fingerprint(),
		"generation", gen,
		"duration", time.Since(start).String(),
	)

	s.hooksMu.RLock()
	hooks := append([]Hook(nil), s.hooks...)
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, snap)
	}
	return snap, nil
}

// Current returns the snapshot being served, or nil before the first
// successful load.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Artifact returns the served artifact, or nil.
func (s *Store) Artifact() *index.Artifact {
	if snap := s.current.Load(); snap != nil {
		return snap.Artifact
	}
	return nil
}

// Generation returns the served generation, 0 before the first load.
func (s *Store) Generation() uint64 {
	if snap := s.current.Load(); snap != nil {
		return snap.Generation
	}
	return 0
}

// OnReload registers h to run after every successful reload.
func (s *Store) OnReload(h Hook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, h)
}

func (s *Store) observeReload(status string) {
	if s.metrics != nil {
		s.metrics.ArtifactReloadsTotal.WithLabelValues(status).Inc()
	}
}
