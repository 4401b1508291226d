package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/resilience"
)

// Source supplies the documents an index is built from.
type Source interface {
	Name() string
	Documents(ctx context.Context) ([]index.Document, error)
}

// Notifier publishes IndexCompleteEvents.
type Notifier interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Tracker receives analytics events.
type Tracker interface {
	Track(key string, event any)
}

// BuildReport summarises one rebuild.
type BuildReport struct {
	Source    string
	Documents int
	Terms     int
	BuiltAt   int64
	Duration  time.Duration
}

// Engine rebuilds the index artifact from a Source. Rebuilds are serialized;
// the artifact file is only replaced once a complete build succeeded.
type Engine struct {
	source   Source
	writer   *artifact.Writer
	notifier Notifier
	tracker  Tracker
	metrics  *metrics.Metrics
	retry    resilience.RetryConfig
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	trigger chan struct{}
}

type Option func(*Engine)

// WithNotifier publishes an IndexCompleteEvent after each build.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithTracker reports build outcomes to analytics.
func WithTracker(t Tracker) Option { return func(e *Engine) { e.tracker = t } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithRetry(cfg resilience.RetryConfig) Option { return func(e *Engine) { e.retry = cfg } }

func NewEngine(source Source, writer *artifact.Writer, opts ...Option) *Engine {
	e := &Engine{
		source:  source,
		writer:  writer,
		now:     time.Now,
		logger:  slog.Default().With("component", "indexer"),
		trigger: make(chan struct{}, 1),
		retry: resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild reads all documents, builds a fresh artifact and atomically
// replaces the file. A source or write failure leaves the previous artifact
// in place.
func (e *Engine) Rebuild(ctx context.Context) (*BuildReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	docs, err := e.source.Documents(ctx)
	if err != nil {
		err = fmt.Errorf("loading documents from %s: %w", e.source.Name(), err)
		e.fail(start, err)
		return nil, err
	}
	a := index.Build(docs, start.Unix())
	if err := e.writer.Save(a); err != nil {
		e.fail(start, err)
		return nil, fmt.Errorf("saving artifact: %w", err)
	}

	report := &BuildReport{
		Source:    e.source.Name(),
		Documents: a.Len(),
		Terms:     a.VocabularySize(),
		BuiltAt:   a.BuiltAt,
		Duration:  e.now().Sub(start),
	}
	if e.metrics != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
		e.metrics.IndexBuildDuration.Observe(report.Duration.Seconds())
		e.metrics.ArtifactDocuments.Set(float64(report.Documents))
		e.metrics.ArtifactVocabulary.Set(float64(report.Terms))
	}
	e.logger.Info("index rebuilt",
		"source", report.Source,
		"input_documents", len(docs),
		"documents", report.Documents,
		"duplicates_dropped", len(docs)-report.Documents,
		"terms", report.Terms,
		"path", e.writer.Path(),
		"duration", report.Duration.String(),
	)
	if e.tracker != nil {
		e.tracker.Track(string(analytics.EventIndexBuilt), analytics.IndexEvent{
			Type:       analytics.EventIndexBuilt,
			Source:     report.Source,
			Documents:  report.Documents,
			Terms:      report.Terms,
			BuiltAt:    report.BuiltAt,
			DurationMs: report.Duration.Milliseconds(),
			Timestamp:  e.now().UTC(),
		})
	}
	e.notify(ctx, report)
	return report, nil
}

func (e *Engine) fail(start time.Time, err error) {
	if e.metrics != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
	}
	e.logger.Error("index rebuild failed", "source", e.source.Name(), "error", err)
	if e.tracker != nil {
		e.tracker.Track(string(analytics.EventIndexFailed), analytics.IndexEvent{
			Type:       analytics.EventIndexFailed,
			Source:     e.source.Name(),
			DurationMs: e.now().Sub(start).Milliseconds(),
			Error:      err.Error(),
			Timestamp:  e.now().UTC(),
		})
	}
}

// notify publishes the completion event. Searchers can still be reloaded
// by hand, so a publish failure is logged and not returned.
func (e *Engine) notify(ctx context.Context, report *BuildReport) {
	if e.notifier == nil {
		return
	}
	event := kafka.Event{
		Key: "index",
		Value: IndexCompleteEvent{
			ArtifactPath: e.writer.Path(),
			BuiltAt:      report.BuiltAt,
			Documents:    report.Documents,
			Terms:        report.Terms,
			Source:       report.Source,
		},
	}
	err := resilience.Retry(ctx, "publish-index-complete", e.retry, func() error {
		err := e.notifier.Publish(ctx, event)
		if errors.Is(err, kafka.ErrEncode) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		e.logger.Error("failed to publish index complete event", "error", err)
	}
}

// RequestRebuild asks the rebuild loop for a build. Requests arriving while
// one is pending are coalesced.
func (e *Engine) RequestRebuild() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// StartRebuildLoop rebuilds every interval (0 disables the timer) and on
// RequestRebuild, until ctx is done. Requests are debounced by settle so a
// burst of ingestion events causes one build.
func (e *Engine) StartRebuildLoop(ctx context.Context, interval, settle time.Duration) {
	go func() {
		var tick <-chan time.Time
		if interval > 0 {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("rebuild loop stopping")
				return
			case <-tick:
				e.rebuildLogged(ctx, "schedule")
			case <-e.trigger:
				if settle > 0 {
					select {
					case <-time.After(settle):
					case <-ctx.Done():
						return
					}
				}
				e.rebuildLogged(ctx, "request")
			}
		}
	}()
	e.logger.Info("rebuild loop started", "interval", interval, "settle", settle)
}

func (e *Engine) rebuildLogged(ctx context.Context, reason string) {
	if _, err := e.Rebuild(ctx); err != nil {
		e.logger.Warn("scheduled rebuild failed", "reason", reason, "error", err)
	}
}
