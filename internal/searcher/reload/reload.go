// Package reload connects index.complete notifications to the artifact
// store.
package reload

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/store"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
)

// Reloader is satisfied by *store.Store.
type Reloader interface {
	Reload(ctx context.Context) (*store.Snapshot, error)
	Path() string
	Current() *store.Snapshot
}

// HandleIndexComplete reloads r when the indexer reports a new artifact.
// The event's path is informational only: indexer and searcher may mount the
// same file under different names, so r always rereads its own path.
// Events for artifacts older than the one being served are ignored. A failed reload is logged and the
// message is acknowledged; the previous artifact keeps serving.
func HandleIndexComplete(r Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.IndexCompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index complete event", "error", err)
			return nil
		}
		if cur := r.Current(); cur != nil && event.BuiltAt != 0 && event.BuiltAt < cur.Artifact.BuiltAt {
			logger.Debug("ignoring stale index event",
				"event_built_at", event.BuiltAt,
				"serving_built_at", cur.Artifact.BuiltAt,
			)
			return nil
		}
		snap, err := r.Reload(ctx)
		if err != nil {
			logger.Error("reload after index complete failed", "error", err)
			return nil
		}
		logger.Info("artifact reloaded from index event",
			"generation", snap.Generation,
			"path", r.Path(),
			"event_path", event.ArtifactPath,
			"documents", event.Documents,
			"built_at", event.BuiltAt,
		)
		return nil
	}
}
