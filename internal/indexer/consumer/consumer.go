// Package consumer turns publications.ingested events into index rebuild
// requests. The engine coalesces requests, so a burst of crawler batches
// still produces a single rebuild.
package consumer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
)

// Rebuilder is satisfied by *indexer.Engine.
type Rebuilder interface {
	RequestRebuild()
}

// Stats counts the events seen since start.
type Stats struct {
	Received  int64
	Triggered int64
	Skipped   int64
}

type IndexConsumer struct {
	consumer  *kafka.Consumer
	rebuilder Rebuilder
	logger    *slog.Logger

	received  atomic.Int64
	triggered atomic.Int64
	skipped   atomic.Int64
}

// GroupID is the consumer group shared by all indexer replicas, so each
// ingestion event triggers one of them.
func GroupID(cfg config.KafkaConfig) string {
	return cfg.ConsumerGroup + "-indexer"
}

func New(cfg config.KafkaConfig, r Rebuilder) *IndexConsumer {
	ic := newIndexConsumer(r)
	ic.consumer = kafka.NewConsumerWithGroup(cfg, cfg.Topics.PublicationsIngested, GroupID(cfg), ic.handle)
	return ic
}

func newIndexConsumer(r Rebuilder) *IndexConsumer {
	return &IndexConsumer{
		rebuilder: r,
		logger:    slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	err := ic.consumer.Start(ctx)
	st := ic.Stats()
	ic.logger.Info("index consumer stopped",
		"received", st.Received,
		"triggered", st.Triggered,
		"skipped", st.Skipped,
	)
	return err
}

func (ic *IndexConsumer) Close() error {
	return ic.consumer.Close()
}

func (ic *IndexConsumer) Stats() Stats {
	return Stats{
		Received:  ic.received.Load(),
		Triggered: ic.triggered.Load(),
		Skipped:   ic.skipped.Load(),
	}
}

// handle never returns an error: a malformed event cannot succeed on retry.
func (ic *IndexConsumer) handle(_ context.Context, key, value []byte) error {
	ic.received.Add(1)
	event, err := kafka.DecodeJSON[indexer.PublicationsIngestedEvent](value)
	if err != nil {
		ic.skipped.Add(1)
		ic.logger.Error("dropping malformed ingestion event", "error", err, "key", string(key))
		return nil
	}
	if event.Accepted <= 0 {
		ic.skipped.Add(1)
		ic.logger.Debug("ingestion added nothing, skipping rebuild",
			"duplicates", event.Duplicates,
			"request_id", event.RequestID,
		)
		return nil
	}
	ic.triggered.Add(1)
	ic.logger.Info("publications ingested, requesting rebuild",
		"accepted", event.Accepted,
		"request_id", event.RequestID,
	)
	ic.rebuilder.RequestRebuild()
	return nil
}
