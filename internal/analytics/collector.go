package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
)

// Publisher writes a batch of events to the analytics topic.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Tee publishes every batch to each publisher in turn and returns the first
// error. Later publishers still receive the batch when an earlier one fails.
func Tee(publishers ...Publisher) Publisher {
	return tee(publishers)
}

type tee []Publisher

func (t tee) PublishBatch(ctx context.Context, events []kafka.Event) error {
	var first error
	for _, p := range t {
		if err := p.PublishBatch(ctx, events); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers analytics events and publishes them in batches, either
// when BatchSize events are pending or every FlushInterval. Track never
// blocks; when the buffer is full the event is dropped.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	eventCh   chan kafka.Event
	logger    *slog.Logger
	done      chan struct{}
}

func NewCollector(publisher Publisher, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		eventCh:   make(chan kafka.Event, cfg.BufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()
		batch := make([]kafka.Event, 0, c.cfg.BatchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, event)
				if len(batch) >= c.cfg.BatchSize {
					c.flush(ctx, batch)
					batch = make([]kafka.Event, 0, c.cfg.BatchSize)
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = make([]kafka.Event, 0, c.cfg.BatchSize)
			case <-ctx.Done():
				batch = c.drainRemaining(batch)
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

// Track queues an event keyed by its type.
func (c *Collector) Track(key string, event any) {
	select {
	case c.eventCh <- kafka.Event{Key: key, Value: event}:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "key", key)
	}
}

// Close stops accepting events, flushes what is pending and waits for the
// publish loop to exit. It must only be called after Start.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// Pending returns the number of events waiting in the channel.
func (c *Collector) Pending() int {
	return len(c.eventCh)
}

func (c *Collector) drainRemaining(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch",
			"events", len(batch),
			"error", err,
		)
		return
	}
	c.logger.Debug("analytics batch published", "events", len(batch))
}
