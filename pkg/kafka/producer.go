package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/segmentio/kafka-go"
)

// ErrEncode marks events whose value could not be serialised. Publishing
// them again cannot succeed.
var ErrEncode = errors.New("encoding event")

// HeaderEventType carries the Go type of the event value so consumers of a
// shared topic can route without decoding.
const HeaderEventType = "event-type"

// Event is one message. Key picks the partition; Value is JSON-encoded.
type Event struct {
	Key   string
	Value any
}

// Producer publishes JSON events to one topic. The same type serves
// index.complete notifications, publications.ingested events and analytics
// batches.
type Producer struct {
	writer *kafka.Writer
	topic  string
	now    func() time.Time
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer: w,
		topic:  topic,
		now:    time.Now,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Topic() string { return p.topic }

// Publish writes one event synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message", "key", event.Key, "error", err)
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}
	p.logger.Debug("message published", "key", event.Key, "value_size", len(msg.Value))
	return nil
}

// PublishBatch writes events in one call. An event that fails to encode
// aborts the whole batch before anything is sent.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := p.message(event)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish batch", "count", len(messages), "error", err)
		return fmt.Errorf("publishing batch to %s: %w", p.topic, err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) message(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%w %q: %v", ErrEncode, event.Key, err)
	}
	return kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(fmt.Sprintf("%T", event.Value))},
		},
	}, nil
}
