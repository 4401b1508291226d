// Package kafka carries the platform's events over segmentio/kafka-go:
// index.complete notifications, publications.ingested events and analytics
// batches. Values are JSON.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message. Returning an error makes the
// consumer retry the message; handlers that want to drop a malformed event
// log it and return nil.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads one topic as a member of a consumer group and hands every
// message to a MessageHandler. Offsets are committed after the handler
// finishes, or after it exhausted its retries.
type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	retry     resilience.RetryConfig
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewConsumer joins cfg.ConsumerGroup, so messages are shared with the other
// members.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return NewConsumerWithGroup(cfg, topic, cfg.ConsumerGroup, handler)
}

// NewConsumerWithGroup uses an explicit group ID. Searchers each take their
// own group so every replica sees every index.complete event.
func NewConsumerWithGroup(cfg config.KafkaConfig, topic, groupID string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic, "group", groupID),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.process(ctx, msg)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.logger.With(
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"event_type", headerValue(msg.Headers, HeaderEventType),
	)
	log.Debug("message received", "value_size", len(msg.Value))
	err := resilience.Retry(ctx, "handle-"+msg.Topic, c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err != nil {
		log.Error("giving up on message", "error", err)
	}
}

// Close closes the reader. It is safe to call more than once.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.reader.Close() })
	return c.closeErr
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

// Ping succeeds when any of brokers accepts a connection.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var dialer kafka.Dialer
	var lastErr error
	for _, broker := range brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		lastErr = err
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}
