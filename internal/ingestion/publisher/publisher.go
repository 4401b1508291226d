// Package publisher stores crawled publications in PostgreSQL and announces
// each accepted batch on Kafka so the indexer rebuilds.
package publisher

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/postgres"
)

const insertPublication = `INSERT INTO publications
	(title, pub_url, date, cu_author, cu_author_url, co_authors, abstract, category)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (pub_url) DO NOTHING`

// EventProducer publishes PublicationsIngestedEvents.
type EventProducer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Tracker receives analytics events.
type Tracker interface {
	Track(key string, event any)
}

// Publisher coordinates publication persistence and event production.
type Publisher struct {
	db       *postgres.Client
	producer EventProducer
	tracker  Tracker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Publisher. producer, tracker and m may be nil.
func New(db *postgres.Client, producer EventProducer, tracker Tracker, m *metrics.Metrics) *Publisher {
	return &Publisher{
		db:       db,
		producer: producer,
		tracker:  tracker,
		metrics:  m,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest inserts docs in one transaction. A publication whose pub_url is
// already stored is counted as a duplicate and skipped; publications without
// a pub_url are always inserted.
func (p *Publisher) Ingest(ctx context.Context, docs []index.Document) (*ingestion.IngestResponse, error) {
	resp := &ingestion.IngestResponse{Total: len(docs)}
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertPublication)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i := range docs {
			inserted, err := insert(ctx, stmt, &docs[i])
			if err != nil {
				return fmt.Errorf("inserting publication %d: %w", i, err)
			}
			if inserted {
				resp.Accepted++
			} else {
				resp.Duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp.Status = "accepted"
	if resp.Accepted == 0 {
		resp.Status = "duplicate"
	}
	if p.metrics != nil {
		p.metrics.PublicationsIngested.WithLabelValues("accepted").Add(float64(resp.Accepted))
		p.metrics.PublicationsIngested.WithLabelValues("duplicate").Add(float64(resp.Duplicates))
	}

	requestID := middleware.GetRequestID(ctx)
	if p.tracker != nil {
		p.tracker.Track(string(analytics.EventIngestBatch), analytics.IngestEvent{
			Type:       analytics.EventIngestBatch,
			Accepted:   resp.Accepted,
			Duplicates: resp.Duplicates,
			Timestamp:  time.Now().UTC(),
			RequestID:  requestID,
		})
	}
	if resp.Accepted > 0 {
		p.announce(ctx, resp, requestID)
	}
	return resp, nil
}

// announce tells the indexer new publications exist. The rows are already
// committed and the periodic rebuild picks them up, so a failure is logged.
func (p *Publisher) announce(ctx context.Context, resp *ingestion.IngestResponse, requestID string) {
	if p.producer == nil {
		return
	}
	event := kafka.Event{
		Key: "publications",
		Value: indexer.PublicationsIngestedEvent{
			Accepted:   resp.Accepted,
			Duplicates: resp.Duplicates,
			RequestID:  requestID,
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish ingestion event, index refresh deferred to next scheduled rebuild",
			"accepted", resp.Accepted,
			"error", err,
		)
	}
}

func insert(ctx context.Context, stmt *sql.Stmt, d *index.Document) (bool, error) {
	coAuthors, err := json.Marshal(nonNilCoAuthors(d.CoAuthors))
	if err != nil {
		return false, fmt.Errorf("encoding co_authors: %w", err)
	}
	category, err := json.Marshal(d.Category)
	if err != nil {
		return false, fmt.Errorf("encoding category: %w", err)
	}
	res, err := stmt.ExecContext(ctx,
		d.Title,
		nullableString(d.PubURL),
		d.Date,
		d.CUAuthor,
		d.CUAuthorURL,
		string(coAuthors),
		d.Abstract,
		string(category),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

func nonNilCoAuthors(c []index.CoAuthor) []index.CoAuthor {
	if c == nil {
		return []index.CoAuthor{}
	}
	return c
}

// nullableString converts a Go string to a sql.NullString, treating the
// empty string as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
