// Package postgres wraps database/sql with the lib/pq driver. It owns the
// schema shared by the services: stored publications, crawler keys and
// analytics snapshots.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	_ "github.com/lib/pq"
)

// schemaLockID serialises EnsureSchema across services starting together.
const schemaLockID int64 = 7_302_114_001

// schema is idempotent. pub_url is NULL for publications without one so the
// unique constraint only covers real URLs.
const schema = `
CREATE TABLE IF NOT EXISTS publications (
	id            BIGSERIAL PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	pub_url       TEXT UNIQUE,
	date          TEXT NOT NULL DEFAULT '',
	cu_author     TEXT NOT NULL DEFAULT '',
	cu_author_url TEXT NOT NULL DEFAULT '',
	abstract      TEXT NOT NULL DEFAULT '',
	category      JSONB NOT NULL DEFAULT '[]'::jsonb,
	co_authors    JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS crawler_keys (
	id         UUID PRIMARY KEY,
	key_hash   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	rate_limit INTEGER NOT NULL DEFAULT 0,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_analytics_snapshots_captured_at ON analytics_snapshots(captured_at DESC);
`

type Client struct {
	DB *sql.DB
}

// New opens a pool sized from cfg and verifies it with a ping.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return &Client{DB: db}, nil
}

// FromDB wraps an already opened handle.
func FromDB(db *sql.DB) *Client {
	return &Client{DB: db}
}

// EnsureSchema creates the platform's tables if they are missing. It holds a
// transaction-scoped advisory lock so concurrent starts do not race.
func (c *Client) EnsureSchema(ctx context.Context) error {
	err := c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
			return fmt.Errorf("acquiring schema lock: %w", err)
		}
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Default().With("component", "postgres").Debug("schema ensured")
	return nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// InTx runs fn in a transaction, committing on nil and rolling back on error.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
