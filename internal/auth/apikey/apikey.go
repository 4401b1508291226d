// Package apikey manages the API keys crawlers present to the ingestion
// service. Only the SHA-256 digest of a key is stored; the raw key is shown
// once, when it is created.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/postgres"
	"github.com/google/uuid"
)

const keyPrefix = "ssk_"

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// Key describes a crawler key. RateLimit is the number of ingestion requests
// allowed per rate-limit window; 0 means unlimited.
type Key struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Store keeps keys in the crawler_keys table created by
// postgres.EnsureSchema. Only the SHA-256 of a key is stored.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "crawler-keys"),
		now:    time.Now,
	}
}

// Validate looks up a presented raw key. Unknown and revoked keys yield
// ErrInvalidKey, keys past their expiry ErrExpiredKey.
func (s *Store) Validate(ctx context.Context, rawKey string) (*Key, error) {
	var (
		k         Key
		expiresAt sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, name, rate_limit, created_at, expires_at
		 FROM crawler_keys
		 WHERE key_hash = $1 AND NOT revoked`,
		HashKey(rawKey),
	).Scan(&k.ID, &k.Name, &k.RateLimit, &k.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying crawler key: %w", err)
	}
	if expiresAt.Valid {
		if !expiresAt.Time.After(s.now()) {
			return nil, ErrExpiredKey
		}
		k.ExpiresAt = &expiresAt.Time
	}
	return &k, nil
}

// Create stores a new key and returns the raw key with its metadata. A zero
// ttl creates a key that never expires.
func (s *Store) Create(ctx context.Context, name string, rateLimit int, ttl time.Duration) (string, *Key, error) {
	rawKey, err := generateRawKey()
	if err != nil {
		return "", nil, err
	}
	k := &Key{
		ID:        uuid.NewString(),
		Name:      name,
		RateLimit: rateLimit,
		CreatedAt: s.now().UTC(),
	}
	var expiry sql.NullTime
	if ttl > 0 {
		t := k.CreatedAt.Add(ttl)
		k.ExpiresAt = &t
		expiry = sql.NullTime{Time: t, Valid: true}
	}

	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO crawler_keys (id, key_hash, name, rate_limit, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		k.ID, HashKey(rawKey), k.Name, k.RateLimit, k.CreatedAt, expiry,
	)
	if err != nil {
		return "", nil, fmt.Errorf("creating crawler key: %w", err)
	}
	s.logger.Info("crawler key created", "id", k.ID, "name", name, "rate_limit", rateLimit)
	return rawKey, k, nil
}

// Revoke disables the key with the given id.
func (s *Store) Revoke(ctx context.Context, id string) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE crawler_keys SET revoked = TRUE WHERE id = $1 AND NOT revoked`, id)
	if err != nil {
		return fmt.Errorf("revoking crawler key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrInvalidKey
	}
	s.logger.Info("crawler key revoked", "id", id)
	return nil
}

// List returns the keys that have not been revoked, newest first.
func (s *Store) List(ctx context.Context) ([]Key, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, rate_limit, created_at, expires_at
		 FROM crawler_keys
		 WHERE NOT revoked
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing crawler keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var (
			k         Key
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.Name, &k.RateLimit, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning crawler key: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HashKey returns the hex SHA-256 digest stored for a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating crawler key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(b), nil
}
