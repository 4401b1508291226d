// Package redis wraps go-redis/v9 for the search result cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/redis/go-redis/v9"
)

// scanBatch is both the SCAN page size and the UNLINK batch size.
const scanBatch = 200

type Client struct {
	rdb *redis.Client
}

// NewClient connects and verifies the server with a PING. Socket read and
// write timeouts follow cfg.OpTimeout.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.OpTimeout > 0 {
		opts.ReadTimeout = cfg.OpTimeout
		opts.WriteTimeout = cfg.OpTimeout
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// FlushByPattern removes every key matching the glob pattern and returns how
// many were removed. Keys are collected per SCAN page and dropped with UNLINK.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		deleted int64
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Unlink(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("unlinking %d keys: %w", len(keys), err)
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// IsNilError reports whether err means the key does not exist.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
