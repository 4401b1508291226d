package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls Retry. Zero fields take the defaults below.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns it at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, ctx ends or
// cfg.MaxAttempts is reached. Delays grow exponentially with jitter and are
// capped at cfg.MaxDelay.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: %w", name, perm.err)
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}
		delay := backoff(attempt, cfg)
		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_delay", delay,
			"error", lastErr,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted during backoff: %w", name, ctx.Err())
		}
	}
	return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	d += d * cfg.JitterFraction * (2*rand.Float64() - 1)
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	if d < 0 {
		d = float64(cfg.InitialDelay)
	}
	return time.Duration(d)
}
