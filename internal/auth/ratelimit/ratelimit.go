// Package ratelimit implements a per-key token bucket used to throttle
// crawler ingestion requests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter gives each key limit tokens per window, refilled continuously.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	now     func() time.Time
}

// New creates a Limiter. Idle buckets are evicted until ctx is done.
func New(ctx context.Context, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		window:  window,
		now:     time.Now,
	}
	go l.evictLoop(ctx)
	return l
}

// Allow consumes one token for key. A limit of zero or less disables
// limiting for that key.
func (l *Limiter) Allow(key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: float64(limit - 1), lastCheck: now}
		return true
	}

	rate := float64(limit) / l.window.Seconds()
	b.tokens += now.Sub(b.lastCheck).Seconds() * rate
	b.lastCheck = now
	if b.tokens > float64(limit) {
		b.tokens = float64(limit)
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter is how long a caller with the given limit waits for one token.
func (l *Limiter) RetryAfter(limit int) time.Duration {
	if limit <= 0 {
		return 0
	}
	return l.window / time.Duration(limit)
}

func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, b := range l.buckets {
		if b.lastCheck.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict()
		}
	}
}
