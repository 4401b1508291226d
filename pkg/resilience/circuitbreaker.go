// Package resilience provides the fault-tolerance helpers used around the
// platform's external dependencies: a circuit breaker for the Redis result
// cache, retry with backoff for Kafka publishing and consumption, and a
// deadline wrapper for individual cache operations.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig controls when the breaker trips and how it recovers.
//
// IsFailure decides which errors count against the dependency. The default
// counts every error except context.Canceled.
//
// OnStateChange runs with the breaker lock held and must not call back into
// the breaker.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	IsFailure           func(error) bool
	OnStateChange       func(name string, to State)
}

// BreakerStats is a point-in-time view of a breaker.
type BreakerStats struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// CircuitBreaker opens after FailureThreshold consecutive failures, rejects
// calls for ResetTimeout, then lets HalfOpenMaxRequests trial calls through. A
// successful trial closes it; a failed one opens it again.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trials   int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn unless the breaker is open and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{State: cb.state, ConsecutiveFailures: cb.failures, OpenedAt: cb.openedAt}
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		cb.trials = 1
		cb.logger.Info("circuit half-open, probing", "after", cb.cfg.ResetTimeout)
	case StateHalfOpen:
		if cb.trials >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s (trial in flight)", ErrCircuitOpen, cb.name)
		}
		cb.trials++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.cfg.IsFailure(err) {
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.failures = 0
			cb.trials = 0
			cb.transition(StateClosed)
			cb.logger.Info("circuit closed, dependency recovered")
		}
		return
	}
	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
			cb.logger.Warn("circuit opened",
				"consecutive_failures", cb.failures,
				"threshold", cb.cfg.FailureThreshold,
				"error", err,
			)
		}
	case StateHalfOpen:
		cb.open()
		cb.logger.Warn("circuit re-opened, trial call failed", "error", err)
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.trials = 0
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, to)
	}
}
