package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/errors"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }

	fail := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return fail }); !errors.Is(err, fail) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker let call through: err=%v called=%v", err, called)
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errors.New("down") })
	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errors.New("still down") })
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "publish", RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("broker not ready")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryGivesUp(t *testing.T) {
	fail := errors.New("nope")
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		return fail
	})
	if !errors.Is(err, fail) {
		t.Fatalf("err = %v, want wrapped %v", err, fail)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "publish", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func() error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	if err := WithTimeout(context.Background(), 0, "noop", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("zero timeout: %v", err)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	attempts := 0
	bad := errors.New("unencodable event")
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return Permanent(bad)
	})
	if !errors.Is(err, bad) {
		t.Fatalf("err = %v, want %v", err, bad)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestWithTimeoutReportsAppTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), time.Millisecond, "redis-get", func(context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestCircuitBreakerIgnoresCancelledCallers(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 1})
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return context.Canceled })
	}
	if s := cb.Stats(); s.State != StateClosed || s.ConsecutiveFailures != 0 {
		t.Fatalf("stats = %+v, want closed with no failures", s)
	}
	_ = cb.Execute(func() error { return errors.New("i/o timeout") })
	if s := cb.Stats(); s.State != StateOpen || s.OpenedAt.IsZero() {
		t.Errorf("stats = %+v, want open", s)
	}
}
