package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/errors"
)

// WithTimeout runs fn under a deadline and returns when either fn finishes
// or the deadline passes, even if fn ignores its context. A missed deadline
// matches both apperrors.ErrTimeout and context.DeadlineExceeded; a
// cancelled parent is reported as such.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()
	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s after %v: %w: %w", name, timeout, apperrors.ErrTimeout, context.DeadlineExceeded)
	}
}
