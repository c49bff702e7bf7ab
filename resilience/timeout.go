package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds outbound exchange and backend calls when the
// caller does not supply a budget.
const DefaultTimeout = 10 * time.Second

// WithTimeout runs op under a deadline derived from ctx. A deadline
// overrun is reported as ErrTimeout (transient, retryable); the
// parent's own cancellation or deadline is propagated as-is.
//
// The operation must honor its context; WithTimeout does not abandon
// a blocking op.
func WithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		d = DefaultTimeout
	}

	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := op(opCtx)
	if err == nil {
		return nil
	}

	// Distinguish our deadline from the parent's.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, d, err)
	}
	return err
}
