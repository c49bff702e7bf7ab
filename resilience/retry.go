package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay before the first retry; each further retry
	// doubles it. Default: 200ms
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 5s
	MaxDelay time.Duration

	// NoJitter disables the random delay variance. Jitter is on by
	// default to avoid synchronized retries against the same
	// authorization server.
	NoJitter bool

	// Classify decides whether an error is worth retrying.
	// Default: IsTransient, which treats denials and cancellations
	// as final.
	Classify func(err error) bool

	// OnRetry is invoked before each retry with the attempt number just
	// failed, its error, and the upcoming delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-attempts transient failures with exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry handler, applying defaults.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 200 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Classify == nil {
		config.Classify = IsTransient
	}
	return &Retry{config: config}
}

// Execute runs op until it succeeds, fails non-transiently, exhausts
// the attempt budget, or the context ends. The last error is returned
// unwrapped so callers keep the taxonomy classification.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !r.config.Classify(lastErr) {
			return lastErr
		}
		if attempt >= r.config.MaxAttempts {
			return lastErr
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// delay computes the backoff for the retry following the given attempt.
func (r *Retry) delay(attempt int) time.Duration {
	delay := r.config.BaseDelay << (attempt - 1)
	if delay > r.config.MaxDelay || delay <= 0 {
		delay = r.config.MaxDelay
	}
	if !r.config.NoJitter {
		// Up to 25% variance.
		delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
	}
	return delay
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
