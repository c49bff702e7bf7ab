package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// BulkheadConfig configures the concurrency cap.
type BulkheadConfig struct {
	// MaxConcurrent is the number of operations allowed in flight.
	// Default: 4
	MaxConcurrent int

	// MaxWait is how long an operation may wait for a slot before
	// being rejected. Default: 0 (reject immediately).
	MaxWait time.Duration
}

// Bulkhead caps concurrent operations. It protects backends from a
// single orchestration round fanning out an unbounded number of tool
// executions.
type Bulkhead struct {
	config   BulkheadConfig
	sem      chan struct{}
	rejected atomic.Int64
}

// NewBulkhead creates a bulkhead, applying defaults.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Execute runs op once a slot is free, or returns ErrBulkheadFull when
// none frees up within MaxWait.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	select {
	case b.sem <- struct{}{}:
	default:
		if b.config.MaxWait <= 0 {
			b.rejected.Add(1)
			return ErrBulkheadFull
		}
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()

		select {
		case b.sem <- struct{}{}:
		case <-timer.C:
			b.rejected.Add(1)
			return ErrBulkheadFull
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() { <-b.sem }()

	return op(ctx)
}

// InFlight returns the number of operations currently holding a slot.
func (b *Bulkhead) InFlight() int {
	return len(b.sem)
}

// Rejected returns how many operations were turned away.
func (b *Bulkhead) Rejected() int64 {
	return b.rejected.Load()
}
