package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkheadDefaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})
	if cap(b.sem) != 4 {
		t.Errorf("capacity = %d, want 4", cap(b.sem))
	}
}

func TestBulkheadExecute(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})

	err := b.Execute(context.Background(), func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if b.InFlight() != 0 {
		t.Errorf("InFlight() = %d after release, want 0", b.InFlight())
	}
}

func TestBulkheadRejectsWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = b.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := b.Execute(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Execute() error = %v, want ErrBulkheadFull", err)
	}
	if b.Rejected() != 1 {
		t.Errorf("Rejected() = %d, want 1", b.Rejected())
	}

	close(release)
}

func TestBulkheadWaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Second})
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = b.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	err := b.Execute(context.Background(), func(context.Context) error { return nil })
	if err != nil {
		t.Errorf("Execute() error = %v, want nil after slot frees", err)
	}
}

func TestBulkheadCapsConcurrency(t *testing.T) {
	const limit = 3
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: limit, MaxWait: time.Second})

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(context.Context) error {
				now := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > limit {
		t.Errorf("peak concurrency = %d, want <= %d", p, limit)
	}
}

func TestBulkheadContextCanceledWhileWaiting(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Minute})
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = b.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Execute(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}
