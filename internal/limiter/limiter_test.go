package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoRunsImmediatelyUnderBudget(t *testing.T) {
	l := New(2)
	ran := false
	err := l.Do(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !ran {
		t.Error("fn did not run")
	}
}

func TestDoPropagatesError(t *testing.T) {
	l := New(1)
	want := errors.New("task failed")
	if err := l.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Do error = %v, want %v", err, want)
	}
}

func TestConcurrencyNeverExceedsBudget(t *testing.T) {
	const budget = 3
	const workers = 20

	l := New(budget)
	var active, peak int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func() error {
				n := atomic.AddInt64(&active, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > budget {
		t.Errorf("peak concurrency = %d, want <= %d", got, budget)
	}
}

func TestDoCancelledWhileQueued(t *testing.T) {
	l := New(1)
	release := make(chan struct{})
	holding := make(chan struct{})

	go func() {
		_ = l.Do(context.Background(), func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Do(ctx, func() error {
		t.Error("fn ran despite cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do error = %v, want context.Canceled", err)
	}
	close(release)
}

func TestZeroBudgetClamped(t *testing.T) {
	l := New(0)
	if err := l.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("Do with clamped budget returned error: %v", err)
	}
}
