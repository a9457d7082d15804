// Package limiter provides a bounded-parallelism gate for model invocations.
package limiter

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter runs functions under a fixed concurrency budget. Work submitted
// while the budget is exhausted queues and runs in arrival order; the
// semaphore hands freed slots to waiters FIFO, so there is no priority
// reordering among queued items.
type Limiter struct {
	sem *semaphore.Weighted
}

// New creates a Limiter with the given concurrency budget.
// Budgets below 1 are clamped to 1.
func New(budget int) *Limiter {
	if budget < 1 {
		budget = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(budget))}
}

// Do runs fn once a slot is free, blocking until then. If the context is
// cancelled while waiting, fn never runs and the context error is returned.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn()
}
