package invoke

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Spawn-level resilience. Rate limits and timeouts are the failover
// registry's concern; this layer only guards the process-spawn boundary —
// a missing binary, fork failure, or a CLI that dies before producing a
// single line. Those are the only truly unexpected faults down here.

// spawnRetryPolicy returns the backoff used for transient spawn failures.
func spawnRetryPolicy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 5 * time.Second
	return backoff.WithContext(policy, ctx)
}

// BreakerRegistry manages per-CLI-binary circuit breakers. A binary that
// repeatedly fails to spawn trips its breaker and is not retried against
// until the breaker half-opens.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates an empty breaker registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for a binary, creating it on first use.
func (r *BreakerRegistry) Get(binary string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[binary]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        binary,
		MaxRequests: 3,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("spawn breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// User cancellation is not a binary fault.
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[binary] = cb
	return cb
}

// spawnWith starts a process through the binary's breaker with short
// exponential retry. start must create and start a fresh command each call.
func spawnWith(ctx context.Context, cb *gobreaker.CircuitBreaker, start func() error) error {
	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, start()
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	return backoff.Retry(operation, spawnRetryPolicy(ctx))
}
