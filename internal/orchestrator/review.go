package orchestrator

import (
	"context"
	"sync"
)

// reviewGate blocks a run on a single approve-or-reject decision.
// The first verdict wins; later calls are no-ops.
type reviewGate struct {
	once    sync.Once
	verdict chan bool
}

func newReviewGate() *reviewGate {
	return &reviewGate{verdict: make(chan bool, 1)}
}

func (g *reviewGate) approve() {
	g.once.Do(func() { g.verdict <- true })
}

func (g *reviewGate) reject() {
	g.once.Do(func() { g.verdict <- false })
}

// wait blocks until a verdict arrives or the context is cancelled.
func (g *reviewGate) wait(ctx context.Context) (bool, error) {
	select {
	case approved := <-g.verdict:
		return approved, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
