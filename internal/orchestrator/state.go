// Package orchestrator drives a query through planning, optional plan
// review, wave execution, gap analysis, synthesis, and a quality gate,
// publishing immutable snapshots on every transition.
package orchestrator

import (
	"time"

	"github.com/thunderclaude/orchestrator/internal/plan"
	"github.com/thunderclaude/orchestrator/internal/worker"
)

// Phase identifies where a run is in its lifecycle.
type Phase string

const (
	PhasePlanning     Phase = "planning"
	PhaseReviewing    Phase = "reviewing"
	PhaseExecuting    Phase = "executing"
	PhaseGapCheck     Phase = "gap-check"
	PhaseFollowUp     Phase = "follow-up"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseRevision     Phase = "revision"
	PhaseDone         Phase = "done"
	PhaseError        Phase = "error"
)

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError
}

// Review describes a plan awaiting approval.
type Review struct {
	Reasoning string
	Tasks     []plan.Task
}

// Final is the terminal payload of a successful run.
type Final struct {
	Content  string
	Quality  *QualityReport // nil when the gate was skipped
	Failed   []string       // ids of tasks that produced nothing usable
	CostUSD  float64
	Tokens   int
	Duration time.Duration
}

// Snapshot is an immutable view of a run, deep-copied on emit so observers
// may retain it across phases.
type Snapshot struct {
	Run     string
	Phase   Phase
	Query   string
	Plan    *plan.Plan
	Wave    int // 1-based index of the wave in flight, 0 outside execution
	Waves   int
	Active  map[string]string        // task id -> resolved model, in flight now
	Results map[string]worker.Result // settled task results
	Review  *Review                  // set while reviewing
	Final   *Final                   // set when done
	Failure string                   // set when the run ends in error
}

// snapshotLocked builds a deep copy of the runner's state.
// Caller must hold r.mu.
func (r *Runner) snapshotLocked() *Snapshot {
	s := &Snapshot{
		Run:     r.runID,
		Phase:   r.phase,
		Query:   r.query,
		Wave:    r.wave,
		Waves:   r.waves,
		Active:  make(map[string]string, len(r.active)),
		Results: make(map[string]worker.Result, len(r.results)),
		Failure: r.failure,
	}
	if r.plan != nil {
		s.Plan = r.plan.Clone()
	}
	for id, m := range r.active {
		s.Active[id] = m
	}
	for id, res := range r.results {
		s.Results[id] = res
	}
	if r.review != nil {
		cp := *r.review
		cp.Tasks = append([]plan.Task(nil), r.review.Tasks...)
		s.Review = &cp
	}
	if r.final != nil {
		cp := *r.final
		cp.Failed = append([]string(nil), r.final.Failed...)
		if r.final.Quality != nil {
			q := *r.final.Quality
			q.Issues = append([]string(nil), r.final.Quality.Issues...)
			cp.Quality = &q
		}
		s.Final = &cp
	}
	return s
}
