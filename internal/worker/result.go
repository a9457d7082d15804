// Package worker executes one wave of plan tasks concurrently, staggering
// launches, classifying outcomes, and retrying failed critical tasks.
package worker

import (
	"time"

	"github.com/thunderclaude/orchestrator/internal/invoke"
)

// Status classifies one task attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Result is the outcome of one task attempt. A retried task produces a
// second Result that supersedes the first in the results map.
type Result struct {
	TaskID   string
	Model    string
	Status   Status
	Content  string
	Error    string
	CostUSD  float64
	Tokens   int
	Duration time.Duration
	FollowUp bool // task was spawned by the gap-check pass
}

// Usable reports whether the result carries content worth synthesizing.
// Partial results count: they already contain streamed text.
func (r Result) Usable() bool {
	return (r.Status == StatusSuccess || r.Status == StatusPartial) && r.Content != ""
}

// Classify converts an invocation settlement into a worker result.
// A nil invocation result means the run was cancelled (or the invoker
// failed before producing anything); aborted distinguishes the two.
func Classify(taskID, modelName string, res *invoke.Result, err error, aborted bool) Result {
	out := Result{TaskID: taskID, Model: modelName}

	if res == nil {
		out.Status = StatusError
		if aborted {
			out.Error = "Cancelled"
		} else if err != nil {
			out.Error = err.Error()
		} else {
			out.Error = "no result from invocation"
		}
		return out
	}

	out.Content = res.Content
	out.CostUSD = res.CostUSD
	out.Tokens = res.Tokens
	out.Duration = res.Duration

	switch res.Outcome {
	case invoke.OutcomePartial:
		out.Status = StatusPartial
		out.Error = res.Error
	case invoke.OutcomeSuccess:
		if res.Content == "" {
			out.Status = StatusError
			out.Error = "model returned empty response"
		} else {
			out.Status = StatusSuccess
		}
	default:
		out.Status = StatusError
		out.Error = res.Error
		if out.Error == "" && res.Stderr != "" {
			out.Error = res.Stderr
		}
	}
	return out
}
