// Package invoke runs single model invocations against provider CLIs,
// streaming partial text and returning a structured terminal outcome.
package invoke

import (
	"context"
	"time"
)

// Outcome classifies how an invocation settled.
type Outcome string

const (
	// OutcomeSuccess means the invocation ran to completion.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means the invocation timed out after streaming usable
	// text. Partial content is treated as usable everywhere except strict
	// completeness checks.
	OutcomePartial Outcome = "partial"
	// OutcomeError means the invocation produced no usable content.
	OutcomeError Outcome = "error"
)

// Request describes one model invocation.
type Request struct {
	Prompt         string
	Model          string // canonical catalog name
	SystemPrompt   string
	ToolsEnabled   bool   // false disables all built-in tools (pure reasoning)
	MaxTurns       int    // 0 = CLI default; 1 = single response, no tool loops
	PermissionMode string // claude --permission-mode value, empty = CLI default
	Timeout        time.Duration

	// OnText, if set, is called with the full accumulated text after every
	// streamed batch. Callbacks run on the invocation's reader goroutine.
	OnText func(full string)
}

// Result is the settlement of an invocation. Expected failure conditions
// (timeout, rate limit, non-zero exit) are reported here, not as errors.
type Result struct {
	Content  string
	Outcome  Outcome
	Error    string // cause when Outcome != success
	Stderr   string // excerpt of captured stderr
	CostUSD  float64
	Tokens   int
	Duration time.Duration
}

// Usable reports whether the result carries content worth feeding forward.
func (r *Result) Usable() bool {
	if r == nil {
		return false
	}
	return (r.Outcome == OutcomeSuccess || r.Outcome == OutcomePartial) && r.Content != ""
}

// Invoker executes model invocations. The nil-result/error return shape is
// reserved for cancellation: a cancelled invocation yields (nil, ctx.Err()).
// Everything else — including timeouts and process failures — settles with
// a non-nil Result.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}
