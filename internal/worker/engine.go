package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thunderclaude/orchestrator/internal/failover"
	"github.com/thunderclaude/orchestrator/internal/invoke"
	"github.com/thunderclaude/orchestrator/internal/limiter"
	"github.com/thunderclaude/orchestrator/internal/plan"
)

// DefaultStagger is the launch delay between consecutive tasks in a wave.
// Spreading burst load keeps providers with low per-minute quotas from
// rate-limiting an entire wave at once.
const DefaultStagger = 800 * time.Millisecond

// Hooks are callbacks into the state machine, invoked as tasks progress.
// Any field may be nil.
type Hooks struct {
	OnTaskStart  func(taskID, model string)
	OnTaskText   func(taskID, text string)
	OnTaskResult func(res Result)
}

// Engine runs waves of tasks through the invoker under the shared limiter,
// reporting every settlement to the failover registry so it self-heals.
type Engine struct {
	invoker  invoke.Invoker
	registry *failover.Registry
	limiter  *limiter.Limiter
	stagger  time.Duration
	timeout  time.Duration
	hooks    Hooks
}

// Options configure an Engine.
type Options struct {
	Stagger time.Duration // 0 = DefaultStagger
	Timeout time.Duration // per-task invocation budget; 0 = invoker default
	Hooks   Hooks
}

// NewEngine creates a wave execution engine.
func NewEngine(inv invoke.Invoker, reg *failover.Registry, lim *limiter.Limiter, opts Options) *Engine {
	stagger := opts.Stagger
	if stagger == 0 {
		stagger = DefaultStagger
	}
	return &Engine{
		invoker:  inv,
		registry: reg,
		limiter:  lim,
		stagger:  stagger,
		timeout:  opts.Timeout,
		hooks:    opts.Hooks,
	}
}

// ExecuteWave runs one wave to settlement, then retries errored critical
// tasks exactly once as a second mini-wave. Partial results are accepted
// as-is and never retried; they already contain usable content. The
// returned map is keyed by task id, retry results superseding originals.
func (e *Engine) ExecuteWave(ctx context.Context, tasks []plan.Task, prior map[string]Result) map[string]Result {
	results := e.runWave(ctx, tasks, prior)

	if ctx.Err() != nil {
		return results
	}

	var retries []plan.Task
	for _, t := range tasks {
		if t.Critical() && results[t.ID].Status == StatusError {
			retries = append(retries, t)
		}
	}
	if len(retries) > 0 {
		log.Printf("retrying %d failed critical task(s)", len(retries))
		for id, res := range e.runWave(ctx, retries, prior) {
			results[id] = res
		}
	}

	return results
}

// runWave launches every task concurrently with staggered starts and waits
// for all of them to settle. Individual failures are captured in results,
// never returned as errors.
func (e *Engine) runWave(ctx context.Context, tasks []plan.Task, prior map[string]Result) map[string]Result {
	results := make(map[string]Result, len(tasks))
	var mu sync.Mutex
	record := func(res Result) {
		mu.Lock()
		results[res.TaskID] = res
		mu.Unlock()
	}

	var g errgroup.Group
	for i, t := range tasks {
		delay := time.Duration(i) * e.stagger
		task := t
		g.Go(func() error {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					record(Classify(task.ID, task.AssignedModel, nil, ctx.Err(), true))
					return nil
				}
			}

			err := e.limiter.Do(ctx, func() error {
				record(e.runTask(ctx, task, prior))
				return nil
			})
			if err != nil {
				// Only the limiter's context wait can fail here.
				record(Classify(task.ID, task.AssignedModel, nil, err, true))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// runTask resolves the task's model through the failover registry, runs the
// invocation, classifies it, and feeds the settlement back to the registry.
func (e *Engine) runTask(ctx context.Context, task plan.Task, prior map[string]Result) Result {
	resolved := e.registry.Resolve(task.AssignedModel)

	if e.hooks.OnTaskStart != nil {
		e.hooks.OnTaskStart(task.ID, resolved)
	}

	req := invoke.Request{
		Prompt:         AugmentPrompt(task, prior),
		Model:          resolved,
		ToolsEnabled:   true,
		PermissionMode: "bypassPermissions",
		Timeout:        e.timeout,
	}
	if e.hooks.OnTaskText != nil {
		req.OnText = func(full string) { e.hooks.OnTaskText(task.ID, full) }
	}

	res, err := e.invoker.Invoke(ctx, req)
	out := Classify(task.ID, resolved, res, err, ctx.Err() != nil)

	switch {
	case out.Status == StatusError && failover.IsRateLimited(out.Error):
		e.registry.ReportFailure(resolved, out.Error)
	case out.Status != StatusError:
		e.registry.ReportSuccess(resolved)
	}

	if e.hooks.OnTaskResult != nil {
		e.hooks.OnTaskResult(out)
	}
	return out
}

// AugmentPrompt prepends the usable outputs of a task's prerequisites as
// labeled, divider-separated blocks.
func AugmentPrompt(task plan.Task, prior map[string]Result) string {
	var blocks []string
	for _, dep := range task.DependsOn {
		if res, ok := prior[dep]; ok && res.Usable() {
			blocks = append(blocks, fmt.Sprintf("### Output of task %q\n\n%s", dep, res.Content))
		}
	}
	if len(blocks) == 0 {
		return task.Prompt
	}

	var b strings.Builder
	b.WriteString("Context from completed prerequisite tasks:\n\n")
	b.WriteString(strings.Join(blocks, "\n\n---\n\n"))
	b.WriteString("\n\n---\n\nYour task:\n")
	b.WriteString(task.Prompt)
	return b.String()
}

// FailureReport renders a per-task failure summary for the terminal error
// phase, detailed enough to distinguish a transient outage from a bad plan.
func FailureReport(tasks []plan.Task, results map[string]Result) string {
	var b strings.Builder
	for _, t := range tasks {
		res, ok := results[t.ID]
		if !ok {
			fmt.Fprintf(&b, "- task %q (%s): never ran\n", t.ID, t.AssignedModel)
			continue
		}
		if res.Status == StatusError {
			fmt.Fprintf(&b, "- task %q (model %s): %s\n", t.ID, res.Model, res.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
