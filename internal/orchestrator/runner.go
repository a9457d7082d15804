package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/thunderclaude/orchestrator/internal/config"
	"github.com/thunderclaude/orchestrator/internal/events"
	"github.com/thunderclaude/orchestrator/internal/failover"
	"github.com/thunderclaude/orchestrator/internal/invoke"
	"github.com/thunderclaude/orchestrator/internal/limiter"
	"github.com/thunderclaude/orchestrator/internal/model"
	"github.com/thunderclaude/orchestrator/internal/plan"
	"github.com/thunderclaude/orchestrator/internal/scheduler"
	"github.com/thunderclaude/orchestrator/internal/worker"
)

// Runner drives one query through planning, execution, and synthesis.
// A Runner is single-use: create a new one per run.
type Runner struct {
	cfg      *config.Config
	invoker  invoke.Invoker
	registry *failover.Registry
	engine   *worker.Engine
	procs    *invoke.ProcessManager // may be nil
	bus      *events.Bus            // may be nil

	runID string

	mu      sync.Mutex
	started bool
	query   string
	phase   Phase
	plan    *plan.Plan
	wave    int
	waves   int
	active  map[string]string
	results map[string]worker.Result
	review  *Review
	final   *Final
	failure string
	gate    *reviewGate

	// Direct planner/synthesis/checker invocations are accounted here;
	// worker results carry their own cost.
	extraCost   float64
	extraTokens int

	cancelOnce sync.Once
	cancelFn   context.CancelFunc
}

// NewRunner wires a runner over shared infrastructure. The limiter is
// shared so concurrent runs stay inside one global worker budget.
func NewRunner(cfg *config.Config, inv invoke.Invoker, reg *failover.Registry, lim *limiter.Limiter, procs *invoke.ProcessManager, bus *events.Bus) *Runner {
	r := &Runner{
		cfg:      cfg,
		invoker:  inv,
		registry: reg,
		procs:    procs,
		bus:      bus,
		runID:    uuid.NewString(),
		phase:    PhasePlanning,
		active:   make(map[string]string),
		results:  make(map[string]worker.Result),
	}
	r.engine = worker.NewEngine(inv, reg, lim, worker.Options{
		Stagger: cfg.Stagger(),
		Timeout: cfg.WorkerTimeout(),
		Hooks: worker.Hooks{
			OnTaskStart:  r.onTaskStart,
			OnTaskText:   r.onTaskText,
			OnTaskResult: r.onTaskResult,
		},
	})
	return r
}

// ID returns the run's unique identifier.
func (r *Runner) ID() string { return r.runID }

// Snapshot returns a deep copy of the run's current state.
func (r *Runner) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Run executes the query to a terminal snapshot. The returned error is
// non-nil only when the context was cancelled; everything else, including
// a run ending in the error phase, settles in the snapshot.
func (r *Runner) Run(ctx context.Context, query string) (*Snapshot, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil, errors.New("runner already used")
	}
	r.started = true
	r.query = query
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelFn = cancel
	r.mu.Unlock()
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ERROR: orchestration panicked: %v", rec)
			r.fail(fmt.Sprintf("internal error: %v", rec))
		}
	}()

	r.run(ctx, query)

	r.mu.Lock()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return snap, err
	}
	return snap, nil
}

// Cancel stops the run: in-flight invocations are cancelled, spawned
// processes killed, and a pending review rejected. Idempotent.
func (r *Runner) Cancel() {
	r.cancelOnce.Do(func() {
		r.mu.Lock()
		gate := r.gate
		cancel := r.cancelFn
		r.mu.Unlock()

		if gate != nil {
			gate.reject()
		}
		if cancel != nil {
			cancel()
		}
		if r.procs != nil {
			r.procs.KillAll()
		}
	})
}

// Approve releases a plan held in the reviewing phase.
func (r *Runner) Approve() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseReviewing || r.gate == nil {
		return fmt.Errorf("no plan awaiting review (phase %s)", r.phase)
	}
	r.gate.approve()
	return nil
}

// Reject discards a plan held in the reviewing phase, ending the run.
func (r *Runner) Reject() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseReviewing || r.gate == nil {
		return fmt.Errorf("no plan awaiting review (phase %s)", r.phase)
	}
	r.gate.reject()
	return nil
}

func (r *Runner) run(ctx context.Context, query string) {
	started := time.Now()

	p, err := r.planPhase(ctx, query)
	if err != nil {
		r.fail(failMessage(ctx, err))
		return
	}
	r.mu.Lock()
	r.plan = p
	r.mu.Unlock()

	if len(p.Tasks) > 1 && r.cfg.RequireApproval {
		approved, err := r.reviewPhase(ctx, p)
		if err != nil {
			r.fail("Cancelled")
			return
		}
		if !approved {
			r.fail("plan rejected")
			return
		}
	}

	results := r.executePhase(ctx, p)
	if ctx.Err() != nil {
		r.fail("Cancelled")
		return
	}

	if msg := r.fatalFailure(p, results); msg != "" {
		r.fail(msg)
		return
	}

	if r.cfg.Mode == config.ModeDeep {
		if followUps := r.gapPhase(ctx, p, results); len(followUps) > 0 {
			r.followUpPhase(ctx, p, followUps, results)
		}
		if ctx.Err() != nil {
			r.fail("Cancelled")
			return
		}
	}

	var content string
	var quality *QualityReport

	if len(p.Tasks) == 1 {
		// Single-task runs deliver the worker output directly; there is
		// nothing to synthesize and the worker already did the whole job.
		res := results[p.Tasks[0].ID]
		if !res.Usable() {
			r.fail("task produced no usable output:\n" + worker.FailureReport(p.Tasks, results))
			return
		}
		content = res.Content
	} else {
		content = r.synthesisPhase(ctx, p, results)
		if ctx.Err() != nil {
			r.fail("Cancelled")
			return
		}
		content, quality = r.qualityPhase(ctx, query, p, results, content)
		if ctx.Err() != nil {
			r.fail("Cancelled")
			return
		}
	}

	r.finish(p, results, content, quality, started)
}

// planPhase asks the planner for a task decomposition, retrying once on
// either an invocation failure or unparseable output.
func (r *Runner) planPhase(ctx context.Context, query string) (*plan.Plan, error) {
	r.setPhase(PhasePlanning)

	prompt := planningPrompt(query, r.cfg.MaxTasks, r.cfg.Mode == config.ModeDeep)
	req := invoke.Request{
		Prompt:       prompt,
		Model:        r.cfg.PlannerModel,
		ToolsEnabled: false,
		MaxTurns:     1,
		Timeout:      r.cfg.PlanningTimeout(),
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		raw, err := r.callModel(ctx, req)
		if err != nil {
			lastErr = err
			log.Printf("WARNING: planning attempt %d failed: %v", attempt+1, err)
			continue
		}
		p, err := plan.Parse(raw, r.cfg.MaxTasks)
		if err != nil {
			lastErr = err
			log.Printf("WARNING: planning attempt %d produced unusable output: %v", attempt+1, err)
			continue
		}
		if _, err := scheduler.Validate(p.Tasks); err != nil {
			// Advisory: wave resolution degrades on cycles instead of
			// refusing the plan.
			log.Printf("WARNING: %v", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("planning failed: %w", lastErr)
}

// reviewPhase holds the run until the plan is approved or rejected.
func (r *Runner) reviewPhase(ctx context.Context, p *plan.Plan) (bool, error) {
	gate := newReviewGate()

	r.mu.Lock()
	r.gate = gate
	r.review = &Review{Reasoning: p.Reasoning, Tasks: append([]plan.Task(nil), p.Tasks...)}
	r.phase = PhaseReviewing
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)

	approved, err := gate.wait(ctx)

	r.mu.Lock()
	r.gate = nil
	r.review = nil
	r.mu.Unlock()

	return approved, err
}

// executePhase runs the plan wave by wave, feeding each wave the settled
// outputs of the ones before it.
func (r *Runner) executePhase(ctx context.Context, p *plan.Plan) map[string]worker.Result {
	waves := scheduler.ResolveWaves(p.Tasks)

	r.mu.Lock()
	r.phase = PhaseExecuting
	r.waves = len(waves)
	r.mu.Unlock()

	results := make(map[string]worker.Result, len(p.Tasks))
	for i, wave := range waves {
		if ctx.Err() != nil {
			break
		}
		r.mu.Lock()
		r.wave = i + 1
		snap := r.snapshotLocked()
		r.mu.Unlock()
		r.publish(snap)

		for id, res := range r.engine.ExecuteWave(ctx, wave, results) {
			results[id] = res
		}
	}
	return results
}

// fatalFailure returns a terminal error message when the settled results
// cannot support any answer: every critical task failed, or no task at all
// produced usable output. Partial output counts as usable unless strict
// critical accounting is on.
func (r *Runner) fatalFailure(p *plan.Plan, results map[string]worker.Result) string {
	usable := func(t plan.Task) bool {
		res, ok := results[t.ID]
		if !ok {
			return false
		}
		if t.Critical() && r.cfg.StrictCritical {
			return res.Status == worker.StatusSuccess && res.Content != ""
		}
		return res.Usable()
	}

	if criticals := p.CriticalTasks(); len(criticals) > 0 {
		anyUsable := false
		for _, t := range criticals {
			if usable(t) {
				anyUsable = true
				break
			}
		}
		if !anyUsable {
			return "all critical tasks failed:\n" + worker.FailureReport(criticals, results)
		}
		return ""
	}

	for _, t := range p.Tasks {
		if usable(t) {
			return ""
		}
	}
	return "all tasks failed:\n" + worker.FailureReport(p.Tasks, results)
}

// gapPhase asks a fast model whether the outputs leave the query
// under-covered. Models currently cooling down are withheld from the
// proposal so follow-ups land on providers that can actually run them.
func (r *Runner) gapPhase(ctx context.Context, p *plan.Plan, results map[string]worker.Result) []plan.Task {
	r.setPhase(PhaseGapCheck)

	cooling := make(map[string]bool)
	for _, name := range r.registry.CoolingDown() {
		cooling[name] = true
	}
	var available []string
	for _, name := range model.Names() {
		if !cooling[name] {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		available = model.Names()
	}

	checker := model.Fastest(model.ProviderOf(r.cfg.PlannerModel))
	raw, err := r.callModel(ctx, invoke.Request{
		Prompt:       gapCheckPrompt(r.query, p, results, available, maxFollowUps),
		Model:        checker,
		ToolsEnabled: false,
		MaxTurns:     1,
		Timeout:      r.cfg.GapCheckTimeout(),
	})
	if err != nil {
		log.Printf("WARNING: gap check failed, skipping: %v", err)
		return nil
	}

	followUps := parseFollowUps(raw, p)
	if len(followUps) > 0 {
		log.Printf("gap check proposed %d follow-up task(s)", len(followUps))
	}
	return followUps
}

// followUpPhase appends the gap check's tasks to the plan and runs them as
// one flat wave over the settled results.
func (r *Runner) followUpPhase(ctx context.Context, p *plan.Plan, followUps []plan.Task, results map[string]worker.Result) {
	r.mu.Lock()
	p.Tasks = append(p.Tasks, followUps...)
	r.phase = PhaseFollowUp
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)

	for id, res := range r.engine.ExecuteWave(ctx, followUps, results) {
		res.FollowUp = true
		results[id] = res
		r.mu.Lock()
		r.results[id] = res
		r.mu.Unlock()
	}
}

// synthesisPhase combines the task outputs into one answer, falling back
// to labeled concatenation when the synthesizer itself fails.
func (r *Runner) synthesisPhase(ctx context.Context, p *plan.Plan, results map[string]worker.Result) string {
	r.setPhase(PhaseSynthesizing)

	content, err := r.callModel(ctx, invoke.Request{
		Prompt:       synthesisPrompt(r.query, p, results),
		Model:        r.cfg.PlannerModel,
		ToolsEnabled: false,
		Timeout:      r.cfg.SynthesisTimeout(),
	})
	if err != nil {
		log.Printf("WARNING: synthesis failed, falling back to concatenation: %v", err)
		return concatenate(p, results)
	}
	return content
}

// qualityPhase scores the synthesis and revises it at most once. A second
// check after the revision records the final score but never triggers
// another revision. The gate fails open: a broken checker passes the
// answer through rather than blocking delivery.
func (r *Runner) qualityPhase(ctx context.Context, query string, p *plan.Plan, results map[string]worker.Result, content string) (string, *QualityReport) {
	if !r.cfg.QualityGate || utf8.RuneCountInString(content) < qualityMinRunes {
		return content, nil
	}

	rep := r.checkQuality(ctx, query, content)
	if rep == nil || rep.Pass() {
		return content, rep
	}

	r.setPhase(PhaseRevision)
	log.Printf("quality gate scored %d, revising", rep.Score)

	revised, err := r.callModel(ctx, invoke.Request{
		Prompt:       revisionPrompt(query, p, results, content, rep.Issues),
		Model:        r.cfg.PlannerModel,
		ToolsEnabled: false,
		Timeout:      r.cfg.SynthesisTimeout(),
	})
	if err != nil {
		log.Printf("WARNING: revision failed, keeping original synthesis: %v", err)
		return content, rep
	}

	if recheck := r.checkQuality(ctx, query, revised); recheck != nil {
		rep = recheck
	}
	return revised, rep
}

// checkQuality runs one scoring pass. Returns nil when the check cannot
// be completed.
func (r *Runner) checkQuality(ctx context.Context, query, content string) *QualityReport {
	checker := model.Fastest(model.ProviderOf(r.cfg.PlannerModel))
	raw, err := r.callModel(ctx, invoke.Request{
		Prompt:       qualityPrompt(query, content),
		Model:        checker,
		ToolsEnabled: false,
		MaxTurns:     1,
		Timeout:      r.cfg.QualityTimeout(),
	})
	if err != nil {
		log.Printf("WARNING: quality check failed: %v", err)
		return nil
	}
	rep, err := parseQualityReport(raw)
	if err != nil {
		log.Printf("WARNING: unusable quality verdict: %v", err)
		return nil
	}
	return rep
}

// callModel resolves the request's model through the failover registry,
// runs one invocation, and feeds the settlement back to the registry.
func (r *Runner) callModel(ctx context.Context, req invoke.Request) (string, error) {
	resolved := r.registry.Resolve(req.Model)
	req.Model = resolved

	res, err := r.invoker.Invoke(ctx, req)
	if res == nil {
		if err != nil {
			return "", err
		}
		return "", errors.New("no result from invocation")
	}

	r.mu.Lock()
	r.extraCost += res.CostUSD
	r.extraTokens += res.Tokens
	r.mu.Unlock()

	if res.Usable() {
		r.registry.ReportSuccess(resolved)
		return res.Content, nil
	}

	reason := res.Error
	if reason == "" {
		reason = res.Stderr
	}
	if reason == "" {
		reason = "empty response"
	}
	if failover.IsRateLimited(reason) {
		r.registry.ReportFailure(resolved, reason)
	}
	return "", fmt.Errorf("model %s: %s", resolved, reason)
}

// finish settles the run in the done phase with aggregate accounting.
func (r *Runner) finish(p *plan.Plan, results map[string]worker.Result, content string, quality *QualityReport, started time.Time) {
	final := &Final{
		Content:  content,
		Quality:  quality,
		Duration: time.Since(started),
	}
	for _, t := range p.Tasks {
		res, ok := results[t.ID]
		if !ok || !res.Usable() {
			final.Failed = append(final.Failed, t.ID)
		}
		final.CostUSD += res.CostUSD
		final.Tokens += res.Tokens
	}

	r.mu.Lock()
	final.CostUSD += r.extraCost
	final.Tokens += r.extraTokens
	r.final = final
	r.phase = PhaseDone
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)
}

// fail settles the run in the error phase. No-op after a terminal phase.
func (r *Runner) fail(msg string) {
	r.mu.Lock()
	if r.phase.Terminal() {
		r.mu.Unlock()
		return
	}
	r.failure = msg
	r.phase = PhaseError
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)
}

func (r *Runner) setPhase(p Phase) {
	r.mu.Lock()
	if r.phase.Terminal() {
		r.mu.Unlock()
		return
	}
	r.phase = p
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)
}

func (r *Runner) publish(snap *Snapshot) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.TopicState, events.StateEvent{Run: r.runID, Snapshot: snap})
}

// Engine hooks. Settlements arriving after the run already ended (a worker
// losing the cancellation race) are dropped rather than mutating a
// terminal snapshot.

func (r *Runner) onTaskStart(taskID, modelName string) {
	r.mu.Lock()
	if r.phase.Terminal() {
		r.mu.Unlock()
		return
	}
	r.active[taskID] = modelName
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)
}

func (r *Runner) onTaskText(taskID, text string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.TopicStream, events.StreamEvent{Run: r.runID, TaskID: taskID, Text: text})
}

func (r *Runner) onTaskResult(res worker.Result) {
	r.mu.Lock()
	if r.phase.Terminal() {
		r.mu.Unlock()
		return
	}
	delete(r.active, res.TaskID)
	r.results[res.TaskID] = res
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)
}

// concatenate is the synthesis fallback: usable outputs joined under their
// task descriptions.
func concatenate(p *plan.Plan, results map[string]worker.Result) string {
	var b strings.Builder
	for _, t := range p.Tasks {
		res, ok := results[t.ID]
		if !ok || !res.Usable() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n%s", t.Description, res.Content)
	}
	return b.String()
}

func failMessage(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "Cancelled"
	}
	return err.Error()
}
