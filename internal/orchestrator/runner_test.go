package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thunderclaude/orchestrator/internal/config"
	"github.com/thunderclaude/orchestrator/internal/failover"
	"github.com/thunderclaude/orchestrator/internal/invoke"
	"github.com/thunderclaude/orchestrator/internal/limiter"
	"github.com/thunderclaude/orchestrator/internal/plan"
	"github.com/thunderclaude/orchestrator/internal/worker"
)

// fakeInvoker scripts invocation outcomes by inspecting the request prompt.
type fakeInvoker struct {
	mu      sync.Mutex
	calls   []invoke.Request
	respond func(req invoke.Request) (*invoke.Result, error)
}

func (f *fakeInvoker) Invoke(ctx context.Context, req invoke.Request) (*invoke.Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeInvoker) countMatching(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c.Prompt, substr) {
			n++
		}
	}
	return n
}

// Prompt markers for routing scripted responses.
const (
	markPlanning  = "You are a task planner"
	markSynthesis = "Synthesize their outputs"
	markGapCheck  = "coverage gaps"
	markQuality   = "Score the answer"
	markRevision  = "Revise the answer"
)

func ok(content string) (*invoke.Result, error) {
	return &invoke.Result{Content: content, Outcome: invoke.OutcomeSuccess}, nil
}

func boom(msg string) (*invoke.Result, error) {
	return &invoke.Result{Outcome: invoke.OutcomeError, Error: msg}, nil
}

func twoTaskPlan(priority1, priority2 string) string {
	return fmt.Sprintf(`{
		"reasoning": "split into research and summary",
		"tasks": [
			{"id": "t1", "description": "research", "assignedModel": "sonnet", "prompt": "do t1", "priority": %q},
			{"id": "t2", "description": "summarize", "assignedModel": "gemini-2.5-pro", "prompt": "do t2", "priority": %q}
		],
		"synthesisHint": "merge both"
	}`, priority1, priority2)
}

func singleTaskPlan() string {
	return `{"reasoning": "one step", "tasks": [{"id": "t1", "description": "answer", "assignedModel": "sonnet", "prompt": "do t1", "priority": "critical"}], "synthesisHint": ""}`
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.RequireApproval = false
	cfg.QualityGate = false
	cfg.StaggerMS = 1 // keep wave launches near-instant in tests
	return cfg
}

func newTestRunner(cfg *config.Config, inv invoke.Invoker) *Runner {
	return NewRunner(cfg, inv, failover.New(), limiter.New(cfg.Concurrency), nil, nil)
}

func TestRunHappyPath(t *testing.T) {
	inv := &fakeInvoker{respond: func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(twoTaskPlan("critical", "standard"))
		case strings.Contains(req.Prompt, markSynthesis):
			return ok("the final answer")
		case strings.Contains(req.Prompt, "do t1"):
			return ok("t1 output")
		case strings.Contains(req.Prompt, "do t2"):
			return ok("t2 output")
		}
		return boom("unexpected call")
	}}

	r := newTestRunner(testConfig(), inv)
	snap, err := r.Run(context.Background(), "build me a report")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done (failure: %s)", snap.Phase, snap.Failure)
	}
	if snap.Final == nil || snap.Final.Content != "the final answer" {
		t.Errorf("Final = %+v, want synthesized content", snap.Final)
	}
	if len(snap.Results) != 2 {
		t.Errorf("Results has %d entries, want 2", len(snap.Results))
	}
	if len(snap.Final.Failed) != 0 {
		t.Errorf("Failed = %v, want none", snap.Final.Failed)
	}
}

func TestStandardTaskFailureDoesNotAbort(t *testing.T) {
	var synthesisPrompt string
	var mu sync.Mutex
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(twoTaskPlan("critical", "standard"))
		case strings.Contains(req.Prompt, markSynthesis):
			mu.Lock()
			synthesisPrompt = req.Prompt
			mu.Unlock()
			return ok("answer despite the gap")
		case strings.Contains(req.Prompt, "do t1"):
			return ok("t1 output")
		case strings.Contains(req.Prompt, "do t2"):
			return boom("provider exploded")
		}
		return boom("unexpected call")
	}

	r := newTestRunner(testConfig(), inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done: standard failures must not abort", snap.Phase)
	}
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(synthesisPrompt, "t1 output") {
		t.Error("synthesis prompt missing the successful output")
	}
	if !strings.Contains(synthesisPrompt, "[FAILED: provider exploded]") {
		t.Error("synthesis prompt should mark the failed task")
	}
	if snap.Final == nil || len(snap.Final.Failed) != 1 || snap.Final.Failed[0] != "t2" {
		t.Errorf("Final.Failed = %v, want [t2]", snap.Final)
	}
}

func TestAllCriticalTasksFailedEndsInError(t *testing.T) {
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		if strings.Contains(req.Prompt, markPlanning) {
			return ok(twoTaskPlan("critical", "critical"))
		}
		return boom("overloaded")
	}

	r := newTestRunner(testConfig(), inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseError {
		t.Fatalf("Phase = %s, want error", snap.Phase)
	}
	if !strings.Contains(snap.Failure, "t1") || !strings.Contains(snap.Failure, "t2") {
		t.Errorf("Failure should name both tasks, got: %s", snap.Failure)
	}
	// Each critical task runs once plus one retry.
	if got := inv.countMatching("do t1"); got != 2 {
		t.Errorf("t1 invoked %d times, want 2 (original + retry)", got)
	}
	if inv.countMatching(markSynthesis) != 0 {
		t.Error("synthesis should not run after a fatal failure")
	}
}

func TestSingleTaskSkipsReviewAndSynthesis(t *testing.T) {
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(singleTaskPlan())
		case strings.Contains(req.Prompt, "do t1"):
			return ok("direct answer")
		}
		return boom("unexpected call")
	}

	cfg := testConfig()
	cfg.RequireApproval = true // single-task plans skip review anyway
	r := newTestRunner(cfg, inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done (failure: %s)", snap.Phase, snap.Failure)
	}
	if snap.Final.Content != "direct answer" {
		t.Errorf("Content = %q, want the worker output verbatim", snap.Final.Content)
	}
	if inv.countMatching(markSynthesis) != 0 {
		t.Error("single-task run must not synthesize")
	}
}

func TestPlanningRetriesOnceOnGarbage(t *testing.T) {
	attempts := 0
	var mu sync.Mutex
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				return ok("I cannot produce JSON today, sorry.")
			}
			return ok(singleTaskPlan())
		case strings.Contains(req.Prompt, "do t1"):
			return ok("out")
		}
		return boom("unexpected call")
	}

	r := newTestRunner(testConfig(), inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done (failure: %s)", snap.Phase, snap.Failure)
	}
	if attempts != 2 {
		t.Errorf("planning attempts = %d, want 2", attempts)
	}
}

func TestPlanningFailsAfterTwoAttempts(t *testing.T) {
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		return ok("still not JSON")
	}

	r := newTestRunner(testConfig(), inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseError {
		t.Fatalf("Phase = %s, want error", snap.Phase)
	}
	if !strings.Contains(snap.Failure, "planning failed") {
		t.Errorf("Failure = %q, want planning failure", snap.Failure)
	}
	if got := inv.countMatching(markPlanning); got != 2 {
		t.Errorf("planning invoked %d times, want 2", got)
	}
}

func TestSynthesisFallsBackToConcatenation(t *testing.T) {
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(twoTaskPlan("standard", "standard"))
		case strings.Contains(req.Prompt, markSynthesis):
			return boom("synthesizer down")
		case strings.Contains(req.Prompt, "do t1"):
			return ok("alpha")
		case strings.Contains(req.Prompt, "do t2"):
			return ok("beta")
		}
		return boom("unexpected call")
	}

	r := newTestRunner(testConfig(), inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done (failure: %s)", snap.Phase, snap.Failure)
	}
	content := snap.Final.Content
	if !strings.Contains(content, "alpha") || !strings.Contains(content, "beta") {
		t.Errorf("fallback content missing task outputs: %q", content)
	}
	if !strings.Contains(content, "---") {
		t.Errorf("fallback content missing dividers: %q", content)
	}
}

func TestQualityGateRevisesExactlyOnce(t *testing.T) {
	longAnswer := strings.Repeat("This answer needs more than four hundred runes of text. ", 10)
	qualityCalls := 0
	var mu sync.Mutex
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(twoTaskPlan("standard", "standard"))
		case strings.Contains(req.Prompt, markQuality):
			mu.Lock()
			qualityCalls++
			n := qualityCalls
			mu.Unlock()
			if n == 1 {
				return ok(`{"score": 5, "issues": ["too thin", "no examples"]}`)
			}
			return ok(`{"score": 6, "issues": ["still thin"]}`)
		case strings.Contains(req.Prompt, markRevision):
			return ok(longAnswer + " Revised.")
		case strings.Contains(req.Prompt, markSynthesis):
			return ok(longAnswer)
		case strings.Contains(req.Prompt, "do t"):
			return ok("out")
		}
		return boom("unexpected call")
	}

	cfg := testConfig()
	cfg.QualityGate = true
	r := newTestRunner(cfg, inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done (failure: %s)", snap.Phase, snap.Failure)
	}
	if got := inv.countMatching(markRevision); got != 1 {
		t.Errorf("revision invoked %d times, want exactly 1 even though the recheck still fails", got)
	}
	if qualityCalls != 2 {
		t.Errorf("quality checks = %d, want 2 (initial + recheck)", qualityCalls)
	}
	if !strings.HasSuffix(snap.Final.Content, "Revised.") {
		t.Error("final content should be the revised answer")
	}
	if snap.Final.Quality == nil || snap.Final.Quality.Score != 6 {
		t.Errorf("Quality = %+v, want recheck score 6", snap.Final.Quality)
	}

	var revPrompt string
	inv.mu.Lock()
	for _, c := range inv.calls {
		if strings.Contains(c.Prompt, markRevision) {
			revPrompt = c.Prompt
		}
	}
	inv.mu.Unlock()
	for _, want := range []string{markSynthesis, "## Task t1: research", "merge both", "too thin"} {
		if !strings.Contains(revPrompt, want) {
			t.Errorf("revision prompt missing %q", want)
		}
	}
}

func TestRevisionPromptReissuesSynthesis(t *testing.T) {
	p := mustParsePlan(t, twoTaskPlan("critical", "standard"))
	results := map[string]worker.Result{
		"t1": {TaskID: "t1", Status: worker.StatusSuccess, Content: "uv coefficients table"},
		"t2": {TaskID: "t2", Status: worker.StatusError, Error: "timed out"},
	}

	got := revisionPrompt("compare sunscreens", p, results, "previous draft", []string{"missing the coefficients"})

	for _, want := range []string{
		markSynthesis,
		"uv coefficients table",    // worker output the draft may have dropped
		"merge both",               // planner's synthesis hint
		"[FAILED: timed out]",      // failed tasks stay visible as gaps
		"missing the coefficients", // quality findings
		"previous draft",           // the scored attempt
		"compare sunscreens",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("revision prompt missing %q", want)
		}
	}
	if !strings.Contains(got, markRevision) {
		t.Error("revision prompt lacks the revise instruction")
	}
	if strings.Index(got, markSynthesis) > strings.Index(got, "Previous attempt") {
		t.Error("synthesis request should come before the previous attempt")
	}
}

func TestQualityGateSkipsShortAnswers(t *testing.T) {
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(twoTaskPlan("standard", "standard"))
		case strings.Contains(req.Prompt, markSynthesis):
			return ok("short and sweet")
		case strings.Contains(req.Prompt, "do t"):
			return ok("out")
		}
		return boom("unexpected call")
	}

	cfg := testConfig()
	cfg.QualityGate = true
	r := newTestRunner(cfg, inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inv.countMatching(markQuality) != 0 {
		t.Error("short answers should skip the quality check")
	}
	if snap.Final.Quality != nil {
		t.Errorf("Quality = %+v, want nil", snap.Final.Quality)
	}
}

func TestDeepModeRunsFollowUps(t *testing.T) {
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(twoTaskPlan("standard", "standard"))
		case strings.Contains(req.Prompt, markGapCheck):
			return ok(`{"tasks": [{"id": "f1", "description": "cover the gap", "assignedModel": "haiku", "prompt": "do f1"}]}`)
		case strings.Contains(req.Prompt, markSynthesis):
			return ok("deep answer")
		case strings.Contains(req.Prompt, "do f1"):
			return ok("follow-up output")
		case strings.Contains(req.Prompt, "do t"):
			return ok("out")
		}
		return boom("unexpected call")
	}

	cfg := testConfig()
	cfg.Mode = config.ModeDeep
	r := newTestRunner(cfg, inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done (failure: %s)", snap.Phase, snap.Failure)
	}
	res, found := snap.Results["f1"]
	if !found {
		t.Fatal("follow-up task missing from results")
	}
	if !res.FollowUp {
		t.Error("follow-up result should be flagged")
	}
	if len(snap.Plan.Tasks) != 3 {
		t.Errorf("plan has %d tasks, want 3 after follow-up append", len(snap.Plan.Tasks))
	}
}

func TestGapCheckFailureIsNonFatal(t *testing.T) {
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(twoTaskPlan("standard", "standard"))
		case strings.Contains(req.Prompt, markGapCheck):
			return boom("checker down")
		case strings.Contains(req.Prompt, markSynthesis):
			return ok("answer")
		case strings.Contains(req.Prompt, "do t"):
			return ok("out")
		}
		return boom("unexpected call")
	}

	cfg := testConfig()
	cfg.Mode = config.ModeDeep
	r := newTestRunner(cfg, inv)
	snap, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done (failure: %s)", snap.Phase, snap.Failure)
	}
}

func waitForPhase(t *testing.T, r *Runner, want Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.Snapshot().Phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s (at %s)", want, r.Snapshot().Phase)
}

func reviewRunner(t *testing.T) (*Runner, chan *Snapshot) {
	t.Helper()
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		switch {
		case strings.Contains(req.Prompt, markPlanning):
			return ok(twoTaskPlan("standard", "standard"))
		case strings.Contains(req.Prompt, markSynthesis):
			return ok("approved answer")
		case strings.Contains(req.Prompt, "do t"):
			return ok("out")
		}
		return boom("unexpected call")
	}

	cfg := testConfig()
	cfg.RequireApproval = true
	r := newTestRunner(cfg, inv)

	done := make(chan *Snapshot, 1)
	go func() {
		snap, _ := r.Run(context.Background(), "q")
		done <- snap
	}()
	waitForPhase(t, r, PhaseReviewing)
	return r, done
}

func TestReviewApproveProceeds(t *testing.T) {
	r, done := reviewRunner(t)

	if got := r.Snapshot().Review; got == nil || len(got.Tasks) != 2 {
		t.Fatalf("Review = %+v, want the pending plan", got)
	}
	if err := r.Approve(); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	snap := <-done
	if snap.Phase != PhaseDone {
		t.Fatalf("Phase = %s, want done (failure: %s)", snap.Phase, snap.Failure)
	}
	if snap.Final.Content != "approved answer" {
		t.Errorf("Content = %q", snap.Final.Content)
	}
}

func TestReviewRejectEndsRun(t *testing.T) {
	r, done := reviewRunner(t)

	if err := r.Reject(); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	snap := <-done
	if snap.Phase != PhaseError {
		t.Fatalf("Phase = %s, want error", snap.Phase)
	}
	if snap.Failure != "plan rejected" {
		t.Errorf("Failure = %q", snap.Failure)
	}
}

func TestApproveOutsideReviewErrors(t *testing.T) {
	r := newTestRunner(testConfig(), &fakeInvoker{respond: func(invoke.Request) (*invoke.Result, error) {
		return boom("unused")
	}})
	if err := r.Approve(); err == nil {
		t.Error("Approve before reviewing should error")
	}
	if err := r.Reject(); err == nil {
		t.Error("Reject before reviewing should error")
	}
}

// blockingInvoker plans normally, then parks every worker invocation until
// its context is cancelled.
type blockingInvoker struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingInvoker) Invoke(ctx context.Context, req invoke.Request) (*invoke.Result, error) {
	if strings.Contains(req.Prompt, markPlanning) {
		return ok(singleTaskPlan())
	}
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCancelDuringExecution(t *testing.T) {
	inv := &blockingInvoker{started: make(chan struct{})}

	r := newTestRunner(testConfig(), inv)
	done := make(chan struct{})
	var snap *Snapshot
	var runErr error
	go func() {
		snap, runErr = r.Run(context.Background(), "q")
		close(done)
	}()

	<-inv.started
	r.Cancel()
	r.Cancel() // idempotent

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Cancel")
	}
	if runErr == nil {
		t.Error("Run should surface the cancellation")
	}
	if snap.Phase != PhaseError {
		t.Errorf("Phase = %s, want error", snap.Phase)
	}
}

func TestCancelDuringReviewRejects(t *testing.T) {
	r, done := reviewRunner(t)

	r.Cancel()
	snap := <-done
	if snap.Phase != PhaseError {
		t.Fatalf("Phase = %s, want error", snap.Phase)
	}
}

func TestRunnerIsSingleUse(t *testing.T) {
	inv := &fakeInvoker{}
	inv.respond = func(req invoke.Request) (*invoke.Result, error) {
		if strings.Contains(req.Prompt, markPlanning) {
			return ok(singleTaskPlan())
		}
		return ok("out")
	}
	r := newTestRunner(testConfig(), inv)
	if _, err := r.Run(context.Background(), "q"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := r.Run(context.Background(), "q"); err == nil {
		t.Error("second Run should error")
	}
}

func TestParseFollowUpsNormalizes(t *testing.T) {
	p := mustParsePlan(t, twoTaskPlan("standard", "standard"))

	raw := `{"tasks": [
		{"id": "t1", "description": "collides", "assignedModel": "claude-haiku", "prompt": "p1", "dependsOn": ["t2"]},
		{"id": "f2", "description": "fine", "assignedModel": "nonsense-model", "prompt": "p2"},
		{"id": "f3", "description": "over the cap", "assignedModel": "sonnet", "prompt": "p3"}
	]}`
	got := parseFollowUps(raw, p)
	if len(got) != maxFollowUps {
		t.Fatalf("got %d follow-ups, want cap of %d", len(got), maxFollowUps)
	}
	if got[0].ID != "followup-t1" {
		t.Errorf("colliding id = %q, want namespaced", got[0].ID)
	}
	if got[0].DependsOn != nil {
		t.Error("follow-ups must not carry dependencies")
	}
	if got[0].AssignedModel != "haiku" {
		t.Errorf("model = %q, want canonical haiku", got[0].AssignedModel)
	}
}

func TestParseQualityReport(t *testing.T) {
	rep, err := parseQualityReport("```json\n{\"score\": 8, \"issues\": []}\n```")
	if err != nil {
		t.Fatalf("parseQualityReport: %v", err)
	}
	if !rep.Pass() {
		t.Error("score 8 should pass")
	}
	if _, err := parseQualityReport(`{"score": 0}`); err == nil {
		t.Error("score 0 should be rejected")
	}
	if _, err := parseQualityReport("no json here"); err == nil {
		t.Error("prose should be rejected")
	}
}

func TestFatalFailureStrictCritical(t *testing.T) {
	cfg := testConfig()
	cfg.StrictCritical = true
	r := newTestRunner(cfg, &fakeInvoker{respond: func(invoke.Request) (*invoke.Result, error) {
		return boom("unused")
	}})

	p := mustParsePlan(t, singleTaskPlan())
	results := map[string]worker.Result{
		"t1": {TaskID: "t1", Status: worker.StatusPartial, Content: "half an answer"},
	}
	if msg := r.fatalFailure(p, results); msg == "" {
		t.Error("strict mode should treat a partial critical result as fatal")
	}

	cfg.StrictCritical = false
	if msg := r.fatalFailure(p, results); msg != "" {
		t.Errorf("lenient mode should accept partial critical output, got: %s", msg)
	}
}

func mustParsePlan(t *testing.T, raw string) *plan.Plan {
	t.Helper()
	p, err := plan.Parse(raw, plan.MaxTasks)
	if err != nil {
		t.Fatalf("parsing plan fixture: %v", err)
	}
	return p
}
