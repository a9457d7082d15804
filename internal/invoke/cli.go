package invoke

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thunderclaude/orchestrator/internal/model"
)

// defaultTimeout applies when a request carries no deadline of its own.
const defaultTimeout = 5 * time.Minute

// stderrExcerptLen caps how much captured stderr is carried in results.
const stderrExcerptLen = 2000

// CLIInvoker runs invocations by spawning the provider CLIs (claude,
// gemini) with stream-json output. One subprocess per invocation.
type CLIInvoker struct {
	procs    *ProcessManager
	breakers *BreakerRegistry

	mu         sync.Mutex
	discovered map[model.Provider]discovery
}

// NewCLIInvoker creates a CLIInvoker tracking subprocesses in pm.
func NewCLIInvoker(pm *ProcessManager) *CLIInvoker {
	return &CLIInvoker{
		procs:      pm,
		breakers:   NewBreakerRegistry(),
		discovered: make(map[model.Provider]discovery),
	}
}

// Binary reports the discovered CLI binary for a provider.
func (c *CLIInvoker) Binary(p model.Provider) string {
	return c.discover(p).binary
}

// discover resolves and caches the CLI binary per provider.
func (c *CLIInvoker) discover(p model.Provider) discovery {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.discovered[p]; ok {
		return d
	}
	var d discovery
	if p == model.ProviderGemini {
		d = findGeminiBinary()
	} else {
		d = findClaudeBinary()
	}
	c.discovered[p] = d
	return d
}

// Invoke runs one model invocation to completion or timeout. A timeout with
// streamed content settles as partial; with no content as error. Returns
// (nil, ctx.Err()) only when the parent context is cancelled.
func (c *CLIInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	provider := model.ProviderOf(req.Model)
	disc := c.discover(provider)

	var args []string
	var useStdin bool
	if provider == model.ProviderGemini {
		args = buildGeminiArgs(req)
	} else {
		args, useStdin = buildClaudeArgs(req)
	}
	if len(disc.preArgs) > 0 {
		args = append(append([]string(nil), disc.preArgs...), args...)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id := uuid.NewString()
	started := time.Now()

	var run *invocation
	startFn := func() error {
		iv, err := startInvocation(runCtx, disc.binary, args, req.Prompt, useStdin)
		if err != nil {
			return err
		}
		run = iv
		c.procs.Track(id, iv.cmd)
		return nil
	}
	if err := spawnWith(runCtx, c.breakers.Get(disc.binary), startFn); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Result{
			Outcome:  OutcomeError,
			Error:    fmt.Sprintf("failed to start %s: %v", disc.binary, err),
			Duration: time.Since(started),
		}, nil
	}
	defer c.procs.Untrack(id)

	var text strings.Builder
	var totals streamTotals
	scanner := bufio.NewScanner(run.stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		delta, ok := parseStreamLine(scanner.Text(), &totals)
		if !ok {
			continue
		}
		text.WriteString(delta)
		if req.OnText != nil {
			req.OnText(text.String())
		}
	}

	waitErr := run.cmd.Wait()
	elapsed := time.Since(started)
	if totals.duration == 0 {
		totals.duration = elapsed
	}

	content := text.String()
	if totals.sawFinal && totals.final != "" && !totals.isError {
		content = totals.final
	}
	stderr := excerpt(run.stderr.String(), stderrExcerptLen)

	base := Result{
		Content:  content,
		Stderr:   stderr,
		CostUSD:  totals.costUSD,
		Tokens:   totals.tokens,
		Duration: totals.duration,
	}

	switch {
	case ctx.Err() != nil:
		// Parent cancelled; the run is tearing down and the result is moot.
		return nil, ctx.Err()

	case runCtx.Err() == context.DeadlineExceeded:
		if content != "" {
			base.Outcome = OutcomePartial
			base.Error = fmt.Sprintf("model %s timed out after %s (partial output kept)", req.Model, timeout)
			return &base, nil
		}
		base.Outcome = OutcomeError
		base.Error = fmt.Sprintf("model %s timed out after %s with no output", req.Model, timeout)
		return &base, nil

	case waitErr != nil:
		// The gemini CLI is known to crash on exit after output completes;
		// treat a non-zero exit with captured content as success.
		if provider == model.ProviderGemini && content != "" {
			base.Outcome = OutcomeSuccess
			return &base, nil
		}
		base.Outcome = OutcomeError
		base.Error = exitError(req.Model, waitErr, stderr)
		return &base, nil

	case totals.isError:
		base.Outcome = OutcomeError
		base.Error = firstNonEmpty(totals.final, stderr, "model reported an error")
		return &base, nil
	}

	base.Outcome = OutcomeSuccess
	return &base, nil
}

// invocation bundles a started subprocess with its output streams.
type invocation struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr *bytes.Buffer
}

// startInvocation spawns one CLI process with a clean environment and
// optional stdin-piped prompt.
func startInvocation(ctx context.Context, binary string, args []string, prompt string, useStdin bool) (*invocation, error) {
	cmd := newCommand(ctx, binary, args...)
	cmd.Env = cleanEnv(os.Environ())

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	var stdin io.WriteCloser
	if useStdin {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	if useStdin {
		go func() {
			_, _ = io.WriteString(stdin, prompt)
			_ = stdin.Close() // EOF tells the CLI the message is complete
		}()
	}

	return &invocation{cmd: cmd, stdout: stdout, stderr: &stderrBuf}, nil
}

// cleanEnv strips the variables that prevent the claude CLI from running
// inside another claude session.
func cleanEnv(env []string) []string {
	out := env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDECODE=") || strings.HasPrefix(kv, "CLAUDE_CODE_ENTRY_POINT=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func excerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}

func exitError(modelName string, waitErr error, stderr string) string {
	if stderr != "" {
		return fmt.Sprintf("model %s failed: %v: %s", modelName, waitErr, stderr)
	}
	return fmt.Sprintf("model %s failed: %v", modelName, waitErr)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
