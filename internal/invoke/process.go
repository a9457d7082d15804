package invoke

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
)

// newCommand creates an exec.Cmd with process group isolation so the whole
// subprocess tree can be terminated with one signal.
func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

// killProcessGroup kills the entire process group associated with the
// command, preventing orphaned CLI children.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill process group: %w", err)
	}
	return nil
}

// ProcessManager tracks running CLI invocations by invocation id so a
// cancelled run can explicitly terminate every still-tracked external
// process rather than relying on context teardown alone.
type ProcessManager struct {
	mu    sync.Mutex
	procs map[string]*exec.Cmd
}

// NewProcessManager creates an empty ProcessManager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		procs: make(map[string]*exec.Cmd),
	}
}

// Track registers a started invocation under its id.
func (pm *ProcessManager) Track(id string, cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.procs[id] = cmd
}

// Untrack removes an invocation after it settles.
func (pm *ProcessManager) Untrack(id string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.procs, id)
}

// Kill terminates one tracked invocation's process group.
func (pm *ProcessManager) Kill(id string) error {
	pm.mu.Lock()
	cmd, ok := pm.procs[id]
	delete(pm.procs, id)
	pm.mu.Unlock()

	if !ok {
		return nil
	}
	return killProcessGroup(cmd)
}

// KillAll terminates every tracked invocation. Safe to call repeatedly.
func (pm *ProcessManager) KillAll() error {
	pm.mu.Lock()
	cmds := make(map[string]*exec.Cmd, len(pm.procs))
	for id, cmd := range pm.procs {
		cmds[id] = cmd
	}
	pm.procs = make(map[string]*exec.Cmd)
	pm.mu.Unlock()

	var errs []error
	for id, cmd := range cmds {
		if err := killProcessGroup(cmd); err != nil {
			errs = append(errs, fmt.Errorf("invocation %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors killing processes: %v", errs)
	}
	return nil
}

// Count returns the number of tracked invocations.
func (pm *ProcessManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.procs)
}
