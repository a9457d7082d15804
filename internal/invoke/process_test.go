package invoke

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func startSleeper(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := newCommand(context.Background(), "sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	return cmd
}

func TestProcessManagerTrackUntrack(t *testing.T) {
	pm := NewProcessManager()
	cmd := startSleeper(t)
	defer func() {
		_ = killProcessGroup(cmd)
		_ = cmd.Wait()
	}()

	pm.Track("inv-1", cmd)
	if pm.Count() != 1 {
		t.Errorf("Count = %d, want 1", pm.Count())
	}

	pm.Untrack("inv-1")
	if pm.Count() != 0 {
		t.Errorf("Count after Untrack = %d, want 0", pm.Count())
	}
}

func TestProcessManagerKill(t *testing.T) {
	pm := NewProcessManager()
	cmd := startSleeper(t)

	pm.Track("inv-1", cmd)
	if err := pm.Kill("inv-1"); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	if pm.Count() != 0 {
		t.Errorf("Count after Kill = %d, want 0", pm.Count())
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err == nil {
			t.Error("killed process exited cleanly")
		}
	case <-time.After(5 * time.Second):
		t.Error("process did not die after Kill")
	}
}

func TestProcessManagerKillUnknownID(t *testing.T) {
	pm := NewProcessManager()
	if err := pm.Kill("no-such-invocation"); err != nil {
		t.Errorf("Kill on unknown id = %v, want nil", err)
	}
}

func TestProcessManagerKillAll(t *testing.T) {
	pm := NewProcessManager()
	first := startSleeper(t)
	second := startSleeper(t)

	pm.Track("a", first)
	pm.Track("b", second)

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll failed: %v", err)
	}
	if pm.Count() != 0 {
		t.Errorf("Count after KillAll = %d, want 0", pm.Count())
	}
	_ = first.Wait()
	_ = second.Wait()

	// Idempotent: a second KillAll has nothing to do.
	if err := pm.KillAll(); err != nil {
		t.Errorf("second KillAll = %v, want nil", err)
	}
}
