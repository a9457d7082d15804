// Package scheduler converts a task list with dependency edges into ordered
// waves of mutually-independent tasks.
package scheduler

import (
	"log"

	"github.com/thunderclaude/orchestrator/internal/plan"
)

// ResolveWaves partitions tasks into execution waves. Each wave contains
// every not-yet-scheduled task whose dependencies are all already scheduled;
// tasks with no dependencies qualify immediately, so a fully independent
// task list collapses to exactly one wave.
//
// If an iteration produces an empty wave while tasks remain, the dependency
// graph has a cycle. Rather than deadlocking, all remaining tasks are dumped
// into one final wave — a best-effort degradation, logged but not fatal.
func ResolveWaves(tasks []plan.Task) [][]plan.Task {
	if len(tasks) == 0 {
		return nil
	}

	scheduled := make(map[string]bool, len(tasks))
	remaining := append([]plan.Task(nil), tasks...)
	var waves [][]plan.Task

	for len(remaining) > 0 {
		var wave, next []plan.Task
		for _, t := range remaining {
			if depsScheduled(t, scheduled) {
				wave = append(wave, t)
			} else {
				next = append(next, t)
			}
		}

		if len(wave) == 0 {
			log.Printf("WARNING: dependency cycle among %d task(s), running them as one wave", len(remaining))
			wave = remaining
			next = nil
		}

		for _, t := range wave {
			scheduled[t.ID] = true
		}
		waves = append(waves, wave)
		remaining = next
	}

	return waves
}

func depsScheduled(t plan.Task, scheduled map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if !scheduled[dep] {
			return false
		}
	}
	return true
}
