package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/thunderclaude/orchestrator/internal/plan"
)

// Validate runs a topological sort over the task graph and returns the
// ordered task ids, or an error describing the cycle. Plans are already
// cleaned of dangling references at parse time, so a validation failure
// here means a genuine cycle. Callers treat it as advisory: execution
// degrades per ResolveWaves instead of refusing the plan.
func Validate(tasks []plan.Task) ([]string, error) {
	var edges []toposort.Edge
	for _, t := range tasks {
		if len(t.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, t.ID})
			continue
		}
		for _, dep := range t.DependsOn {
			edges = append(edges, toposort.Edge{dep, t.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(tasks))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(tasks) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for _, t := range tasks {
			if !found[t.ID] {
				missing = append(missing, t.ID)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d task(s): %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}
