package orchestrator

import (
	"strings"

	"github.com/thunderclaude/orchestrator/internal/model"
	"github.com/thunderclaude/orchestrator/internal/plan"
)

// maxFollowUps caps the second-pass tasks a gap check may add. Deep mode
// is a refinement pass, not a second full run.
const maxFollowUps = 2

// parseFollowUps decodes the gap check's proposed tasks and normalizes
// them: ids are namespaced to avoid colliding with the original plan,
// models are canonicalized, and dependencies are dropped since follow-ups
// run as a single flat wave over already-settled outputs.
func parseFollowUps(raw string, existing *plan.Plan) []plan.Task {
	var proposal struct {
		Tasks []plan.Task `json:"tasks"`
	}
	if err := plan.DecodeLenient(raw, &proposal); err != nil {
		return nil
	}

	taken := make(map[string]bool, len(existing.Tasks))
	for _, t := range existing.Tasks {
		taken[t.ID] = true
	}

	var out []plan.Task
	for _, t := range proposal.Tasks {
		if len(out) == maxFollowUps {
			break
		}
		t.ID = strings.TrimSpace(t.ID)
		t.Prompt = strings.TrimSpace(t.Prompt)
		if t.ID == "" || t.Prompt == "" {
			continue
		}
		if taken[t.ID] {
			t.ID = "followup-" + t.ID
		}
		if taken[t.ID] {
			continue
		}
		taken[t.ID] = true
		t.AssignedModel = model.Canonical(t.AssignedModel)
		t.Priority = plan.PriorityStandard
		t.DependsOn = nil
		out = append(out, t)
	}
	return out
}
