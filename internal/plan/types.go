// Package plan defines the task plan produced by the planning model and the
// salvage parser that extracts it from raw model output.
package plan

// Priority classifies how load-bearing a task is for the final answer.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityStandard Priority = "standard"
)

// MaxTasks is the default cap on tasks per plan. Plans exceeding it are
// trimmed keeping critical tasks first.
const MaxTasks = 7

// Task is one unit of work in a plan. Immutable after parsing.
type Task struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	AssignedModel string   `json:"assignedModel"`
	Prompt        string   `json:"prompt"`
	Priority      Priority `json:"priority"`
	DependsOn     []string `json:"dependsOn,omitempty"`
}

// Critical reports whether the task carries critical priority.
func (t Task) Critical() bool {
	return t.Priority == PriorityCritical
}

// Plan is a validated task decomposition of a user request.
type Plan struct {
	Reasoning     string `json:"reasoning"`
	Tasks         []Task `json:"tasks"`
	SynthesisHint string `json:"synthesisHint"`
}

// Clone returns a deep copy of the plan, safe to hand to observers.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tasks = make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		cp.Tasks[i] = t
		if t.DependsOn != nil {
			cp.Tasks[i].DependsOn = append([]string(nil), t.DependsOn...)
		}
	}
	return &cp
}

// Task returns the task with the given id, if present.
func (p *Plan) Task(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// CriticalTasks returns the plan's critical-priority tasks.
func (p *Plan) CriticalTasks() []Task {
	var out []Task
	for _, t := range p.Tasks {
		if t.Critical() {
			out = append(out, t)
		}
	}
	return out
}
