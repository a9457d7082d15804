package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/thunderclaude/orchestrator/internal/model"
)

// ErrUnparseable is returned when no plan with at least one valid task can
// be salvaged from the model output.
var ErrUnparseable = errors.New("no parseable plan in model output")

// Parse extracts a Plan from raw planning-model output. Output is unreliable
// under token limits and formatting drift, so the parser's job is maximum
// salvage, not schema enforcement. Attempt order:
//
//  1. direct JSON parse (after stripping an optional markdown fence)
//  2. the substring between the first '{' and the last '}'
//  3. truncation recovery: the longest prefix of the tasks array that
//     contains only fully closed task objects
//
// maxTasks caps the plan size; values below 1 use MaxTasks.
func Parse(raw string, maxTasks int) (*Plan, error) {
	if maxTasks < 1 {
		maxTasks = MaxTasks
	}

	text := StripFence(raw)

	var p Plan
	if err := json.Unmarshal([]byte(text), &p); err == nil {
		return normalize(&p, maxTasks)
	}

	if window, ok := braceWindow(text); ok {
		if err := json.Unmarshal([]byte(window), &p); err == nil {
			return normalize(&p, maxTasks)
		}
	}

	if recovered, ok := recoverTruncated(text); ok {
		log.Printf("WARNING: plan output truncated, recovered %d task(s)", len(recovered.Tasks))
		return normalize(recovered, maxTasks)
	}

	return nil, ErrUnparseable
}

// StripFence removes a single optional markdown code fence around the
// payload. The language tag is ignored.
func StripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		return text
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// braceWindow returns the substring between the first '{' and the last '}'.
func braceWindow(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// recoverTruncated salvages a plan from JSON cut off mid-stream. It locates
// the tasks array, scans forward tracking brace depth and string/escape
// state to find the last fully closed task object, slices up to that object
// and appends a synthetic closer. Succeeds only if at least one complete
// task object was found.
func recoverTruncated(text string) (*Plan, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}

	keyIdx := strings.Index(text, `"tasks"`)
	if keyIdx < 0 {
		return nil, false
	}
	arrOpen := strings.IndexByte(text[keyIdx:], '[')
	if arrOpen < 0 {
		return nil, false
	}
	arrOpen += keyIdx

	depth := 0
	inString := false
	escaped := false
	lastClosed := -1

	for i := arrOpen + 1; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					lastClosed = i
				}
			}
		}
	}

	if lastClosed < 0 {
		return nil, false
	}

	candidate := text[start:lastClosed+1] + `], "synthesisHint": ""}`
	var p Plan
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		return nil, false
	}
	if len(p.Tasks) == 0 {
		return nil, false
	}
	return &p, true
}

// normalize applies field-level validation: tasks missing id or prompt are
// dropped, model names are corrected against the catalog, dependsOn entries
// referencing self or non-existent ids are stripped, and oversized plans are
// trimmed keeping critical tasks first, then earliest original order.
// A plan with zero tasks left is unparseable.
func normalize(p *Plan, maxTasks int) (*Plan, error) {
	kept := make([]Task, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Prompt) == "" {
			log.Printf("WARNING: dropping plan task with missing id or prompt (id=%q)", t.ID)
			continue
		}
		t.AssignedModel = model.Canonical(t.AssignedModel)
		if t.Priority != PriorityCritical {
			t.Priority = PriorityStandard
		}
		kept = append(kept, t)
	}

	kept = trim(kept, maxTasks)

	ids := make(map[string]bool, len(kept))
	for _, t := range kept {
		ids[t.ID] = true
	}
	for i := range kept {
		kept[i].DependsOn = filterDeps(kept[i].ID, kept[i].DependsOn, ids)
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: all tasks dropped during validation", ErrUnparseable)
	}

	p.Tasks = kept
	return p, nil
}

// trim caps the task list, keeping critical-priority tasks first and
// preserving original order within each priority class and in the output.
func trim(tasks []Task, maxTasks int) []Task {
	if len(tasks) <= maxTasks {
		return tasks
	}

	keep := make([]bool, len(tasks))
	budget := maxTasks
	for i, t := range tasks {
		if budget == 0 {
			break
		}
		if t.Critical() {
			keep[i] = true
			budget--
		}
	}
	for i := range tasks {
		if budget == 0 {
			break
		}
		if !keep[i] {
			keep[i] = true
			budget--
		}
	}

	out := make([]Task, 0, maxTasks)
	for i, t := range tasks {
		if keep[i] {
			out = append(out, t)
		}
	}
	return out
}

// filterDeps strips self-references and references to ids outside the plan.
// Invalid references are silently dropped, not rejected.
func filterDeps(id string, deps []string, ids map[string]bool) []string {
	if len(deps) == 0 {
		return nil
	}
	out := deps[:0]
	for _, dep := range deps {
		if dep == id || !ids[dep] {
			continue
		}
		out = append(out, dep)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
