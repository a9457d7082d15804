package orchestrator

import (
	"fmt"
	"strings"

	"github.com/thunderclaude/orchestrator/internal/model"
	"github.com/thunderclaude/orchestrator/internal/plan"
	"github.com/thunderclaude/orchestrator/internal/worker"
)

// planningPrompt asks the planner to decompose the query into a task DAG.
// The JSON contract mirrors plan.Plan exactly; the parser tolerates fences
// and truncation, so the prompt only needs to pin the field names.
func planningPrompt(query string, maxTasks int, deep bool) string {
	var b strings.Builder
	b.WriteString("You are a task planner for a multi-model orchestration engine.\n")
	b.WriteString("Decompose the user's request into independent tasks that can run in parallel, ")
	b.WriteString("using dependencies only where one task genuinely needs another's output.\n\n")

	fmt.Fprintf(&b, "Available models: %s.\n", strings.Join(model.Names(), ", "))
	fmt.Fprintf(&b, "Produce at most %d tasks. Mark a task \"critical\" only if the final answer is worthless without it.\n", maxTasks)
	if deep {
		b.WriteString("This is a deep run: prefer broad coverage over speed and include verification-oriented tasks.\n")
	}

	b.WriteString(`
Respond with ONLY a JSON object, no prose before or after:
{
  "reasoning": "one short paragraph on the decomposition",
  "tasks": [
    {
      "id": "t1",
      "description": "short human-readable label",
      "assignedModel": "sonnet",
      "prompt": "full self-contained prompt for the worker",
      "priority": "critical",
      "dependsOn": []
    }
  ],
  "synthesisHint": "guidance for combining the task outputs"
}

User request:
`)
	b.WriteString(query)
	return b.String()
}

// outputBlocks renders settled task results as labeled sections. Failed
// tasks are kept and marked so downstream prompts can account for gaps.
func outputBlocks(tasks []plan.Task, results map[string]worker.Result) string {
	var b strings.Builder
	for _, t := range tasks {
		res, ok := results[t.ID]
		fmt.Fprintf(&b, "## Task %s: %s\n\n", t.ID, t.Description)
		switch {
		case !ok:
			b.WriteString("[NOT RUN]\n\n")
		case !res.Usable():
			fmt.Fprintf(&b, "[FAILED: %s]\n\n", res.Error)
		default:
			if res.Status == worker.StatusPartial {
				b.WriteString("[PARTIAL OUTPUT, model timed out mid-response]\n")
			}
			b.WriteString(res.Content)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// synthesisPrompt combines all task outputs into one answer.
func synthesisPrompt(query string, p *plan.Plan, results map[string]worker.Result) string {
	var b strings.Builder
	b.WriteString("Multiple specialist models worked on parts of a request. ")
	b.WriteString("Synthesize their outputs into one coherent, complete answer.\n")
	b.WriteString("Where a task failed, work around the gap and note it only if it matters to the user.\n\n")
	if p.SynthesisHint != "" {
		fmt.Fprintf(&b, "Synthesis guidance from the planner: %s\n\n", p.SynthesisHint)
	}
	fmt.Fprintf(&b, "Original request:\n%s\n\n", query)
	b.WriteString("Task outputs:\n\n")
	b.WriteString(outputBlocks(p.Tasks, results))
	b.WriteString("Write the final answer now. Do not mention tasks, models, or this process.")
	return b.String()
}

// gapCheckPrompt asks a fast model whether the settled outputs leave the
// query under-covered, proposing at most maxFollowUps follow-up tasks.
func gapCheckPrompt(query string, p *plan.Plan, results map[string]worker.Result, available []string, maxFollowUps int) string {
	var b strings.Builder
	b.WriteString("Review the task outputs below against the original request and identify coverage gaps: ")
	b.WriteString("aspects of the request no task addressed, or addressed so poorly the answer will suffer.\n\n")
	fmt.Fprintf(&b, "Original request:\n%s\n\n", query)
	b.WriteString("Task outputs:\n\n")
	b.WriteString(outputBlocks(p.Tasks, results))
	fmt.Fprintf(&b, "Available models: %s.\n", strings.Join(available, ", "))
	fmt.Fprintf(&b, `
Respond with ONLY a JSON object. Propose at most %d follow-up tasks; an
empty list means coverage is adequate:
{
  "tasks": [
    {"id": "f1", "description": "...", "assignedModel": "...", "prompt": "..."}
  ]
}
`, maxFollowUps)
	return b.String()
}

// qualityPrompt scores a draft answer against the request.
func qualityPrompt(query, content string) string {
	return fmt.Sprintf(`Score the answer below against the request on a 1-10 scale, where 7 means
"ready to deliver". List concrete issues only when the score is below 7.

Respond with ONLY a JSON object:
{"score": 8, "issues": []}

Request:
%s

Answer:
%s`, query, content)
}

// revisionPrompt reissues the full synthesis request with the quality
// findings and the scored draft appended. Carrying the task outputs and
// the planner's hint lets the reviser pull in material the draft missed
// instead of just rephrasing it.
func revisionPrompt(query string, p *plan.Plan, results map[string]worker.Result, content string, issues []string) string {
	var b strings.Builder
	b.WriteString(synthesisPrompt(query, p, results))
	b.WriteString("\n\nA quality check found issues with a previous attempt:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	fmt.Fprintf(&b, "\nPrevious attempt:\n%s\n\n", content)
	b.WriteString("Revise the answer to address every listed issue. ")
	b.WriteString("Keep everything that already works; output only the revised answer.")
	return b.String()
}
