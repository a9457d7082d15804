package invoke

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// stdinThreshold is the prompt size above which the claude CLI receives the
// prompt via stdin instead of a positional argument, keeping well under
// platform argv limits.
const stdinThreshold = 6000

// buildClaudeArgs constructs claude CLI arguments for a request.
// Prompts over stdinThreshold bytes are piped via stdin: in -p mode the CLI
// reads stdin when no positional message is given.
func buildClaudeArgs(req Request) (args []string, useStdin bool) {
	args = []string{"-p", "--verbose", "--output-format", "stream-json"}

	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}
	if !req.ToolsEnabled {
		// --tools "" disables all built-in tools; with --strict-mcp-config
		// and no servers this is pure reasoning with zero tool access.
		args = append(args, "--tools", "", "--strict-mcp-config")
	}
	if req.PermissionMode != "" {
		args = append(args, "--permission-mode", req.PermissionMode)
	}

	if len(req.Prompt) <= stdinThreshold {
		return append(args, req.Prompt), false
	}
	return args, true
}

// buildGeminiArgs constructs gemini CLI arguments. The gemini CLI has no
// system-prompt flag, so the system prompt is folded into the message.
func buildGeminiArgs(req Request) []string {
	message := req.Prompt
	if req.SystemPrompt != "" {
		message = fmt.Sprintf("[System Instructions]\n%s\n\n[User Message]\n%s", req.SystemPrompt, req.Prompt)
	}

	args := []string{"--prompt", message, "--output-format", "stream-json", "--yolo"}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return args
}

// streamLine is the subset of the providers' stream-json events the engine
// cares about: assistant text deltas and the final result record with its
// cost/token/duration totals. Unknown fields and event types are ignored.
type streamLine struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Result       string  `json:"result"`
	IsError      bool    `json:"is_error"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	DurationMS   int64   `json:"duration_ms"`
	Usage        struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// streamTotals accumulates metadata from result events.
type streamTotals struct {
	costUSD  float64
	tokens   int
	duration time.Duration
	final    string
	isError  bool
	sawFinal bool
}

// parseStreamLine extracts the text delta (if any) from one stream-json
// line and folds result totals into tot. Lines that are not JSON are
// ignored; the CLIs occasionally emit diagnostics on stdout.
func parseStreamLine(line string, tot *streamTotals) (delta string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '{' {
		return "", false
	}

	var ev streamLine
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return "", false
	}

	switch ev.Type {
	case "assistant", "content":
		var b strings.Builder
		for _, part := range ev.Message.Content {
			if part.Type == "text" {
				b.WriteString(part.Text)
			}
		}
		return b.String(), b.Len() > 0
	case "result":
		tot.sawFinal = true
		tot.final = ev.Result
		tot.isError = ev.IsError
		tot.costUSD += ev.TotalCostUSD
		tot.tokens += ev.Usage.InputTokens + ev.Usage.OutputTokens
		if ev.DurationMS > 0 {
			tot.duration = time.Duration(ev.DurationMS) * time.Millisecond
		}
	}
	return "", false
}
