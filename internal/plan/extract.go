package plan

import (
	"encoding/json"
	"fmt"
)

// DecodeLenient unmarshals a JSON object out of raw model output, tolerating
// markdown fences and surrounding prose. Used for the small structured
// responses (gap checks, quality scores) that share the plan output's
// formatting drift but not its truncation risk.
func DecodeLenient(raw string, v any) error {
	text := StripFence(raw)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	window, ok := braceWindow(text)
	if !ok {
		return fmt.Errorf("no JSON object in output")
	}
	if err := json.Unmarshal([]byte(window), v); err != nil {
		return fmt.Errorf("decoding model output: %w", err)
	}
	return nil
}
