package model

import "strings"

// aliases maps legacy or verbose model names to canonical catalog entries.
// Planning models drift between runs and CLI versions, so the table covers
// the spellings that have shown up in real plan output.
var aliases = map[string]string{
	"claude-opus":      "opus",
	"claude-sonnet":    "sonnet",
	"claude-haiku":     "haiku",
	"gemini-pro":       "gemini-2.5-pro",
	"gemini-flash":     "gemini-2.5-flash",
	"gemini-1.5-pro":   "gemini-2.5-pro",
	"gemini-1.5-flash": "gemini-2.5-flash",
}

// Canonical maps a raw model name from plan output to a catalog entry.
// Resolution order: exact match, alias table, substring match in either
// direction against catalog names. Unrecognized names fall back to Default
// rather than failing the task that carries them.
func Canonical(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return Default
	}
	if _, ok := catalog[name]; ok {
		return name
	}
	if mapped, ok := aliases[name]; ok {
		return mapped
	}
	for candidate := range catalog {
		if strings.Contains(name, candidate) || strings.Contains(candidate, name) {
			return candidate
		}
	}
	for alias, mapped := range aliases {
		if strings.Contains(name, alias) {
			return mapped
		}
	}
	return Default
}
