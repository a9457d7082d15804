package model

import "sort"

// Provider identifies which CLI a model is served by.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderGemini Provider = "gemini"
)

// Info describes one entry in the model catalog.
type Info struct {
	Name     string
	Provider Provider
	Fast     bool // cheap/fast tier, preferred for quality checks
}

// Default is the model used when a requested name cannot be recognized.
const Default = "sonnet"

// DefaultPlanner is the model used for plan decomposition unless overridden.
const DefaultPlanner = "sonnet"

// catalog is the canonical model table. Keys are the exact names passed to
// the provider CLIs via --model.
var catalog = map[string]Info{
	"opus":             {Name: "opus", Provider: ProviderClaude},
	"sonnet":           {Name: "sonnet", Provider: ProviderClaude},
	"haiku":            {Name: "haiku", Provider: ProviderClaude, Fast: true},
	"gemini-2.5-pro":   {Name: "gemini-2.5-pro", Provider: ProviderGemini},
	"gemini-2.5-flash": {Name: "gemini-2.5-flash", Provider: ProviderGemini, Fast: true},
}

// failoverChains lists ordered substitutes per model. Chains deliberately
// lead with the other provider's family so a provider-wide rate limit
// doesn't take out the whole chain at once.
var failoverChains = map[string][]string{
	"opus":             {"gemini-2.5-pro", "sonnet", "gemini-2.5-flash"},
	"sonnet":           {"gemini-2.5-pro", "opus", "gemini-2.5-flash", "haiku"},
	"haiku":            {"gemini-2.5-flash", "sonnet", "gemini-2.5-pro"},
	"gemini-2.5-pro":   {"sonnet", "opus", "gemini-2.5-flash", "haiku"},
	"gemini-2.5-flash": {"haiku", "sonnet", "gemini-2.5-pro"},
}

// Lookup returns catalog info for an exact canonical name.
func Lookup(name string) (Info, bool) {
	info, ok := catalog[name]
	return info, ok
}

// Names returns all canonical model names, sorted for stable output.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderOf returns the provider for a canonical model name.
// Unknown names map to the Claude CLI, matching the default model.
func ProviderOf(name string) Provider {
	if info, ok := catalog[name]; ok {
		return info.Provider
	}
	return ProviderClaude
}

// Chain returns the failover chain for a model. Models without a configured
// chain fall back to the default model's chain.
func Chain(name string) []string {
	if chain, ok := failoverChains[name]; ok {
		return chain
	}
	return failoverChains[Default]
}

// Fastest returns the cheapest model of the given provider family, used for
// quality scoring where a frontier model is not worth the cost.
func Fastest(provider Provider) string {
	for name, info := range catalog {
		if info.Provider == provider && info.Fast {
			return name
		}
	}
	return Default
}
