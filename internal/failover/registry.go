// Package failover tracks per-model rate-limit cooldowns and resolves a
// preferred model to the best currently-available substitute.
//
// The registry is the one piece of state shared across concurrent runs: all
// orchestrations observe the same cooldowns so a model that rate-limited one
// run is not immediately hammered by the next. It is injected by callers
// rather than held as a package global so tests can substitute a fresh
// instance. Nothing here persists across restarts; rate limits are transient.
package failover

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/thunderclaude/orchestrator/internal/model"
)

// backoffSteps is the escalating cooldown schedule per consecutive failure
// on the same model. Caps at the last step.
var backoffSteps = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	25 * time.Minute,
	60 * time.Minute,
}

// rateLimitPatterns are matched against lowercased error text. The transport
// is an opaque process exit plus stderr, so detection is pattern-based
// rather than status-code based.
var rateLimitPatterns = []string{
	"rate limit",
	"rate_limit",
	"ratelimit",
	"429",
	"quota",
	"overloaded",
	"too many requests",
	"resource exhausted",
	"capacity constraint",
}

// IsRateLimited reports whether error text looks like a provider
// rate-limit or quota signal.
func IsRateLimited(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range rateLimitPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// cooldown records one model's rate-limit state.
type cooldown struct {
	until    time.Time
	failures int
	reason   string
}

// Registry holds per-model cooldowns. Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	cooldowns map[string]*cooldown
	now       func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		cooldowns: make(map[string]*cooldown),
		now:       time.Now,
	}
}

// ReportFailure records a rate-limit signal for a model and escalates its
// cooldown. The first failure cools the model for the first schedule step;
// each consecutive failure moves one step up.
func (r *Registry) ReportFailure(name, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cd, ok := r.cooldowns[name]
	if !ok {
		cd = &cooldown{}
		r.cooldowns[name] = cd
	}

	cd.failures++
	step := cd.failures - 1
	if step >= len(backoffSteps) {
		step = len(backoffSteps) - 1
	}
	cd.until = r.now().Add(backoffSteps[step])
	cd.reason = reason

	log.Printf("WARNING: model %q in cooldown for %s after %d failure(s): %s",
		name, backoffSteps[step], cd.failures, reason)
}

// ReportSuccess clears a model's cooldown and resets its failure count.
func (r *Registry) ReportSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cooldowns, name)
}

// IsAvailable reports whether a model is not currently in cooldown.
func (r *Registry) IsAvailable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remainingLocked(name) <= 0
}

// Remaining returns how much cooldown time is left for a model.
// Zero means the model is available.
func (r *Registry) Remaining(name string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remainingLocked(name)
}

func (r *Registry) remainingLocked(name string) time.Duration {
	cd, ok := r.cooldowns[name]
	if !ok {
		return 0
	}
	remaining := cd.until.Sub(r.now())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// Resolve returns the preferred model if available, otherwise the first
// available entry in its failover chain. If every candidate is in cooldown
// it returns whichever candidate (including the preferred model) has the
// least remaining cooldown — there is always a model to try.
func (r *Registry) Resolve(preferred string) string {
	name := model.Canonical(preferred)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.remainingLocked(name) <= 0 {
		return name
	}

	candidates := append([]string{name}, model.Chain(name)...)
	best := name
	bestRemaining := r.remainingLocked(name)
	for _, alt := range candidates[1:] {
		remaining := r.remainingLocked(alt)
		if remaining <= 0 {
			log.Printf("model %q in cooldown, failing over to %q", name, alt)
			return alt
		}
		if remaining < bestRemaining {
			best = alt
			bestRemaining = remaining
		}
	}

	log.Printf("WARNING: entire failover chain for %q in cooldown, using %q (%s remaining)",
		name, best, bestRemaining)
	return best
}

// CoolingDown returns the names of all models currently in cooldown.
// Used when assigning follow-up work so it never targets a provider known
// to be failing.
func (r *Registry) CoolingDown() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for name := range r.cooldowns {
		if r.remainingLocked(name) > 0 {
			names = append(names, name)
		}
	}
	return names
}
