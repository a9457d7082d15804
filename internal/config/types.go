package config

import "time"

// Timeouts holds per-phase deadlines in seconds. Zero values fall back
// to the defaults at load time.
type Timeouts struct {
	PlanningSec  int `json:"planningSec"`
	WorkerSec    int `json:"workerSec"`
	SynthesisSec int `json:"synthesisSec"`
	QualitySec   int `json:"qualitySec"`
	GapCheckSec  int `json:"gapCheckSec"`
}

// Config is the top-level engine configuration.
type Config struct {
	Concurrency     int      `json:"concurrency"`     // Max workers running at once
	MaxTasks        int      `json:"maxTasks"`        // Plan size cap
	StaggerMS       int      `json:"staggerMs"`       // Launch stagger between workers
	Mode            string   `json:"mode"`            // "standard" or "deep"
	PlannerModel    string   `json:"plannerModel"`    // Model used for planning and synthesis
	RequireApproval bool     `json:"requireApproval"` // Pause multi-task plans for review
	StrictCritical  bool     `json:"strictCritical"`  // Treat partial critical output as failure
	QualityGate     bool     `json:"qualityGate"`     // Score the synthesis and revise once if weak
	Timeouts        Timeouts `json:"timeouts"`
}

// Stagger returns the worker launch stagger as a duration.
func (c *Config) Stagger() time.Duration {
	return time.Duration(c.StaggerMS) * time.Millisecond
}

// PlanningTimeout returns the planning phase deadline.
func (c *Config) PlanningTimeout() time.Duration {
	return time.Duration(c.Timeouts.PlanningSec) * time.Second
}

// WorkerTimeout returns the per-task execution deadline.
func (c *Config) WorkerTimeout() time.Duration {
	return time.Duration(c.Timeouts.WorkerSec) * time.Second
}

// SynthesisTimeout returns the synthesis phase deadline.
func (c *Config) SynthesisTimeout() time.Duration {
	return time.Duration(c.Timeouts.SynthesisSec) * time.Second
}

// QualityTimeout returns the quality check deadline.
func (c *Config) QualityTimeout() time.Duration {
	return time.Duration(c.Timeouts.QualitySec) * time.Second
}

// GapCheckTimeout returns the gap analysis deadline.
func (c *Config) GapCheckTimeout() time.Duration {
	return time.Duration(c.Timeouts.GapCheckSec) * time.Second
}
