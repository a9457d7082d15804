package config

import "github.com/thunderclaude/orchestrator/internal/model"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Concurrency:     3,
		MaxTasks:        7,
		StaggerMS:       800,
		Mode:            ModeStandard,
		PlannerModel:    model.DefaultPlanner,
		RequireApproval: true,
		StrictCritical:  false,
		QualityGate:     true,
		Timeouts: Timeouts{
			PlanningSec:  120,
			WorkerSec:    600,
			SynthesisSec: 180,
			QualitySec:   90,
			GapCheckSec:  120,
		},
	}
}

// Execution modes.
const (
	ModeStandard = "standard" // Plan, execute, synthesize
	ModeDeep     = "deep"     // Adds a gap-analysis pass after the first waves
)
