package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/thunderclaude/orchestrator/internal/model"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): environment variables,
// project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := Default()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.thunderclaude/orchestrator.json
// Project: .thunderclaude/orchestrator.json (relative to cwd)
// A .env file in the cwd is loaded first so its variables participate
// in the environment overrides.
func LoadDefault() (*Config, error) {
	// Ignore the error: a missing .env is the normal case.
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".thunderclaude", "orchestrator.json")
	projectPath := filepath.Join(".thunderclaude", "orchestrator.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile unmarshals a JSON config file over the base config, so
// only keys present in the file replace earlier values.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, base); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides config fields from THUNDERCLAUDE_* variables.
// Unparseable values are ignored rather than fatal.
func applyEnv(cfg *Config) {
	if v, ok := envInt("THUNDERCLAUDE_CONCURRENCY"); ok {
		cfg.Concurrency = v
	}
	if v, ok := envInt("THUNDERCLAUDE_MAX_TASKS"); ok {
		cfg.MaxTasks = v
	}
	if v, ok := envInt("THUNDERCLAUDE_STAGGER_MS"); ok {
		cfg.StaggerMS = v
	}
	if v := os.Getenv("THUNDERCLAUDE_MODE"); v != "" {
		cfg.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("THUNDERCLAUDE_PLANNER_MODEL"); v != "" {
		cfg.PlannerModel = v
	}
	if v, ok := envBool("THUNDERCLAUDE_REQUIRE_APPROVAL"); ok {
		cfg.RequireApproval = v
	}
	if v, ok := envBool("THUNDERCLAUDE_STRICT_CRITICAL"); ok {
		cfg.StrictCritical = v
	}
	if v, ok := envBool("THUNDERCLAUDE_QUALITY_GATE"); ok {
		cfg.QualityGate = v
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// validate clamps or rejects out-of-range settings.
func (c *Config) validate() error {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MaxTasks < 1 {
		c.MaxTasks = 1
	}
	if c.StaggerMS < 0 {
		c.StaggerMS = 0
	}
	if c.Mode != ModeStandard && c.Mode != ModeDeep {
		return fmt.Errorf("unknown mode %q (want %q or %q)", c.Mode, ModeStandard, ModeDeep)
	}
	c.PlannerModel = model.Canonical(c.PlannerModel)
	d := Default()
	if c.Timeouts.PlanningSec <= 0 {
		c.Timeouts.PlanningSec = d.Timeouts.PlanningSec
	}
	if c.Timeouts.WorkerSec <= 0 {
		c.Timeouts.WorkerSec = d.Timeouts.WorkerSec
	}
	if c.Timeouts.SynthesisSec <= 0 {
		c.Timeouts.SynthesisSec = d.Timeouts.SynthesisSec
	}
	if c.Timeouts.QualitySec <= 0 {
		c.Timeouts.QualitySec = d.Timeouts.QualitySec
	}
	if c.Timeouts.GapCheckSec <= 0 {
		c.Timeouts.GapCheckSec = d.Timeouts.GapCheckSec
	}
	return nil
}
