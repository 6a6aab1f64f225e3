// Package templateconfig implements Configuration / Pipeline Templates
// (spec §4 item 10): loading a named pipeline template (ordered stage
// list + defaults + per-stage overrides + exit conditions) into a
// runtime PipelineConfig, merging CLI/API overrides.
//
// The YAML-plus-${VAR}-substitution loader and Duration type are
// carried over verbatim from the teacher's internal/config package
// (config.Substitute, config.Duration), generalized from "agent
// configs" to "pipeline templates plus kernel-wide settings".
package templateconfig

import (
	"fmt"
	"os"

	"github.com/agentforge/agentforge/internal/config"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"gopkg.in/yaml.v3"
)

// StageOverride carries per-stage tuning a template can set (spec §3
// PipelineConfig: "per-stage overrides").
type StageOverride struct {
	Model         string `yaml:"model,omitempty"`
	Provider      string `yaml:"provider,omitempty"`
	MaxIterations int    `yaml:"max_iterations,omitempty"`
}

// Template is one named pipeline template as loaded from disk: the
// ordered stage sequence, defaults, per-stage overrides, and exit
// conditions (spec §4 item 10).
type Template struct {
	Name             string                          `yaml:"name"`
	Description      string                          `yaml:"description,omitempty"`
	Stages           []string                        `yaml:"stages"`
	ExitAfter        string                           `yaml:"exit_after,omitempty"`
	Supervised       bool                            `yaml:"supervised"`
	IterationEnabled bool                            `yaml:"iteration_enabled"`
	MaxIterations    int                             `yaml:"max_iterations"`
	MaxRetries       int                             `yaml:"max_retries,omitempty"`
	TimeoutSeconds   int                             `yaml:"timeout_seconds"`
	Overrides        map[string]StageOverride        `yaml:"overrides,omitempty"`
}

// DefaultMaxRetries is "max_retries_per_stage" default (spec §4.1:
// "up to max_retries_per_stage attempts (default 2 retries = 3 total)").
const DefaultMaxRetries = 2

// EscalationConfig tunes the Escalation Manager's file-polling backend.
type EscalationConfig struct {
	PollInterval config.Duration `yaml:"poll_interval"`
	MaxWait      config.Duration `yaml:"max_wait"`
}

// CostConfig mirrors the cost-cap and alert-threshold fields the
// Controller checks after each stage (spec's supplemented
// cost-threshold-alert feature); the cap also sets the budget of the
// run's pkg/cost.Tracker.
type CostConfig struct {
	MaxCostPerPipelineUSD float64   `yaml:"max_cost_per_pipeline_usd"`
	AlertThresholds       []float64 `yaml:"alert_thresholds,omitempty"`
}

// KernelConfig is the top-level agentforge.yaml structure: named
// templates plus the kernel-wide settings every pipeline shares.
type KernelConfig struct {
	Version    string              `yaml:"version"`
	Provider   string              `yaml:"provider"`
	Model      string              `yaml:"model"`
	Supervised bool                `yaml:"supervised_by_default"`
	AutoCommit bool                `yaml:"auto_commit"`
	Templates  map[string]Template `yaml:"templates"`
	Escalation EscalationConfig    `yaml:"escalation"`
	Cost       CostConfig          `yaml:"cost"`
	StateDir   string              `yaml:"state_dir"`
}

// Load reads an agentforge.yaml file, substitutes ${VAR}/${VAR:-default}
// environment references, parses it, and validates the result.
func Load(path string) (*KernelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templateconfig: read %s: %w", path, err)
	}

	substituted := config.Substitute(string(data))

	var cfg KernelConfig
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("templateconfig: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is structurally sound.
func (c *KernelConfig) Validate() error {
	if c.Version != "1" {
		return fmt.Errorf("templateconfig: unsupported version %q (expected \"1\")", c.Version)
	}
	if len(c.Templates) == 0 {
		return fmt.Errorf("templateconfig: at least one template is required")
	}
	for name, tmpl := range c.Templates {
		if _, err := tmpl.StageSequence(); err != nil {
			return fmt.Errorf("templateconfig: template %q: %w", name, err)
		}
	}
	return nil
}

// StageSequence validates and converts a template's raw stage name
// list into a stage.Sequence.
func (t Template) StageSequence() (stage.Sequence, error) {
	return stage.ValidateSequence(t.Stages)
}

// RuntimeConfig is the immutable-for-the-run PipelineConfig (spec §3):
// derived from a Template plus any start-time overrides.
type RuntimeConfig struct {
	Stages                stage.Sequence
	ExitAfter             stage.Name // zero value means run to completion
	Supervised            bool
	IterationEnabled      bool
	MaxIterationsPerStage int
	MaxRetriesPerStage    int
	TimeoutSeconds        int
	Overrides             map[string]StageOverride
}

// Override is a start-time customization applied on top of a template
// (spec §3: "Derived from a template plus overrides at start time").
type Override struct {
	ExitAfter      *string
	Supervised     *bool
	MaxIterations  *int
	TimeoutSeconds *int
}

// Resolve merges a template with an optional start-time override into
// a RuntimeConfig. Stage sequence is never overridable once resolved
// (spec §3 invariant: "immutable after creation; overrides apply only
// before first execution" — this function *is* "before first
// execution", so the sequence is fixed here and frozen afterward).
func Resolve(tmpl Template, ov *Override) (RuntimeConfig, error) {
	seq, err := tmpl.StageSequence()
	if err != nil {
		return RuntimeConfig{}, err
	}

	rc := RuntimeConfig{
		Stages:                seq,
		Supervised:            tmpl.Supervised,
		IterationEnabled:      tmpl.IterationEnabled,
		MaxIterationsPerStage: tmpl.MaxIterations,
		MaxRetriesPerStage:    tmpl.MaxRetries,
		TimeoutSeconds:        tmpl.TimeoutSeconds,
		Overrides:             tmpl.Overrides,
	}
	if rc.MaxRetriesPerStage <= 0 {
		rc.MaxRetriesPerStage = DefaultMaxRetries
	}
	if tmpl.ExitAfter != "" {
		name, err := stage.ParseName(tmpl.ExitAfter)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("templateconfig: exit_after: %w", err)
		}
		rc.ExitAfter = name
	}

	if ov == nil {
		return rc, nil
	}
	if ov.ExitAfter != nil {
		name, err := stage.ParseName(*ov.ExitAfter)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("templateconfig: override exit_after: %w", err)
		}
		rc.ExitAfter = name
	}
	if ov.Supervised != nil {
		rc.Supervised = *ov.Supervised
	}
	if ov.MaxIterations != nil {
		rc.MaxIterationsPerStage = *ov.MaxIterations
	}
	if ov.TimeoutSeconds != nil {
		rc.TimeoutSeconds = *ov.TimeoutSeconds
	}
	return rc, nil
}
