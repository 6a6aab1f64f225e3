package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentforge/agentforge/pkg/kernel/artifact"
	"github.com/agentforge/agentforge/pkg/kernel/audit"
	kcontext "github.com/agentforge/agentforge/pkg/kernel/context"
	"github.com/agentforge/agentforge/pkg/kernel/controller"
	"github.com/agentforge/agentforge/pkg/kernel/escalation"
	"github.com/agentforge/agentforge/pkg/kernel/registry"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/kernel/stages"
	"github.com/agentforge/agentforge/pkg/kernel/state"
	"github.com/agentforge/agentforge/pkg/kernel/templateconfig"
	"github.com/agentforge/agentforge/pkg/kernel/toolbridge"
	"github.com/agentforge/agentforge/pkg/kernel/validator"
	"github.com/agentforge/agentforge/pkg/llm"
	"github.com/agentforge/agentforge/pkg/tool"
	"github.com/agentforge/agentforge/pkg/toolkit"
	"github.com/agentforge/agentforge/pkg/trace"
	tracelog "github.com/agentforge/agentforge/pkg/trace/log"
	"github.com/agentforge/agentforge/pkg/trace/metrics"
)

const (
	// stateDir is the default ".agentforge" working directory, relative
	// to the project path a pipeline runs against (spec §6).
	stateDir     = ".agentforge"
	settingsPath = stateDir + "/config/settings.yaml"
	stageCfgDir  = stateDir + "/config/stages"
	templatesDir = stateDir + "/pipelines"
)

// kernel bundles everything a CLI command needs to drive the
// Controller: the loaded KernelConfig plus every component New wires
// into it. One kernel is built per invocation, rooted at the project
// path the command operates against and the template it intends to
// run (stage model overrides are resolved against that one template).
type kernel struct {
	cfg         *templateconfig.KernelConfig
	projectPath string
	registry    *registry.Registry
	artifacts   *artifact.Store
	states      *state.Store
	audits      *audit.Log
	bridge      *toolbridge.Bridge
	escalations *escalation.Manager
	controller  *controller.Controller
	logger      *tracelog.Logger
	metrics     *metrics.Registry
}

// loadKernel reads .agentforge/config/settings.yaml (plus any
// .agentforge/config/stages/<name>.yaml and .agentforge/pipelines/*.yaml
// files) under projectPath, resolves the configured default provider
// (and any per-stage override from templateName) into concrete
// llm.Provider values, and assembles a Controller with the default
// Stage Registry (pkg/kernel/stages.Build) and toolkit wired in.
//
// templateName may be empty for read-only commands (status, pipelines,
// artifacts) that never call Controller.Execute/Approve and so never
// exercise the stage registry's providers.
func (a *App) loadKernel(ctx context.Context, projectPath, templateName string) (*kernel, error) {
	base := filepath.Join(projectPath, stateDir)
	cfgPath := filepath.Join(projectPath, settingsPath)

	cfg, err := templateconfig.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", settingsPath, err)
	}
	if err := loadStageOverrides(cfg, filepath.Join(projectPath, stageCfgDir)); err != nil {
		return nil, err
	}
	if err := loadTemplateFiles(cfg, filepath.Join(projectPath, templatesDir)); err != nil {
		return nil, err
	}

	provider, err := a.providerFactory(ctx, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolve provider %q: %w", cfg.Provider, err)
	}

	toolReg := tool.NewRegistry()
	if err := toolkit.Register(toolReg, projectPath, toolkit.Options{
		GitAuthToken: os.Getenv("AGENTFORGE_GIT_TOKEN"),
	}); err != nil {
		return nil, fmt.Errorf("register toolkit: %w", err)
	}

	audits := audit.New(base)
	bridge := toolbridge.New(toolReg, audits)

	stageModel, err := a.stageModelResolver(ctx, cfg, templateName)
	if err != nil {
		return nil, err
	}

	reg, err := stages.Build(stages.Config{
		Provider:    provider,
		Model:       cfg.Model,
		ProjectPath: projectPath,
		Bridge:      bridge,
		StageModel:  stageModel,
	})
	if err != nil {
		return nil, fmt.Errorf("build stage registry: %w", err)
	}

	artifacts := artifact.New(base)
	states := state.New(base)
	escalations := escalation.New(base,
		escalation.WithPollInterval(cfg.Escalation.PollInterval.Duration),
		escalation.WithMaxWait(cfg.Escalation.MaxWait.Duration),
	)
	ctxBuilder := kcontext.New(artifacts, audits, base, kcontext.DefaultBudget())
	val := validator.New()

	logger := tracelog.New(os.Stderr, tracelog.Info)
	metricsReg := metrics.NewRegistry()
	tracer := metrics.NewCollector(trace.NewMulti(trace.NewStdout(os.Stderr), trace.NewSlog(nil)), metricsReg)

	ctrl := controller.New(reg, artifacts, states, audits, ctxBuilder, val, escalations, cfg.Cost, tracer, base)

	return &kernel{
		cfg:         cfg,
		projectPath: projectPath,
		registry:    reg,
		artifacts:   artifacts,
		states:      states,
		audits:      audits,
		bridge:      bridge,
		escalations: escalations,
		controller:  ctrl,
		logger:      logger,
		metrics:     metricsReg,
	}, nil
}

// stageModelResolver builds a stages.Config.StageModel function from
// templateName's per-stage overrides, if any. Templates are optional:
// an empty or unknown templateName resolves every stage to the
// kernel's global default provider/model.
func (a *App) stageModelResolver(ctx context.Context, cfg *templateconfig.KernelConfig, templateName string) (func(stage.Name) (llm.Provider, string), error) {
	tmpl, ok := cfg.Templates[templateName]
	if !ok || len(tmpl.Overrides) == 0 {
		return nil, nil
	}

	resolved := make(map[stage.Name]struct {
		provider llm.Provider
		model    string
	}, len(tmpl.Overrides))
	for name, ov := range tmpl.Overrides {
		if ov.Provider == "" {
			continue
		}
		sn, err := stage.ParseName(name)
		if err != nil {
			return nil, fmt.Errorf("template %q: override stage %q: %w", templateName, name, err)
		}
		p, err := a.providerFactory(ctx, ov.Provider)
		if err != nil {
			return nil, fmt.Errorf("template %q: override stage %q: resolve provider %q: %w", templateName, name, ov.Provider, err)
		}
		resolved[sn] = struct {
			provider llm.Provider
			model    string
		}{p, ov.Model}
	}
	if len(resolved) == 0 {
		return nil, nil
	}

	return func(name stage.Name) (llm.Provider, string) {
		if r, ok := resolved[name]; ok {
			return r.provider, r.model
		}
		return nil, ""
	}, nil
}

// resolveTemplate loads and merges templateName's Template with an
// optional start-time Override into a RuntimeConfig.
func (k *kernel) resolveTemplate(templateName string, ov *templateconfig.Override) (templateconfig.RuntimeConfig, error) {
	tmpl, ok := k.cfg.Templates[templateName]
	if !ok {
		return templateconfig.RuntimeConfig{}, fmt.Errorf("unknown template %q", templateName)
	}
	return templateconfig.Resolve(tmpl, ov)
}
