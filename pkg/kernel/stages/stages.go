// Package stages builds the default Stage Registry (spec §4.3): one
// concrete Executor per pipeline stage name, wired against a real
// LLM Provider and the toolkit's tools.
//
// Seven stages (intake through refactor) are LLM-driven
// (executor.LLMExecutor), each with its own system/user prompt and a
// stage-appropriate subset of pkg/toolkit tools attached directly to
// the underlying pkg/agent.Agent's tool-use loop (spec §4.2's "execute
// = drive a provider call, optionally using tools"). The deliver stage
// is a thin wrapper over an existing contract instead (spec §4.2's
// second base variant): it never calls an LLM, only stages, commits,
// and optionally pushes via the git tool, routed through the Tool
// Bridge so every git operation lands in the Audit Log.
package stages

import (
	"context"
	"fmt"
	"strings"

	kcontext "github.com/agentforge/agentforge/pkg/kernel/context"
	"github.com/agentforge/agentforge/pkg/kernel/executor"
	"github.com/agentforge/agentforge/pkg/kernel/registry"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/kernel/toolbridge"
	"github.com/agentforge/agentforge/pkg/llm"
	"github.com/agentforge/agentforge/pkg/tool"
	"github.com/agentforge/agentforge/pkg/toolkit"
)

// Config bundles what Build needs to construct stage executors.
type Config struct {
	Provider    llm.Provider
	Model       string
	ProjectPath string
	Bridge      *toolbridge.Bridge // used only by the deliver stage's contract runner

	// StageModel resolves a per-stage provider/model override (settings.yaml's
	// per-stage overrides, spec §6). Return a nil provider to fall back to
	// Provider/Model above. May be nil to use Provider/Model for every stage.
	StageModel func(stage.Name) (llm.Provider, string)
}

func (c Config) resolve(name stage.Name) (llm.Provider, string) {
	if c.StageModel != nil {
		if p, m := c.StageModel(name); p != nil {
			return p, m
		}
	}
	return c.Provider, c.Model
}

// Build registers the eight default stage executors into a fresh
// Registry.
func Build(cfg Config) (*registry.Registry, error) {
	reg := registry.New()

	fsRead := &toolkit.FileReadTool{Root: cfg.ProjectPath}
	fsWrite := &toolkit.FileWriteTool{Root: cfg.ProjectPath}
	fsEdit := &toolkit.FileEditTool{Root: cfg.ProjectPath}
	fsList := &toolkit.FileListTool{Root: cfg.ProjectPath}
	search := &toolkit.CodeSearchTool{Root: cfg.ProjectPath}
	tests := &toolkit.TestRunnerTool{Root: cfg.ProjectPath}

	specs := []struct {
		name     stage.Name
		artType  string
		required []string
		expected []string
		system   executor.PromptFunc
		user     executor.PromptFunc
		tools    []tool.Tool
	}{
		{stage.Intake, "intake_artifact", nil, []string{"detected_scope", "priority"},
			intakeSystemPrompt, intakeUserPrompt, []tool.Tool{fsList, fsRead}},
		{stage.Clarify, "clarify_artifact", []string{"detected_scope"}, []string{"clarified_requirements"},
			clarifySystemPrompt, clarifyUserPrompt, []tool.Tool{fsRead, search}},
		{stage.Analyze, "analyze_artifact", []string{"clarified_requirements"}, []string{"analysis"},
			analyzeSystemPrompt, analyzeUserPrompt, []tool.Tool{fsRead, fsList, search}},
		{stage.Spec, "spec_artifact", []string{"analysis"}, []string{"components"},
			specSystemPrompt, specUserPrompt, []tool.Tool{fsRead, search}},
		{stage.Red, "red_artifact", []string{"components"}, []string{"test_files"},
			redSystemPrompt, redUserPrompt, []tool.Tool{fsRead, fsWrite, fsEdit, search, tests}},
		{stage.Green, "green_artifact", []string{"test_files"}, []string{"implementation_files"},
			greenSystemPrompt, greenUserPrompt, []tool.Tool{fsRead, fsWrite, fsEdit, search, tests}},
		{stage.Refactor, "refactor_artifact", []string{"implementation_files"}, []string{"tests_still_passing"},
			refactorSystemPrompt, refactorUserPrompt, []tool.Tool{fsRead, fsEdit, search, tests}},
	}

	for _, s := range specs {
		provider, model := cfg.resolve(s.name)
		exec := executor.NewLLMExecutor(
			s.name, s.artType, s.required, s.expected,
			provider, model, s.system, s.user,
			executor.WithTools(s.tools...),
			executor.WithMaxTurns(8),
		)
		if err := reg.Register(exec); err != nil {
			return nil, fmt.Errorf("stages: register %s: %w", s.name, err)
		}
	}

	deliver := executor.NewContractExecutor(
		stage.Deliver, "deliver_artifact",
		[]string{"tests_still_passing"}, []string{"deliverable_type"},
		deliverRunner(cfg.Bridge),
		nil, nil,
	)
	if err := reg.Register(deliver); err != nil {
		return nil, fmt.Errorf("stages: register deliver: %w", err)
	}

	return reg, nil
}

// deliverRunner stages and commits the working tree, pushing only when
// the input artifact requests delivery_mode "pr" or "commit" with
// push=true (spec's deliverable_type vocabulary: commit, pr, files,
// patch). "files"/"patch" leave the tree uncommitted for the caller to
// export instead.
func deliverRunner(bridge *toolbridge.Bridge) executor.ContractRunner {
	return func(ctx context.Context, sc *kcontext.StageContext, inputs map[string]any) (map[string]any, error) {
		mode, _ := inputs["delivery_mode"].(string)
		if mode == "" {
			mode = "commit"
		}

		if mode == "files" || mode == "patch" {
			return map[string]any{
				"deliverable_type":    mode,
				"tests_still_passing": inputs["tests_still_passing"],
			}, nil
		}

		if _, err := bridge.Run(ctx, sc.PipelineID, stage.Deliver, "git", []byte(`{"action":"add"}`)); err != nil {
			return nil, fmt.Errorf("deliver: stage changes: %w", err)
		}

		summary, _ := inputs["summary"].(string)
		if summary == "" {
			summary = "AgentForge pipeline delivery"
		}
		msg := fmt.Sprintf(`{"action":"commit","message":%q}`, strings.TrimSpace(summary))
		if _, err := bridge.Run(ctx, sc.PipelineID, stage.Deliver, "git", []byte(msg)); err != nil {
			return nil, fmt.Errorf("deliver: commit: %w", err)
		}

		if push, _ := inputs["push"].(bool); mode == "pr" || (mode == "commit" && push) {
			if _, err := bridge.Run(ctx, sc.PipelineID, stage.Deliver, "git", []byte(`{"action":"push"}`)); err != nil {
				return nil, fmt.Errorf("deliver: push: %w", err)
			}
		}

		return map[string]any{
			"deliverable_type":    mode,
			"tests_still_passing": inputs["tests_still_passing"],
		}, nil
	}
}
