package cli

import (
	"context"
	"flag"

	"github.com/agentforge/agentforge/internal/id"
	"github.com/agentforge/agentforge/pkg/kernel/replay"
)

// runReplay implements `replay {actions|fork}` (spec §4.10: Audit Log
// replay capabilities), exposing pkg/kernel/replay's two operations as
// CLI subcommands alongside the Pipeline Controller's own commands.
func (a *App) runReplay(args []string) int {
	if len(args) == 0 {
		a.errf("Usage: agentforge replay {actions|fork} <pipeline_id> [flags]\n")
		return ExitUsage
	}

	switch args[0] {
	case "actions":
		return a.runReplayActions(args[1:])
	case "fork":
		return a.runReplayFork(args[1:])
	default:
		a.errf("Error: unknown replay subcommand %q (valid: actions, fork)\n", args[0])
		return ExitUsage
	}
}

// runReplayActions re-applies a pipeline's recorded tool_call entries
// (no LLM calls) against --project, under a new target pipeline id so
// the replay itself gets its own Audit Log trail.
func (a *App) runReplayActions(args []string) int {
	fs := flag.NewFlagSet("replay actions", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree to replay actions against")
	target := fs.String("target", "", "pipeline id to record the replay under (default: a freshly generated id)")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge replay actions <source_pipeline_id> [--target <pipeline_id>] [--project <path>]\n")
		return ExitUsage
	}
	sourceID := fs.Arg(0)
	targetID := *target
	if targetID == "" {
		targetID = id.NewPipelineID()
	}

	ctx := context.Background()
	k, err := a.loadKernel(ctx, *project, "")
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	n, err := replay.ReplayActions(ctx, k.bridge, k.audits, sourceID, targetID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	a.outf("Replayed:  %d tool action(s)\n", n)
	a.outf("Target:    %s\n", targetID)
	return ExitOK
}

// runReplayFork copies a source pipeline's state and stage artifacts
// up to an audit step into a new, resumable pipeline.
func (a *App) runReplayFork(args []string) int {
	fs := flag.NewFlagSet("replay fork", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the source pipeline ran against")
	atStep := fs.Int("at-step", 0, "audit log step to fork from (inclusive)")
	newID := fs.String("new-id", "", "pipeline id for the fork (default: a freshly generated id)")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge replay fork <source_pipeline_id> --at-step <N> [--new-id <pipeline_id>] [--project <path>]\n")
		return ExitUsage
	}
	sourceID := fs.Arg(0)
	if *atStep <= 0 {
		a.errf("Error: --at-step is required and must be positive\n")
		return ExitUsage
	}
	forkID := *newID
	if forkID == "" {
		forkID = id.NewPipelineID()
	}

	ctx := context.Background()
	k, err := a.loadKernel(ctx, *project, "")
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	fork, err := replay.ForkFromStep(k.states, k.artifacts, k.audits, sourceID, *atStep, forkID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	a.outf("Forked:    %s -> %s (at step %d)\n", sourceID, fork.ID, *atStep)
	a.outf("Resume with: agentforge resume %s\n", fork.ID)
	return ExitOK
}
