package cli

import (
	"context"
	"flag"

	"github.com/agentforge/agentforge/pkg/kernel/controller"
	"github.com/agentforge/agentforge/pkg/kernel/state"
)

// runResume implements `resume <pipeline_id> [--feedback <text>]`
// (spec §6). Resuming runs in a fresh process: the original Controller
// that was blocked in escalation.Manager.WaitForResolution (if any) has
// long since timed out or this is simply a paused, non-escalated
// pipeline, so resume re-enters runLoop via Controller.Execute's
// ResumePipelineID path rather than writing an escalation resolution
// file (that path is approve/reject's job, see approve.go).
func (a *App) runResume(args []string) int {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")
	feedback := fs.String("feedback", "", "feedback to stash before resuming the current stage")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge resume <pipeline_id> [--feedback <text>]\n")
		return ExitUsage
	}
	pipelineID := fs.Arg(0)

	ctx := context.Background()
	k, err := a.loadKernel(ctx, *project, "")
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	p, err := k.controller.GetStatus(pipelineID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if p == nil {
		a.errf("Error: pipeline %s not found\n", pipelineID)
		return ExitNotApplicable
	}
	if p.Status.Terminal() {
		// Resume idempotence (spec §8): a no-op returning the same result.
		a.printResult(&controller.Result{PipelineID: p.ID, Status: p.Status, Error: p.LastError})
		return exitForStatus(string(p.Status))
	}

	if *feedback != "" {
		ok, err := k.controller.ProvideFeedback(pipelineID, *feedback)
		if err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		if !ok {
			a.errf("Error: pipeline %s is not paused or awaiting approval\n", pipelineID)
			return ExitNotApplicable
		}
	} else if p.Status != state.Paused && p.Status != state.AwaitingApproval && p.Status != state.Running {
		a.errf("Error: pipeline %s is not resumable from status %s\n", pipelineID, p.Status)
		return ExitNotApplicable
	}

	k2, err := a.loadKernel(ctx, *project, p.TemplateName)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	rc, err := k2.resolveTemplate(p.TemplateName, nil)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	result, err := k2.controller.Execute(ctx, controller.ExecuteRequest{
		ResumePipelineID: pipelineID,
		RuntimeConfig:    rc,
	})
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	a.printResult(result)
	return exitForStatus(string(result.Status))
}
