package cli

import (
	"context"
	"flag"

	"github.com/agentforge/agentforge/pkg/kernel/escalation"
	"github.com/agentforge/agentforge/pkg/kernel/state"
)

// runApprove implements `approve <pipeline_id>` (spec §6: "unblock
// awaiting_approval").
//
// A supervised pipeline's Controller.Execute call blocks synchronously
// inside escalation.Manager.RequestApproval, polling for a resolution
// file — it is a different, still-running process from this CLI
// invocation. approve's job is therefore to write that resolution file
// (escalations.Resolve), not to mutate PipelineState directly: doing
// the latter would race the blocked process's own state.Save calls
// once it wakes up. Only when no pending escalation record exists
// (the original process has already exited, e.g. it was killed or hit
// max_wait) does approve fall back to Controller.Approve, which
// performs the transition itself and re-enters runLoop in this process.
func (a *App) runApprove(args []string) int {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge approve <pipeline_id>\n")
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
	if p.Status != state.AwaitingApproval {
		a.errf("Error: pipeline %s is not awaiting approval (status %s)\n", pipelineID, p.Status)
		return ExitNotApplicable
	}

	pending, err := k.escalations.Pending(pipelineID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if pending != nil && pending.Kind == escalation.KindApproval {
		if err := k.escalations.Resolve(pending.ID, escalation.Resolution{Approved: true}); err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		a.outf("Pipeline: %s\n", pipelineID)
		a.outf("Status:   approval resolution recorded; the running controller will resume it\n")
		return ExitOK
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
	ok, err := k2.controller.Approve(ctx, pipelineID, rc)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if !ok {
		a.errf("Error: pipeline %s could not be approved\n", pipelineID)
		return ExitNotApplicable
	}

	result, err := k2.controller.GetStatus(pipelineID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	a.outf("Pipeline: %s\n", result.ID)
	a.outf("Status:   %s\n", result.Status)
	return exitForStatus(string(result.Status))
}
