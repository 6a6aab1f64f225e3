package cli

import (
	"context"
	"flag"

	"github.com/agentforge/agentforge/pkg/kernel/controller"
	"github.com/agentforge/agentforge/pkg/kernel/escalation"
	"github.com/agentforge/agentforge/pkg/kernel/state"
)

// runReject implements `reject <pipeline_id> [--feedback <text>]
// [--abort]` (spec §6). Follows the same live-process-vs-cold-resume
// split as approve (see approve.go's doc comment): prefer writing an
// escalation resolution file when one is pending, only falling back to
// direct Controller calls once the original process is gone.
func (a *App) runReject(args []string) int {
	fs := flag.NewFlagSet("reject", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")
	feedback := fs.String("feedback", "", "feedback causing the current stage to re-run instead of aborting")
	abortFlag := fs.Bool("abort", false, "end the pipeline instead of re-running the stage")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge reject <pipeline_id> [--feedback <text>] [--abort]\n")
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
		res := escalation.Resolution{Approved: false}
		if !*abortFlag && *feedback != "" {
			res.Feedback = feedback
		}
		if err := k.escalations.Resolve(pending.ID, res); err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		a.outf("Pipeline: %s\n", pipelineID)
		a.outf("Status:   rejection resolution recorded; the running controller will resume it\n")
		return ExitOK
	}

	// Cold path: the controller blocked in RequestApproval is gone.
	if *abortFlag || *feedback == "" {
		ok, err := k.controller.Abort(pipelineID, "rejected without feedback")
		if err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		if !ok {
			a.errf("Error: pipeline %s could not be aborted\n", pipelineID)
			return ExitNotApplicable
		}
		a.outf("Pipeline: %s\n", pipelineID)
		a.outf("Status:   aborted\n")
		return ExitPipelineAbort
	}

	ok, err := k.controller.ProvideFeedback(pipelineID, *feedback)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if !ok {
		a.errf("Error: pipeline %s could not accept feedback\n", pipelineID)
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
