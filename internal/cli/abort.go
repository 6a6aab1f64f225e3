package cli

import (
	"context"
	"flag"
)

// runAbort implements `abort <pipeline_id> [--reason <text>]` (spec
// §6). Unlike approve/reject, abort is always safe to issue directly
// against the State Store: Controller.Abort only flips a non-terminal
// pipeline's status and persists it, and the next time any blocked
// escalation poll or runLoop iteration touches this pipeline it will
// observe the terminal status and stop (escalation polls simply time
// out and stop mattering once the pipeline is already aborted).
func (a *App) runAbort(args []string) int {
	fs := flag.NewFlagSet("abort", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")
	reason := fs.String("reason", "", "reason recorded in the audit log")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge abort <pipeline_id> [--reason <text>]\n")
		return ExitUsage
	}
	pipelineID := fs.Arg(0)

	ctx := context.Background()
	k, err := a.loadKernel(ctx, *project, "")
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	ok, err := k.controller.Abort(pipelineID, *reason)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if !ok {
		a.errf("Error: pipeline %s could not be aborted (not found or already terminal)\n", pipelineID)
		return ExitNotApplicable
	}

	a.outf("Pipeline: %s\n", pipelineID)
	a.outf("Status:   aborted\n")
	return ExitPipelineAbort
}
