package cli

import (
	"context"
	"flag"

	"github.com/agentforge/agentforge/pkg/kernel/state"
)

// runStatus implements `status [<pipeline_id>] [--verbose]`: prints the
// named pipeline's current state, or the most recently updated one
// when no id is given.
func (a *App) runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")
	verbose := fs.Bool("verbose", false, "show stage artifacts and recent audit entries")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	ctx := context.Background()
	k, err := a.loadKernel(ctx, *project, "")
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	var p *state.PipelineState
	if fs.NArg() > 0 {
		p, err = k.controller.GetStatus(fs.Arg(0))
		if err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		if p == nil {
			a.errf("Error: pipeline %s not found\n", fs.Arg(0))
			return ExitNotApplicable
		}
	} else {
		summaries, err := k.controller.List(nil, 1)
		if err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		if len(summaries) == 0 {
			a.outf("No pipelines found.\n")
			return ExitOK
		}
		p, err = k.controller.GetStatus(summaries[0].ID)
		if err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
	}

	a.printPipelineState(p, *verbose, k)
	return exitForStatus(string(p.Status))
}

func (a *App) printPipelineState(p *state.PipelineState, verbose bool, k *kernel) {
	a.outf("Pipeline:        %s\n", p.ID)
	a.outf("Template:        %s\n", p.TemplateName)
	a.outf("Status:          %s\n", p.Status)
	a.outf("Current stage:   %s (index %d/%d)\n", p.CurrentStage(), p.CurrentStageIndex, len(p.Stages))
	a.outf("Completed:       %v\n", p.CompletedStages)
	a.outf("Tokens used:     %d\n", p.TokensUsed.TotalTokens)
	a.outf("Cost:            $%.4f\n", p.CostUSD)
	if p.LastError != "" {
		a.outf("Last error:      %s\n", p.LastError)
	}
	if p.ActiveEscalationID != "" {
		a.outf("Escalation:      %s\n", p.ActiveEscalationID)
	}

	if !verbose {
		return
	}

	a.outf("\nStage artifacts:\n")
	for _, name := range p.Stages {
		if relPath, ok := p.StageArtifacts[name]; ok {
			a.outf("  %-10s %s\n", name, relPath)
		}
	}

	entries, err := k.audits.Load(p.ID)
	if err != nil {
		a.errf("Warning: failed to load audit log: %v\n", err)
		return
	}
	a.outf("\nAudit log (%d entries):\n", len(entries))
	for _, e := range entries {
		a.outf("  [%d] %-10s %-14s %s\n", e.Step, e.Stage, e.Action, e.Summary)
	}
}
