package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/agentforge/agentforge/pkg/kernel/state"
)

// runPipelines implements `pipelines [--status <status>] [--limit N]`
// (spec §6).
func (a *App) runPipelines(args []string) int {
	fs := flag.NewFlagSet("pipelines", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")
	statusFlag := fs.String("status", "", "filter by status (pending, running, paused, awaiting_approval, completed, failed, aborted)")
	limit := fs.Int("limit", 20, "maximum number of pipelines to list")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	ctx := context.Background()
	k, err := a.loadKernel(ctx, *project, "")
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	var filter *state.Status
	if *statusFlag != "" {
		s := state.Status(*statusFlag)
		filter = &s
	}

	summaries, err := k.controller.List(filter, *limit)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if len(summaries) == 0 {
		a.outf("No pipelines found.\n")
		return ExitOK
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTEMPLATE\tSTATUS\tSTAGE\tUPDATED")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.TemplateName, s.Status, s.CurrentStage, s.UpdatedAt.Format("2006-01-02T15:04:05Z"))
	}
	_ = w.Flush()
	return ExitOK
}
