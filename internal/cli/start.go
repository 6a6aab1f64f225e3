package cli

import (
	"context"
	"flag"

	"github.com/agentforge/agentforge/pkg/kernel/controller"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/kernel/state"
	"github.com/agentforge/agentforge/pkg/kernel/templateconfig"
)

// runStart implements `start <request>` (spec §6): a new pipeline on
// the default "implement" template, running end to end unless an
// override flag narrows it.
func (a *App) runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")
	supervised := fs.Bool("supervised", false, "pause for approval after every stage except the last")
	exitAfter := fs.String("exit-after", "", "stop after this stage completes")
	iterate := fs.Bool("iterate", false, "enable iteration (re-run a stage on feedback) beyond the template default")
	deliveryMode := fs.String("delivery-mode", "", "commit, pr, files, or patch (passed as initial_context.delivery_mode)")
	timeoutSec := fs.Int("timeout", 0, "override the pipeline timeout in seconds")
	showMetrics := fs.Bool("metrics", false, "print Prometheus-format metrics for this run to stdout")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge start <request> [flags]\n")
		return ExitUsage
	}

	return a.execute(executeArgs{
		project:      *project,
		template:     "implement",
		request:      fs.Arg(0),
		supervised:   *supervised,
		exitAfter:    *exitAfter,
		iterate:      *iterate,
		deliveryMode: *deliveryMode,
		timeoutSec:   *timeoutSec,
		showMetrics:  *showMetrics,
	})
}

// runDesign implements `design <request>`: a convenience alias for the
// "design" template, which the template itself defines to exit after
// spec (spec §6: "exits after spec").
func (a *App) runDesign(args []string) int {
	fs := flag.NewFlagSet("design", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge design <request> [flags]\n")
		return ExitUsage
	}

	return a.execute(executeArgs{
		project:  *project,
		template: "design",
		request:  fs.Arg(0),
		onComplete: func(a *App, projectPath string, result *controller.Result) {
			specID, err := writeSpec(projectPath, result.PipelineID, result.Deliverable)
			if err != nil {
				a.errf("Warning: failed to persist spec: %v\n", err)
				return
			}
			a.outf("Spec:     %s\n", specID)
		},
	})
}

// runImplement implements `implement [<request>] [--from-spec <spec_id>]
// [--skip-to {red, green}]`: a new pipeline (optionally pre-seeded from
// a persisted spec artifact) that, with --skip-to, begins execution
// partway through the "implement" template's stage sequence instead of
// at intake.
func (a *App) runImplement(args []string) int {
	fs := flag.NewFlagSet("implement", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")
	fromSpec := fs.String("from-spec", "", "persisted spec id to seed initial_context.components from")
	skipTo := fs.String("skip-to", "", "red or green: start execution at this stage instead of intake")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	var request string
	if fs.NArg() > 0 {
		request = fs.Arg(0)
	}
	if request == "" && *fromSpec == "" {
		a.errf("Usage: agentforge implement [<request>] [--from-spec <spec_id>] [--skip-to {red,green}]\n")
		return ExitUsage
	}

	var skipStage stage.Name
	if *skipTo != "" {
		var err error
		skipStage, err = stage.ParseName(*skipTo)
		if err != nil || (skipStage != stage.Red && skipStage != stage.Green) {
			a.errf("Error: --skip-to must be \"red\" or \"green\"\n")
			return ExitUsage
		}
	}

	initialContext := map[string]any{}
	if *fromSpec != "" {
		components, err := readSpecComponents(*project, *fromSpec)
		if err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		initialContext["components"] = components
	}

	return a.execute(executeArgs{
		project:        *project,
		template:       "implement",
		request:        request,
		initialContext: initialContext,
		skipTo:         skipStage,
	})
}

// executeArgs bundles the flags every start-a-pipeline command maps
// into a templateconfig.Override and controller.ExecuteRequest.
type executeArgs struct {
	project        string
	template       string
	request        string
	initialContext map[string]any
	supervised     bool
	exitAfter      string
	iterate        bool
	deliveryMode   string
	timeoutSec     int
	showMetrics    bool
	skipTo         stage.Name
	onComplete     func(a *App, projectPath string, result *controller.Result)
}

func (a *App) execute(ea executeArgs) int {
	ctx := context.Background()

	k, err := a.loadKernel(ctx, ea.project, ea.template)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	k.logger.InfoCtx(ctx, "pipeline execute", "template", ea.template, "project", ea.project)

	ov := &templateconfig.Override{}
	if ea.supervised {
		ov.Supervised = &ea.supervised
	}
	if ea.exitAfter != "" {
		ov.ExitAfter = &ea.exitAfter
	}
	if ea.timeoutSec > 0 {
		ov.TimeoutSeconds = &ea.timeoutSec
	}
	if ea.iterate {
		big := 1 << 30
		ov.MaxIterations = &big
	}

	rc, err := k.resolveTemplate(ea.template, ov)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if ea.skipTo != "" {
		if idx := rc.Stages.IndexOf(ea.skipTo); idx >= 0 {
			rc.Stages = rc.Stages[idx:]
		}
	}

	initialContext := ea.initialContext
	if initialContext == nil {
		initialContext = map[string]any{}
	}
	if ea.deliveryMode != "" {
		initialContext["delivery_mode"] = ea.deliveryMode
	}

	result, err := k.controller.Execute(ctx, controller.ExecuteRequest{
		UserRequest:    ea.request,
		TemplateName:   ea.template,
		InitialContext: initialContext,
		ProjectPath:    ea.project,
		RuntimeConfig:  rc,
	})
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	if result.Status == state.Completed && ea.onComplete != nil {
		ea.onComplete(a, ea.project, result)
	}
	k.logger.InfoCtx(ctx, "pipeline execute complete", "pipeline", result.PipelineID, "status", string(result.Status))

	a.printResult(result)
	if ea.showMetrics {
		a.outf("%s", k.metrics.Export())
	}
	return exitForStatus(string(result.Status))
}

func (a *App) printResult(result *controller.Result) {
	a.outf("Pipeline: %s\n", result.PipelineID)
	a.outf("Status:   %s\n", result.Status)
	if result.Error != "" {
		a.errf("Error:    %s\n", result.Error)
	}
	if result.Status == state.Completed && len(result.Deliverable) > 0 {
		a.outf("Deliverable: %v\n", result.Deliverable)
	}
}
