package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// runArtifacts implements `artifacts <pipeline_id> [--stage <name>]
// [--output <file>]` (spec §6): prints or exports a pipeline's
// recorded stage artifacts.
func (a *App) runArtifacts(args []string) int {
	fs := flag.NewFlagSet("artifacts", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree the pipeline runs against")
	stageFilter := fs.String("stage", "", "show only this stage's artifact")
	output := fs.String("output", "", "write the artifact (or concatenated artifacts) to this file instead of stdout")

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() == 0 {
		a.errf("Usage: agentforge artifacts <pipeline_id> [--stage <name>] [--output <file>]\n")
		return ExitUsage
	}
	pipelineID := fs.Arg(0)

	ctx := context.Background()
	k, err := a.loadKernel(ctx, *project, "")
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}

	relPaths, err := k.artifacts.List(pipelineID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if len(relPaths) == 0 {
		a.outf("No artifacts found for pipeline %s.\n", pipelineID)
		return ExitOK
	}

	var out []byte
	for _, rel := range relPaths {
		art, err := k.artifacts.Read(rel)
		if err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		if *stageFilter != "" && string(art.Metadata.Stage) != *stageFilter {
			continue
		}
		data, err := yaml.Marshal(art)
		if err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		out = append(out, []byte(fmt.Sprintf("# %s\n", rel))...)
		out = append(out, data...)
		out = append(out, []byte("---\n")...)
	}

	if len(out) == 0 {
		a.outf("No artifact found for stage %q.\n", *stageFilter)
		return ExitOK
	}

	if *output != "" {
		if err := os.WriteFile(*output, out, 0o644); err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
		a.outf("Wrote %s\n", *output)
		return ExitOK
	}

	a.outf("%s", out)
	return ExitOK
}
