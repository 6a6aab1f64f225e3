// Package cli implements the AgentForge command-line interface: one
// subcommand per Pipeline Controller operation (spec §6 External
// Interfaces — CLI), dispatched by a hand-rolled flag.FlagSet switch in
// the teacher's own style rather than a third-party CLI framework.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/agentforge/agentforge/pkg/llm"
)

// Exit codes (spec §6): 0 success, 1 usage error, 2 operation not
// applicable (e.g. approve on a pipeline that isn't awaiting approval),
// 3 pipeline failed, 4 pipeline aborted.
const (
	ExitOK             = 0
	ExitUsage          = 1
	ExitNotApplicable  = 2
	ExitPipelineFailed = 3
	ExitPipelineAbort  = 4
)

// ProviderFactory creates an LLM provider by name.
// The default implementation resolves API keys from environment variables.
type ProviderFactory func(ctx context.Context, name string) (llm.Provider, error)

// App is the AgentForge CLI application.
type App struct {
	stdout          io.Writer
	stderr          io.Writer
	providerFactory ProviderFactory
}

// New creates a CLI application that writes to the given writers.
func New(stdout, stderr io.Writer) *App {
	return &App{
		stdout:          stdout,
		stderr:          stderr,
		providerFactory: defaultProviderFactory,
	}
}

// SetProviderFactory overrides the default provider factory (for testing).
func (a *App) SetProviderFactory(f ProviderFactory) {
	a.providerFactory = f
}

// Run dispatches to the appropriate subcommand and returns an exit code.
func (a *App) Run(args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return ExitOK
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "version":
		return a.runVersion()
	case "start":
		return a.runStart(cmdArgs)
	case "design":
		return a.runDesign(cmdArgs)
	case "implement":
		return a.runImplement(cmdArgs)
	case "status":
		return a.runStatus(cmdArgs)
	case "resume":
		return a.runResume(cmdArgs)
	case "approve":
		return a.runApprove(cmdArgs)
	case "reject":
		return a.runReject(cmdArgs)
	case "abort":
		return a.runAbort(cmdArgs)
	case "pipelines":
		return a.runPipelines(cmdArgs)
	case "artifacts":
		return a.runArtifacts(cmdArgs)
	case "config":
		return a.runConfig(cmdArgs)
	case "replay":
		return a.runReplay(cmdArgs)
	case "help", "-h", "--help":
		a.printUsage()
		return ExitOK
	default:
		a.errf("unknown command: %s\n\n", cmd)
		a.printUsage()
		return ExitUsage
	}
}

func (a *App) printUsage() {
	a.outf(`agentforge — Orchestrate multi-stage AI coding pipelines

Usage: agentforge <command> [flags]

Commands:
  start       Start a full intake-through-deliver pipeline
  design      Run intake through spec only (design review)
  implement   Run the implement pipeline, optionally seeded from a spec
  status      Show a pipeline's current state
  resume      Resume a paused pipeline
  approve     Approve the stage awaiting supervised approval
  reject      Reject the stage awaiting supervised approval
  abort       Abort a running or paused pipeline
  pipelines   List known pipelines
  artifacts   Inspect a pipeline's recorded stage artifacts
  config      Manage .agentforge/config (init, show, validate)
  replay      Replay tool actions or fork a pipeline from an audit step
  version     Print version information
  help        Show this help message

Run 'agentforge <command> -h' for command-specific help.
`)
}

// outf writes to stdout, ignoring write errors (terminal I/O).
func (a *App) outf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}

// errf writes to stderr, ignoring write errors (terminal I/O).
func (a *App) errf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stderr, format, args...)
}

// exitForStatus maps a terminal (or paused) pipeline status to the
// process exit code spec §6 assigns it.
func exitForStatus(status string) int {
	switch status {
	case "failed":
		return ExitPipelineFailed
	case "aborted":
		return ExitPipelineAbort
	default:
		return ExitOK
	}
}
