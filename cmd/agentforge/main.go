// AgentForge CLI entry point.
package main

import (
	"os"

	"github.com/agentforge/agentforge/internal/cli"
)

func main() {
	app := cli.New(os.Stdout, os.Stderr)
	os.Exit(app.Run(os.Args[1:]))
}
