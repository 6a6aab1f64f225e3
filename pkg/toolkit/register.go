package toolkit

import "github.com/agentforge/agentforge/pkg/tool"

// Options configures which optional toolkit tools Register wires in.
type Options struct {
	// GitAuthToken, if set, is used for HTTP basic-auth push credentials.
	GitAuthToken string
}

// Register wires the full toolkit — filesystem, search, tests, and git
// — into reg, rooted at projectPath. It is the Tool Bridge's one entry
// point for populating a fresh tool.Registry per pipeline run.
func Register(reg *tool.Registry, projectPath string, opts Options) error {
	tools := []tool.Tool{
		&FileReadTool{Root: projectPath},
		&FileWriteTool{Root: projectPath},
		&FileEditTool{Root: projectPath},
		&FileListTool{Root: projectPath},
		&CodeSearchTool{Root: projectPath},
		&TestRunnerTool{Root: projectPath},
		&GitTool{Root: projectPath, AuthToken: opts.GitAuthToken},
		&CloneTool{Root: projectPath},
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
