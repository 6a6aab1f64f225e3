package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/agentforge/agentforge/pkg/tool"
)

// defaultTestTimeout bounds a single test_runner invocation when the
// caller's context carries no deadline of its own.
const defaultTestTimeout = 5 * time.Minute

// TestRunnerTool runs `go test` against a package path within the
// project and reports pass/fail plus combined output. It shells out to
// the go toolchain the way the teacher's command plugin shells out to
// arbitrary commands: CommandContext, CombinedOutput, and exec.ExitError
// distinguishing "tests failed" from "could not run the tests at all".
type TestRunnerTool struct {
	Root string
}

func (t *TestRunnerTool) Name() string { return "test_runner" }
func (t *TestRunnerTool) Description() string {
	return "Run `go test` for a package path within the project and report pass/fail with output."
}
func (t *TestRunnerTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"package": {Type: "string", Description: "Package path to test, e.g. \"./...\" (default: \"./...\")."},
			"run":     {Type: "string", Description: "Optional -run filter regexp."},
		},
	}
}

type testRunnerInput struct {
	Package string `json:"package"`
	Run     string `json:"run"`
}

type testRunnerOutput struct {
	Passed   bool   `json:"passed"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

func (t *TestRunnerTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in testRunnerInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return "", fmt.Errorf("test_runner: invalid input: %w", err)
		}
	}
	pkg := in.Package
	if pkg == "" {
		pkg = "./..."
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTestTimeout)
		defer cancel()
	}

	args := []string{"test", pkg}
	if in.Run != "" {
		args = append(args, "-run", in.Run)
	}

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = t.Root
	cmd.Env = os.Environ()

	out, err := cmd.CombinedOutput()
	result := testRunnerOutput{Output: strings.TrimSpace(string(out))}
	if err == nil {
		result.Passed = true
		result.ExitCode = 0
	} else {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Passed = false
			result.ExitCode = exitErr.ExitCode()
		} else {
			return "", fmt.Errorf("test_runner: could not run go test: %w", err)
		}
	}

	encoded, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return "", fmt.Errorf("test_runner: encode result: %w", marshalErr)
	}
	return string(encoded), nil
}
