// Package toolbridge implements the Tool Bridge (spec §4.9): a uniform
// run(action_name, params) operation over pluggable handlers, with
// per-call timeouts and Audit Log recording.
//
// The lookup-then-invoke shape is grounded on pkg/tool.Registry plus
// the dispatch loop in pkg/agent/run.go (look up a tool.Tool by name,
// execute it with a JSON payload, turn a panic/error into a structured
// result) — generalized here from "one LLM tool call" to "one
// executor-initiated action", and a handler exception always becomes
// an error return plus an Audit Log entry, never a process panic.
package toolbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentforge/agentforge/pkg/kernel/audit"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/tool"
)

// defaultTimeout bounds a single action when the caller does not
// override it.
const defaultTimeout = 60 * time.Second

// Bridge dispatches named actions to registered tool.Tool handlers and
// records every call to the Audit Log.
type Bridge struct {
	registry *tool.Registry
	audits   *audit.Log
	timeout  time.Duration
}

// New creates a Tool Bridge over an existing tool registry.
func New(registry *tool.Registry, audits *audit.Log) *Bridge {
	return &Bridge{registry: registry, audits: audits, timeout: defaultTimeout}
}

// WithTimeout overrides the per-call timeout applied when the caller's
// context carries no earlier deadline.
func (b *Bridge) WithTimeout(d time.Duration) *Bridge {
	b.timeout = d
	return b
}

// Run executes actionName with params, recording the call (input
// summary, exit result) to the Audit Log under pipelineID/st
// (spec §4.9). Run returns an error for an unknown action and for a
// handler that fails or panics; both are recorded first. A failure to
// write the audit entry is not reported.
func (b *Bridge) Run(ctx context.Context, pipelineID string, st stage.Name, actionName string, params json.RawMessage) (string, error) {
	t, err := b.registry.Get(actionName)
	if err != nil {
		b.record(pipelineID, st, actionName, params, "", fmt.Sprintf("no handler for action %q", actionName))
		return "", fmt.Errorf("toolbridge: %w", err)
	}

	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	output, execErr := func() (out string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return t.Execute(runCtx, params)
	}()
	errText := ""
	if execErr != nil {
		errText = execErr.Error()
	}
	b.record(pipelineID, st, actionName, params, output, errText)

	if execErr != nil {
		return "", fmt.Errorf("toolbridge: action %q failed: %w", actionName, execErr)
	}
	return output, nil
}

func (b *Bridge) record(pipelineID string, st stage.Name, actionName string, params json.RawMessage, output, errText string) {
	if b.audits == nil {
		return
	}
	entry := audit.Entry{
		Stage:      st,
		Action:     audit.ToolCall,
		ToolName:   actionName,
		ToolParams: params,
		Summary:    summarizeResult(actionName, output),
		Error:      errText,
	}
	// Audit recording is best-effort from the bridge's perspective: a
	// failure to append must not mask the action's own result, so it is
	// swallowed here. Controllers that need a hard guarantee the log
	// kept up should check Audit Log health independently.
	_, _ = b.audits.Append(pipelineID, entry)
}

func summarizeResult(actionName, output string) string {
	const limit = 200
	if len(output) <= limit {
		return fmt.Sprintf("%s -> %s", actionName, output)
	}
	return fmt.Sprintf("%s -> %s...(truncated)", actionName, output[:limit])
}
