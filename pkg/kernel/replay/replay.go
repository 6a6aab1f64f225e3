// Package replay implements the Audit Log's replay capabilities
// (spec §4.10, "described at design level; implementation may
// follow"): re-applying a pipeline's recorded tool actions elsewhere,
// and forking a new pipeline from a point in an existing one's
// history.
package replay

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentforge/agentforge/pkg/kernel/artifact"
	"github.com/agentforge/agentforge/pkg/kernel/audit"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/kernel/state"
	"github.com/agentforge/agentforge/pkg/kernel/toolbridge"
)

// ReplayActions re-applies every recorded tool_call entry from
// sourcePipelineID, in original step order, against whatever workspace
// bridge is rooted at. No LLM calls are reissued (spec §4.10: "no LLM
// calls") — only the filesystem and git operations a stage's executor
// made through the Tool Bridge, useful for reapplying the same change
// to a different project checkout. Entries are recorded into the
// Audit Log under targetPipelineID exactly as if bridge had made the
// calls live.
func ReplayActions(ctx context.Context, bridge *toolbridge.Bridge, audits *audit.Log, sourcePipelineID, targetPipelineID string) (int, error) {
	entries, err := audits.Load(sourcePipelineID)
	if err != nil {
		return 0, fmt.Errorf("replay: load audit log for %s: %w", sourcePipelineID, err)
	}

	replayed := 0
	for _, e := range entries {
		if e.Action != audit.ToolCall || e.ToolName == "" {
			continue
		}
		if _, err := bridge.Run(ctx, targetPipelineID, e.Stage, e.ToolName, e.ToolParams); err != nil {
			return replayed, fmt.Errorf("replay: step %d (%s on stage %s): %w", e.Step, e.ToolName, e.Stage, err)
		}
		replayed++
	}
	return replayed, nil
}

// stageCompletedAt reports whether e is the state_transition entry the
// Controller writes when a stage finishes ("stage %s completed" in
// controller.go's runLoop, step 8).
func stageCompletedAt(e audit.Entry) bool {
	return e.Action == audit.StateTransition &&
		strings.HasPrefix(e.Summary, "stage ") && strings.HasSuffix(e.Summary, " completed")
}

// ForkFromStep copies sourcePipelineID's state and the artifacts it
// had produced by audit step atStep into a brand new pipeline, newID,
// ready to resume with a fresh executor (spec §4.10: "fork from step:
// copy state and artifacts up to step N and resume with a fresh
// executor"). A fork requested mid-stage rewinds to the last stage
// boundary at or before atStep — only whole completed stages are ever
// copied, never a partial one.
func ForkFromStep(states *state.Store, artifacts *artifact.Store, audits *audit.Log, sourcePipelineID string, atStep int, newID string) (*state.PipelineState, error) {
	src, err := states.Load(sourcePipelineID)
	if err != nil {
		return nil, fmt.Errorf("fork: load %s: %w", sourcePipelineID, err)
	}
	if src == nil {
		return nil, fmt.Errorf("fork: pipeline %s not found", sourcePipelineID)
	}

	entries, err := audits.Load(sourcePipelineID)
	if err != nil {
		return nil, fmt.Errorf("fork: load audit log for %s: %w", sourcePipelineID, err)
	}

	var completed []stage.Name
	for _, e := range entries {
		if e.Step > atStep {
			break
		}
		if stageCompletedAt(e) {
			completed = append(completed, e.Stage)
		}
	}

	fork := state.New(newID, src.TemplateName, src.Request, src.InitialContext, src.Stages, src.ProjectPath)
	fork.CompletedStages = completed
	fork.CurrentStageIndex = len(completed)
	fork.StageArtifacts = make(map[stage.Name]string, len(completed))
	for idx, name := range completed {
		relPath, ok := src.StageArtifacts[name]
		if !ok {
			continue
		}
		art, err := artifacts.Read(relPath)
		if err != nil {
			return nil, fmt.Errorf("fork: read artifact %s: %w", relPath, err)
		}
		if n, ok := src.IterationCount[name]; ok {
			fork.IterationCount[name] = n
		}
		newRel, _, err := artifacts.Write(artifact.New(newID, idx, name, art.Metadata.Iteration, art.Metadata.ArtifactType, art.Body))
		if err != nil {
			return nil, fmt.Errorf("fork: write artifact for stage %s: %w", name, err)
		}
		fork.StageArtifacts[name] = newRel
	}

	if err := states.Save(fork); err != nil {
		return nil, fmt.Errorf("fork: persist %s: %w", newID, err)
	}
	return fork, nil
}
