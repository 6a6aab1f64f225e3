// Package executor implements the Stage Executor contract (spec §4.2):
// the initialize -> validate_input -> execute -> validate_output ->
// finalize lifecycle every stage runs through, plus the two concrete
// base variants (LLM-driven and contract-wrapping) built on it.
//
// The lifecycle-with-short-circuit shape is grounded on the teacher's
// pkg/agent.Agent tool-use loop (a bounded sequence of phases, any of
// which can terminate the run early with a result instead of an
// error), adapted from "agent turn" to "stage attempt".
package executor

import (
	"context"
	"fmt"
	"time"

	kcontext "github.com/agentforge/agentforge/pkg/kernel/context"
	"github.com/agentforge/agentforge/pkg/kernel/artifact"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/llm"
)

// Status is the outcome of one stage attempt (spec §4.2, §4.1 step 3-4).
type Status string

const (
	Success   Status = "success"
	Failed    Status = "failed"
	Escalated Status = "escalated" // pending: Controller must pause for resolution
)

// StageResult is what an executor attempt produces.
type StageResult struct {
	Status           Status
	Artifact         map[string]any
	ArtifactType     string
	EscalationReason string
	Error            string
	Usage            llm.Usage
	CostUSD          float64
	Warnings         []string
}

// Executor is the contract every stage implementation satisfies
// (spec §4.2). Name, ArtifactType, RequiredInput and ExpectedOutput
// describe the contract; Execute runs the stage-specific body — the
// lifecycle wrapper in this package handles validate_input/
// validate_output/finalize around it.
type Executor interface {
	Name() stage.Name
	ArtifactType() string
	RequiredInput() []string
	ExpectedOutput() []string
	// Execute is the abstract phase (_execute in spec §4.2): given a
	// built StageContext, produce the stage's artifact body.
	Execute(ctx context.Context, sc *kcontext.StageContext) (StageResult, error)
}

// Initializer is implemented by executors needing a setup phase before
// validate_input (spec §4.2 "initialize (optional setup)").
type Initializer interface {
	Initialize(ctx context.Context, sc *kcontext.StageContext) error
}

// Finalizer is implemented by executors needing custom finalize logic
// in place of the default Artifact Store persistence.
type Finalizer interface {
	Finalize(ctx context.Context, sc *kcontext.StageContext, result StageResult) (relPath, hash string, err error)
}

// Run drives one executor through the full lifecycle for one attempt:
// initialize (if present) -> validate_input -> Execute -> validate_output
// -> finalize (default: persist to the Artifact Store). Any phase can
// short-circuit with a failed StageResult (spec §4.2).
func Run(ctx context.Context, e Executor, sc *kcontext.StageContext, store *artifact.Store) (StageResult, string, string, error) {
	if init, ok := e.(Initializer); ok {
		if err := init.Initialize(ctx, sc); err != nil {
			return StageResult{Status: Failed, Error: fmt.Sprintf("initialize: %v", err)}, "", "", nil
		}
	}

	if miss := missingFields(sc.InputArtifact, e.RequiredInput()); len(miss) > 0 {
		return StageResult{
			Status: Failed,
			Error:  fmt.Sprintf("missing required input fields: %v", miss),
		}, "", "", nil
	}

	result, err := e.Execute(ctx, sc)
	if err != nil {
		return StageResult{Status: Failed, Error: err.Error()}, "", "", nil
	}
	if result.Status == Escalated {
		return result, "", "", nil
	}
	if result.Status != Success {
		if result.Error == "" {
			result.Error = "executor returned non-success status without an error"
		}
		return result, "", "", nil
	}

	if result.Artifact == nil {
		return StageResult{Status: Failed, Error: "executor produced no artifact"}, "", "", nil
	}
	if miss := missingFields(result.Artifact, e.ExpectedOutput()); len(miss) > 0 {
		return StageResult{Status: Failed, Error: fmt.Sprintf("missing expected output fields: %v", miss)}, "", "", nil
	}

	if f, ok := e.(Finalizer); ok {
		relPath, hash, err := f.Finalize(ctx, sc, result)
		if err != nil {
			return StageResult{Status: Failed, Error: fmt.Sprintf("finalize: %v", err)}, "", "", nil
		}
		return result, relPath, hash, nil
	}

	artifactType := e.ArtifactType()
	if result.ArtifactType != "" {
		artifactType = result.ArtifactType
	}
	a := artifact.New(sc.PipelineID, sc.StageIndex, e.Name(), sc.Iteration, artifactType, result.Artifact)
	relPath, hash, err := store.Write(a)
	if err != nil {
		return StageResult{}, "", "", fmt.Errorf("finalize: persist artifact: %w", err)
	}
	return result, relPath, hash, nil
}

func missingFields(body map[string]any, required []string) []string {
	var missing []string
	for _, f := range required {
		v, ok := body[f]
		if !ok || v == nil {
			missing = append(missing, f)
		}
	}
	return missing
}

// timeoutOr wraps ctx with the StageContext's declared timeout hint,
// falling back to def when unset.
func timeoutOr(ctx context.Context, sc *kcontext.StageContext, def time.Duration) (context.Context, context.CancelFunc) {
	d := def
	if sc.TimeoutSeconds > 0 {
		d = time.Duration(sc.TimeoutSeconds) * time.Second
	}
	return context.WithTimeout(ctx, d)
}
