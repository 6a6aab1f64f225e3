package executor

import (
	"context"
	"fmt"

	kcontext "github.com/agentforge/agentforge/pkg/kernel/context"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
)

// ContractRunner is an external, pre-existing operation a
// ContractExecutor reuses instead of calling an LLM (spec §4.2:
// "reuse legacy contracts without rewriting"). Typical contract
// runners wrap the Tool Bridge (e.g. "run go test", "run git commit")
// or the Conformance package's validate(artifact, contract_id). sc is
// passed through so a runner that calls the Tool Bridge can record its
// actions under the right pipeline id and stage name.
type ContractRunner func(ctx context.Context, sc *kcontext.StageContext, inputs map[string]any) (outputs map[string]any, err error)

// FieldMap renames artifact fields when crossing into or out of a
// contract's own vocabulary; a nil map is the identity mapping.
type FieldMap map[string]string

// ContractExecutor is the contract-wrapping base variant (spec §4.2):
// it maps the input artifact into a contract's input vocabulary, runs
// the contract, and maps the contract's outputs back into the stage's
// artifact vocabulary.
type ContractExecutor struct {
	name           stage.Name
	artifactType   string
	requiredInput  []string
	expectedOutput []string

	runner    ContractRunner
	inputMap  FieldMap
	outputMap FieldMap
}

// NewContractExecutor builds a contract-wrapping executor for a stage.
func NewContractExecutor(name stage.Name, artifactType string, requiredInput, expectedOutput []string, runner ContractRunner, inputMap, outputMap FieldMap) *ContractExecutor {
	return &ContractExecutor{
		name:           name,
		artifactType:   artifactType,
		requiredInput:  requiredInput,
		expectedOutput: expectedOutput,
		runner:         runner,
		inputMap:       inputMap,
		outputMap:      outputMap,
	}
}

func (e *ContractExecutor) Name() stage.Name        { return e.name }
func (e *ContractExecutor) ArtifactType() string     { return e.artifactType }
func (e *ContractExecutor) RequiredInput() []string  { return e.requiredInput }
func (e *ContractExecutor) ExpectedOutput() []string { return e.expectedOutput }

func (e *ContractExecutor) Execute(ctx context.Context, sc *kcontext.StageContext) (StageResult, error) {
	inputs := remap(sc.InputArtifact, e.inputMap)
	outputs, err := e.runner(ctx, sc, inputs)
	if err != nil {
		return StageResult{Status: Failed, Error: fmt.Sprintf("contract runner: %v", err)}, nil
	}
	return StageResult{
		Status:   Success,
		Artifact: remap(outputs, e.outputMap),
	}, nil
}

func remap(body map[string]any, m FieldMap) map[string]any {
	if m == nil {
		return body
	}
	out := make(map[string]any, len(body))
	for k, v := range body {
		if renamed, ok := m[k]; ok {
			out[renamed] = v
			continue
		}
		out[k] = v
	}
	return out
}
