// Package validator implements the Artifact Validator (spec §4.8):
// given (from_stage, to_stage, artifact), it checks the artifact
// against the named transition contract and the from-stage's
// artifact-type invariants (spec §4.2).
//
// The "named contract with a required-field set plus stage-specific
// rules, surfaced as a result object rather than an exception" shape
// is grounded on the teacher's pkg/tool.Schema + input-validation
// idiom in pkg/agent/run.go, generalized from "is this tool call's
// JSON well-formed" to "does this artifact satisfy the next stage's
// contract".
package validator

import (
	"fmt"

	"github.com/agentforge/agentforge/pkg/kernel/stage"
)

// Result is the outcome of validating one artifact against one
// transition contract.
type Result struct {
	Passed   bool
	Warnings []string
	Errors   []string
}

// transitionKey identifies a named contract (spec §4.8's eight named
// transitions, two of which leave intake).
type transitionKey struct {
	From, To stage.Name
}

// rule checks from-stage invariants against its own artifact body
// (spec §4.2's per-stage invariant table). maxIterations/iteration
// are only consulted by the green rule's iteration-budget check; 0
// means "no budget configured".
type rule func(body map[string]any, iteration, maxIterations int) (warnings, errs []string)

// contract pairs a transition's required fields with its rule.
type contract struct {
	required []string
	rule     rule
}

// Validator holds the registered named transition contracts.
type Validator struct {
	contracts map[transitionKey]contract
}

// New builds a Validator pre-loaded with the eight named transition
// contracts from spec §4.8.
func New() *Validator {
	v := &Validator{contracts: make(map[transitionKey]contract)}
	v.register(stage.Intake, stage.Clarify, []string{"detected_scope", "priority"}, intakeRule)
	v.register(stage.Intake, stage.Analyze, []string{"detected_scope", "priority"}, intakeRule)
	v.register(stage.Clarify, stage.Analyze, []string{"clarified_requirements"}, clarifyRule)
	v.register(stage.Analyze, stage.Spec, []string{"analysis"}, analyzeRule)
	v.register(stage.Spec, stage.Red, []string{"components"}, specRule)
	v.register(stage.Red, stage.Green, []string{"test_files"}, redRule)
	v.register(stage.Green, stage.Refactor, []string{"implementation_files"}, greenRule)
	v.register(stage.Refactor, stage.Deliver, []string{}, refactorRule)
	return v
}

func (v *Validator) register(from, to stage.Name, required []string, r rule) {
	v.contracts[transitionKey{from, to}] = contract{required: required, rule: r}
}

// Validate checks body (the from-stage's output artifact) against the
// named contract for from -> to. iteration/maxIterations feed the
// green stage's iteration-budget check (spec §4.2); pass 0 for either
// when not applicable.
func (v *Validator) Validate(from, to stage.Name, body map[string]any, iteration, maxIterations int) (Result, error) {
	c, ok := v.contracts[transitionKey{from, to}]
	if !ok {
		return Result{}, fmt.Errorf("validator: no contract registered for transition %s -> %s", from, to)
	}

	var errs []string
	for _, f := range c.required {
		if v, ok := body[f]; !ok || v == nil {
			errs = append(errs, fmt.Sprintf("missing required field %q", f))
		}
	}

	warnings, ruleErrs := c.rule(body, iteration, maxIterations)
	errs = append(errs, ruleErrs...)

	return Result{
		Passed:   len(errs) == 0,
		Warnings: warnings,
		Errors:   errs,
	}, nil
}

func stringSliceField(body map[string]any, key string) []any {
	v, _ := body[key].([]any)
	return v
}

func stringField(body map[string]any, key string) (string, bool) {
	v, ok := body[key].(string)
	return v, ok
}

func boolField(body map[string]any, key string) bool {
	v, _ := body[key].(bool)
	return v
}

func intField(body map[string]any, key string) int {
	switch v := body[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

var validScopes = map[string]bool{
	"bug_fix": true, "feature_addition": true, "refactoring": true,
	"documentation": true, "testing": true, "unclear": true,
}

var validPriorities = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

func intakeRule(body map[string]any, _, _ int) (warnings, errs []string) {
	if scope, ok := stringField(body, "detected_scope"); ok && !validScopes[scope] {
		errs = append(errs, fmt.Sprintf("detected_scope %q is not a recognized scope", scope))
	}
	if priority, ok := stringField(body, "priority"); ok && !validPriorities[priority] {
		warnings = append(warnings, fmt.Sprintf("priority %q is not recognized; defaulting to medium", priority))
		body["priority"] = "medium"
	}
	scope, _ := stringField(body, "detected_scope")
	questions := stringSliceField(body, "questions")
	if scope == "unclear" && len(questions) == 0 {
		warnings = append(warnings, "scope is unclear but no clarifying questions were produced")
	}
	return warnings, errs
}

func clarifyRule(body map[string]any, _, _ int) (warnings, errs []string) {
	if v, ok := body["clarified_requirements"].(string); ok && v == "" {
		errs = append(errs, "clarified_requirements is empty")
	}
	if boolField(body, "ready_for_analysis") {
		for _, q := range stringSliceField(body, "questions") {
			if m, ok := q.(map[string]any); ok && boolField(m, "blocking") {
				warnings = append(warnings, "ready_for_analysis is set while a blocking question remains")
				break
			}
		}
	}
	return warnings, errs
}

func analyzeRule(body map[string]any, _, _ int) (warnings, errs []string) {
	if _, ok := body["analysis"]; !ok {
		errs = append(errs, "analysis block is missing")
	}
	if len(stringSliceField(body, "affected_files")) == 0 {
		warnings = append(warnings, "affected_files list is empty")
	}
	if len(stringSliceField(body, "components")) == 0 {
		warnings = append(warnings, "components list is empty")
	}
	return warnings, errs
}

func specRule(body map[string]any, _, _ int) (warnings, errs []string) {
	components := stringSliceField(body, "components")
	if len(components) == 0 {
		errs = append(errs, "at least one component is required")
		return warnings, errs
	}
	for i, c := range components {
		m, ok := c.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("component %d is not a mapping", i))
			continue
		}
		if _, ok := stringField(m, "name"); !ok {
			errs = append(errs, fmt.Sprintf("component %d is missing a name", i))
		}
		if _, ok := stringField(m, "file_path"); !ok {
			warnings = append(warnings, fmt.Sprintf("component %d has no file path", i))
		}
	}
	if len(stringSliceField(body, "test_cases")) == 0 {
		warnings = append(warnings, "no test cases were specified")
	}
	return warnings, errs
}

func redRule(body map[string]any, _, _ int) (warnings, errs []string) {
	if len(stringSliceField(body, "test_files")) == 0 {
		errs = append(errs, "at least one test file is required")
	}
	results, _ := body["test_results"].(map[string]any)
	failing := intField(results, "failing")
	total := intField(results, "total")
	if total > 0 && failing == 0 {
		warnings = append(warnings, "all recorded tests pass; suspected pre-existing implementation")
	}
	return warnings, errs
}

func greenRule(body map[string]any, iteration, maxIterations int) (warnings, errs []string) {
	if len(stringSliceField(body, "implementation_files")) == 0 {
		errs = append(errs, "at least one implementation file is required")
	}
	results, _ := body["test_results"].(map[string]any)
	failing := intField(results, "failing")
	allPass := boolField(body, "all_tests_pass")
	if allPass && failing != 0 {
		errs = append(errs, "all_tests_pass is set but failing test count is nonzero")
	}
	if !allPass && maxIterations > 0 && iteration >= maxIterations {
		errs = append(errs, fmt.Sprintf("max iteration budget (%d) reached without all tests passing", maxIterations))
	}
	return warnings, errs
}

func refactorRule(body map[string]any, _, _ int) (warnings, errs []string) {
	if !boolField(body, "tests_still_passing") {
		errs = append(errs, "tests must still pass after refactor")
	}
	return warnings, errs
}

var validDeliverableTypes = map[string]bool{"commit": true, "pr": true, "files": true, "patch": true}

// DeliverRule is not wired to a transition contract (deliver has no
// successor stage) but is exposed so the Controller can still run the
// deliver-stage invariant from spec §4.2 as a final output check.
func DeliverRule(body map[string]any) (warnings, errs []string) {
	t, ok := stringField(body, "deliverable_type")
	if !ok || !validDeliverableTypes[t] {
		errs = append(errs, fmt.Sprintf("deliverable_type %q is not one of commit, pr, files, patch", t))
	}
	return warnings, errs
}
