package stages

import (
	"fmt"
	"strings"

	kcontext "github.com/agentforge/agentforge/pkg/kernel/context"
)

// fencedInstruction is appended to every stage's system prompt so the
// default parser (executor.ExtractStructured) has a reliable block to
// find regardless of how much prose the model adds around it.
const fencedInstruction = "Respond with your reasoning followed by exactly one fenced ```yaml code block containing the artifact described above. Do not include any other fenced block."

func upstreamSummary(sc *kcontext.StageContext) string {
	if len(sc.InputArtifact) == 0 {
		return "(no upstream artifact; this is the first stage)"
	}
	var b strings.Builder
	for k, v := range sc.InputArtifact {
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}
	return b.String()
}

func recentActionsSummary(sc *kcontext.StageContext) string {
	if len(sc.RecentActions) == 0 {
		return "(none yet)"
	}
	return strings.Join(sc.RecentActions, "\n")
}

func feedbackSummary(sc *kcontext.StageContext) string {
	if sc.PreviousFeedback == nil {
		return ""
	}
	return fmt.Sprintf("\nHuman feedback from the previous attempt:\n%s\n", *sc.PreviousFeedback)
}

func intakeSystemPrompt(_ *kcontext.StageContext) string {
	return "You are the intake stage of a software change pipeline. Classify the user's request. " +
		"Produce an artifact with fields: detected_scope (one of bug_fix, feature_addition, refactoring, documentation, testing, unclear), " +
		"priority (low, medium, high, critical), and questions (list of clarifying questions, only when detected_scope is unclear). " +
		"If you cannot proceed without human input, set escalation_reason instead of detected_scope.\n" + fencedInstruction
}

func intakeUserPrompt(sc *kcontext.StageContext) string {
	return fmt.Sprintf("Project: %s\n\nUser request:\n%s\n", sc.ProjectPath, sc.UserRequest)
}

func clarifySystemPrompt(_ *kcontext.StageContext) string {
	return "You are the clarify stage. Given the intake classification, resolve ambiguity or confirm there is none. " +
		"Produce an artifact with fields: clarified_requirements (string), ready_for_analysis (bool), questions (list, each with a blocking bool).\n" + fencedInstruction
}

func clarifyUserPrompt(sc *kcontext.StageContext) string {
	return fmt.Sprintf("Original request:\n%s\n\nIntake output:\n%s%s", sc.UserRequest, upstreamSummary(sc), feedbackSummary(sc))
}

func analyzeSystemPrompt(_ *kcontext.StageContext) string {
	return "You are the analyze stage. Inspect the project and identify what needs to change. " +
		"Produce an artifact with fields: analysis (object with a free-form summary), affected_files (list of paths), components (list of component names). " +
		"Use the available tools to read and search the project before answering.\n" + fencedInstruction
}

func analyzeUserPrompt(sc *kcontext.StageContext) string {
	return fmt.Sprintf("Clarified requirements:\n%s\n\nProject root: %s%s", upstreamSummary(sc), sc.ProjectPath, feedbackSummary(sc))
}

func specSystemPrompt(_ *kcontext.StageContext) string {
	return "You are the spec stage. Turn the analysis into a concrete implementation spec. " +
		"Produce an artifact with fields: components (list of {name, file_path, description}), test_cases (list of strings), acceptance_criteria (list of strings).\n" + fencedInstruction
}

func specUserPrompt(sc *kcontext.StageContext) string {
	return fmt.Sprintf("Analysis:\n%s%s", upstreamSummary(sc), feedbackSummary(sc))
}

func redSystemPrompt(_ *kcontext.StageContext) string {
	return "You are the red stage of a test-driven pipeline. Write failing tests for the spec's components before any implementation exists. " +
		"Use fs_write to create test files, then test_runner to confirm they fail for the right reason (missing implementation, not a syntax error). " +
		"Produce an artifact with fields: test_files (list of paths written), test_results (object with total/failing counts).\n" + fencedInstruction
}

func redUserPrompt(sc *kcontext.StageContext) string {
	return fmt.Sprintf("Spec:\n%s\n\nRecent actions:\n%s%s", upstreamSummary(sc), recentActionsSummary(sc), feedbackSummary(sc))
}

func greenSystemPrompt(_ *kcontext.StageContext) string {
	return "You are the green stage. Make the failing tests from the red stage pass with the minimum correct implementation. " +
		"Use fs_read/fs_write/fs_edit to implement, and test_runner to verify. Do not weaken or delete the tests. " +
		"Produce an artifact with fields: implementation_files (list of paths), all_tests_pass (bool), test_results (object with total/failing counts).\n" + fencedInstruction
}

func greenUserPrompt(sc *kcontext.StageContext) string {
	return fmt.Sprintf("Failing tests:\n%s\n\nRecent actions:\n%s%s", upstreamSummary(sc), recentActionsSummary(sc), feedbackSummary(sc))
}

func refactorSystemPrompt(_ *kcontext.StageContext) string {
	return "You are the refactor stage. With all tests passing, improve the implementation's clarity and structure without changing behavior. " +
		"Re-run test_runner after every change and stop if a test starts failing. " +
		"Produce an artifact with field: tests_still_passing (bool, must be true).\n" + fencedInstruction
}

func refactorUserPrompt(sc *kcontext.StageContext) string {
	return fmt.Sprintf("Implementation so far:\n%s\n\nRecent actions:\n%s%s", upstreamSummary(sc), recentActionsSummary(sc), feedbackSummary(sc))
}
