package context

import (
	"testing"

	"github.com/agentforge/agentforge/pkg/kernel/artifact"
	"github.com/agentforge/agentforge/pkg/kernel/audit"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/kernel/state"
)

func setup(t *testing.T) (*Builder, *artifact.Store, *audit.Log, string) {
	t.Helper()
	dir := t.TempDir()
	as := artifact.New(dir)
	al := audit.New(dir)
	b := New(as, al, dir, DefaultBudget())
	return b, as, al, dir
}

func TestBuildUsesPreviousStageArtifact(t *testing.T) {
	b, as, _, _ := setup(t)

	a := artifact.New("PL-1", 0, stage.Intake, 1, "intake", map[string]any{
		"detected_scope": "feature_addition",
		"priority":       "high",
	})
	relPath, _, err := as.Write(a)
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	p := state.New("PL-1", "implement", "add OAuth2", nil, stage.Sequence{stage.Intake, stage.Clarify}, "/tmp/proj")
	p.StageArtifacts[stage.Intake] = relPath

	sc, err := b.Build(p, stage.Clarify)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sc.InputArtifact["detected_scope"] != "feature_addition" {
		t.Errorf("InputArtifact missing upstream field: %+v", sc.InputArtifact)
	}
	if sc.StageIndex != 1 {
		t.Errorf("StageIndex = %d, want 1", sc.StageIndex)
	}
}

func TestBuildFirstStageUsesInitialContext(t *testing.T) {
	b, _, _, _ := setup(t)

	p := state.New("PL-2", "implement", "add OAuth2", map[string]any{"seed": "value"}, stage.Sequence{stage.Intake}, "/tmp/proj")

	sc, err := b.Build(p, stage.Intake)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sc.InputArtifact["seed"] != "value" {
		t.Errorf("expected initial context to flow through as input artifact, got %+v", sc.InputArtifact)
	}
}

func TestBuildIncludesRecentActionsWindow(t *testing.T) {
	b, _, al, _ := setup(t)

	for i := 0; i < 5; i++ {
		if _, err := al.Append("PL-3", audit.Entry{Stage: stage.Analyze, Action: audit.ToolCall, Summary: "step"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	p := state.New("PL-3", "implement", "req", nil, stage.Sequence{stage.Analyze}, "/tmp/proj")
	sc, err := b.Build(p, stage.Analyze)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sc.RecentActions) != recentActionsWindow {
		t.Errorf("got %d recent actions, want %d (window cap)", len(sc.RecentActions), recentActionsWindow)
	}
}

func TestBuildVerificationStatusReflectsLastError(t *testing.T) {
	b, _, _, _ := setup(t)

	p := state.New("PL-4", "implement", "req", nil, stage.Sequence{stage.Intake}, "/tmp/proj")
	p.LastError = "missing required field: priority"

	sc, err := b.Build(p, stage.Intake)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sc.VerificationStatus == "ok" {
		t.Error("expected VerificationStatus to reflect LastError, got ok")
	}
}

func TestBuildMergesEscalationResolutionIntoNonFirstStage(t *testing.T) {
	b, as, _, _ := setup(t)

	a := artifact.New("PL-6", 0, stage.Intake, 1, "intake", map[string]any{
		"detected_scope": "feature_addition",
		"priority":       "high",
	})
	relPath, _, err := as.Write(a)
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	p := state.New("PL-6", "implement", "add OAuth2", map[string]any{
		ResolutionKey: map[string]any{"clarified": true},
	}, stage.Sequence{stage.Intake, stage.Clarify}, "/tmp/proj")
	p.StageArtifacts[stage.Intake] = relPath

	sc, err := b.Build(p, stage.Clarify)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sc.InputArtifact["detected_scope"] != "feature_addition" {
		t.Errorf("expected upstream artifact fields to survive the merge, got %+v", sc.InputArtifact)
	}
	resolution, ok := sc.InputArtifact[ResolutionKey].(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be merged into a non-first stage's InputArtifact, got %+v", ResolutionKey, sc.InputArtifact)
	}
	if resolution["clarified"] != true {
		t.Errorf("resolution = %+v, want clarified=true", resolution)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b, as, _, _ := setup(t)

	a := artifact.New("PL-5", 0, stage.Intake, 1, "intake", map[string]any{"priority": "low"})
	relPath, _, err := as.Write(a)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	p := state.New("PL-5", "implement", "req", nil, stage.Sequence{stage.Intake, stage.Clarify}, "/tmp/proj")
	p.StageArtifacts[stage.Intake] = relPath

	sc1, err := b.Build(p, stage.Clarify)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	sc2, err := b.Build(p, stage.Clarify)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if sc1.InputArtifact["priority"] != sc2.InputArtifact["priority"] {
		t.Error("repeated Build of unchanged state produced different context")
	}
}
