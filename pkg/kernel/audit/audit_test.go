package audit

import (
	"testing"

	"github.com/agentforge/agentforge/pkg/kernel/stage"
)

func TestAppendAssignsMonotonicSteps(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	e1, err := l.Append("PL-1", Entry{Stage: stage.Intake, Action: StateTransition, Summary: "pipeline created"})
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if e1.Step != 1 {
		t.Errorf("first step = %d, want 1", e1.Step)
	}

	e2, err := l.Append("PL-1", Entry{Stage: stage.Intake, Action: LLMCall, Summary: "intake LLM call"})
	if err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if e2.Step != 2 {
		t.Errorf("second step = %d, want 2", e2.Step)
	}
}

func TestAppendIsolatesPipelines(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	if _, err := l.Append("PL-a", Entry{Action: ToolCall, Summary: "a1"}); err != nil {
		t.Fatalf("append a1: %v", err)
	}
	if _, err := l.Append("PL-b", Entry{Action: ToolCall, Summary: "b1"}); err != nil {
		t.Fatalf("append b1: %v", err)
	}
	e, err := l.Append("PL-a", Entry{Action: ToolCall, Summary: "a2"})
	if err != nil {
		t.Fatalf("append a2: %v", err)
	}
	if e.Step != 2 {
		t.Errorf("PL-a's second entry has step %d, want 2 (independent of PL-b)", e.Step)
	}
}

func TestLoadReturnsEntriesInOrder(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	for _, summary := range []string{"first", "second", "third"} {
		if _, err := l.Append("PL-1", Entry{Action: Verification, Summary: summary}); err != nil {
			t.Fatalf("append %s: %v", summary, err)
		}
	}

	entries, err := l.Load("PL-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"first", "second", "third"} {
		if entries[i].Summary != want {
			t.Errorf("entries[%d].Summary = %q, want %q", i, entries[i].Summary, want)
		}
		if entries[i].Step != i+1 {
			t.Errorf("entries[%d].Step = %d, want %d", i, entries[i].Step, i+1)
		}
	}
}

func TestLoadMissingPipelineReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	entries, err := l.Load("PL-nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil for a pipeline with no audit log, got %+v", entries)
	}
}
