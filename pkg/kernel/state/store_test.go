package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentforge/agentforge/pkg/kernel/stage"
)

func newTestState(id string) *PipelineState {
	seq := stage.Sequence{stage.Intake, stage.Clarify, stage.Analyze}
	return New(id, "implement", "add OAuth2 support", nil, seq, "/tmp/project")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	p := newTestState("PL-1")
	p.Status = Running
	p.CurrentStageIndex = 1

	if err := s.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("PL-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil for a saved pipeline")
	}
	if got.Status != Running || got.CurrentStageIndex != 1 {
		t.Errorf("round-trip mismatch: status=%v index=%d", got.Status, got.CurrentStageIndex)
	}
	if got.Request != p.Request {
		t.Errorf("request mismatch: %q != %q", got.Request, p.Request)
	}
}

func TestSaveMovesBetweenBuckets(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	p := newTestState("PL-2")
	p.Status = Running
	if err := s.Save(p); err != nil {
		t.Fatalf("save running: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, pipelineSubdir, activeSubdir, "PL-2.yaml")); err != nil {
		t.Fatalf("expected active file: %v", err)
	}

	p.Status = Completed
	if err := s.Save(p); err != nil {
		t.Fatalf("save completed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, pipelineSubdir, completedSubdir, "PL-2.yaml")); err != nil {
		t.Fatalf("expected completed file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, pipelineSubdir, activeSubdir, "PL-2.yaml")); !os.IsNotExist(err) {
		t.Errorf("stale active file was not removed: err=%v", err)
	}
}

func TestListNewestFirstAndFiltered(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	running := newTestState("PL-3")
	running.Status = Running
	if err := s.Save(running); err != nil {
		t.Fatalf("save PL-3: %v", err)
	}

	done := newTestState("PL-4")
	done.Status = Completed
	done.UpdatedAt = running.UpdatedAt.Add(1)
	if err := s.Save(done); err != nil {
		t.Fatalf("save PL-4: %v", err)
	}

	all, err := s.List(nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d summaries, want 2", len(all))
	}
	if all[0].ID != "PL-4" {
		t.Errorf("newest-first ordering violated: got %s first", all[0].ID)
	}

	filter := Running
	onlyRunning, err := s.List(&filter, 0)
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(onlyRunning) != 1 || onlyRunning[0].ID != "PL-3" {
		t.Errorf("status filter failed: %+v", onlyRunning)
	}
}

func TestLoadMissingReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	got, err := s.Load("PL-nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing pipeline, got %+v", got)
	}
}
