package toolbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/agentforge/agentforge/pkg/kernel/audit"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/tool"
)

type echoTool struct {
	name string
	out  string
	err  error
}

func (e *echoTool) Name() string              { return e.name }
func (e *echoTool) Description() string        { return "test tool" }
func (e *echoTool) Schema() tool.Schema         { return tool.Schema{Type: "object"} }
func (e *echoTool) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	return e.out, e.err
}

func TestRunDispatchesToRegisteredTool(t *testing.T) {
	reg := tool.NewRegistry()
	if err := reg.Register(&echoTool{name: "fs_read", out: "file contents"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	dir := t.TempDir()
	b := New(reg, audit.New(dir))

	out, err := b.Run(context.Background(), "PL-1", stage.Green, "fs_read", json.RawMessage(`{"path":"a.go"}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "file contents" {
		t.Errorf("got %q", out)
	}

	entries, err := audit.New(dir).Load("PL-1")
	if err != nil {
		t.Fatalf("Load audit: %v", err)
	}
	if len(entries) != 1 || entries[0].ToolName != "fs_read" {
		t.Errorf("expected one audit entry for fs_read, got %+v", entries)
	}
}

func TestRunUnknownActionReturnsError(t *testing.T) {
	reg := tool.NewRegistry()
	dir := t.TempDir()
	b := New(reg, audit.New(dir))

	_, err := b.Run(context.Background(), "PL-2", stage.Green, "nonexistent", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown action")
	}
}

func TestRunHandlerErrorIsRecordedNotPanicked(t *testing.T) {
	reg := tool.NewRegistry()
	if err := reg.Register(&echoTool{name: "test_runner", err: errors.New("exit status 1")}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	dir := t.TempDir()
	b := New(reg, audit.New(dir))

	_, err := b.Run(context.Background(), "PL-3", stage.Red, "test_runner", nil)
	if err == nil {
		t.Fatal("expected the handler error to surface")
	}

	entries, err := audit.New(dir).Load("PL-3")
	if err != nil {
		t.Fatalf("Load audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Error == "" {
		t.Errorf("expected the audit entry to record the handler error, got %+v", entries)
	}
}
