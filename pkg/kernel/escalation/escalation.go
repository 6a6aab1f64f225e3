// Package escalation implements the Escalation Manager (spec §4.6):
// the two-operation {wait_for_resolution, request_approval} contract
// the Controller uses to pause a pipeline for human input and resume
// it once a resolution arrives.
//
// The reference backend is file-based polling, as spec.md names it
// directly. The pause/resume shape — a durable record that only one
// outstanding request exists per pipeline, and a resolution that must
// target the exact request it resolves — is grounded on the teacher's
// pkg/memory/transfer.State ownership-transfer model: there,
// generation numbers stop a stale Handle from acting after a transfer;
// here, an escalation id on both the request and its resolution file
// stops a stray or late resolution file from resuming the wrong wait.
package escalation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentforge/agentforge/internal/id"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"gopkg.in/yaml.v3"
)

const (
	escalationSubdir = "escalations"
	resolutionSuffix = ".resolution.yaml"
)

// Kind distinguishes the two capabilities (spec §4.6).
type Kind string

const (
	KindResolution Kind = "wait_for_resolution"
	KindApproval   Kind = "request_approval"
)

// Escalation is the durable record written when a pipeline pauses.
type Escalation struct {
	ID         string         `yaml:"id"`
	PipelineID string         `yaml:"pipeline_id"`
	Stage      stage.Name     `yaml:"stage"`
	Kind       Kind           `yaml:"kind"`
	Issue      string         `yaml:"issue"`
	Context    map[string]any `yaml:"context,omitempty"`
	Artifact   map[string]any `yaml:"artifact,omitempty"`
	CreatedAt  time.Time      `yaml:"created_at"`
}

// Resolution is the sibling file an operator (or the CLI) writes to
// unblock a pending Escalation. Only the fields relevant to the
// escalation's Kind need be set.
type Resolution struct {
	EscalationID string         `yaml:"escalation_id"`
	Abort        bool           `yaml:"abort,omitempty"`
	Context      map[string]any `yaml:"context,omitempty"`
	Approved     bool           `yaml:"approved,omitempty"`
	Feedback     *string        `yaml:"feedback,omitempty"`
	ResolvedAt   time.Time      `yaml:"resolved_at"`
}

// Manager is the file-based reference backend (spec §4.6).
type Manager struct {
	base         string
	pollInterval time.Duration
	maxWait      time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithPollInterval overrides the default few-second poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithMaxWait overrides the default maximum wait before a timeout
// forces abort = true.
func WithMaxWait(d time.Duration) Option {
	return func(m *Manager) { m.maxWait = d }
}

// New creates a file-based Escalation Manager rooted at baseDir
// (typically ".agentforge").
func New(baseDir string, opts ...Option) *Manager {
	m := &Manager{
		base:         baseDir,
		pollInterval: 3 * time.Second,
		maxWait:      30 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) dir() string { return filepath.Join(m.base, escalationSubdir) }

func (m *Manager) escalationPath(escalationID string) string {
	return filepath.Join(m.dir(), escalationID+".yaml")
}

func (m *Manager) resolutionPath(escalationID string) string {
	return filepath.Join(m.dir(), escalationID+resolutionSuffix)
}

func (m *Manager) write(e Escalation) error {
	if err := os.MkdirAll(m.dir(), 0o755); err != nil {
		return fmt.Errorf("escalation: create dir: %w", err)
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("escalation: marshal: %w", err)
	}
	return os.WriteFile(m.escalationPath(e.ID), data, 0o644)
}

// WaitForResolution emits an escalation record and blocks until a
// resolution file for it appears or maxWait elapses, returning
// abort = true on timeout (spec §4.6 fail-safe default).
func (m *Manager) WaitForResolution(ctx context.Context, pipelineID string, st stage.Name, issue string, escContext map[string]any) (abort bool, resumeContext map[string]any, escalationID string, err error) {
	e := Escalation{
		ID:         id.NewEscalationID(),
		PipelineID: pipelineID,
		Stage:      st,
		Kind:       KindResolution,
		Issue:      issue,
		Context:    escContext,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.write(e); err != nil {
		return false, nil, "", err
	}

	res, err := m.poll(ctx, e.ID)
	if err != nil {
		return false, nil, e.ID, err
	}
	if res == nil {
		return true, nil, e.ID, nil // timeout: fail-safe abort
	}
	return res.Abort, res.Context, e.ID, nil
}

// RequestApproval emits an approval-kind escalation record carrying
// the artifact under review and blocks for a resolution the same way
// WaitForResolution does.
func (m *Manager) RequestApproval(ctx context.Context, pipelineID string, st stage.Name, artifact map[string]any) (approved bool, feedback *string, escalationID string, err error) {
	e := Escalation{
		ID:         id.NewEscalationID(),
		PipelineID: pipelineID,
		Stage:      st,
		Kind:       KindApproval,
		Artifact:   artifact,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.write(e); err != nil {
		return false, nil, "", err
	}

	res, err := m.poll(ctx, e.ID)
	if err != nil {
		return false, nil, e.ID, err
	}
	if res == nil {
		return false, nil, e.ID, nil // timeout: fail-safe reject, same spirit as abort-by-default
	}
	return res.Approved, res.Feedback, e.ID, nil
}

// poll blocks until a resolution file for escalationID appears, ctx is
// canceled, or maxWait elapses (returning nil, nil on timeout).
func (m *Manager) poll(ctx context.Context, escalationID string) (*Resolution, error) {
	deadline := time.Now().Add(m.maxWait)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if res, ok, err := m.readResolution(escalationID); err != nil {
			return nil, err
		} else if ok {
			return res, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Manager) readResolution(escalationID string) (*Resolution, bool, error) {
	data, err := os.ReadFile(m.resolutionPath(escalationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("escalation: read resolution %s: %w", escalationID, err)
	}
	var res Resolution
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("escalation: decode resolution %s: %w", escalationID, err)
	}
	if res.EscalationID != "" && res.EscalationID != escalationID {
		return nil, false, fmt.Errorf("escalation: resolution file %s targets escalation %s, not %s", m.resolutionPath(escalationID), res.EscalationID, escalationID)
	}
	return &res, true, nil
}

// Resolve writes the resolution file for a pending escalation. Used by
// the CLI's approve/reject/abort/provide-feedback commands, which run
// as a separate process from the one blocked in WaitForResolution or
// RequestApproval.
func (m *Manager) Resolve(escalationID string, res Resolution) error {
	res.EscalationID = escalationID
	res.ResolvedAt = time.Now().UTC()
	if err := os.MkdirAll(m.dir(), 0o755); err != nil {
		return fmt.Errorf("escalation: create dir: %w", err)
	}
	data, err := yaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("escalation: marshal resolution: %w", err)
	}
	return os.WriteFile(m.resolutionPath(escalationID), data, 0o644)
}

// Pending returns the escalation record for a pipeline that has no
// resolution file yet, or nil if there is none (spec §4.6: one
// pipeline has at most one outstanding escalation at a time).
func (m *Manager) Pending(pipelineID string) (*Escalation, error) {
	entries, err := os.ReadDir(m.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("escalation: list dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) != ".yaml" || filepath.Ext(name[:len(name)-len(filepath.Ext(name))]) == ".resolution" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir(), name))
		if err != nil {
			continue
		}
		var e Escalation
		if err := yaml.Unmarshal(data, &e); err != nil {
			continue
		}
		if e.PipelineID != pipelineID {
			continue
		}
		if _, ok, _ := m.readResolution(e.ID); ok {
			continue
		}
		return &e, nil
	}
	return nil, nil
}
