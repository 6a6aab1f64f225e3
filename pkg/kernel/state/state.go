// Package state implements the State Store (spec §4.5): persistence of
// PipelineState across restarts, with a two-bucket active/completed
// layout and an index for fast listing.
//
// The on-disk discipline (atomic write, single-writer-per-pipeline,
// newest-first listing by last update time) is grounded on the
// teacher's internal/runrecord package.
package state

import (
	"time"

	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/llm"
)

// Status is a pipeline's lifecycle state (spec §3, §4.1 state machine).
type Status string

const (
	Pending          Status = "pending"
	Running          Status = "running"
	Paused           Status = "paused"
	AwaitingApproval Status = "awaiting_approval"
	Completed        Status = "completed"
	Failed           Status = "failed"
	Aborted          Status = "aborted"
)

// Terminal reports whether s is one of the pipeline's terminal statuses.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Failed, Aborted:
		return true
	default:
		return false
	}
}

// PipelineState is the complete persisted state of one pipeline run
// (spec §3 Pipeline). It is the sole unit of recoverable state: a
// crash at any point leaves exactly one of these on disk, and resume
// rebuilds everything (StageContext, Controller position) from it.
type PipelineState struct {
	ID                 string            `yaml:"id"`
	TemplateName       string            `yaml:"template_name"`
	Request            string            `yaml:"request"`
	InitialContext     map[string]any    `yaml:"initial_context,omitempty"`
	Status             Status            `yaml:"status"`
	CurrentStageIndex  int               `yaml:"current_stage_index"`
	Stages             stage.Sequence    `yaml:"stages"`
	ProjectPath        string            `yaml:"project_path"`
	CreatedAt          time.Time         `yaml:"created_at"`
	UpdatedAt          time.Time         `yaml:"updated_at"`
	CompletedAt        *time.Time        `yaml:"completed_at,omitempty"`
	TokensUsed         llm.Usage         `yaml:"tokens_used"`
	CostUSD            float64           `yaml:"cost_usd"`
	CompletedStages    []stage.Name      `yaml:"completed_stages"`
	ApprovedStages     []stage.Name      `yaml:"approved_stages"`
	IterationCount     map[stage.Name]int `yaml:"iteration_count,omitempty"`
	PendingFeedback    *string           `yaml:"pending_feedback,omitempty"`
	PendingArtifact    map[string]any    `yaml:"pending_artifact,omitempty"`
	StageArtifacts     map[stage.Name]string `yaml:"stage_artifacts,omitempty"`
	LastError          string            `yaml:"last_error,omitempty"`
	ActiveEscalationID string            `yaml:"active_escalation_id,omitempty"`
}

// New creates a fresh PipelineState in the pending status.
func New(id, templateName, request string, initialContext map[string]any, stages stage.Sequence, projectPath string) *PipelineState {
	now := time.Now().UTC()
	return &PipelineState{
		ID:              id,
		TemplateName:    templateName,
		Request:         request,
		InitialContext:  initialContext,
		Status:          Pending,
		Stages:          stages,
		ProjectPath:     projectPath,
		CreatedAt:       now,
		UpdatedAt:       now,
		CompletedStages: []stage.Name{},
		ApprovedStages:  []stage.Name{},
		IterationCount:  map[stage.Name]int{},
		StageArtifacts:  map[stage.Name]string{},
	}
}

// Touch updates UpdatedAt to now. Called by the Controller before every
// persistence point so readers can tell how fresh a loaded state is.
func (p *PipelineState) Touch() {
	p.UpdatedAt = time.Now().UTC()
}

// CurrentStage returns the stage name at CurrentStageIndex, or "" if
// the index is out of range (e.g. a completed pipeline).
func (p *PipelineState) CurrentStage() stage.Name {
	if p.CurrentStageIndex < 0 || p.CurrentStageIndex >= len(p.Stages) {
		return ""
	}
	return p.Stages[p.CurrentStageIndex]
}

// Summary is the minimal per-pipeline projection kept in the index for
// fast listing without loading every full state file (spec §4.5).
type Summary struct {
	ID           string `yaml:"id"`
	Status       Status `yaml:"status"`
	TemplateName string `yaml:"template_name"`
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
	CurrentStage stage.Name `yaml:"current_stage"`
}

func (p *PipelineState) summary() Summary {
	return Summary{
		ID:           p.ID,
		Status:       p.Status,
		TemplateName: p.TemplateName,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		CurrentStage: p.CurrentStage(),
	}
}
