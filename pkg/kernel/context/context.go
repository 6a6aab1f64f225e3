// Package context implements the Context Builder (spec §4.7): it
// assembls a bounded-token StageContext for one stage execution from
// PipelineState plus the Artifact Store and Audit Log, so the size of
// what an executor sees stays flat no matter how many stages a
// pipeline has already run.
//
// The per-slot budget and truncate-oldest-first shape are grounded on
// the teacher's pkg/memory.PrunePolicy family (MaxEntries, MaxAge,
// MaxSize, AnyPolicy), generalized from "which memory entries survive
// a prune" to "which fields of one upstream artifact survive
// inclusion in a bounded context window".
package context

import (
	"fmt"

	"github.com/agentforge/agentforge/pkg/kernel/artifact"
	"github.com/agentforge/agentforge/pkg/kernel/audit"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/kernel/state"
)

// TokenBudget allocates the fixed 8000-token default across the slots
// named in spec §4.7.
type TokenBudget struct {
	TaskFrame          int
	UpstreamArtifact   int
	RecentActions      int
	VerificationStatus int
	AvailableActions   int
	SystemPrompt       int
}

// DefaultBudget returns the spec's documented default allocation.
func DefaultBudget() TokenBudget {
	return TokenBudget{
		TaskFrame:          500,
		UpstreamArtifact:   4500,
		RecentActions:      1000,
		VerificationStatus: 200,
		AvailableActions:   800,
		SystemPrompt:       1000,
	}
}

// Total returns the sum of every slot, i.e. the budget an executor's
// StageContext (excluding its own system prompt) must fit within.
func (b TokenBudget) Total() int {
	return b.TaskFrame + b.UpstreamArtifact + b.RecentActions + b.VerificationStatus + b.AvailableActions
}

// ResolutionKey is the reserved, namespaced input-artifact field the
// Controller injects an escalation's resolution context under before
// re-executing a stage, so the executor can detect resumption
// (spec §4.1 step 4).
const ResolutionKey = "__escalation_resolution__"

// recentActionsWindow is N in "last N action records" (spec §4.7).
const recentActionsWindow = 3

// errorTruncateCap is the fixed character cap for errors within the
// action window (spec §4.7).
const errorTruncateCap = 500

// estimateTokens is a conservative chars/4 heuristic, the same order
// of magnitude used across the pack's LLM-facing packages for
// pre-flight budget checks rather than an exact tokenizer count.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// StageContext is the bounded input handed to an executor (spec §3).
type StageContext struct {
	PipelineID      string
	PipelineType    string
	StageName       stage.Name
	StageIndex      int
	InputArtifact   map[string]any
	UserRequest     string
	ProjectPath     string
	StateDir        string
	CompletedStages map[stage.Name]string // stage -> artifact relpath, read-only
	Iteration       int
	PreviousFeedback *string
	TimeoutSeconds   int
	Budget           TokenBudget
	RecentActions    []string
	VerificationStatus string
}

// Builder assembles StageContext values from persisted state.
type Builder struct {
	artifacts *artifact.Store
	audits    *audit.Log
	budget    TokenBudget
	stateDir  string
}

// New creates a Context Builder backed by the given Artifact Store and
// Audit Log, rooted at stateDir (typically ".agentforge").
func New(artifacts *artifact.Store, audits *audit.Log, stateDir string, budget TokenBudget) *Builder {
	return &Builder{artifacts: artifacts, audits: audits, budget: budget, stateDir: stateDir}
}

// Build assembles the StageContext for running target against p's
// current persisted state. It is deterministic given unchanged state
// (spec §4.7): identical p and target always yield byte-identical
// field values, modulo map iteration order of CompletedStages which
// callers must not rely on for ordering.
func (b *Builder) Build(p *state.PipelineState, target stage.Name) (*StageContext, error) {
	sc := &StageContext{
		PipelineID:      p.ID,
		PipelineType:    p.TemplateName,
		StageName:       target,
		StageIndex:      p.Stages.IndexOf(target),
		UserRequest:     p.Request,
		ProjectPath:     p.ProjectPath,
		StateDir:        b.stateDir,
		CompletedStages: make(map[stage.Name]string, len(p.StageArtifacts)),
		Iteration:       p.IterationCount[target] + 1,
		Budget:          b.budget,
	}
	for name, relPath := range p.StageArtifacts {
		sc.CompletedStages[name] = relPath
	}
	if p.PendingFeedback != nil {
		sc.PreviousFeedback = p.PendingFeedback
	}

	if up, err := b.upstreamArtifact(p, target); err != nil {
		return nil, err
	} else {
		sc.InputArtifact = up
	}

	actions, err := b.recentActions(p.ID)
	if err != nil {
		return nil, err
	}
	sc.RecentActions = actions

	sc.VerificationStatus = verificationStatus(p)

	return sc, nil
}

func verificationStatus(p *state.PipelineState) string {
	if p.LastError != "" {
		return truncate(fmt.Sprintf("last validation failed: %s", p.LastError), errorTruncateCap)
	}
	return "ok"
}

func (b *Builder) upstreamArtifact(p *state.PipelineState, target stage.Name) (map[string]any, error) {
	idx := p.Stages.IndexOf(target)
	if idx <= 0 {
		// p.InitialContext already carries ResolutionKey directly when an
		// escalation on the first stage was just resolved (the Controller
		// writes it there), so no further merge is needed here.
		return p.InitialContext, nil
	}

	var up map[string]any
	upstream := p.Stages[idx-1]
	if relPath, ok := p.StageArtifacts[upstream]; ok {
		a, err := b.artifacts.Read(relPath)
		if err != nil {
			return nil, fmt.Errorf("context builder: read upstream artifact %s: %w", relPath, err)
		}
		up = truncateArtifactBody(upstream, a.Body, b.budget.UpstreamArtifact)
	}

	// An escalation resolved against this (non-first) stage never
	// reaches the persisted upstream artifact, which is read straight
	// off disk — merge it in directly so the re-executed stage still
	// sees the human's answer (spec's escalation fairness property).
	if res, ok := p.InitialContext[ResolutionKey]; ok {
		up = withResolution(up, res)
	}
	return up, nil
}

// withResolution returns a copy of body with ResolutionKey set to
// resolution, leaving the original artifact body (which may be shared,
// e.g. with the Artifact Store's own decoded copy) untouched.
func withResolution(body map[string]any, resolution any) map[string]any {
	merged := make(map[string]any, len(body)+1)
	for k, v := range body {
		merged[k] = v
	}
	merged[ResolutionKey] = resolution
	return merged
}

// keepFields lists the fields that survive truncation for a given
// upstream stage, per the type-aware compression rules in spec §4.7.
var keepFields = map[stage.Name][]string{
	stage.Intake:  {"detected_scope", "priority", "questions"},
	stage.Analyze: {"components", "risks"},
	stage.Spec:    {"components", "acceptance_criteria"},
}

// truncateArtifactBody passes body through whole when its serialized
// size fits budget tokens; otherwise it keeps only the fields that
// matter for the consuming stage (spec §4.7 compression policy).
func truncateArtifactBody(from stage.Name, body map[string]any, budgetTokens int) map[string]any {
	if body == nil {
		return nil
	}
	if estimateTokens(fmt.Sprint(body)) <= budgetTokens {
		return body
	}
	fields, ok := keepFields[from]
	if !ok {
		return body
	}
	kept := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := body[f]; ok {
			kept[f] = v
		}
	}
	return kept
}

func (b *Builder) recentActions(pipelineID string) ([]string, error) {
	entries, err := b.audits.Load(pipelineID)
	if err != nil {
		return nil, fmt.Errorf("context builder: load audit log: %w", err)
	}
	if len(entries) > recentActionsWindow {
		entries = entries[len(entries)-recentActionsWindow:]
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, summarize(e))
	}
	return out, nil
}

// summarize compresses one Audit Log entry to the one-line form fed
// back into context; tool results and errors keep their full text only
// in the Audit Log itself (spec §4.7).
func summarize(e audit.Entry) string {
	line := fmt.Sprintf("[%d] %s/%s: %s", e.Step, e.Stage, e.Action, e.Summary)
	if e.Error != "" {
		line += " error: " + truncate(e.Error, errorTruncateCap)
	}
	return line
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
