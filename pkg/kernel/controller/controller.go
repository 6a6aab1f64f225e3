// Package controller implements the Pipeline Controller (spec §4.1):
// the top-level orchestrator that drives a pipeline from creation or a
// resume point to a terminal status, coordinating stage execution,
// artifact verification, persistence, escalation, and supervised
// approval.
//
// The run loop — span-wrapped stage iteration, bounded retry per
// stage, cost/usage accumulation, a progress callback — is grounded on
// the teacher's pkg/orchestrator/pipeline.Pipeline.Run, generalized
// from "fixed agent stages transforming a string" to "a persisted,
// resumable state machine driving stage executors through artifact
// verification and escalation".
package controller

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agentforge/agentforge/internal/id"
	"github.com/agentforge/agentforge/pkg/cost"
	"github.com/agentforge/agentforge/pkg/kernel/artifact"
	"github.com/agentforge/agentforge/pkg/kernel/audit"
	kcontext "github.com/agentforge/agentforge/pkg/kernel/context"
	"github.com/agentforge/agentforge/pkg/kernel/escalation"
	"github.com/agentforge/agentforge/pkg/kernel/executor"
	"github.com/agentforge/agentforge/pkg/kernel/kernelerr"
	"github.com/agentforge/agentforge/pkg/kernel/registry"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/kernel/state"
	"github.com/agentforge/agentforge/pkg/kernel/templateconfig"
	"github.com/agentforge/agentforge/pkg/kernel/validator"
	"github.com/agentforge/agentforge/pkg/kernel/worklock"
	"github.com/agentforge/agentforge/pkg/trace"
)

// Controller drives pipelines end to end. One Controller instance is
// shared across pipelines; it holds no per-pipeline mutable state of
// its own (spec §4.5: a pipeline id is owned by at most one Controller
// process at a time, but that process may run many pipelines, never
// concurrently for the same id).
type Controller struct {
	registry    *registry.Registry
	artifacts   *artifact.Store
	states      *state.Store
	audits      *audit.Log
	ctxBuilder  *kcontext.Builder
	validator   *validator.Validator
	escalations *escalation.Manager
	costCfg     templateconfig.CostConfig
	tracer      trace.Tracer
	stateDir    string
}

// New assembles a Controller from its components. stateDir is the
// project-relative ".agentforge" root the other stores are already
// rooted at; the Controller uses it to derive each pipeline's
// workspace lock (spec §9 open question: "the exact lock primitive is
// not specified" — resolved as a sentinel file, see pkg/kernel/worklock).
func New(
	reg *registry.Registry,
	artifacts *artifact.Store,
	states *state.Store,
	audits *audit.Log,
	ctxBuilder *kcontext.Builder,
	val *validator.Validator,
	escalations *escalation.Manager,
	costCfg templateconfig.CostConfig,
	tracer trace.Tracer,
	stateDir string,
) *Controller {
	if tracer == nil {
		tracer = trace.Noop{}
	}
	return &Controller{
		registry:    reg,
		artifacts:   artifacts,
		states:      states,
		audits:      audits,
		ctxBuilder:  ctxBuilder,
		validator:   val,
		escalations: escalations,
		costCfg:     costCfg,
		tracer:      tracer,
		stateDir:    stateDir,
	}
}

// ExecuteRequest carries execute's parameters (spec §4.1).
type ExecuteRequest struct {
	UserRequest      string
	TemplateName     string
	InitialContext   map[string]any
	ProjectPath      string
	RuntimeConfig    templateconfig.RuntimeConfig
	ResumePipelineID string
}

// Result is returned by execute/resume: status is always terminal or
// paused/awaiting_approval on return (spec §4.1).
type Result struct {
	PipelineID  string
	Status      state.Status
	Deliverable map[string]any
	Error       string
}

// Execute starts a new pipeline run, or resumes one when
// ResumePipelineID is set (spec §4.1 execute operation).
func (c *Controller) Execute(ctx context.Context, req ExecuteRequest) (*Result, error) {
	var p *state.PipelineState

	if req.ResumePipelineID != "" {
		loaded, err := c.states.Load(req.ResumePipelineID)
		if err != nil {
			return nil, fmt.Errorf("controller: load %s: %w", req.ResumePipelineID, err)
		}
		if loaded == nil {
			return nil, fmt.Errorf("controller: pipeline %s not found", req.ResumePipelineID)
		}
		if loaded.Status.Terminal() {
			return nil, fmt.Errorf("controller: pipeline %s is already terminal (%s)", req.ResumePipelineID, loaded.Status)
		}
		p = loaded
	} else {
		p = state.New(id.NewPipelineID(), req.TemplateName, req.UserRequest, req.InitialContext, req.RuntimeConfig.Stages, req.ProjectPath)
	}

	lock := worklock.New(c.stateDir, p.ProjectPath)
	if err := lock.Acquire(p.ID); err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	// Released only once the pipeline reaches a terminal status; while
	// paused or awaiting_approval the lock stays held so a concurrent
	// pipeline can't mutate the same project before this one resumes.
	defer func() {
		if p.Status.Terminal() {
			_ = lock.Release(p.ID)
		}
	}()

	return c.runLoop(ctx, p, req.RuntimeConfig)
}

// GetStatus returns a pipeline's current state snapshot, or nil if
// unknown (spec §4.1 get_status).
func (c *Controller) GetStatus(pipelineID string) (*state.PipelineState, error) {
	return c.states.Load(pipelineID)
}

// List returns pipeline summaries, newest-first (spec §4.1 list).
func (c *Controller) List(statusFilter *state.Status, limit int) ([]state.Summary, error) {
	return c.states.List(statusFilter, limit)
}

// Abort sets a non-terminal pipeline's status to aborted (spec §4.1
// abort). Returns false (a no-op) if the pipeline is already terminal
// or does not exist, per the invariant that terminal pipelines are
// read-only.
func (c *Controller) Abort(pipelineID, reason string) (bool, error) {
	p, err := c.states.Load(pipelineID)
	if err != nil {
		return false, err
	}
	if p == nil || p.Status.Terminal() {
		return false, nil
	}
	p.Status = state.Aborted
	p.LastError = reason
	p.Touch()
	if err := c.states.Save(p); err != nil {
		return false, err
	}
	c.appendAudit(p.ID, audit.Entry{Stage: p.CurrentStage(), Action: audit.StateTransition, Summary: "aborted: " + reason})
	_ = worklock.New(c.stateDir, p.ProjectPath).Release(p.ID)
	return true, nil
}

// Approve resumes a pipeline waiting in awaiting_approval (spec §4.1
// approve). Only meaningful in that status; otherwise a no-op.
func (c *Controller) Approve(ctx context.Context, pipelineID string, rc templateconfig.RuntimeConfig) (bool, error) {
	p, err := c.states.Load(pipelineID)
	if err != nil {
		return false, err
	}
	if p == nil || p.Status != state.AwaitingApproval {
		return false, nil
	}
	approvedStage := p.CurrentStage()
	p.ApprovedStages = append(p.ApprovedStages, approvedStage)
	p.CompletedStages = append(p.CompletedStages, approvedStage)
	p.CurrentStageIndex++
	p.Status = state.Running
	p.Touch()
	if err := c.states.Save(p); err != nil {
		return false, err
	}
	if _, err := c.runLoop(ctx, p, rc); err != nil {
		return false, err
	}
	if p.Status.Terminal() {
		_ = worklock.New(c.stateDir, p.ProjectPath).Release(p.ID)
	}
	return true, nil
}

// ProvideFeedback stashes feedback for the next execution of the
// current stage (spec §4.1 provide_feedback); only meaningful in
// awaiting_approval or paused.
func (c *Controller) ProvideFeedback(pipelineID, feedback string) (bool, error) {
	p, err := c.states.Load(pipelineID)
	if err != nil {
		return false, err
	}
	if p == nil || (p.Status != state.AwaitingApproval && p.Status != state.Paused) {
		return false, nil
	}
	p.PendingFeedback = &feedback
	p.IterationCount[p.CurrentStage()]++
	p.Status = state.Running
	p.Touch()
	return true, c.states.Save(p)
}

// runLoop drives p from its current stage index to a terminal status
// or a pause, per the per-stage procedure in spec §4.1.
func (c *Controller) runLoop(ctx context.Context, p *state.PipelineState, rc templateconfig.RuntimeConfig) (*Result, error) {
	ctx, runSpan := c.tracer.StartSpan(ctx, "controller.run")
	runSpan.SetAttribute("pipeline.id", p.ID)
	defer c.tracer.EndSpan(runSpan)

	// The Tracker accumulates per-stage usage for reporting; the actual
	// USD cost of each stage comes straight from its StageResult (the
	// executor already priced the call), so budget alerts are driven off
	// p.CostUSD directly rather than re-derived through model pricing.
	tracker := cost.NewTracker()
	if c.costCfg.MaxCostPerPipelineUSD > 0 {
		tracker.SetBudget(c.costCfg.MaxCostPerPipelineUSD)
	}
	alerted := make(map[float64]bool, len(c.costCfg.AlertThresholds))
	checkCostAlerts := func() {
		if c.costCfg.MaxCostPerPipelineUSD <= 0 {
			return
		}
		for _, threshold := range c.costCfg.AlertThresholds {
			if alerted[threshold] {
				continue
			}
			if p.CostUSD >= c.costCfg.MaxCostPerPipelineUSD*threshold {
				alerted[threshold] = true
				c.appendAudit(p.ID, audit.Entry{
					Stage:   p.CurrentStage(),
					Action:  audit.StateTransition,
					Summary: fmt.Sprintf("cost alert: %.0f%% of budget reached ($%.4f)", threshold*100, p.CostUSD),
				})
			}
		}
	}

	if rc.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(rc.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	for p.CurrentStageIndex < len(p.Stages) {
		if err := ctx.Err(); err != nil {
			return c.fail(p, fmt.Sprintf("pipeline timed out or was canceled: %v", err))
		}

		stageName := p.Stages[p.CurrentStageIndex]
		stageCtx, endSpan := c.startStageSpan(ctx, p, stageName)

		// Step 1: persist current stage and status = running.
		p.Status = state.Running
		p.Touch()
		if err := c.states.Save(p); err != nil {
			endSpan()
			return nil, fmt.Errorf("controller: persist running state: %w", err)
		}

		result, relPath, hash, err := c.runStage(stageCtx, p, stageName, rc, tracker)
		if err != nil {
			endSpan()
			return c.fail(p, kernelerr.Wrap(kernelerr.ExecutorError, string(stageName), "stage attempt failed", err).Error())
		}
		p.CostUSD += result.CostUSD
		checkCostAlerts()

		switch result.Status {
		case executor.Escalated:
			abort, paused := c.handleEscalation(stageCtx, p, stageName, result)
			endSpan()
			if abort {
				return c.abortResult(p, "escalation resolved with abort")
			}
			if paused {
				// handleEscalation persisted the paused state before
				// waiting; the caller resumes this pipeline later via Execute's
				// resume path, which re-enters this same stage.
				return c.statusResult(p), nil
			}
			continue // re-run the same stage with a fresh retry budget
		case executor.Failed:
			endSpan()
			return c.fail(p, result.Error)
		}

		// Step 6: validate the artifact against the next transition's contract.
		if idx := p.CurrentStageIndex; idx+1 < len(p.Stages) {
			to := p.Stages[idx+1]
			vres, err := c.validator.Validate(stageName, to, result.Artifact, p.IterationCount[stageName], rc.MaxIterationsPerStage)
			if err != nil {
				endSpan()
				return c.fail(p, fmt.Sprintf("no validation contract for %s -> %s: %v", stageName, to, err))
			}
			c.appendAudit(p.ID, audit.Entry{Stage: stageName, Action: audit.Verification, Summary: fmt.Sprintf("validate %s->%s: passed=%v warnings=%d", stageName, to, vres.Passed, len(vres.Warnings))})
			if !vres.Passed {
				endSpan()
				// Healing is reserved for future implementation (spec §4.1 step 6): log and fail.
				return c.fail(p, fmt.Sprintf("artifact validation failed for %s -> %s: %v", stageName, to, vres.Errors))
			}
		} else if stageName == stage.Deliver {
			// deliver has no successor transition contract, but its
			// output still carries its own artifact-type invariant
			// (spec §4.2): deliverable_type must be one of the four
			// recognized delivery modes.
			warnings, errs := validator.DeliverRule(result.Artifact)
			c.appendAudit(p.ID, audit.Entry{Stage: stageName, Action: audit.Verification, Summary: fmt.Sprintf("validate deliver output: passed=%v warnings=%d", len(errs) == 0, len(warnings))})
			if len(errs) > 0 {
				endSpan()
				return c.fail(p, fmt.Sprintf("deliver stage output invalid: %v", errs))
			}
		}

		// Step 7: supervised approval pause.
		if rc.Supervised && p.CurrentStageIndex < len(p.Stages)-1 {
			p.Status = state.AwaitingApproval
			p.PendingArtifact = result.Artifact
			p.Touch()
			if err := c.states.Save(p); err != nil {
				endSpan()
				return nil, fmt.Errorf("controller: persist awaiting_approval: %w", err)
			}
			approved, feedback, escID, err := c.escalations.RequestApproval(stageCtx, p.ID, stageName, result.Artifact)
			if err != nil {
				endSpan()
				return nil, fmt.Errorf("controller: request approval: %w", err)
			}
			p.ActiveEscalationID = escID
			if !approved {
				if feedback != nil && *feedback != "" {
					p.PendingFeedback = feedback
					p.IterationCount[stageName]++
					p.Status = state.Running
					p.Touch()
					if err := c.states.Save(p); err != nil {
						endSpan()
						return nil, err
					}
					endSpan()
					continue // re-run the same stage
				}
				endSpan()
				return c.abortResult(p, "supervised rejection without feedback")
			}
		}

		// Step 8: persist completion of this stage.
		if relPath != "" {
			p.StageArtifacts[stageName] = relPath
			c.appendAudit(p.ID, audit.Entry{
				Stage:      stageName,
				Action:     audit.StateTransition,
				Summary:    fmt.Sprintf("stage %s completed", stageName),
				OutputHash: hash,
				Usage:      result.Usage,
				CostUSD:    result.CostUSD,
			})
		}
		p.CompletedStages = append(p.CompletedStages, stageName)
		p.PendingFeedback = nil
		p.TokensUsed.PromptTokens += result.Usage.PromptTokens
		p.TokensUsed.CompletionTokens += result.Usage.CompletionTokens
		p.TokensUsed.TotalTokens += result.Usage.TotalTokens
		p.CurrentStageIndex++
		p.Touch()
		if err := c.states.Save(p); err != nil {
			endSpan()
			return nil, fmt.Errorf("controller: persist stage completion: %w", err)
		}
		endSpan()

		// Step 9: configured early exit.
		if rc.ExitAfter != "" && rc.ExitAfter == stageName {
			return c.completeResult(p, result.Artifact)
		}
	}

	// A zero-length stage sequence completes immediately with the
	// initial context as its deliverable (spec §8 boundary behavior).
	final := p.InitialContext
	if len(p.Stages) > 0 {
		last := p.Stages[len(p.Stages)-1]
		if relPath, ok := p.StageArtifacts[last]; ok {
			if a, err := c.artifacts.Read(relPath); err == nil {
				final = a.Body
			}
		}
	}
	return c.completeResult(p, final)
}

// runStage executes one stage attempt with bounded retry, per spec
// §4.1 step 3.
func (c *Controller) runStage(ctx context.Context, p *state.PipelineState, name stage.Name, rc templateconfig.RuntimeConfig, tracker *cost.Tracker) (executor.StageResult, string, string, error) {
	exec, err := c.registry.Get(name)
	if err != nil {
		kerr := kernelerr.Wrap(kernelerr.InputValidation, string(name), "no executor registered for this stage", err)
		return executor.StageResult{Status: executor.Failed, Error: kerr.Error()}, "", "", nil
	}

	maxAttempts := rc.MaxRetriesPerStage + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last executor.StageResult
	var lastPath, lastHash string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sc, err := c.ctxBuilder.Build(p, name)
		if err != nil {
			return executor.StageResult{}, "", "", fmt.Errorf("build context: %w", err)
		}
		sc.TimeoutSeconds = rc.TimeoutSeconds

		result, relPath, hash, err := executor.Run(ctx, exec, sc, c.artifacts)
		if err != nil {
			return executor.StageResult{}, "", "", err
		}
		last, lastPath, lastHash = result, relPath, hash

		if result.CostUSD > 0 {
			tracker.AddForEntity(string(name), p.ID, result.Usage)
		}

		if result.Status == executor.Success || result.Status == executor.Escalated {
			return last, lastPath, lastHash, nil
		}
		// Failed: retry unless attempts are exhausted.
		p.LastError = result.Error
	}
	return last, lastPath, lastHash, nil
}

// handleEscalation pauses the pipeline for resolution and, if the
// resolution is not an abort, injects its context for a same-budget
// re-execution (spec §4.1 step 4).
func (c *Controller) handleEscalation(ctx context.Context, p *state.PipelineState, name stage.Name, result executor.StageResult) (abort, paused bool) {
	p.Status = state.Paused
	p.Touch()
	if err := c.states.Save(p); err != nil {
		p.LastError = fmt.Sprintf("persist paused state: %v", err)
		return false, true
	}

	resolvedAbort, resumeContext, escID, err := c.escalations.WaitForResolution(ctx, p.ID, name, result.EscalationReason, result.Artifact)
	p.ActiveEscalationID = escID
	if err != nil {
		p.LastError = fmt.Sprintf("escalation wait: %v", err)
		return false, true
	}
	if resolvedAbort {
		return true, false
	}

	if p.InitialContext == nil {
		p.InitialContext = map[string]any{}
	}
	p.InitialContext[kcontext.ResolutionKey] = resumeContext
	p.Status = state.Running
	p.Touch()
	_ = c.states.Save(p)
	return false, false
}

func (c *Controller) startStageSpan(ctx context.Context, p *state.PipelineState, name stage.Name) (context.Context, func()) {
	spanCtx, span := c.tracer.StartSpan(ctx, "controller.stage")
	span.SetAttribute("pipeline.id", p.ID)
	span.SetAttribute("stage.name", string(name))
	span.SetAttribute("stage.index", strconv.Itoa(p.CurrentStageIndex))
	return spanCtx, func() { c.tracer.EndSpan(span) }
}

func (c *Controller) appendAudit(pipelineID string, e audit.Entry) {
	if c.audits == nil {
		return
	}
	_, _ = c.audits.Append(pipelineID, e)
}

func (c *Controller) fail(p *state.PipelineState, reason string) (*Result, error) {
	p.Status = state.Failed
	p.LastError = reason
	p.Touch()
	if err := c.states.Save(p); err != nil {
		return nil, fmt.Errorf("controller: persist failed state: %w", err)
	}
	c.appendAudit(p.ID, audit.Entry{Stage: p.CurrentStage(), Action: audit.StateTransition, Summary: "failed: " + reason, Error: reason})
	return &Result{PipelineID: p.ID, Status: p.Status, Error: reason}, nil
}

func (c *Controller) abortResult(p *state.PipelineState, reason string) (*Result, error) {
	p.Status = state.Aborted
	p.LastError = reason
	p.Touch()
	if err := c.states.Save(p); err != nil {
		return nil, fmt.Errorf("controller: persist aborted state: %w", err)
	}
	c.appendAudit(p.ID, audit.Entry{Stage: p.CurrentStage(), Action: audit.StateTransition, Summary: "aborted: " + reason})
	return &Result{PipelineID: p.ID, Status: p.Status, Error: reason}, nil
}

func (c *Controller) completeResult(p *state.PipelineState, deliverable map[string]any) (*Result, error) {
	now := time.Now().UTC()
	p.Status = state.Completed
	p.CompletedAt = &now
	p.Touch()
	if err := c.states.Save(p); err != nil {
		return nil, fmt.Errorf("controller: persist completed state: %w", err)
	}
	c.appendAudit(p.ID, audit.Entry{Stage: p.CurrentStage(), Action: audit.StateTransition, Summary: "pipeline completed"})
	return &Result{PipelineID: p.ID, Status: p.Status, Deliverable: deliverable}, nil
}

func (c *Controller) statusResult(p *state.PipelineState) *Result {
	return &Result{PipelineID: p.ID, Status: p.Status}
}
