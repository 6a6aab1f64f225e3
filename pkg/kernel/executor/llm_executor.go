package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agentforge/agentforge/pkg/agent"
	kcontext "github.com/agentforge/agentforge/pkg/kernel/context"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"github.com/agentforge/agentforge/pkg/llm"
	"github.com/agentforge/agentforge/pkg/tool"
	"gopkg.in/yaml.v3"
)

// escalationKey is the reserved artifact field an LLM response can set
// to ask the Controller to pause for resolution (spec §4.2).
const escalationKey = "escalation_reason"

// PromptFunc renders one of the LLM-driven executor's prompt hooks
// from a built StageContext (spec §4.2 get_system_prompt / get_user_message).
type PromptFunc func(sc *kcontext.StageContext) string

// ParseFunc turns the raw LLM response text into an artifact body
// (spec §4.2 parse_response). The default, ExtractStructured, looks
// for a fenced yaml or json block, falling back to parsing the whole
// response as one of those.
type ParseFunc func(content string) (map[string]any, error)

// LLMExecutor is the LLM-driven base variant (spec §4.2): it drives a
// single task-level completion through the configured Provider and
// parses the reply into an artifact.
//
// Grounded on pkg/agent.Agent's tool-use loop: one LLMExecutor wraps
// one agent.Agent configured with this stage's system prompt, model,
// and optional fixed tool list.
type LLMExecutor struct {
	name           stage.Name
	artifactType   string
	requiredInput  []string
	expectedOutput []string

	provider llm.Provider
	model    string
	tools    []tool.Tool
	maxTurns int
	timeout  time.Duration

	systemPrompt PromptFunc
	userMessage  PromptFunc
	parse        ParseFunc
}

// LLMOption configures an LLMExecutor.
type LLMOption func(*LLMExecutor)

// WithTools declares the fixed tool list available to this stage's LLM call.
func WithTools(tools ...tool.Tool) LLMOption {
	return func(e *LLMExecutor) { e.tools = tools }
}

// WithParseFunc overrides the default fenced-block parser.
func WithParseFunc(p ParseFunc) LLMOption {
	return func(e *LLMExecutor) { e.parse = p }
}

// WithMaxTurns caps the agent's internal tool-use round-trips.
func WithMaxTurns(n int) LLMOption {
	return func(e *LLMExecutor) { e.maxTurns = n }
}

// WithTimeout bounds the wall-clock time of one execute attempt.
func WithTimeout(d time.Duration) LLMOption {
	return func(e *LLMExecutor) { e.timeout = d }
}

// NewLLMExecutor builds an LLM-driven executor for a stage.
func NewLLMExecutor(name stage.Name, artifactType string, requiredInput, expectedOutput []string, provider llm.Provider, model string, systemPrompt, userMessage PromptFunc, opts ...LLMOption) *LLMExecutor {
	e := &LLMExecutor{
		name:           name,
		artifactType:   artifactType,
		requiredInput:  requiredInput,
		expectedOutput: expectedOutput,
		provider:       provider,
		model:          model,
		systemPrompt:   systemPrompt,
		userMessage:    userMessage,
		parse:          ExtractStructured,
		maxTurns:       4,
		timeout:        3 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *LLMExecutor) Name() stage.Name            { return e.name }
func (e *LLMExecutor) ArtifactType() string         { return e.artifactType }
func (e *LLMExecutor) RequiredInput() []string      { return e.requiredInput }
func (e *LLMExecutor) ExpectedOutput() []string     { return e.expectedOutput }

func (e *LLMExecutor) Execute(ctx context.Context, sc *kcontext.StageContext) (StageResult, error) {
	runCtx, cancel := timeoutOr(ctx, sc, e.timeout)
	defer cancel()

	a := agent.New(string(e.name),
		agent.WithInstructions(e.systemPrompt(sc)),
		agent.WithModel(e.model),
		agent.WithProvider(e.provider),
		agent.WithTools(e.tools...),
		agent.WithConfig(agent.Config{MaxTurns: e.maxTurns}),
	)

	res, err := a.Run(runCtx, e.userMessage(sc))
	if err != nil {
		return StageResult{}, fmt.Errorf("llm executor %s: %w", e.name, err)
	}

	body, parseErr := e.parse(res.Message.Content)
	if parseErr != nil || body == nil {
		return StageResult{
			Status:  Failed,
			Error:   fmt.Sprintf("parse_response: no structured artifact found in LLM reply: %v", parseErr),
			Usage:   res.Usage,
			CostUSD: res.Cost,
		}, nil
	}

	if reason, ok := body[escalationKey]; ok {
		if s, ok := reason.(string); ok && s != "" {
			delete(body, escalationKey)
			return StageResult{
				Status:           Escalated,
				Artifact:         body,
				EscalationReason: s,
				Usage:            res.Usage,
				CostUSD:          res.Cost,
			}, nil
		}
	}

	return StageResult{
		Status:   Success,
		Artifact: body,
		Usage:    res.Usage,
		CostUSD:  res.Cost,
	}, nil
}

var (
	yamlFence = regexp.MustCompile("(?s)```ya?ml\\s*\\n(.*?)```")
	jsonFence = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
)

// ExtractStructured is the default parse_response: it looks for a
// fenced ```yaml or ```json block first, then tries to parse the
// entire response as YAML (which is a superset of JSON), returning
// nil when nothing structured can be found (spec §4.2: "Returns
// failed when parsing yields none").
func ExtractStructured(content string) (map[string]any, error) {
	if m := yamlFence.FindStringSubmatch(content); m != nil {
		return decodeMap(m[1])
	}
	if m := jsonFence.FindStringSubmatch(content); m != nil {
		return decodeMap(m[1])
	}
	if body, err := decodeMap(content); err == nil {
		return body, nil
	}
	return nil, fmt.Errorf("no fenced yaml/json block and whole response did not parse as either")
}

func decodeMap(s string) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal([]byte(strings.TrimSpace(s)), &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("decoded empty document")
	}
	return m, nil
}
