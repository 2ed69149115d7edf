package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/studysprint/studysprint/llm"
)

// intentConfidenceThreshold is the minimum classifier confidence needed
// for auto mode to follow the classified intent instead of chat.
const intentConfidenceThreshold = 0.55

// PlanAgent composes the feasibility checker, schema validator, and
// retry/fallback controller into one request/response cycle per mode.
// It is purely functional given its inputs: no state survives a request.
type PlanAgent struct {
	gen    *Generator
	logger *slog.Logger
	policy func() CostPolicy
	now    func() time.Time
}

// PlanAgentOption configures a PlanAgent.
type PlanAgentOption func(*PlanAgent)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PlanAgentOption {
	return func(a *PlanAgent) {
		a.logger = logger
	}
}

// WithCostPolicy sets the feasibility policy provider. The func is called
// once per request so a reloaded policy table takes effect immediately.
func WithCostPolicy(policy func() CostPolicy) PlanAgentOption {
	return func(a *PlanAgent) {
		a.policy = policy
	}
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) PlanAgentOption {
	return func(a *PlanAgent) {
		a.now = now
	}
}

// NewPlanAgent creates a PlanAgent on top of a validated generator.
func NewPlanAgent(gen *Generator, opts ...PlanAgentOption) *PlanAgent {
	a := &PlanAgent{
		gen:    gen,
		logger: slog.Default(),
		policy: DefaultCostPolicy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run dispatches one request to the mode's generation contract and always
// returns a complete AgentResponse: generation-side failures degrade into
// warnings, never into errors.
func (a *PlanAgent) Run(ctx context.Context, mode Mode, messages []Message) (*AgentResponse, error) {
	if mode == ModeAuto {
		mode = a.resolveMode(ctx, messages)
		a.logger.Debug("Auto mode resolved", "mode", mode)
	}

	switch mode {
	case ModePlan:
		return a.runPlan(ctx, messages), nil
	case ModeChat, ModeRevise:
		return a.runChat(ctx, mode, messages), nil
	default:
		return nil, NewInvalidRequest("unsupported mode %q", mode)
	}
}

// resolveMode classifies the latest user message. Low confidence or a
// failed classification keeps the conversation in chat mode.
func (a *PlanAgent) resolveMode(ctx context.Context, messages []Message) Mode {
	latest := latestUserContent(messages)

	result := a.gen.Generate(ctx, GenerateInput{
		Capability: llm.CapabilityClassify,
		System:     intentSystemPrompt(),
		Messages: []llm.Message{{
			Role:    RoleUser,
			Content: "USER_MESSAGE:\n" + latest,
		}},
		Shape: ShapeIntent,
	})

	intent := result.Output.Intent
	if result.FellBack || intent.Confidence < intentConfidenceThreshold {
		return ModeChat
	}
	return Mode(intent.Intent)
}

// runPlan extracts constraints, checks feasibility, and generates a
// validated StudyPlan. Missing constraints short-circuit into follow-up
// questions without any provider call.
func (a *PlanAgent) runPlan(ctx context.Context, messages []Message) *AgentResponse {
	constraints, missing := ExtractConstraints(messages, a.now())
	if len(missing) > 0 {
		resp := &AgentResponse{
			ReplyMarkdown:     "I can put together a day-by-day study plan, but I need a few details first:",
			FollowUpQuestions: FollowUpQuestions(missing),
		}
		resp.normalize()
		return resp
	}

	// An unstated start date means "from today".
	if constraints.StartDate.IsZero() {
		constraints.StartDate = dateOnly(a.now())
	}

	verdict := CheckFeasibility(constraints, a.policy())
	a.logger.Debug("Feasibility checked",
		"feasible", verdict.Feasible,
		"available_minutes", verdict.TotalAvailableMinutes,
		"required_minutes", verdict.TotalRequiredMinutes)

	result := a.gen.Generate(ctx, GenerateInput{
		Capability: llm.CapabilityPlan,
		System:     planSystemPrompt(),
		Messages: []llm.Message{{
			Role:    RoleUser,
			Content: planUserPrompt(constraints, verdict, latestUserContent(messages)),
		}},
		Shape:       ShapeStudyPlan,
		Constraints: constraints,
	})

	return a.buildPlanResponse(result, constraints, verdict)
}

// buildPlanResponse maps a generated StudyPlan into the caller contract.
func (a *PlanAgent) buildPlanResponse(result *GenerateResult, constraints *StudyConstraints, verdict FeasibilityVerdict) *AgentResponse {
	plan := result.Output.Plan

	resp := &AgentResponse{
		ReplyMarkdown: renderPlanMarkdown(plan, verdict),
		ActionItems:   actionItemsFromPlan(plan, constraints),
	}

	if !verdict.Feasible {
		resp.Warnings = append(resp.Warnings,
			fmt.Sprintf("Your stated availability (%d min) doesn't cover the estimated workload (%d min).",
				verdict.TotalAvailableMinutes, verdict.TotalRequiredMinutes))
		resp.Warnings = append(resp.Warnings, verdict.AdjustmentHints...)
	}
	if result.FellBack {
		resp.Warnings = append(resp.Warnings, planFallbackWarnings(result.ProviderFailed)...)
	} else if result.Degraded {
		resp.Warnings = append(resp.Warnings, warnDegradedModel)
	}

	resp.normalize()
	return resp
}

// runChat handles the conversational modes, grounding the generation in
// the full (already truncated) history.
func (a *PlanAgent) runChat(ctx context.Context, mode Mode, messages []Message) *AgentResponse {
	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	result := a.gen.Generate(ctx, GenerateInput{
		Capability: llm.CapabilityConverse,
		System:     chatSystemPrompt(mode),
		Messages:   history,
		Shape:      ShapeAgentResponse,
	})

	resp := result.Output.Response
	if result.Degraded && !result.FellBack {
		resp.Warnings = append(resp.Warnings, warnDegradedModel)
	}
	resp.normalize()
	return resp
}

// latestUserContent returns the content of the last user turn.
func latestUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
