package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studysprint/studysprint/agent"
	"github.com/studysprint/studysprint/llm"
	"github.com/studysprint/studysprint/llm/testutil"
)

const validPlanJSON = `{
	"days": [
		{"date": "2026-09-01", "blocks": [
			{"subject": "Math", "topic": "algebra", "minutes": 60}
		]}
	]
}`

func planInput() agent.GenerateInput {
	return agent.GenerateInput{
		Capability:  llm.CapabilityPlan,
		System:      "produce a plan",
		Messages:    []llm.Message{{Role: "user", Content: "plan my week"}},
		Shape:       agent.ShapeStudyPlan,
		Constraints: planConstraints(),
	}
}

func TestGenerator_FirstAttemptValid(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: validPlanJSON, Model: "primary", Primary: true}},
		},
	}
	gen := agent.NewGenerator(mock)

	result := gen.Generate(context.Background(), planInput())
	require.NotNil(t, result.Output)
	require.NotNil(t, result.Output.Plan)
	assert.False(t, result.FellBack)
	assert.False(t, result.Degraded)
	assert.Equal(t, "primary", result.Model)
	assert.Empty(t, result.Attempts)
	assert.Equal(t, 1, mock.CallCount())
}

func TestGenerator_CorrectionPromptFixesOutput(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: `{"days": []}`, Primary: true}},
			{Response: &llm.Response{Content: validPlanJSON, Primary: true}},
		},
	}
	gen := agent.NewGenerator(mock)

	result := gen.Generate(context.Background(), planInput())
	require.NotNil(t, result.Output.Plan)
	assert.False(t, result.FellBack)
	assert.Len(t, result.Attempts, 1)
	assert.Equal(t, 2, mock.CallCount())

	// The second call carries the failed output and a correction prompt.
	second := mock.Requests()[1]
	require.Len(t, second.Messages, 4)
	assert.Equal(t, "assistant", second.Messages[2].Role)
	assert.Equal(t, `{"days": []}`, second.Messages[2].Content)
	assert.Equal(t, "user", second.Messages[3].Role)
	assert.Contains(t, second.Messages[3].Content, "at least one day")
}

func TestGenerator_SucceedsOnFinalAttempt(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: "not json at all", Primary: true}},
			{Response: &llm.Response{Content: `{"days": []}`, Primary: true}},
			{Response: &llm.Response{Content: validPlanJSON, Primary: true}},
		},
	}
	gen := agent.NewGenerator(mock)

	result := gen.Generate(context.Background(), planInput())
	assert.Equal(t, 3, mock.CallCount())
	assert.False(t, result.FellBack)
	assert.Len(t, result.Attempts, 2)
	require.NotNil(t, result.Output.Plan)
}

func TestGenerator_ExhaustionServesFallbackPlan(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: "not json at all", Primary: true}},
		},
	}
	gen := agent.NewGenerator(mock)

	result := gen.Generate(context.Background(), planInput())
	assert.Equal(t, 3, mock.CallCount())
	assert.True(t, result.FellBack)
	assert.Len(t, result.Attempts, 3)

	// The fallback plan satisfies every plan invariant itself.
	require.NotNil(t, result.Output.Plan)
	reserialized := marshalPlan(t, result.Output.Plan)
	_, violations := agent.ValidateOutput(reserialized, agent.ShapeStudyPlan, planConstraints())
	assert.Empty(t, violations)
}

func TestGenerator_ProviderErrorsCountAsAttempts(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Err: errors.New("connection refused")},
		},
	}
	gen := agent.NewGenerator(mock)

	result := gen.Generate(context.Background(), agent.GenerateInput{
		Capability: llm.CapabilityConverse,
		System:     "chat",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
		Shape:      agent.ShapeAgentResponse,
	})
	assert.Equal(t, 3, mock.CallCount())
	assert.True(t, result.FellBack)
	assert.True(t, result.ProviderFailed)

	// Conversational fallback explains the degradation.
	require.NotNil(t, result.Output.Response)
	assert.NotEmpty(t, result.Output.Response.ReplyMarkdown)
	assert.NotEmpty(t, result.Output.Response.Warnings)
}

func TestGenerator_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Err: context.Canceled},
		},
	}
	gen := agent.NewGenerator(mock)

	result := gen.Generate(ctx, planInput())
	assert.Equal(t, 1, mock.CallCount())
	assert.True(t, result.FellBack)
}

func TestGenerator_DegradedModelFlagged(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: validPlanJSON, Model: "fallback", Primary: false}},
		},
	}
	gen := agent.NewGenerator(mock)

	result := gen.Generate(context.Background(), planInput())
	assert.False(t, result.FellBack)
	assert.True(t, result.Degraded)
	assert.Equal(t, "fallback", result.Model)
}

func TestGenerator_PolicyControlsAttempts(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: "garbage", Primary: true}},
		},
	}
	gen := agent.NewGenerator(mock, agent.WithGenerationPolicy(func() agent.GenerationPolicy {
		return agent.GenerationPolicy{MaxAttempts: 1, MaxTokens: 128, Temperature: 0.1}
	}))

	result := gen.Generate(context.Background(), planInput())
	assert.Equal(t, 1, mock.CallCount())
	assert.True(t, result.FellBack)

	req := mock.LastRequest()
	assert.Equal(t, 128, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.1, *req.Temperature, 1e-9)
	assert.True(t, req.JSONOutput)
}

func TestGenerator_IntentFallbackIsChat(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Err: errors.New("unreachable")},
		},
	}
	gen := agent.NewGenerator(mock)

	result := gen.Generate(context.Background(), agent.GenerateInput{
		Capability: llm.CapabilityClassify,
		System:     "classify",
		Messages:   []llm.Message{{Role: "user", Content: "hello"}},
		Shape:      agent.ShapeIntent,
	})
	assert.True(t, result.FellBack)
	require.NotNil(t, result.Output.Intent)
	assert.Equal(t, "chat", result.Output.Intent.Intent)
	assert.Zero(t, result.Output.Intent.Confidence)
}
