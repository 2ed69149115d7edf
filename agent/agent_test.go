package agent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studysprint/studysprint/agent"
	"github.com/studysprint/studysprint/llm"
	"github.com/studysprint/studysprint/llm/testutil"
)

const validResponseJSON = `{
	"reply_markdown": "Happy to help!",
	"action_items": [],
	"follow_up_questions": []
}`

func newTestAgent(mock *testutil.MockCompleter) *agent.PlanAgent {
	return agent.NewPlanAgent(
		agent.NewGenerator(mock),
		agent.WithClock(func() time.Time { return now }),
	)
}

func planningConversation() []agent.Message {
	return []agent.Message{
		user("My exam is on 2026-09-07. I can study 2 hours per day.\nsubjects: Math (algebra), Physics (mechanics)"),
	}
}

func TestPlanAgent_PlanMode(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: validPlanJSON, Primary: true}},
		},
	}
	a := newTestAgent(mock)

	resp, err := a.Run(context.Background(), agent.ModePlan, planningConversation())
	require.NoError(t, err)
	assert.Contains(t, resp.ReplyMarkdown, "# Your study plan")
	assert.Contains(t, resp.ReplyMarkdown, "2026-09-01")
	assert.NotEmpty(t, resp.ActionItems)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, 1, mock.CallCount())

	// The generation request targets the plan capability and carries the
	// feasibility verdict in the prompt.
	req := mock.LastRequest()
	assert.Equal(t, llm.CapabilityPlan, req.Capability)
}

func TestPlanAgent_PlanMode_MissingConstraints(t *testing.T) {
	mock := &testutil.MockCompleter{}
	a := newTestAgent(mock)

	resp, err := a.Run(context.Background(), agent.ModePlan, []agent.Message{
		user("make me a study plan"),
	})
	require.NoError(t, err)
	// No provider call happens when required details are missing.
	assert.Equal(t, 0, mock.CallCount())
	assert.Len(t, resp.FollowUpQuestions, 3)
	assert.NotEmpty(t, resp.ReplyMarkdown)
	assert.NotNil(t, resp.ActionItems)
}

func TestPlanAgent_PlanMode_InfeasibleWarns(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: validPlanJSON, Primary: true}},
		},
	}
	a := newTestAgent(mock)

	// One day, 30 minutes, ten high-priority topics.
	topics := strings.Repeat("t, ", 9) + "t"
	resp, err := a.Run(context.Background(), agent.ModePlan, []agent.Message{
		user("my exam is on 2026-09-01 and I have 30 minutes per day\nsubjects: Math (" + topics + "; high priority)"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[0], "doesn't cover the estimated workload")
	// Adjustment hints ride along as warnings.
	assert.Greater(t, len(resp.Warnings), 1)
}

func TestPlanAgent_PlanMode_FallbackPlanWarns(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: "no json here", Primary: true}},
		},
	}
	a := newTestAgent(mock)

	resp, err := a.Run(context.Background(), agent.ModePlan, planningConversation())
	require.NoError(t, err)
	assert.Equal(t, 3, mock.CallCount())
	assert.NotEmpty(t, resp.ReplyMarkdown)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, strings.Join(resp.Warnings, " "), "simplified")
}

func TestPlanAgent_ChatMode(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: validResponseJSON, Primary: true}},
		},
	}
	a := newTestAgent(mock)

	resp, err := a.Run(context.Background(), agent.ModeChat, []agent.Message{
		user("how should I review flashcards?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Happy to help!", resp.ReplyMarkdown)
	assert.Equal(t, llm.CapabilityConverse, mock.LastRequest().Capability)
}

func TestPlanAgent_ChatMode_DegradedModelWarns(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: validResponseJSON, Model: "fallback", Primary: false}},
		},
	}
	a := newTestAgent(mock)

	resp, err := a.Run(context.Background(), agent.ModeChat, []agent.Message{user("hi")})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[0], "fallback model")
}

func TestPlanAgent_AutoMode_RoutesToPlan(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: `{"intent": "plan", "confidence": 0.9}`, Primary: true}},
			{Response: &llm.Response{Content: validPlanJSON, Primary: true}},
		},
	}
	a := newTestAgent(mock)

	resp, err := a.Run(context.Background(), agent.ModeAuto, planningConversation())
	require.NoError(t, err)
	assert.Equal(t, 2, mock.CallCount())
	assert.Contains(t, resp.ReplyMarkdown, "# Your study plan")

	requests := mock.Requests()
	assert.Equal(t, llm.CapabilityClassify, requests[0].Capability)
	assert.Equal(t, llm.CapabilityPlan, requests[1].Capability)
}

func TestPlanAgent_AutoMode_LowConfidenceStaysInChat(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: `{"intent": "plan", "confidence": 0.3}`, Primary: true}},
			{Response: &llm.Response{Content: validResponseJSON, Primary: true}},
		},
	}
	a := newTestAgent(mock)

	_, err := a.Run(context.Background(), agent.ModeAuto, []agent.Message{user("hmm maybe a plan?")})
	require.NoError(t, err)
	assert.Equal(t, llm.CapabilityConverse, mock.LastRequest().Capability)
}

func TestPlanAgent_AutoMode_ClassifierFailureStaysInChat(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: "not json", Primary: true}},
			{Response: &llm.Response{Content: "not json", Primary: true}},
			{Response: &llm.Response{Content: "not json", Primary: true}},
			{Response: &llm.Response{Content: validResponseJSON, Primary: true}},
		},
	}
	a := newTestAgent(mock)

	resp, err := a.Run(context.Background(), agent.ModeAuto, []agent.Message{user("hello there")})
	require.NoError(t, err)
	assert.Equal(t, "Happy to help!", resp.ReplyMarkdown)
	assert.Equal(t, llm.CapabilityConverse, mock.LastRequest().Capability)
}

func TestPlanAgent_ResponseSequencesNeverNil(t *testing.T) {
	mock := &testutil.MockCompleter{
		Steps: []testutil.Step{
			{Response: &llm.Response{Content: `{"reply_markdown": "ok"}`, Primary: true}},
		},
	}
	a := newTestAgent(mock)

	resp, err := a.Run(context.Background(), agent.ModeChat, []agent.Message{user("hi")})
	require.NoError(t, err)
	assert.NotNil(t, resp.ActionItems)
	assert.NotNil(t, resp.FollowUpQuestions)
	assert.NotNil(t, resp.Warnings)
}
