package agent_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studysprint/studysprint/agent"
)

func planConstraints() *agent.StudyConstraints {
	return &agent.StudyConstraints{
		StartDate: date(2026, time.September, 1),
		ExamDate:  date(2026, time.September, 7),
		Subjects: []agent.Subject{
			{Name: "Math", Topics: []string{"algebra"}, Priority: agent.PriorityHigh},
			{Name: "Physics", Topics: []string{"mechanics"}, Priority: agent.PriorityMedium},
		},
		DailyAvailableMinutes: allDays(120),
	}
}

func marshalPlan(t *testing.T, plan *agent.StudyPlan) string {
	t.Helper()
	data, err := json.Marshal(plan)
	require.NoError(t, err)
	return string(data)
}

func TestValidateOutput_ValidPlan(t *testing.T) {
	raw := "```json\n" + `{
		"days": [
			{"date": "2026-09-01", "blocks": [
				{"subject": "Math", "topic": "algebra", "minutes": 60},
				{"subject": "Physics", "topic": "mechanics", "minutes": 45, "kind": "review"}
			]},
			{"date": "2026-09-02", "blocks": []}
		]
	}` + "\n```"

	parsed, violations := agent.ValidateOutput(raw, agent.ShapeStudyPlan, planConstraints())
	require.Empty(t, violations)
	require.NotNil(t, parsed)
	require.NotNil(t, parsed.Plan)
	assert.Len(t, parsed.Plan.Days, 2)
	assert.Equal(t, 105, parsed.Plan.TotalMinutes())
	// Missing kind defaults to study, stated kinds survive.
	assert.Equal(t, "study", parsed.Plan.Days[0].Blocks[0].Kind)
	assert.Equal(t, "review", parsed.Plan.Days[0].Blocks[1].Kind)
}

func TestValidateOutput_PlanCollectsAllViolations(t *testing.T) {
	raw := `{
		"days": [
			{"date": "not-a-date", "blocks": [
				{"subject": "", "topic": "x", "minutes": 0},
				{"subject": "Biology", "topic": "cells", "minutes": 30}
			]}
		]
	}`

	parsed, violations := agent.ValidateOutput(raw, agent.ShapeStudyPlan, planConstraints())
	assert.Nil(t, parsed)
	// Bad date, missing subject, non-positive minutes, undeclared subject.
	require.Len(t, violations, 4)
	joined := violations.Error()
	assert.Contains(t, joined, "not-a-date")
	assert.Contains(t, joined, "missing 'subject'")
	assert.Contains(t, joined, "minutes must be a positive integer")
	assert.Contains(t, joined, "Biology")
}

func TestValidateOutput_PlanExceedsDayBudget(t *testing.T) {
	raw := `{
		"days": [
			{"date": "2026-09-01", "blocks": [
				{"subject": "Math", "topic": "algebra", "minutes": 200}
			]}
		]
	}`

	parsed, violations := agent.ValidateOutput(raw, agent.ShapeStudyPlan, planConstraints())
	assert.Nil(t, parsed)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "schedules 200 minutes but only 120 are available")
}

func TestValidateOutput_PlanRejectsDuplicateDates(t *testing.T) {
	// Splitting one calendar day across entries must not dodge its budget.
	raw := `{
		"days": [
			{"date": "2026-09-01", "blocks": [{"subject": "Math", "topic": "algebra", "minutes": 80}]},
			{"date": "2026-09-01", "blocks": [{"subject": "Physics", "topic": "mechanics", "minutes": 80}]}
		]
	}`

	out, violations := agent.ValidateOutput(raw, agent.ShapeStudyPlan, planConstraints())
	assert.Nil(t, out)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "more than once")
}

func TestValidateOutput_PlanNeedsAtLeastOneDay(t *testing.T) {
	parsed, violations := agent.ValidateOutput(`{"days": []}`, agent.ShapeStudyPlan, planConstraints())
	assert.Nil(t, parsed)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "at least one day")
}

func TestValidateOutput_SubjectNameCaseInsensitive(t *testing.T) {
	raw := `{
		"days": [
			{"date": "2026-09-01", "blocks": [
				{"subject": "math", "topic": "algebra", "minutes": 60}
			]}
		]
	}`

	parsed, violations := agent.ValidateOutput(raw, agent.ShapeStudyPlan, planConstraints())
	assert.Empty(t, violations)
	assert.NotNil(t, parsed)
}

func TestValidateOutput_NoJSON(t *testing.T) {
	parsed, violations := agent.ValidateOutput("I cannot answer that.", agent.ShapeAgentResponse, nil)
	assert.Nil(t, parsed)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "no JSON object")
}

func TestValidateOutput_ValidResponse(t *testing.T) {
	raw := `{
		"reply_markdown": "## Here you go",
		"action_items": [
			{"title": "Review algebra", "why": "exam focus", "eta_minutes": 30, "priority": "high"}
		]
	}`

	parsed, violations := agent.ValidateOutput(raw, agent.ShapeAgentResponse, nil)
	require.Empty(t, violations)
	require.NotNil(t, parsed.Response)
	assert.Equal(t, "## Here you go", parsed.Response.ReplyMarkdown)
	// Absent sequences come back empty, never nil.
	assert.NotNil(t, parsed.Response.FollowUpQuestions)
	assert.NotNil(t, parsed.Response.Warnings)
}

func TestValidateOutput_ResponseViolations(t *testing.T) {
	raw := `{
		"reply_markdown": "",
		"action_items": [
			{"title": "", "eta_minutes": -5, "priority": "urgent"}
		]
	}`

	parsed, violations := agent.ValidateOutput(raw, agent.ShapeAgentResponse, nil)
	assert.Nil(t, parsed)
	require.Len(t, violations, 4)
	joined := violations.Error()
	assert.Contains(t, joined, "reply_markdown")
	assert.Contains(t, joined, "missing 'title'")
	assert.Contains(t, joined, "eta_minutes")
	assert.Contains(t, joined, "priority")
}

func TestValidateOutput_ValidIntent(t *testing.T) {
	raw := `{"intent": "plan", "confidence": 0.82, "rationale": "asks for a schedule"}`

	parsed, violations := agent.ValidateOutput(raw, agent.ShapeIntent, nil)
	require.Empty(t, violations)
	require.NotNil(t, parsed.Intent)
	assert.Equal(t, "plan", parsed.Intent.Intent)
	assert.InDelta(t, 0.82, parsed.Intent.Confidence, 1e-9)
}

func TestValidateOutput_IntentViolations(t *testing.T) {
	raw := `{"intent": "schedule", "confidence": 1.5}`

	parsed, violations := agent.ValidateOutput(raw, agent.ShapeIntent, nil)
	assert.Nil(t, parsed)
	require.Len(t, violations, 2)
}

func TestValidateOutput_ValidatedPlanRevalidates(t *testing.T) {
	raw := `{
		"days": [
			{"date": "2026-09-01", "blocks": [
				{"subject": "Math", "topic": "algebra", "minutes": 60}
			]}
		]
	}`

	constraints := planConstraints()
	first, violations := agent.ValidateOutput(raw, agent.ShapeStudyPlan, constraints)
	require.Empty(t, violations)

	reserialized := marshalPlan(t, first.Plan)
	second, violations := agent.ValidateOutput(reserialized, agent.ShapeStudyPlan, constraints)
	assert.Empty(t, violations)
	assert.Equal(t, first.Plan, second.Plan)
}
