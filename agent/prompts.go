package agent

import (
	"fmt"
	"strings"
	"time"
)

// shapeExample returns the JSON structure example for an output shape,
// embedded in the system prompt and in correction prompts.
func shapeExample(shape Shape) string {
	switch shape {
	case ShapeStudyPlan:
		return "```json\n" +
			"{\n" +
			"  \"days\": [\n" +
			"    {\n" +
			"      \"date\": \"2026-09-01\",\n" +
			"      \"blocks\": [\n" +
			"        {\"subject\": \"Math\", \"topic\": \"algebra\", \"minutes\": 45, \"kind\": \"study\"}\n" +
			"      ]\n" +
			"    }\n" +
			"  ]\n" +
			"}\n" +
			"```"
	case ShapeIntent:
		return "```json\n" +
			"{\n" +
			"  \"intent\": \"plan\",\n" +
			"  \"confidence\": 0.9,\n" +
			"  \"rationale\": \"The user asks for a day-by-day schedule.\"\n" +
			"}\n" +
			"```"
	default:
		return "```json\n" +
			"{\n" +
			"  \"reply_markdown\": \"Your answer, in markdown.\",\n" +
			"  \"action_items\": [\n" +
			"    {\"title\": \"Review algebra basics\", \"why\": \"Weakest prerequisite\", \"eta_minutes\": 30, \"priority\": \"high\"}\n" +
			"  ],\n" +
			"  \"follow_up_questions\": [\"What is your target score?\"],\n" +
			"  \"warnings\": []\n" +
			"}\n" +
			"```"
	}
}

// planSystemPrompt is the system prompt for structured plan generation.
func planSystemPrompt() string {
	return `You are StudySprint, a practical exam-preparation planner.

## Your Objective

Produce a day-by-day study schedule from the student's constraints.

## Hard Rules

- Use ONLY the subjects the student listed, with their exact names.
- Every block's minutes must be a positive integer.
- The total minutes scheduled on a day must NOT exceed that day's available minutes.
- Dates are YYYY-MM-DD, between the start date and the exam date.
- Prefer spreading each subject's topics across days; put a short review of earlier topics before the exam.
- If the available time cannot cover everything, schedule the highest-priority subjects first and cover as much as fits. Do not exceed daily budgets to compensate.

## Output Format

Respond with ONLY a JSON object matching this structure:

` + shapeExample(ShapeStudyPlan)
}

// chatSystemPrompt is the system prompt for conversational modes.
func chatSystemPrompt(mode Mode) string {
	instruction := "Answer the student's question concisely and practically."
	if mode == ModeRevise {
		instruction = "The student wants changes to something produced earlier in this conversation. Revise it per their request and present the updated version in full."
	}

	return `You are StudySprint, a practical exam-preparation assistant.
You are concise, structured, and action-oriented.

` + instruction + `

If the prompt contains a section starting with 'RESUME_CONTEXT:' treat it as the student's resume or background text. Extract only relevant facts; never repeat it verbatim.
If key inputs are missing (exam date, available time, subjects), ask focused follow-up questions.

## Output Format

Respond with ONLY a JSON object matching this structure:

` + shapeExample(ShapeAgentResponse) + `

'action_items', 'follow_up_questions', and 'warnings' may be empty arrays but must always be present.`
}

// intentSystemPrompt is the system prompt for auto-mode classification.
func intentSystemPrompt() string {
	return `You only classify intent. Be strict and short.

Classify the user's latest message into one of: plan, chat, revise.
- "plan": the user wants a study schedule generated.
- "revise": the user wants changes to something already produced in this conversation.
- "chat": anything else.

Respond with ONLY a JSON object matching this structure:

` + shapeExample(ShapeIntent)
}

// planUserPrompt renders the extracted constraints and feasibility verdict
// into the user prompt for plan generation.
func planUserPrompt(c *StudyConstraints, verdict FeasibilityVerdict, latest string) string {
	var b strings.Builder

	b.WriteString("Create a study schedule for these constraints:\n\n")
	fmt.Fprintf(&b, "- Start date: %s\n", c.StartDate.Format(planDateFormat))
	fmt.Fprintf(&b, "- Exam date: %s\n", c.ExamDate.Format(planDateFormat))

	b.WriteString("- Subjects:\n")
	for _, s := range c.Subjects {
		topics := "general review"
		if len(s.Topics) > 0 {
			topics = strings.Join(s.Topics, ", ")
		}
		fmt.Fprintf(&b, "  - %s (priority %s): %s\n", s.Name, s.Priority, topics)
	}

	b.WriteString("- Available minutes per day:\n")
	for _, wd := range weekdayOrder() {
		if minutes, ok := c.DailyAvailableMinutes[wd]; ok {
			fmt.Fprintf(&b, "  - %s: %d\n", wd, minutes)
		}
	}

	fmt.Fprintf(&b, "\nFeasibility: %d minutes available, about %d minutes needed.\n",
		verdict.TotalAvailableMinutes, verdict.TotalRequiredMinutes)
	if !verdict.Feasible {
		fmt.Fprintf(&b, "The time budget is %d minutes short. Produce the best partial schedule that fits; prioritize high-priority subjects.\n",
			verdict.ShortfallMinutes)
	}

	if latest != "" {
		fmt.Fprintf(&b, "\nThe student's request:\n%s\n", latest)
	}

	return b.String()
}

// correctionPrompt tells the model what its previous output violated and
// restates the expected structure.
func correctionPrompt(shape Shape, violations []string) string {
	var b strings.Builder
	b.WriteString("Your previous output violated:\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	b.WriteString("\nRespond again with ONLY a valid JSON object matching this structure:\n\n")
	b.WriteString(shapeExample(shape))
	return b.String()
}

// weekdayOrder returns weekdays Monday-first for stable prompt rendering.
func weekdayOrder() []time.Weekday {
	return []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
}
