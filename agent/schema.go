package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/studysprint/studysprint/llm"
)

// Shape identifies the expected structure of a generation attempt.
type Shape string

// Expected output shapes.
const (
	ShapeStudyPlan     Shape = "study_plan"
	ShapeAgentResponse Shape = "agent_response"
	ShapeIntent        Shape = "intent"
)

// ParsedOutput is a validated generation result. Exactly one of the
// pointers is set, matching Shape.
type ParsedOutput struct {
	Shape    Shape
	Plan     *StudyPlan
	Response *AgentResponse
	Intent   *Intent
}

// ValidateOutput parses raw model output against the expected shape and
// checks the business rules the shape carries. Every violation found is
// returned, not just the first, so one correction prompt can fix them all.
// Unknown extra fields are ignored for forward compatibility.
//
// constraints is consulted for StudyPlan outputs (day budgets, declared
// subjects) and may be nil for the other shapes.
func ValidateOutput(raw string, shape Shape, constraints *StudyConstraints) (*ParsedOutput, ValidationErrors) {
	extracted := llm.ExtractJSON(raw)
	if extracted == "" {
		return nil, ValidationErrors{"no JSON object found in the output"}
	}

	switch shape {
	case ShapeStudyPlan:
		return validatePlan(extracted, constraints)
	case ShapeAgentResponse:
		return validateResponse(extracted)
	case ShapeIntent:
		return validateIntent(extracted)
	default:
		return nil, ValidationErrors{fmt.Sprintf("unknown output shape %q", shape)}
	}
}

func validatePlan(extracted string, constraints *StudyConstraints) (*ParsedOutput, ValidationErrors) {
	var plan StudyPlan
	if err := json.Unmarshal([]byte(extracted), &plan); err != nil {
		return nil, ValidationErrors{fmt.Sprintf("output is not valid JSON for a study plan: %v", err)}
	}

	var errs ValidationErrors
	if len(plan.Days) == 0 {
		errs = append(errs, "plan must contain at least one day in 'days'")
	}

	// Each calendar date may appear once, otherwise the per-day budget
	// check below could be split across entries and dodged.
	seen := make(map[string]bool, len(plan.Days))
	for i, day := range plan.Days {
		date, err := time.Parse(planDateFormat, day.Date)
		if err != nil {
			errs = append(errs, fmt.Sprintf("days[%d].date %q is not a valid YYYY-MM-DD date", i, day.Date))
		} else if seen[day.Date] {
			errs = append(errs, fmt.Sprintf("days[%d].date %s appears more than once, each calendar date must have a single entry", i, day.Date))
		} else {
			seen[day.Date] = true
		}

		dayTotal := 0
		for j, block := range day.Blocks {
			if block.Subject == "" {
				errs = append(errs, fmt.Sprintf("days[%d].blocks[%d] is missing 'subject'", i, j))
			} else if constraints != nil && !constraints.HasSubject(block.Subject) {
				errs = append(errs, fmt.Sprintf("days[%d].blocks[%d] references subject %q which is not one of the student's subjects", i, j, block.Subject))
			}
			if block.Minutes <= 0 {
				errs = append(errs, fmt.Sprintf("days[%d].blocks[%d].minutes must be a positive integer, got %d", i, j, block.Minutes))
			}
			dayTotal += block.Minutes
		}

		if err == nil && constraints != nil && constraints.DailyAvailableMinutes != nil {
			available := constraints.AvailableOn(date)
			if dayTotal > available {
				errs = append(errs, fmt.Sprintf("days[%d] (%s) schedules %d minutes but only %d are available that day", i, day.Date, dayTotal, available))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	normalizePlan(&plan)
	return &ParsedOutput{Shape: ShapeStudyPlan, Plan: &plan}, nil
}

// normalizePlan fills optional fields so re-serializing a validated plan
// validates again unchanged.
func normalizePlan(plan *StudyPlan) {
	for i := range plan.Days {
		if plan.Days[i].Blocks == nil {
			plan.Days[i].Blocks = []PlanBlock{}
		}
		for j := range plan.Days[i].Blocks {
			if plan.Days[i].Blocks[j].Kind == "" {
				plan.Days[i].Blocks[j].Kind = "study"
			}
		}
	}
}

func validateResponse(extracted string) (*ParsedOutput, ValidationErrors) {
	var resp AgentResponse
	if err := json.Unmarshal([]byte(extracted), &resp); err != nil {
		return nil, ValidationErrors{fmt.Sprintf("output is not valid JSON for a response: %v", err)}
	}

	var errs ValidationErrors
	if resp.ReplyMarkdown == "" {
		errs = append(errs, "'reply_markdown' is required and must be non-empty")
	}

	for i, item := range resp.ActionItems {
		if item.Title == "" {
			errs = append(errs, fmt.Sprintf("action_items[%d] is missing 'title'", i))
		}
		if item.EtaMinutes < 0 {
			errs = append(errs, fmt.Sprintf("action_items[%d].eta_minutes must be a non-negative integer, got %d", i, item.EtaMinutes))
		}
		if !ValidPriority(item.Priority) {
			errs = append(errs, fmt.Sprintf("action_items[%d].priority %q must be one of: low, medium, high", i, item.Priority))
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	resp.normalize()
	return &ParsedOutput{Shape: ShapeAgentResponse, Response: &resp}, nil
}

func validateIntent(extracted string) (*ParsedOutput, ValidationErrors) {
	var intent Intent
	if err := json.Unmarshal([]byte(extracted), &intent); err != nil {
		return nil, ValidationErrors{fmt.Sprintf("output is not valid JSON for an intent: %v", err)}
	}

	var errs ValidationErrors
	switch Mode(intent.Intent) {
	case ModePlan, ModeChat, ModeRevise:
	default:
		errs = append(errs, fmt.Sprintf("'intent' %q must be one of: plan, chat, revise", intent.Intent))
	}
	if intent.Confidence < 0 || intent.Confidence > 1 {
		errs = append(errs, fmt.Sprintf("'confidence' must be between 0.0 and 1.0, got %v", intent.Confidence))
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &ParsedOutput{Shape: ShapeIntent, Intent: &intent}, nil
}
