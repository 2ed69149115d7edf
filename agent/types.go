// Package agent implements the constrained study-plan generation core:
// feasibility checking, schema-validated generation with bounded retries,
// deterministic fallbacks, and the conversation session entry point.
package agent

import (
	"fmt"
	"time"
)

// Message roles. History carries only user and assistant turns; system
// prompts are composed internally per request.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history, immutable once appended.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Mode selects the generation contract for a request.
type Mode string

// Supported modes. ModeAuto classifies the user's intent into one of the
// other modes before dispatching.
const (
	ModeAuto   Mode = "auto"
	ModePlan   Mode = "plan"
	ModeChat   Mode = "chat"
	ModeRevise Mode = "revise"
)

// ParseMode parses a caller-supplied mode string. Empty defaults to auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModePlan, ModeChat, ModeRevise:
		return Mode(s), nil
	default:
		return "", NewInvalidRequest("unknown mode %q: must be auto, plan, chat, or revise", s)
	}
}

// Priority ranks a subject's importance.
type Priority string

// Priority levels.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriority reports whether p is one of the enumerated levels.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Subject is one exam subject with its topics.
type Subject struct {
	Name     string   `json:"name"`
	Topics   []string `json:"topics"`
	Priority Priority `json:"priority"`
}

// TopicCount returns the number of topics to budget for. A subject with no
// listed topics still costs one topic's worth of study.
func (s Subject) TopicCount() int {
	if len(s.Topics) == 0 {
		return 1
	}
	return len(s.Topics)
}

// StudyConstraints captures what the student stated about their situation.
// Zero-valued fields mean "unknown", never "none".
type StudyConstraints struct {
	StartDate time.Time `json:"start_date"`
	ExamDate  time.Time `json:"exam_date"`
	Subjects  []Subject `json:"subjects"`

	// DailyAvailableMinutes maps day-of-week to available study minutes.
	// Days with no entry contribute nothing.
	DailyAvailableMinutes map[time.Weekday]int `json:"daily_available_minutes"`
}

// AvailableOn returns the available minutes on a given date.
func (c *StudyConstraints) AvailableOn(date time.Time) int {
	if c == nil || c.DailyAvailableMinutes == nil {
		return 0
	}
	return c.DailyAvailableMinutes[date.Weekday()]
}

// HasSubject reports whether a subject name is declared, ignoring case.
func (c *StudyConstraints) HasSubject(name string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Subjects {
		if equalFold(s.Name, name) {
			return true
		}
	}
	return false
}

// FeasibilityVerdict is the outcome of the pre-generation feasibility
// check. It is computed per request and never persisted.
type FeasibilityVerdict struct {
	Feasible              bool     `json:"feasible"`
	TotalAvailableMinutes int      `json:"total_available_minutes"`
	TotalRequiredMinutes  int      `json:"total_estimated_required_minutes"`
	ShortfallMinutes      int      `json:"shortfall_minutes"`
	AdjustmentHints       []string `json:"adjustment_hints"`
}

// planDateFormat is the wire format for plan day dates.
const planDateFormat = "2006-01-02"

// PlanBlock is one study block within a day.
type PlanBlock struct {
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
	Minutes int    `json:"minutes"`
	Kind    string `json:"kind"`
}

// PlanDay is one day of the schedule.
type PlanDay struct {
	Date   string      `json:"date"`
	Blocks []PlanBlock `json:"blocks"`
}

// StudyPlan is the structured output of a successful plan generation.
type StudyPlan struct {
	Days []PlanDay `json:"days"`
}

// TotalMinutes sums all block minutes across the plan.
func (p *StudyPlan) TotalMinutes() int {
	total := 0
	for _, day := range p.Days {
		for _, block := range day.Blocks {
			total += block.Minutes
		}
	}
	return total
}

// ActionItem is a concrete next step surfaced alongside the reply.
type ActionItem struct {
	Title      string   `json:"title"`
	Why        string   `json:"why"`
	EtaMinutes int      `json:"eta_minutes"`
	Priority   Priority `json:"priority"`
}

// AgentResponse is the contract returned to the caller for every mode.
// The three sequences are always present, possibly empty, so consumers can
// render them unconditionally.
type AgentResponse struct {
	ReplyMarkdown     string       `json:"reply_markdown"`
	ActionItems       []ActionItem `json:"action_items"`
	FollowUpQuestions []string     `json:"follow_up_questions"`
	Warnings          []string     `json:"warnings"`
}

// normalize replaces nil sequences with empty ones so the serialized
// response never carries nulls.
func (r *AgentResponse) normalize() {
	if r.ActionItems == nil {
		r.ActionItems = []ActionItem{}
	}
	if r.FollowUpQuestions == nil {
		r.FollowUpQuestions = []string{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
}

// Intent is the structured output of auto-mode intent classification.
type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// GenerationAttempt records one attempt within a single validated-generation
// call. It exists only for the duration of that call.
type GenerationAttempt struct {
	Number           int
	RawOutput        string
	ValidationErrors []string
	ProviderError    string
}

func (a GenerationAttempt) String() string {
	if a.ProviderError != "" {
		return fmt.Sprintf("attempt %d: provider error: %s", a.Number, a.ProviderError)
	}
	return fmt.Sprintf("attempt %d: %d validation errors", a.Number, len(a.ValidationErrors))
}
