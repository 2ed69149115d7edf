package agent

// fallbackBlockMinutes caps the single study block in a fallback plan.
const fallbackBlockMinutes = 60

// Warnings attached to deterministic fallbacks.
const (
	warnGenerationExhausted = "Automatic generation did not produce a usable result; this is a simplified response. Please try again."
	warnProviderUnavailable = "The language model provider could not be reached."
	warnDegradedModel       = "This response was generated with a fallback model and may be lower quality."
)

// fallbackOutput builds the deterministic, schema-valid output served when
// generation attempts exhaust. It never calls the provider.
func fallbackOutput(shape Shape, constraints *StudyConstraints, providerFailed bool) *ParsedOutput {
	switch shape {
	case ShapeStudyPlan:
		return &ParsedOutput{Shape: ShapeStudyPlan, Plan: fallbackPlan(constraints)}
	case ShapeIntent:
		// Classification failures degrade to chat rather than guessing.
		return &ParsedOutput{Shape: ShapeIntent, Intent: &Intent{
			Intent:     string(ModeChat),
			Confidence: 0,
			Rationale:  "classification unavailable",
		}}
	default:
		return &ParsedOutput{Shape: ShapeAgentResponse, Response: fallbackResponse(providerFailed)}
	}
}

// fallbackPlan builds a minimal single-day plan: one block for the first
// subject on the first day with availability. It satisfies every StudyPlan
// invariant by construction.
func fallbackPlan(c *StudyConstraints) *StudyPlan {
	day := PlanDay{Blocks: []PlanBlock{}}

	start := dateOnly(c.StartDate)
	exam := dateOnly(c.ExamDate)
	day.Date = start.Format(planDateFormat)

	for d := start; !d.After(exam); d = d.AddDate(0, 0, 1) {
		available := c.AvailableOn(d)
		if available <= 0 || len(c.Subjects) == 0 {
			continue
		}

		subject := c.Subjects[0]
		topic := subject.Name
		if len(subject.Topics) > 0 {
			topic = subject.Topics[0]
		}

		minutes := available
		if minutes > fallbackBlockMinutes {
			minutes = fallbackBlockMinutes
		}

		day.Date = d.Format(planDateFormat)
		day.Blocks = append(day.Blocks, PlanBlock{
			Subject: subject.Name,
			Topic:   topic,
			Minutes: minutes,
			Kind:    "study",
		})
		break
	}

	return &StudyPlan{Days: []PlanDay{day}}
}

// fallbackResponse builds the deterministic conversational fallback. Its
// warnings are always non-empty so the degradation is visible to the user.
func fallbackResponse(providerFailed bool) *AgentResponse {
	warnings := []string{warnGenerationExhausted}
	if providerFailed {
		warnings = append(warnings, warnProviderUnavailable)
	}

	resp := &AgentResponse{
		ReplyMarkdown: "Sorry, I couldn't generate a full answer right now. " +
			"Please try again in a moment, or rephrase your request with your exam date, " +
			"daily available study time, and the subjects you're preparing for.",
		Warnings: warnings,
	}
	resp.normalize()
	return resp
}

// planFallbackWarnings explains a fallback plan to the user.
func planFallbackWarnings(providerFailed bool) []string {
	warnings := []string{
		warnGenerationExhausted,
		"Only a minimal starter schedule is included; ask again to regenerate the full plan.",
	}
	if providerFailed {
		warnings = append(warnings, warnProviderUnavailable)
	}
	return warnings
}
