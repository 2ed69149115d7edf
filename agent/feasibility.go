package agent

import (
	"fmt"
	"math"
	"time"
)

// CostPolicy is the tunable time-cost model behind the feasibility check.
// The values are deployment policy, loaded from configuration; nothing in
// the checker treats them as ground truth.
type CostPolicy struct {
	// BaseTopicMinutes is the estimated cost of one topic at medium priority.
	BaseTopicMinutes int

	// PriorityMultipliers scales the per-topic cost by subject priority.
	PriorityMultipliers map[Priority]float64
}

// DefaultCostPolicy returns the default policy table.
func DefaultCostPolicy() CostPolicy {
	return CostPolicy{
		BaseTopicMinutes: 45,
		PriorityMultipliers: map[Priority]float64{
			PriorityLow:    0.75,
			PriorityMedium: 1.0,
			PriorityHigh:   1.4,
		},
	}
}

// TopicMinutes returns the estimated minutes for one topic at the given
// priority. Unknown priorities cost the same as medium.
func (p CostPolicy) TopicMinutes(priority Priority) int {
	mult, ok := p.PriorityMultipliers[priority]
	if !ok || mult <= 0 {
		mult = 1.0
	}
	base := p.BaseTopicMinutes
	if base <= 0 {
		base = DefaultCostPolicy().BaseTopicMinutes
	}
	return int(math.Round(float64(base) * mult))
}

// subjectMinutes estimates the total cost of one subject.
func (p CostPolicy) subjectMinutes(s Subject) int {
	return s.TopicCount() * p.TopicMinutes(s.Priority)
}

// CheckFeasibility computes whether the stated constraints can accommodate
// the requested study scope under the policy's cost model. It runs before
// any generation call; an infeasible verdict degrades the eventual response
// with warnings and hints but never blocks it.
func CheckFeasibility(c *StudyConstraints, policy CostPolicy) FeasibilityVerdict {
	verdict := FeasibilityVerdict{AdjustmentHints: []string{}}

	days := 0
	start := dateOnly(c.StartDate)
	exam := dateOnly(c.ExamDate)
	for d := start; !d.After(exam); d = d.AddDate(0, 0, 1) {
		verdict.TotalAvailableMinutes += c.AvailableOn(d)
		days++
	}

	for _, subject := range c.Subjects {
		verdict.TotalRequiredMinutes += policy.subjectMinutes(subject)
	}

	verdict.Feasible = verdict.TotalRequiredMinutes <= verdict.TotalAvailableMinutes
	if verdict.Feasible {
		return verdict
	}

	verdict.ShortfallMinutes = verdict.TotalRequiredMinutes - verdict.TotalAvailableMinutes
	verdict.AdjustmentHints = adjustmentHints(c, policy, verdict, days)
	return verdict
}

// adjustmentHints derives concrete suggestions from the shortfall.
func adjustmentHints(c *StudyConstraints, policy CostPolicy, verdict FeasibilityVerdict, days int) []string {
	var hints []string

	if days <= 0 {
		return []string{fmt.Sprintf("the exam date %s is before the plan start date %s; check the dates",
			c.ExamDate.Format(planDateFormat), c.StartDate.Format(planDateFormat))}
	}

	// More minutes per day closes the gap fastest.
	extraPerDay := ceilDiv(verdict.ShortfallMinutes, days)
	hints = append(hints, fmt.Sprintf("add about %d minutes of availability per day (%d minutes short in total)",
		extraPerDay, verdict.ShortfallMinutes))

	// Cutting topics from the most expensive subject.
	if costliest, cost := costliestSubject(c.Subjects, policy); costliest != nil && cost > 0 {
		perTopic := policy.TopicMinutes(costliest.Priority)
		cut := ceilDiv(verdict.ShortfallMinutes, perTopic)
		if cut > costliest.TopicCount() {
			cut = costliest.TopicCount()
		}
		hints = append(hints, fmt.Sprintf("reduce the topic count for %s by %d (saves about %d minutes)",
			costliest.Name, cut, cut*perTopic))
	}

	// Starting earlier, at the current daily average.
	if avgDaily := verdict.TotalAvailableMinutes / days; avgDaily > 0 {
		earlier := ceilDiv(verdict.ShortfallMinutes, avgDaily)
		hints = append(hints, fmt.Sprintf("start preparing %d days earlier at your current availability", earlier))
	}

	return hints
}

func costliestSubject(subjects []Subject, policy CostPolicy) (*Subject, int) {
	var best *Subject
	bestCost := 0
	for i := range subjects {
		if cost := policy.subjectMinutes(subjects[i]); cost > bestCost {
			best = &subjects[i]
			bestCost = cost
		}
	}
	return best, bestCost
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// dateOnly keeps t's calendar day but pins it to UTC midnight, so dates
// from the clock compare cleanly with dates parsed out of user text.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
