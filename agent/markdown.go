package agent

import (
	"fmt"
	"strings"
	"time"
)

// maxActionItems caps how many action items a plan response carries.
const maxActionItems = 5

// renderPlanMarkdown renders a validated StudyPlan as the markdown reply.
func renderPlanMarkdown(plan *StudyPlan, verdict FeasibilityVerdict) string {
	var b strings.Builder

	b.WriteString("# Your study plan\n")

	for _, day := range plan.Days {
		heading := day.Date
		if date, err := time.Parse(planDateFormat, day.Date); err == nil {
			heading = fmt.Sprintf("%s, %s", date.Weekday(), day.Date)
		}
		fmt.Fprintf(&b, "\n## %s\n\n", heading)

		if len(day.Blocks) == 0 {
			b.WriteString("_Rest day._\n")
			continue
		}
		for _, block := range day.Blocks {
			fmt.Fprintf(&b, "- **%s** — %s (%d min, %s)\n", block.Subject, block.Topic, block.Minutes, block.Kind)
		}
	}

	fmt.Fprintf(&b, "\n**Total scheduled:** %d minutes across %d days.\n", plan.TotalMinutes(), len(plan.Days))

	if !verdict.Feasible {
		fmt.Fprintf(&b, "\n> Heads up: your stated availability is about %d minutes short of what this scope needs, so the schedule is best-effort.\n",
			verdict.ShortfallMinutes)
	}

	return b.String()
}

// actionItemsFromPlan derives concrete next steps from the plan, leading
// with high-priority subjects' earliest blocks.
func actionItemsFromPlan(plan *StudyPlan, c *StudyConstraints) []ActionItem {
	priorities := make(map[string]Priority, len(c.Subjects))
	topicCounts := make(map[string]int, len(c.Subjects))
	for _, s := range c.Subjects {
		priorities[strings.ToLower(s.Name)] = s.Priority
		topicCounts[strings.ToLower(s.Name)] = s.TopicCount()
	}

	var items []ActionItem
	seen := make(map[string]bool)

	// Two passes: high-priority subjects first, then the rest, each
	// subject contributing its earliest block.
	for _, wantHigh := range []bool{true, false} {
		for _, day := range plan.Days {
			for _, block := range day.Blocks {
				key := strings.ToLower(block.Subject)
				priority, ok := priorities[key]
				if !ok {
					priority = PriorityMedium
				}
				if seen[key] || (priority == PriorityHigh) != wantHigh {
					continue
				}
				seen[key] = true

				why := fmt.Sprintf("First %s block in your schedule", block.Subject)
				if priority == PriorityHigh {
					why = fmt.Sprintf("%s is high priority with %d topics to cover", block.Subject, topicCounts[key])
				}

				items = append(items, ActionItem{
					Title:      fmt.Sprintf("Start %s: %s", block.Subject, block.Topic),
					Why:        why,
					EtaMinutes: block.Minutes,
					Priority:   priority,
				})
				if len(items) >= maxActionItems {
					return items
				}
			}
		}
	}

	return items
}
