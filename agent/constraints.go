package agent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Missing-field keys reported by ExtractConstraints.
const (
	MissingExamDate     = "exam_date"
	MissingAvailability = "daily_available_minutes"
	MissingSubjects     = "subjects"
)

// followUpForMissing maps a missing field to the question the agent asks.
var followUpForMissing = map[string]string{
	MissingExamDate:     "When is your exam? (for example: 2026-10-15, or \"my exam is in 20 days\")",
	MissingAvailability: "How much time can you study per day? (for example: \"2 hours per day\")",
	MissingSubjects:     "Which subjects are you preparing for? List them like: subjects: Math (algebra, calculus), Physics (mechanics)",
}

// Extraction patterns. Extraction is deliberately local and deterministic:
// when the stated constraints cannot be recognized, the agent asks focused
// follow-up questions instead of calling the provider.
var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDayRe  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	examInRe    = regexp.MustCompile(`(?i)\bexam\b[^.\n]*?\bin\s+(\d+)\s+days?\b`)
	perDayRe    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?)\s*(?:per|a|each|/)\s*day\b`)
	weekdaysRe  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?)\s*(?:on|per|each)\s+weekdays?\b`)
	weekendsRe  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?)\s*(?:on|per|each)\s+weekends?\b`)
	subjectsRe  = regexp.MustCompile(`(?i)\bsubjects?\s*[:\-]\s*(.+)`)
	parenRe     = regexp.MustCompile(`^(.*?)\s*\((.*)\)\s*$`)
	priorityRe  = regexp.MustCompile(`(?i)^(low|med|medium|high)\s*priority$`)
	monthLookup = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// ExtractConstraints derives StudyConstraints from the user's turns in the
// conversation. Later statements win over earlier ones. The returned
// missing list names the required fields that could not be recognized;
// fields are reported missing, never silently defaulted.
//
// now anchors relative dates ("exam in 20 days") and year-less month/day
// dates; it is a parameter so tests can pin it.
func ExtractConstraints(messages []Message, now time.Time) (*StudyConstraints, []string) {
	c := &StudyConstraints{}

	for _, msg := range messages {
		if msg.Role != RoleUser {
			continue
		}
		extractFromText(c, msg.Content, now)
	}

	var missing []string
	if c.ExamDate.IsZero() {
		missing = append(missing, MissingExamDate)
	}
	if len(c.DailyAvailableMinutes) == 0 {
		missing = append(missing, MissingAvailability)
	}
	if len(c.Subjects) == 0 {
		missing = append(missing, MissingSubjects)
	}

	return c, missing
}

// FollowUpQuestions renders missing-field keys as questions for the user.
func FollowUpQuestions(missing []string) []string {
	questions := make([]string, 0, len(missing))
	for _, key := range missing {
		if q, ok := followUpForMissing[key]; ok {
			questions = append(questions, q)
		}
	}
	return questions
}

func extractFromText(c *StudyConstraints, text string, now time.Time) {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)

		// A date on an exam line belongs to the exam, even when the line
		// also says "starts" ("my exam starts on 2026-09-07").
		examDated := false
		if strings.Contains(lower, "exam") || strings.Contains(lower, "test") {
			if d, ok := findDate(line, now); ok {
				c.ExamDate = d
				examDated = true
			} else if m := examInRe.FindStringSubmatch(line); m != nil {
				days, _ := strconv.Atoi(m[1])
				c.ExamDate = dateOnly(now).AddDate(0, 0, days)
				examDated = true
			}
		}
		if !examDated && (strings.Contains(lower, "start") || strings.Contains(lower, "begin")) {
			if d, ok := findDate(line, now); ok {
				c.StartDate = d
			}
		}

		extractAvailability(c, line)

		if m := subjectsRe.FindStringSubmatch(line); m != nil {
			if subjects := parseSubjectList(m[1]); len(subjects) > 0 {
				c.Subjects = subjects
			}
		}
	}
}

func extractAvailability(c *StudyConstraints, line string) {
	set := func(minutes int, days ...time.Weekday) {
		if minutes <= 0 {
			return
		}
		if c.DailyAvailableMinutes == nil {
			c.DailyAvailableMinutes = make(map[time.Weekday]int)
		}
		for _, d := range days {
			c.DailyAvailableMinutes[d] = minutes
		}
	}

	allDays := []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	weekends := []time.Weekday{time.Saturday, time.Sunday}

	if m := perDayRe.FindStringSubmatch(line); m != nil {
		set(toMinutes(m[1], m[2]), allDays...)
	}
	if m := weekdaysRe.FindStringSubmatch(line); m != nil {
		set(toMinutes(m[1], m[2]), weekdays...)
	}
	if m := weekendsRe.FindStringSubmatch(line); m != nil {
		set(toMinutes(m[1], m[2]), weekends...)
	}
}

func toMinutes(amount, unit string) int {
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	if strings.HasPrefix(strings.ToLower(unit), "h") {
		value *= 60
	}
	return int(value)
}

// findDate finds the first recognizable date in a line. Year-less dates
// resolve to the next occurrence at or after now.
func findDate(line string, now time.Time) (time.Time, bool) {
	if m := isoDateRe.FindStringSubmatch(line); m != nil {
		if d, err := time.Parse(planDateFormat, m[0]); err == nil {
			return d, true
		}
	}

	if m := monthDayRe.FindStringSubmatch(line); m != nil {
		month := monthLookup[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if m[3] == "" && d.Before(dateOnly(now)) {
			d = d.AddDate(1, 0, 0)
		}
		if d.Day() == day { // reject overflowed dates like Feb 30
			return d, true
		}
	}

	return time.Time{}, false
}

// parseSubjectList parses "Math (algebra, calculus; high priority), Physics".
// Topics and a priority marker live inside the parentheses; priority
// defaults to medium.
func parseSubjectList(list string) []Subject {
	var subjects []Subject
	for _, entry := range splitOutsideParens(list, ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		subject := Subject{Priority: PriorityMedium}
		if m := parenRe.FindStringSubmatch(entry); m != nil {
			subject.Name = strings.TrimSpace(m[1])
			for _, part := range strings.FieldsFunc(m[2], func(r rune) bool { return r == ',' || r == ';' }) {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				if pm := priorityRe.FindStringSubmatch(part); pm != nil {
					subject.Priority = canonicalPriority(pm[1])
					continue
				}
				subject.Topics = append(subject.Topics, part)
			}
		} else {
			subject.Name = entry
		}

		if subject.Name != "" {
			subjects = append(subjects, subject)
		}
	}
	return subjects
}

// splitOutsideParens splits on sep, ignoring separators inside parentheses.
func splitOutsideParens(s string, sep rune) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
			current.WriteRune(r)
		case r == ')':
			if depth > 0 {
				depth--
			}
			current.WriteRune(r)
		case r == sep && depth == 0:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())
	return parts
}

func canonicalPriority(s string) Priority {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
