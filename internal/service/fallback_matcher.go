package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// fallbackSelect is the projection every fallback query uses.
const fallbackSelect = "SELECT schedule_index, unique_id, semester FROM schedule WHERE "

type fallbackRule struct {
	pattern *regexp.Regexp
	build   func(match []string) (condition string, params []string, label string, ok bool)
}

func fixed(condition, label string) func([]string) (string, []string, string, bool) {
	return func([]string) (string, []string, string, bool) {
		return condition, nil, label, true
	}
}

var dayColumns = []struct {
	english string
	hebrew  string
	column  string
}{
	{"sunday", "ראשון", "has_sunday"},
	{"monday", "שני", "has_monday"},
	{"tuesday", "שלישי", "has_tuesday"},
	{"wednesday", "רביעי", "has_wednesday"},
	{"thursday", "חמישי", "has_thursday"},
	{"friday", "שישי", "has_friday"},
	{"saturday", "שבת", "has_saturday"},
}

var fallbackRules = buildFallbackRules()

func buildFallbackRules() []fallbackRule {
	rules := []fallbackRule{
		{
			pattern: regexp.MustCompile(`(?:end\w*|finish\w*|done|out)\s+(?:before|by)\s+(\d{1,2})(?::(\d{2}))?|(?:לסיים|סיום)\s*(?:עד|לפני)\s*(\d{1,2})(?::(\d{2}))?`),
			build: func(m []string) (string, []string, string, bool) {
				minutes, ok := clockFromMatch(m)
				if !ok {
					return "", nil, "", false
				}
				return "latest_end <= ?", []string{strconv.Itoa(minutes)}, "finishes by " + clockLabel(minutes), true
			},
		},
		{
			pattern: regexp.MustCompile(`(?:start\w*|begin\w*)\s+(?:after|at|from)\s+(\d{1,2})(?::(\d{2}))?|(?:not before|no earlier than|nothing before|no classes before)\s+(\d{1,2})(?::(\d{2}))?|(?:להתחיל|התחלה)\s*(?:אחרי|מ-?)\s*(\d{1,2})(?::(\d{2}))?|לא לפני\s*(\d{1,2})(?::(\d{2}))?`),
			build: func(m []string) (string, []string, string, bool) {
				minutes, ok := clockFromMatch(m)
				if !ok {
					return "", nil, "", false
				}
				return "earliest_start >= ?", []string{strconv.Itoa(minutes)}, "starts at or after " + clockLabel(minutes), true
			},
		},
		{
			pattern: regexp.MustCompile(`no early (?:morning|class|start)|without early|בלי (?:בוקר מוקדם|שיעורים מוקדמים)`),
			build:   fixed("has_early_morning = 0", "no early mornings"),
		},
		{
			pattern: regexp.MustCompile(`no morning|without morning|בלי בקרים|בלי בוקר`),
			build:   fixed("has_morning_classes = 0", "no morning classes"),
		},
		{
			pattern: regexp.MustCompile(`no evening|without evening|בלי ערב`),
			build:   fixed("has_evening_classes = 0", "no evening classes"),
		},
		{
			pattern: regexp.MustCompile(`no late|nothing late|בלי שעות מאוחרות`),
			build:   fixed("has_late_evening = 0", "no late evenings"),
		},
		{
			pattern: regexp.MustCompile(`lunch|הפסקת צהריים|ארוחת צהריים`),
			build:   fixed("has_lunch_break = 1", "a lunch break"),
		},
		{
			pattern: regexp.MustCompile(`no gaps|without gaps|no holes|back to back|בלי חלונות|ללא חלונות`),
			build:   fixed("amount_gaps = 0", "no gaps"),
		},
		{
			pattern: regexp.MustCompile(`(?:only|at most|max(?:imum)?|up to)\s+(\d)\s+days|(\d)\s+days?\s+(?:a|per)\s+week|(\d)\s*ימים`),
			build: func(m []string) (string, []string, string, bool) {
				n := firstGroup(m)
				if n == "" {
					return "", nil, "", false
				}
				return "amount_days <= ?", []string{n}, "at most " + n + " days", true
			},
		},
		{
			pattern: regexp.MustCompile(`no weekend|without weekend|weekdays only|בלי סופ"ש|בלי סוף שבוע`),
			build:   fixed("weekend_classes = 0", "no weekend classes"),
		},
		{
			pattern: regexp.MustCompile(`compact|tight|דחוס`),
			build: func([]string) (string, []string, string, bool) {
				return "compactness_ratio >= ?", []string{"0.7"}, "a compact week", true
			},
		},
	}

	for _, day := range dayColumns {
		day := day
		rules = append(rules, fallbackRule{
			pattern: regexp.MustCompile(fmt.Sprintf(`(?:no|free|without|off on)\s+%[1]ss?\b|\b%[1]ss?\s+off|(?:בלי|ללא|חופש ב)\s*יום\s+%[2]s`, day.english, day.hebrew)),
			build:   fixed(day.column+" = 0", day.english+" off"),
		})
	}
	return rules
}

// FallbackMatcher answers the most common requests without the language model.
type FallbackMatcher struct{}

// NewFallbackMatcher constructs the matcher.
func NewFallbackMatcher() *FallbackMatcher {
	return &FallbackMatcher{}
}

// Match returns a filter reply when at least one rule applies to text.
func (m *FallbackMatcher) Match(text string) (FilterReply, bool) {
	lower := strings.ToLower(text)
	var (
		conditions []string
		params     []string
		labels     []string
	)
	for _, rule := range fallbackRules {
		match := rule.pattern.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		condition, ruleParams, label, ok := rule.build(match)
		if !ok {
			continue
		}
		conditions = append(conditions, condition)
		params = append(params, ruleParams...)
		labels = append(labels, label)
	}
	if len(conditions) == 0 {
		return FilterReply{}, false
	}
	return FilterReply{
		Response: "Showing schedules with " + strings.Join(labels, ", ") + ".",
		SQL:      fallbackSelect + strings.Join(conditions, " AND ") + " ORDER BY schedule_index",
		Params:   params,
	}, true
}

// clockFromMatch reads the first hour/minute capture pair. Hours 1..6 are read as afternoon.
func clockFromMatch(m []string) (int, bool) {
	for i := 1; i+1 < len(m); i += 2 {
		if m[i] == "" {
			continue
		}
		hour, err := strconv.Atoi(m[i])
		if err != nil || hour > 23 {
			return 0, false
		}
		minute := 0
		if m[i+1] != "" {
			minute, err = strconv.Atoi(m[i+1])
			if err != nil || minute > 59 {
				return 0, false
			}
		}
		if hour >= 1 && hour <= 6 {
			hour += 12
		}
		return hour*60 + minute, true
	}
	return 0, false
}

func firstGroup(m []string) string {
	for _, group := range m[1:] {
		if group != "" {
			return group
		}
	}
	return ""
}

func clockLabel(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
