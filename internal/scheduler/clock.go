package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/course-planner/internal/models"
)

// ParseClock converts an "HH:MM" wall-clock string to minutes since midnight.
func ParseClock(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	parts := strings.Split(trimmed, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	if hours < 0 || hours > 24 || minutes < 0 || minutes > 59 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("time %q out of range", value)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Span is a parsed session interval [Start, End) on Day.
type Span struct {
	Day   int
	Start int
	End   int
}

// Overlaps reports whether two spans share any minute. Adjacent spans do not overlap.
func (s Span) Overlaps(other Span) bool {
	return s.Day == other.Day && s.Start < other.End && other.Start < s.End
}

// SessionSpan parses a session into a Span.
func SessionSpan(session models.Session) (Span, error) {
	if session.Day < 1 || session.Day > 7 {
		return Span{}, fmt.Errorf("invalid day %d", session.Day)
	}
	start, err := ParseClock(session.StartTime)
	if err != nil {
		return Span{}, err
	}
	end, err := ParseClock(session.EndTime)
	if err != nil {
		return Span{}, err
	}
	if end <= start {
		return Span{}, fmt.Errorf("session %s-%s ends before it starts", session.StartTime, session.EndTime)
	}
	return Span{Day: session.Day, Start: start, End: end}, nil
}

// GroupSpans parses every session of group.
func GroupSpans(group models.Group) ([]Span, error) {
	spans := make([]Span, 0, len(group.Sessions))
	for _, session := range group.Sessions {
		span, err := SessionSpan(session)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}
	return spans, nil
}

func spansConflict(a, b []Span) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Overlaps(y) {
				return true
			}
		}
	}
	return false
}
