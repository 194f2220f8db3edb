package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/internal/scheduler"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
)

// DefaultMaxCoursesPerSemester caps the selection of one semester, block course excluded.
const DefaultMaxCoursesPerSemester = 8

func inputError(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(format, args...))
}

// validateSelection checks the courses and block times of one semester.
func validateSelection(semester models.Semester, courses []models.Course, blocks []models.BlockTime, maxCourses int) error {
	if maxCourses <= 0 {
		maxCourses = DefaultMaxCoursesPerSemester
	}

	selected := 0
	seen := make(map[string]struct{}, len(courses))
	for _, course := range courses {
		if course.IsBlock() {
			return inputError("course id %d is reserved for block times", models.BlockCourseID)
		}
		if course.Semester != semester {
			return inputError("course %s belongs to semester %s, not %s", course.RawID, course.Semester, semester)
		}
		if _, dup := seen[course.Key()]; dup {
			return inputError("course %s is selected twice", course.RawID)
		}
		seen[course.Key()] = struct{}{}
		selected++

		if !course.HasGroups() {
			return inputError("course %s has no groups", course.RawID)
		}
		for kind, groups := range course.Groups {
			if !kind.Valid() {
				return inputError("course %s has unknown group type %q", course.RawID, kind)
			}
			for _, group := range groups {
				if len(group.Sessions) == 0 {
					return inputError("course %s has an empty %s group", course.RawID, kind)
				}
				for _, session := range group.Sessions {
					if _, err := scheduler.SessionSpan(session); err != nil {
						return inputError("course %s: %v", course.RawID, err)
					}
				}
			}
		}
	}
	if selected > maxCourses {
		return inputError("at most %d courses can be selected for semester %s, got %d", maxCourses, semester, selected)
	}

	return validateBlocks(semester, blocks)
}

// validateBlocks rejects malformed block times and overlaps within one semester and day.
func validateBlocks(semester models.Semester, blocks []models.BlockTime) error {
	spans := make([]scheduler.Span, 0, len(blocks))
	for _, block := range blocks {
		if block.Semester != semester {
			continue
		}
		span, err := scheduler.SessionSpan(models.Session{Day: block.Day, StartTime: block.StartTime, EndTime: block.EndTime})
		if err != nil {
			return inputError("block time: %v", err)
		}
		spans = append(spans, span)
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Day != spans[j].Day {
			return spans[i].Day < spans[j].Day
		}
		return spans[i].Start < spans[j].Start
	})
	for i := 1; i < len(spans); i++ {
		prev := spans[i-1]
		if spans[i].Overlaps(prev) {
			return inputError("block times overlap on %s (%s-%s and %s-%s)",
				models.DayNames[spans[i].Day-1],
				scheduler.FormatClock(prev.Start), scheduler.FormatClock(prev.End),
				scheduler.FormatClock(spans[i].Start), scheduler.FormatClock(spans[i].End))
		}
	}
	return nil
}

func hasBlocks(semester models.Semester, blocks []models.BlockTime) bool {
	for _, block := range blocks {
		if block.Semester == semester {
			return true
		}
	}
	return false
}
