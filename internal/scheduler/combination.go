package scheduler

import (
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/models"
)

// Option is one legal selection for a course together with its parsed spans.
type Option struct {
	Selection models.CourseSelection
	Groups    []models.Group
	Spans     []Span
}

// CombinationGenerator enumerates the legal per-course group selections.
type CombinationGenerator struct {
	logger *zap.Logger
}

// NewCombinationGenerator constructs a generator.
func NewCombinationGenerator(logger *zap.Logger) *CombinationGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CombinationGenerator{logger: logger}
}

// Combinations returns every legal selection of course in stable order.
func (g *CombinationGenerator) Combinations(course models.Course) []models.CourseSelection {
	options := g.Options(0, course)
	out := make([]models.CourseSelection, 0, len(options))
	for _, option := range options {
		out = append(out, option.Selection)
	}
	return out
}

// Options enumerates the selections of the course at position courseIdx.
// It never fails: malformed courses yield no options and a warning.
func (g *CombinationGenerator) Options(courseIdx int, course models.Course) []Option {
	if course.ID <= 0 || course.RawID == "" {
		g.logger.Warn("course missing identity fields", zap.Int("course_id", course.ID), zap.String("raw_id", course.RawID))
		return nil
	}

	types := make([]models.GroupType, 0, len(models.GroupTypeOrder))
	spans := make(map[models.GroupType][][]Span)
	for _, groupType := range models.GroupTypeOrder {
		groups := course.Groups[groupType]
		if len(groups) == 0 {
			continue
		}
		parsed := make([][]Span, len(groups))
		for i, group := range groups {
			groupSpans, err := GroupSpans(group)
			if err != nil {
				g.logger.Warn("course has unparsable session", zap.String("course", course.Key()), zap.String("type", string(groupType)), zap.Error(err))
				return nil
			}
			parsed[i] = groupSpans
		}
		types = append(types, groupType)
		spans[groupType] = parsed
	}

	if len(types) == 0 {
		g.logger.Warn("course has no groups", zap.String("course", course.Key()))
		return nil
	}

	var (
		options []Option
		refs    = make([]models.GroupRef, 0, len(types))
		picked  = make([][]Span, 0, len(types))
	)

	var walk func(level int)
	walk = func(level int) {
		if level == len(types) {
			options = append(options, buildOption(courseIdx, course, refs, picked))
			return
		}
		groupType := types[level]
		for i, candidate := range spans[groupType] {
			conflict := false
			for _, prior := range picked {
				if spansConflict(candidate, prior) {
					conflict = true
					break
				}
			}
			if conflict {
				continue
			}
			refs = append(refs, models.GroupRef{Type: groupType, Index: i})
			picked = append(picked, candidate)
			walk(level + 1)
			refs = refs[:len(refs)-1]
			picked = picked[:len(picked)-1]
		}
	}
	walk(0)

	return options
}

func buildOption(courseIdx int, course models.Course, refs []models.GroupRef, picked [][]Span) Option {
	selection := models.CourseSelection{Course: courseIdx, Groups: append([]models.GroupRef(nil), refs...)}
	var all []Span
	for _, s := range picked {
		all = append(all, s...)
	}
	return Option{
		Selection: selection,
		Groups:    selection.Resolve(course),
		Spans:     all,
	}
}
