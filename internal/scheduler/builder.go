package scheduler

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/models"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
)

const (
	DefaultMaxSchedules  = 50000
	DefaultWarnThreshold = 100000
)

// BuilderConfig bounds the search.
type BuilderConfig struct {
	MaxSchedules  int
	WarnThreshold int
}

// BuildResult summarises one semester search.
type BuildResult struct {
	Semester  models.Semester
	Schedules []models.InformativeSchedule
	// Estimated is the saturating product of per-course option counts.
	Estimated uint64
	Truncated bool
	RunStamp  int64
}

// Builder searches the product of per-course options with backtracking.
type Builder struct {
	cfg       BuilderConfig
	generator *CombinationGenerator
	ids       *IDGenerator
	logger    *zap.Logger
}

// NewBuilder constructs a builder. Zero config values fall back to defaults.
func NewBuilder(cfg BuilderConfig, ids *IDGenerator, logger *zap.Logger) *Builder {
	if cfg.MaxSchedules <= 0 {
		cfg.MaxSchedules = DefaultMaxSchedules
	}
	if cfg.WarnThreshold <= 0 {
		cfg.WarnThreshold = DefaultWarnThreshold
	}
	if ids == nil {
		ids = NewIDGenerator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		cfg:       cfg,
		generator: NewCombinationGenerator(logger),
		ids:       ids,
		logger:    logger,
	}
}

// Build enumerates every conflict-free schedule for courses. emit, when set,
// receives each accepted schedule in discovery order. A runtime failure
// clears the result and returns a capacity error instead of a partial set.
func (b *Builder) Build(semester models.Semester, courses []models.Course, emit func(models.InformativeSchedule)) (result BuildResult, err error) {
	result.Semester = semester
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("schedule search aborted", zap.Int("semester", int(semester)), zap.Any("panic", r))
			result = BuildResult{Semester: semester}
			err = appErrors.Wrap(fmt.Errorf("%v", r), appErrors.ErrCapacity.Code, appErrors.ErrCapacity.Status, "schedule search aborted")
		}
	}()

	options := make([][]Option, len(courses))
	for i, course := range courses {
		options[i] = b.generator.Options(i, course)
	}

	result.Estimated = estimate(options)
	if result.Estimated > uint64(b.cfg.WarnThreshold) {
		b.logger.Warn("large schedule search space",
			zap.Int("semester", int(semester)),
			zap.Uint64("estimated", result.Estimated),
			zap.Int("cap", b.cfg.MaxSchedules),
		)
	}

	result.RunStamp = b.ids.RunStamp()
	capacity := b.cfg.MaxSchedules
	if result.Estimated < uint64(capacity) {
		capacity = int(result.Estimated)
	}
	schedules := make([]models.InformativeSchedule, 0, minInt(capacity, 1024))
	current := make([]*Option, 0, len(courses))

	var backtrack func(i int) bool
	backtrack = func(i int) bool {
		if i == len(options) {
			if len(schedules) >= b.cfg.MaxSchedules {
				result.Truncated = true
				return false
			}
			schedule := b.materialise(semester, courses, current, len(schedules)+1, result.RunStamp)
			schedules = append(schedules, schedule)
			if emit != nil {
				emit(schedule)
			}
			return true
		}
		for k := range options[i] {
			option := &options[i][k]
			if conflictsWithAny(option, current) {
				continue
			}
			current = append(current, option)
			more := backtrack(i + 1)
			current = current[:len(current)-1]
			if !more {
				return false
			}
		}
		return true
	}
	backtrack(0)

	if result.Truncated {
		b.logger.Warn("schedule cap reached", zap.Int("semester", int(semester)), zap.Int("cap", b.cfg.MaxSchedules))
	}
	result.Schedules = schedules
	return result, nil
}

func (b *Builder) materialise(semester models.Semester, courses []models.Course, picks []*Option, index int, stamp int64) models.InformativeSchedule {
	week := models.EmptyWeek()

	type placed struct {
		item  models.ScheduleItem
		start int
		end   int
	}
	buckets := make([][]placed, 7)
	for _, option := range picks {
		course := courses[option.Selection.Course]
		offset := 0
		for _, group := range option.Groups {
			for _, session := range group.Sessions {
				span := option.Spans[offset]
				offset++
				buckets[span.Day-1] = append(buckets[span.Day-1], placed{
					item: models.ScheduleItem{
						CourseName: course.Name,
						RawID:      course.RawID,
						Type:       group.Type,
						Day:        span.Day,
						StartTime:  FormatClock(span.Start),
						EndTime:    FormatClock(span.End),
						Building:   session.Building,
						Room:       session.Room,
					},
					start: span.Start,
					end:   span.End,
				})
			}
		}
	}

	for d := range buckets {
		bucket := buckets[d]
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].start == bucket[j].start {
				return bucket[i].end < bucket[j].end
			}
			return bucket[i].start < bucket[j].start
		})
		items := make([]models.ScheduleItem, 0, len(bucket))
		for _, p := range bucket {
			items = append(items, p.item)
		}
		week[d].Items = items
	}

	schedule := models.InformativeSchedule{
		Index:    index,
		UniqueID: b.ids.Format(semester, stamp, index),
		Semester: semester,
		Week:     week,
	}

	metrics, err := CalculateMetrics(week)
	if err != nil {
		b.logger.Warn("metrics degraded", zap.String("unique_id", schedule.UniqueID), zap.Error(err))
		metrics = models.DefaultMetrics()
	}
	schedule.Metrics = metrics
	return schedule
}

func conflictsWithAny(option *Option, current []*Option) bool {
	for _, prior := range current {
		if spansConflict(option.Spans, prior.Spans) {
			return true
		}
	}
	return false
}

func estimate(options [][]Option) uint64 {
	total := uint64(1)
	for _, opts := range options {
		n := uint64(len(opts))
		if n == 0 {
			return 0
		}
		if total > math.MaxUint64/n {
			return math.MaxUint64
		}
		total *= n
	}
	return total
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
