package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/dto"
	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/internal/scheduler"
	"github.com/noah-isme/course-planner/pkg/config"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
	"github.com/noah-isme/course-planner/pkg/jobs"
)

const defaultBatchSize = 100

// ScheduleWriter is the write side of the schedule store. ReplaceSet starts
// a run and drops every earlier run of the same semester.
type ScheduleWriter interface {
	ReplaceSet(ctx context.Context, set *models.ScheduleSet) error
	InsertBatch(ctx context.Context, setID int64, records []models.ScheduleRecord) error
	DeleteSet(ctx context.Context, setID int64) error
}

// GenerationService validates selections, runs the builder and streams
// accepted schedules into the store in fixed-size batches.
type GenerationService struct {
	builder    *scheduler.Builder
	store      ScheduleWriter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	batchSize  int
	maxCourses int
	queue      *jobs.Queue

	run func(ctx context.Context, job *generationJob) error
}

type generationJob struct {
	semester models.Semester
	courses  []models.Course
	blocks   []models.BlockTime
	result   *dto.GenerateSchedulesResponse
}

// NewGenerationService constructs the service. store may be nil, in which case
// schedules are generated but not persisted.
func NewGenerationService(builder *scheduler.Builder, store ScheduleWriter, metrics *MetricsService, validate *validator.Validate, cfg config.GenerationConfig, logger *zap.Logger) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if builder == nil {
		builder = scheduler.NewBuilder(scheduler.BuilderConfig{MaxSchedules: cfg.MaxSchedules, WarnThreshold: cfg.WarnThreshold}, nil, logger)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	svc := &GenerationService{
		builder:    builder,
		store:      store,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		batchSize:  batchSize,
		maxCourses: cfg.MaxCoursesPerSemester,
	}
	svc.run = svc.runJob
	svc.queue = jobs.NewQueue("semester-generation", svc.handleJob, jobs.QueueConfig{
		Workers:    1,
		BufferSize: len(models.GenerationSemesters),
		MaxRetries: 0,
		Logger:     logger,
	})
	return svc
}

// Start launches the semester worker.
func (s *GenerationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the semester worker to exit.
func (s *GenerationService) Stop() {
	s.queue.Stop()
}

// Generate builds every schedule for one semester.
func (s *GenerationService) Generate(ctx context.Context, req dto.GenerateSchedulesRequest) (*dto.GenerateSchedulesResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}
	courses := models.FilterBySemester(models.ExpandYearly(req.Courses), req.Semester)
	if len(courses) == 0 && !hasBlocks(req.Semester, req.BlockTimes) {
		return nil, inputError("no courses selected for semester %s", req.Semester)
	}
	if err := validateSelection(req.Semester, courses, req.BlockTimes, s.maxCourses); err != nil {
		return nil, err
	}
	return s.generate(ctx, req.Semester, courses, req.BlockTimes)
}

// GenerateAll runs A, B and Summer strictly one after another on the
// semester worker. onResult, when set, is called as each semester completes.
func (s *GenerationService) GenerateAll(ctx context.Context, req dto.GenerateAllRequest, onResult func(dto.SemesterResult)) (*dto.GenerateAllResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	expanded := models.ExpandYearly(req.Courses)
	planned := make([]*generationJob, len(models.GenerationSemesters))
	for i, semester := range models.GenerationSemesters {
		courses := models.FilterBySemester(expanded, semester)
		if len(courses) == 0 && !hasBlocks(semester, req.BlockTimes) {
			continue
		}
		if err := validateSelection(semester, courses, req.BlockTimes, s.maxCourses); err != nil {
			return nil, err
		}
		planned[i] = &generationJob{semester: semester, courses: courses, blocks: req.BlockTimes}
	}

	results := make([]dto.SemesterResult, len(models.GenerationSemesters))
	var wg sync.WaitGroup
	queued := false
	for i, semester := range models.GenerationSemesters {
		results[i].Semester = semester
		job := planned[i]
		if job == nil {
			results[i].Skipped = true
			continue
		}
		queued = true

		slot := &results[i]
		wg.Add(1)
		_, err := s.queue.Enqueue(jobs.Job{
			Type:    "generate:" + semester.String(),
			Payload: job,
			Done: func(err error) {
				defer wg.Done()
				if err != nil {
					slot.Error = appErrors.FromError(err).Message
				} else {
					slot.Result = job.result
				}
				if onResult != nil {
					onResult(*slot)
				}
			},
		})
		if err != nil {
			wg.Done()
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "semester worker unavailable")
		}
	}
	if !queued {
		return nil, inputError("no courses selected")
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return &dto.GenerateAllResponse{Results: results}, nil
	case <-ctx.Done():
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "generation cancelled")
	}
}

func (s *GenerationService) handleJob(ctx context.Context, job jobs.Job) error {
	gj, ok := job.Payload.(*generationJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return s.run(ctx, gj)
}

func (s *GenerationService) runJob(ctx context.Context, gj *generationJob) error {
	result, err := s.generate(ctx, gj.semester, gj.courses, gj.blocks)
	if err != nil {
		return err
	}
	gj.result = result
	return nil
}

func (s *GenerationService) generate(ctx context.Context, semester models.Semester, courses []models.Course, blocks []models.BlockTime) (*dto.GenerateSchedulesResponse, error) {
	start := time.Now()
	input := make([]models.Course, 0, len(courses)+1)
	if block, ok := models.BlockCourse(semester, blocks); ok {
		input = append(input, block)
	}
	input = append(input, courses...)

	resp := &dto.GenerateSchedulesResponse{Semester: semester, RunID: uuid.NewString()}
	writer := &batchWriter{
		ctx:      ctx,
		store:    s.store,
		metrics:  s.metrics,
		logger:   s.logger,
		size:     s.batchSize,
		semester: semester,
		runID:    resp.RunID,
	}

	writer.open()
	result, err := s.builder.Build(semester, input, writer.add)
	if err != nil {
		writer.discard()
		s.logger.Error("schedule generation failed", zap.String("semester", semester.String()), zap.Error(err))
		return nil, err
	}
	writer.flush()

	resp.SetID = writer.setID
	resp.Schedules = result.Schedules
	resp.Estimated = result.Estimated
	resp.Truncated = result.Truncated
	resp.Persisted = writer.persisted
	resp.FailedBatches = writer.failed
	resp.Duration = time.Since(start)

	s.metrics.ObserveGeneration(semester, len(result.Schedules), resp.Duration)
	s.logger.Info("schedules generated",
		zap.String("semester", semester.String()),
		zap.String("run_id", resp.RunID),
		zap.Int("courses", len(courses)),
		zap.Int("schedules", len(result.Schedules)),
		zap.Int("persisted", writer.persisted),
		zap.Int("failed_batches", writer.failed),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("duration", resp.Duration),
	)
	return resp, nil
}

// batchWriter buffers schedules and writes them in batches. A failed batch is
// dropped and counted; later batches are still attempted.
type batchWriter struct {
	ctx      context.Context
	store    ScheduleWriter
	metrics  *MetricsService
	logger   *zap.Logger
	size     int
	semester models.Semester
	runID    string

	setID     int64
	disabled  bool
	buffer    []models.ScheduleRecord
	persisted int
	failed    int
}

// open registers the run, replacing the semester's previous results.
func (w *batchWriter) open() {
	if w.store == nil {
		return
	}
	set := &models.ScheduleSet{RunID: w.runID, Semester: int(w.semester), Source: "generate", CreatedAt: time.Now().UTC()}
	if err := w.store.ReplaceSet(w.ctx, set); err != nil {
		w.logger.Error("schedule set not created, persistence disabled for this run",
			zap.String("run_id", w.runID), zap.Error(err))
		w.disabled = true
		w.failed++
		w.metrics.RecordBatchFlush(false)
		return
	}
	w.setID = set.ID
}

func (w *batchWriter) add(schedule models.InformativeSchedule) {
	if w.store == nil || w.disabled {
		return
	}
	record, err := models.NewScheduleRecord(schedule, w.setID)
	if err != nil {
		w.logger.Warn("schedule not persisted", zap.String("unique_id", schedule.UniqueID), zap.Error(err))
		return
	}
	w.buffer = append(w.buffer, record)
	if len(w.buffer) >= w.size {
		w.flush()
	}
}

func (w *batchWriter) flush() {
	if len(w.buffer) == 0 || w.store == nil || w.disabled {
		w.buffer = nil
		return
	}
	batch := w.buffer
	w.buffer = make([]models.ScheduleRecord, 0, w.size)

	if err := w.store.InsertBatch(w.ctx, w.setID, batch); err != nil {
		w.failed++
		w.metrics.RecordBatchFlush(false)
		w.logger.Error("schedule batch dropped",
			zap.String("run_id", w.runID),
			zap.Int("size", len(batch)),
			zap.Int("first_index", batch[0].ScheduleIndex),
			zap.Error(err),
		)
		return
	}
	w.persisted += len(batch)
	w.metrics.RecordBatchFlush(true)
}

// discard drops the pending buffer and removes every batch already written
// for the run, so an aborted search leaves nothing behind.
func (w *batchWriter) discard() {
	w.buffer = nil
	if w.store == nil || w.setID == 0 {
		return
	}
	if err := w.store.DeleteSet(w.ctx, w.setID); err != nil {
		w.logger.Error("aborted run not removed", zap.String("run_id", w.runID), zap.Int64("set_id", w.setID), zap.Error(err))
		return
	}
	w.persisted = 0
	w.disabled = true
}
