package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/dto"
	"github.com/noah-isme/course-planner/internal/models"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
	"github.com/noah-isme/course-planner/pkg/logger"
)

// ScheduleStore is the read and cleanup side of the schedule store.
type ScheduleStore interface {
	GetAll(ctx context.Context) ([]models.ScheduleRecord, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.ScheduleRecord, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// LogSource exposes the recently collected log entries.
type LogSource interface {
	Entries() []logger.Entry
}

// EngineDeps wires the services behind the operation entry point. Store and
// Logs may be nil.
type EngineDeps struct {
	Generation *GenerationService
	Filter     *FilterService
	Export     *ExportService
	Import     *ImportService
	Store      ScheduleStore
	Logs       LogSource
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// Engine is the single operation entry point used by the UI.
type Engine struct {
	generation *GenerationService
	filter     *FilterService
	export     *ExportService
	imports    *ImportService
	store      ScheduleStore
	logs       LogSource
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEngine constructs the dispatcher.
func NewEngine(deps EngineDeps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &Engine{
		generation: deps.Generation,
		filter:     deps.Filter,
		export:     deps.Export,
		imports:    deps.Import,
		store:      deps.Store,
		logs:       deps.Logs,
		validator:  deps.Validator,
		logger:     deps.Logger,
	}
}

// Execute runs operation op with a JSON payload and returns its result.
// Panics inside a service are converted into an internal error.
func (e *Engine) Execute(ctx context.Context, op string, payload json.RawMessage) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("operation panicked", zap.String("operation", op), zap.Any("panic", r), zap.Stack("stack"))
			result = nil
			err = appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("operation %s failed unexpectedly", op))
		}
	}()

	switch op {
	case dto.OpGenerateSchedules:
		var req dto.GenerateSchedulesRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if e.generation == nil {
			return nil, unavailable(op)
		}
		return e.generation.Generate(ctx, req)

	case dto.OpGenerateAll:
		var req dto.GenerateAllRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if e.generation == nil {
			return nil, unavailable(op)
		}
		return e.generation.GenerateAll(ctx, req, func(res dto.SemesterResult) {
			e.logger.Debug("semester finished",
				zap.String("semester", res.Semester.String()),
				zap.Bool("skipped", res.Skipped),
				zap.String("error", res.Error))
		})

	case dto.OpBotQuerySchedules:
		var req dto.BotQueryRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if e.filter == nil {
			return nil, unavailable(op)
		}
		return e.filter.Query(ctx, req)

	case dto.OpGetLastFilteredIDs:
		if e.filter == nil {
			return &dto.LastFilteredIDsResponse{IDs: []int{}}, nil
		}
		return &dto.LastFilteredIDsResponse{IDs: e.filter.LastFilteredIDs(ctx)}, nil

	case dto.OpCleanSchedules:
		return e.Clean(ctx)

	case dto.OpSaveSchedule, dto.OpPrintSchedule:
		var req dto.ExportRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if e.export == nil {
			return nil, unavailable(op)
		}
		if op == dto.OpSaveSchedule {
			return e.export.Save(ctx, req)
		}
		return e.export.Print(ctx, req)

	case dto.OpLoadCourses:
		var req dto.LoadCoursesRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if e.imports == nil {
			return nil, unavailable(op)
		}
		return e.imports.Load(ctx, req)

	case dto.OpGetFileHistory:
		if e.imports == nil {
			return &dto.FileHistoryResponse{Files: []models.FileHistory{}}, nil
		}
		return e.imports.History(ctx)

	case dto.OpGetSchedules:
		var req dto.GetSchedulesRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return e.schedules(ctx, req)

	case dto.OpGetLogEntries:
		if e.logs == nil {
			return &dto.LogEntriesResponse{Entries: []logger.Entry{}}, nil
		}
		return &dto.LogEntriesResponse{Entries: e.logs.Entries()}, nil

	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown operation %q", op))
	}
}

// Clean deletes every stored schedule and forgets the last filter result.
func (e *Engine) Clean(ctx context.Context) (*dto.CleanSchedulesResponse, error) {
	if e.filter != nil {
		e.filter.ResetLastFiltered(ctx)
	}
	if e.store == nil {
		return &dto.CleanSchedulesResponse{}, nil
	}
	deleted, err := e.store.DeleteAll(ctx)
	if err != nil {
		e.logger.Error("schedule cleanup failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to clean schedules")
	}
	e.logger.Info("schedules cleaned", zap.Int64("deleted", deleted))
	return &dto.CleanSchedulesResponse{Deleted: deleted}, nil
}

func (e *Engine) schedules(ctx context.Context, req dto.GetSchedulesRequest) (*dto.GetSchedulesResponse, error) {
	if e.store == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "schedule store is not available")
	}
	if err := e.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule ids")
	}

	var (
		records []models.ScheduleRecord
		err     error
	)
	if len(req.IDs) == 0 {
		records, err = e.store.GetAll(ctx)
	} else {
		records, err = e.store.GetByIDs(ctx, req.IDs)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to read schedules")
	}

	out := make([]dto.StoredSchedule, 0, len(records))
	for _, record := range records {
		schedule, err := record.Informative()
		if err != nil {
			e.logger.Warn("stored schedule unreadable", zap.Int64("id", record.ID), zap.Error(err))
			continue
		}
		out = append(out, dto.StoredSchedule{ID: record.ID, SetID: record.SetID, InformativeSchedule: schedule})
	}
	return &dto.GetSchedulesResponse{Schedules: out}, nil
}

func decode(payload json.RawMessage, dest interface{}) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return nil
}

func unavailable(op string) error {
	return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("operation %s is not available", op))
}
