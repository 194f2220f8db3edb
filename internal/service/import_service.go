package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/course-planner/internal/dto"
	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/internal/scheduler"
	"github.com/noah-isme/course-planner/pkg/config"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
	"github.com/noah-isme/course-planner/pkg/parser"
)

// FileHistoryStore persists the upload history.
type FileHistoryStore interface {
	Record(ctx context.Context, entry *models.FileHistory) error
	List(ctx context.Context) ([]models.FileHistory, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*models.FileHistory, error)
}

// ConflictChecker reports room double-bookings. It must stop when ctx is done.
type ConflictChecker func(ctx context.Context, courses []models.Course) ([]dto.RoomConflict, error)

// ImportService loads course workbooks and keeps the merged course catalogue.
type ImportService struct {
	history   FileHistoryStore
	cfg       config.ValidationConfig
	validator *validator.Validate
	logger    *zap.Logger
	check     ConflictChecker

	mu        sync.RWMutex
	catalogue map[string]models.Course
	order     []string
}

// NewImportService constructs the service. history may be nil.
func NewImportService(history FileHistoryStore, cfg config.ValidationConfig, validate *validator.Validate, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.BaseTimeout <= 0 {
		cfg.BaseTimeout = 10 * time.Second
	}
	if cfg.PerCourse <= 0 {
		cfg.PerCourse = 100 * time.Millisecond
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = 60 * time.Second
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Second
	}
	return &ImportService{
		history:   history,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		check:     FindRoomConflicts,
		catalogue: make(map[string]models.Course),
	}
}

// Load parses the workbook at req.Path, checks it for room conflicts and
// merges its courses into the catalogue. A later upload replaces courses with
// the same key.
func (s *ImportService) Load(ctx context.Context, req dto.LoadCoursesRequest) (*dto.LoadCoursesResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid load payload")
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "cannot read course file")
	}
	sum := blake2b.Sum256(data)
	fingerprint := hex.EncodeToString(sum[:])

	workbook, err := parser.ParseWorkbook(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("course file rejected", zap.String("path", req.Path), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid course file: %v", err))
	}

	conflicts, err := s.checkConflicts(ctx, workbook.Courses)
	if err != nil {
		return nil, err
	}

	warnings := append([]string(nil), workbook.Warnings...)
	for _, c := range conflicts {
		warnings = append(warnings, fmt.Sprintf("room %s/%s double-booked on %s %s-%s by %s and %s",
			c.Building, c.Room, models.DayNames[c.Day-1], c.Start, c.End, c.First, c.Second))
	}

	s.merge(workbook.Courses)

	entry := models.FileHistory{
		FileName:    filepath.Base(req.Path),
		Fingerprint: fingerprint,
		CourseCount: len(workbook.Courses),
		UploadedAt:  time.Now().UTC(),
	}
	if s.history != nil {
		previous, err := s.history.FindByFingerprint(ctx, fingerprint)
		switch {
		case err == nil && previous != nil:
			warnings = append(warnings, fmt.Sprintf("identical file %s was already loaded at %s",
				previous.FileName, previous.UploadedAt.Format(time.RFC3339)))
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("file history lookup failed", zap.Error(err))
		}
		if err := s.history.Record(ctx, &entry); err != nil {
			s.logger.Warn("file history not recorded", zap.String("file", entry.FileName), zap.Error(err))
			warnings = append(warnings, "upload history could not be saved")
		}
	}

	s.logger.Info("courses loaded",
		zap.String("file", entry.FileName),
		zap.String("fingerprint", fingerprint),
		zap.Int("courses", len(workbook.Courses)),
		zap.Int("warnings", len(warnings)),
		zap.Int("conflicts", len(conflicts)),
	)

	return &dto.LoadCoursesResponse{
		Courses:   s.Courses(),
		Loaded:    len(workbook.Courses),
		Warnings:  warnings,
		Conflicts: conflicts,
		History:   entry,
	}, nil
}

// Courses returns the merged catalogue in first-upload order.
func (s *ImportService) Courses() []models.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Course, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.catalogue[key])
	}
	return out
}

// History lists previous uploads, newest first.
func (s *ImportService) History(ctx context.Context) (*dto.FileHistoryResponse, error) {
	if s.history == nil {
		return &dto.FileHistoryResponse{Files: []models.FileHistory{}}, nil
	}
	files, err := s.history.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list file history")
	}
	if files == nil {
		files = []models.FileHistory{}
	}
	return &dto.FileHistoryResponse{Files: files}, nil
}

func (s *ImportService) merge(courses []models.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, course := range courses {
		key := course.Key()
		if _, ok := s.catalogue[key]; !ok {
			s.order = append(s.order, key)
		}
		s.catalogue[key] = course
	}
}

// validationTimeout is min(base + per-course * n, max).
func (s *ImportService) validationTimeout(courses int) time.Duration {
	timeout := s.cfg.BaseTimeout + time.Duration(courses)*s.cfg.PerCourse
	if timeout > s.cfg.MaxTimeout {
		timeout = s.cfg.MaxTimeout
	}
	return timeout
}

type conflictResult struct {
	conflicts []dto.RoomConflict
	err       error
}

func (s *ImportService) checkConflicts(ctx context.Context, courses []models.Course) ([]dto.RoomConflict, error) {
	timeout := s.validationTimeout(len(courses))
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan conflictResult, 1)
	go func() {
		conflicts, err := s.check(checkCtx, courses)
		done <- conflictResult{conflicts: conflicts, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if checkCtx.Err() != nil {
				return nil, s.timeoutError(timeout, res.err)
			}
			return nil, appErrors.Wrap(res.err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "course validation failed")
		}
		return res.conflicts, nil
	case <-checkCtx.Done():
	}

	cancel()
	select {
	case <-done:
	case <-time.After(s.cfg.Grace):
		s.logger.Warn("course validation worker abandoned", zap.Duration("grace", s.cfg.Grace))
	}
	return nil, s.timeoutError(timeout, checkCtx.Err())
}

func (s *ImportService) timeoutError(timeout time.Duration, cause error) error {
	s.logger.Warn("course validation timed out", zap.Duration("timeout", timeout))
	return appErrors.Wrap(cause, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status,
		fmt.Sprintf("course validation timed out after %s", timeout))
}

type roomSlot struct {
	course string
	span   scheduler.Span
}

type roomKey struct {
	semester models.Semester
	day      int
	building string
	room     string
}

// FindRoomConflicts reports pairs of sessions from different courses that use
// the same building and room at overlapping times. Sessions without a room
// are ignored.
func FindRoomConflicts(ctx context.Context, courses []models.Course) ([]dto.RoomConflict, error) {
	rooms := make(map[roomKey][]roomSlot)
	for _, course := range models.ExpandYearly(courses) {
		for _, groups := range course.Groups {
			for _, group := range groups {
				for _, session := range group.Sessions {
					if session.Room == "" {
						continue
					}
					span, err := scheduler.SessionSpan(session)
					if err != nil {
						continue
					}
					key := roomKey{semester: course.Semester, day: session.Day, building: session.Building, room: session.Room}
					rooms[key] = append(rooms[key], roomSlot{course: course.RawID, span: span})
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	var conflicts []dto.RoomConflict
	for key, slots := range rooms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i].span.Start < slots[j].span.Start })
		for i := range slots {
			for j := i + 1; j < len(slots) && slots[j].span.Start < slots[i].span.End; j++ {
				if slots[i].course == slots[j].course {
					continue
				}
				first, second := slots[i], slots[j]
				if second.course < first.course {
					first, second = second, first
				}
				conflicts = append(conflicts, dto.RoomConflict{
					Semester: key.semester,
					Day:      key.day,
					Building: key.building,
					Room:     key.room,
					First:    first.course,
					Second:   second.course,
					Start:    scheduler.FormatClock(maxInt(slots[i].span.Start, slots[j].span.Start)),
					End:      scheduler.FormatClock(minInt(slots[i].span.End, slots[j].span.End)),
				})
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Building+a.Room != b.Building+b.Room {
			return a.Building+a.Room < b.Building+b.Room
		}
		return a.First+a.Second < b.First+b.Second
	})
	return conflicts, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
