package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/dto"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
	"github.com/noah-isme/course-planner/pkg/export"
)

const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportService renders single schedules to CSV or PDF files.
type ExportService struct {
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(storage fileStorage, validate *validator.Validate, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		storage:   storage,
		csv:       csv,
		pdf:       pdf,
		validator: validate,
		logger:    logger,
	}
}

// Save writes the schedule as a CSV table.
func (s *ExportService) Save(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	payload, err := s.csv.Render(export.ScheduleTable(req.Schedule))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return s.write(req, FormatCSV, payload)
}

// Print writes the schedule as a one-page PDF with a metric summary.
func (s *ExportService) Print(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	doc := export.Document{
		Title:   scheduleTitle(req),
		Summary: export.ScheduleSummary(req.Schedule.Metrics),
		Table:   export.ScheduleTable(req.Schedule),
	}
	payload, err := s.pdf.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return s.write(req, FormatPDF, payload)
}

func (s *ExportService) write(req dto.ExportRequest, format string, payload []byte) (*dto.ExportResponse, error) {
	if s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "export storage is not configured")
	}
	path, err := s.storage.Save(withExtension(req.Path, format), payload)
	if err != nil {
		s.logger.Error("export failed", zap.String("path", req.Path), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write export")
	}
	s.logger.Info("schedule exported",
		zap.String("unique_id", req.Schedule.UniqueID),
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("bytes", len(payload)),
	)
	return &dto.ExportResponse{Path: path, Format: format, Bytes: len(payload)}, nil
}

func scheduleTitle(req dto.ExportRequest) string {
	title := fmt.Sprintf("Semester %s schedule #%d", req.Schedule.Semester, req.Schedule.Index)
	if req.Schedule.UniqueID != "" {
		title += " (" + req.Schedule.UniqueID + ")"
	}
	return title
}

func withExtension(path, format string) string {
	if strings.EqualFold(filepath.Ext(path), "."+format) {
		return path
	}
	return path + "." + format
}
