package dto

import (
	"time"

	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/pkg/logger"
)

// Operation tags accepted by the engine entry point.
const (
	OpGenerateSchedules  = "GENERATE_SCHEDULES"
	OpGenerateAll        = "GENERATE_ALL"
	OpBotQuerySchedules  = "BOT_QUERY_SCHEDULES"
	OpGetLastFilteredIDs = "GET_LAST_FILTERED_IDS"
	OpCleanSchedules     = "CLEAN_SCHEDULES"
	OpSaveSchedule       = "SAVE_SCHEDULE"
	OpPrintSchedule      = "PRINT_SCHEDULE"
	OpLoadCourses        = "LOAD_COURSES"
	OpGetFileHistory     = "GET_FILE_HISTORY"
	OpGetSchedules       = "GET_SCHEDULES"
	OpGetLogEntries      = "GET_LOG_ENTRIES"
)

// Operations lists every tag in the order the bridge documents them.
var Operations = []string{
	OpGenerateSchedules,
	OpGenerateAll,
	OpBotQuerySchedules,
	OpGetLastFilteredIDs,
	OpCleanSchedules,
	OpSaveSchedule,
	OpPrintSchedule,
	OpLoadCourses,
	OpGetFileHistory,
	OpGetSchedules,
	OpGetLogEntries,
}

// GenerateSchedulesRequest asks for every conflict-free timetable of one semester.
type GenerateSchedulesRequest struct {
	Semester   models.Semester    `json:"semester" validate:"min=1,max=3"`
	Courses    []models.Course    `json:"courses" validate:"dive"`
	BlockTimes []models.BlockTime `json:"block_times" validate:"dive"`
}

// GenerateSchedulesResponse reports one semester run.
type GenerateSchedulesResponse struct {
	Semester  models.Semester              `json:"semester"`
	RunID     string                       `json:"run_id"`
	SetID     int64                        `json:"set_id,omitempty"`
	Schedules []models.InformativeSchedule `json:"schedules"`
	Estimated uint64                       `json:"estimated"`
	Truncated bool                         `json:"truncated"`
	Persisted int                          `json:"persisted"`
	// FailedBatches counts write batches dropped after a store error.
	FailedBatches int           `json:"failed_batches"`
	Duration      time.Duration `json:"duration_ns"`
}

// GenerateAllRequest runs A, B and Summer in order over one course list.
type GenerateAllRequest struct {
	Courses    []models.Course    `json:"courses" validate:"dive"`
	BlockTimes []models.BlockTime `json:"block_times" validate:"dive"`
}

// SemesterResult is one semester's outcome inside GENERATE_ALL.
type SemesterResult struct {
	Semester models.Semester            `json:"semester"`
	Result   *GenerateSchedulesResponse `json:"result,omitempty"`
	Error    string                     `json:"error,omitempty"`
	// Skipped is set when the semester had no courses and no block times.
	Skipped bool `json:"skipped,omitempty"`
}

// GenerateAllResponse carries the per-semester results in generation order.
type GenerateAllResponse struct {
	Results []SemesterResult `json:"results"`
}

// BotQueryRequest is a natural-language filter request over the caller's visible schedules.
type BotQueryRequest struct {
	UserText     string `json:"user_text" validate:"required,max=2000"`
	AvailableIDs []int  `json:"available_ids" validate:"dive,min=1"`
	// Semester, when set, restricts matches to rows of that semester.
	Semester models.Semester `json:"semester,omitempty" validate:"omitempty,min=1,max=3"`
}

// BotQueryResponse is the reply of the filter pipeline.
type BotQueryResponse struct {
	ResponseText  string        `json:"response_text"`
	SQL           string        `json:"sql,omitempty"`
	Parameters    []interface{} `json:"parameters,omitempty"`
	IsFilterQuery bool          `json:"is_filter_query"`
	HasError      bool          `json:"has_error"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	FilteredIDs   []int         `json:"filtered_ids,omitempty"`
	// Source is llm, cache, fallback or none.
	Source string `json:"source"`
}

// LastFilteredIDsResponse returns the ids of the most recent filter.
type LastFilteredIDsResponse struct {
	IDs []int `json:"ids"`
}

// CleanSchedulesResponse reports the number of deleted rows.
type CleanSchedulesResponse struct {
	Deleted int64 `json:"deleted"`
}

// ExportRequest writes one schedule to path.
type ExportRequest struct {
	Schedule models.InformativeSchedule `json:"schedule"`
	Path     string                     `json:"path" validate:"required"`
}

// ExportResponse reports the written file.
type ExportResponse struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
}

// LoadCoursesRequest reads a course workbook from disk.
type LoadCoursesRequest struct {
	Path string `json:"path" validate:"required"`
}

// RoomConflict is two sessions of different courses booked into the same room at the same time.
type RoomConflict struct {
	Semester models.Semester `json:"semester"`
	Day      int             `json:"day"`
	Building string          `json:"building"`
	Room     string          `json:"room"`
	First    string          `json:"first"`
	Second   string          `json:"second"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
}

// LoadCoursesResponse returns the merged course catalogue after an upload.
type LoadCoursesResponse struct {
	Courses   []models.Course    `json:"courses"`
	Loaded    int                `json:"loaded"`
	Warnings  []string           `json:"warnings,omitempty"`
	Conflicts []RoomConflict     `json:"conflicts,omitempty"`
	History   models.FileHistory `json:"history"`
}

// FileHistoryResponse lists uploaded files, newest first.
type FileHistoryResponse struct {
	Files []models.FileHistory `json:"files"`
}

// GetSchedulesRequest selects stored rows by id; empty means all rows.
type GetSchedulesRequest struct {
	IDs []int64 `json:"ids" validate:"dive,min=1"`
}

// StoredSchedule is a persisted schedule with its row identity.
type StoredSchedule struct {
	ID    int64 `json:"id"`
	SetID int64 `json:"set_id"`
	models.InformativeSchedule
}

// GetSchedulesResponse returns stored schedules in insertion order.
type GetSchedulesResponse struct {
	Schedules []StoredSchedule `json:"schedules"`
}

// LogEntriesResponse returns the collected log tail, oldest first.
type LogEntriesResponse struct {
	Entries []logger.Entry `json:"entries"`
}
