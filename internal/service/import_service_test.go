package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/course-planner/internal/dto"
	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/pkg/config"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
)

type historyStub struct {
	entries   []models.FileHistory
	recordErr error
}

func (h *historyStub) Record(ctx context.Context, entry *models.FileHistory) error {
	if h.recordErr != nil {
		return h.recordErr
	}
	entry.ID = int64(len(h.entries) + 1)
	h.entries = append(h.entries, *entry)
	return nil
}

func (h *historyStub) List(ctx context.Context) ([]models.FileHistory, error) {
	out := make([]models.FileHistory, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

func (h *historyStub) FindByFingerprint(ctx context.Context, fingerprint string) (*models.FileHistory, error) {
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Fingerprint == fingerprint {
			entry := h.entries[i]
			return &entry, nil
		}
	}
	return nil, sql.ErrNoRows
}

var courseHeader = []interface{}{"course code", "course name", "semester", "group", "type", "teacher", "time", "room", "building"}

func writeWorkbook(t *testing.T, name string, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	all := append([][]interface{}{courseHeader}, rows...)
	for i, row := range all {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, axis, &row))
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportLoadMergesAndRecordsHistory(t *testing.T) {
	history := &historyStub{}
	svc := NewImportService(history, config.ValidationConfig{}, nil, nil)

	first := writeWorkbook(t, "fall.xlsx",
		[]interface{}{"100", "Algorithms", "A", "01", "lecture", "Levi", "Mon 10:00-12:00", "101", "605"},
		[]interface{}{"200", "Logic", "A", "01", "lecture", "Cohen", "Tue 10:00-12:00", "101", "605"},
	)
	resp, err := svc.Load(context.Background(), dto.LoadCoursesRequest{Path: first})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Loaded)
	require.Len(t, resp.Courses, 2)
	assert.Empty(t, resp.Conflicts)
	assert.Equal(t, "fall.xlsx", resp.History.FileName)
	assert.Len(t, resp.History.Fingerprint, 64)
	assert.Equal(t, 2, resp.History.CourseCount)

	second := writeWorkbook(t, "fix.xlsx",
		[]interface{}{"100", "Algorithms II", "A", "01", "lecture", "Levi", "Wed 10:00-12:00", "101", "605"},
		[]interface{}{"300", "Databases", "B", "01", "lecture", "Katz", "Wed 10:00-12:00", "101", "605"},
	)
	resp, err = svc.Load(context.Background(), dto.LoadCoursesRequest{Path: second})
	require.NoError(t, err)
	require.Len(t, resp.Courses, 3)
	assert.Equal(t, "Algorithms II", resp.Courses[0].Name)
	assert.Equal(t, "Logic", resp.Courses[1].Name)
	assert.Equal(t, "Databases", resp.Courses[2].Name)

	files, err := svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, files.Files, 2)
	assert.Equal(t, "fix.xlsx", files.Files[0].FileName)
}

func TestImportLoadReportsRoomConflictsAsWarnings(t *testing.T) {
	svc := NewImportService(nil, config.ValidationConfig{}, nil, nil)

	path := writeWorkbook(t, "clash.xlsx",
		[]interface{}{"100", "Algorithms", "A", "01", "lecture", "", "Mon 10:00-12:00", "101", "605"},
		[]interface{}{"200", "Logic", "A", "01", "lecture", "", "Mon 11:00-13:00", "101", "605"},
		[]interface{}{"300", "Databases", "B", "01", "lecture", "", "Mon 11:00-13:00", "101", "605"},
	)
	resp, err := svc.Load(context.Background(), dto.LoadCoursesRequest{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Loaded)
	require.Len(t, resp.Conflicts, 1)
	conflict := resp.Conflicts[0]
	assert.Equal(t, models.SemesterA, conflict.Semester)
	assert.Equal(t, "100", conflict.First)
	assert.Equal(t, "200", conflict.Second)
	assert.Equal(t, "11:00", conflict.Start)
	assert.Equal(t, "12:00", conflict.End)
	assert.Contains(t, resp.Warnings, "room 605/101 double-booked on Monday 11:00-12:00 by 100 and 200")
}

func TestImportLoadWarnsOnRepeatedFile(t *testing.T) {
	history := &historyStub{}
	svc := NewImportService(history, config.ValidationConfig{}, nil, nil)
	path := writeWorkbook(t, "same.xlsx",
		[]interface{}{"100", "Algorithms", "A", "01", "lecture", "", "Mon 10:00-12:00", "", ""},
	)

	_, err := svc.Load(context.Background(), dto.LoadCoursesRequest{Path: path})
	require.NoError(t, err)
	resp, err := svc.Load(context.Background(), dto.LoadCoursesRequest{Path: path})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[len(resp.Warnings)-1], "identical file same.xlsx was already loaded")
	assert.Len(t, history.entries, 2)
}

func TestImportLoadHistoryFailureIsOnlyAWarning(t *testing.T) {
	svc := NewImportService(&historyStub{recordErr: errors.New("readonly")}, config.ValidationConfig{}, nil, nil)
	path := writeWorkbook(t, "a.xlsx",
		[]interface{}{"100", "Algorithms", "A", "01", "lecture", "", "Mon 10:00-12:00", "", ""},
	)

	resp, err := svc.Load(context.Background(), dto.LoadCoursesRequest{Path: path})
	require.NoError(t, err)
	assert.Contains(t, resp.Warnings, "upload history could not be saved")
	assert.Len(t, svc.Courses(), 1)
}

func TestImportLoadRejectsBadInput(t *testing.T) {
	svc := NewImportService(nil, config.ValidationConfig{}, nil, nil)

	_, err := svc.Load(context.Background(), dto.LoadCoursesRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Load(context.Background(), dto.LoadCoursesRequest{Path: filepath.Join(t.TempDir(), "missing.xlsx")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	empty := writeWorkbook(t, "empty.xlsx")
	_, err = svc.Load(context.Background(), dto.LoadCoursesRequest{Path: empty})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, svc.Courses())
}

func TestImportValidationTimeout(t *testing.T) {
	svc := NewImportService(nil, config.ValidationConfig{
		BaseTimeout: 10 * time.Millisecond,
		PerCourse:   time.Millisecond,
		MaxTimeout:  20 * time.Millisecond,
		Grace:       10 * time.Millisecond,
	}, nil, nil)
	release := make(chan struct{})
	defer close(release)
	svc.check = func(ctx context.Context, courses []models.Course) ([]dto.RoomConflict, error) {
		<-release
		return nil, nil
	}

	path := writeWorkbook(t, "slow.xlsx",
		[]interface{}{"100", "Algorithms", "A", "01", "lecture", "", "Mon 10:00-12:00", "", ""},
	)
	_, err := svc.Load(context.Background(), dto.LoadCoursesRequest{Path: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrTimeout)
	assert.Empty(t, svc.Courses())
}

func TestImportValidationTimeoutCooperativeChecker(t *testing.T) {
	svc := NewImportService(nil, config.ValidationConfig{BaseTimeout: 5 * time.Millisecond, MaxTimeout: 5 * time.Millisecond}, nil, nil)
	svc.check = func(ctx context.Context, courses []models.Course) ([]dto.RoomConflict, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	path := writeWorkbook(t, "slow.xlsx",
		[]interface{}{"100", "Algorithms", "A", "01", "lecture", "", "Mon 10:00-12:00", "", ""},
	)
	_, err := svc.Load(context.Background(), dto.LoadCoursesRequest{Path: path})
	assert.ErrorIs(t, err, appErrors.ErrTimeout)
}

func TestValidationTimeoutIsBounded(t *testing.T) {
	svc := NewImportService(nil, config.ValidationConfig{}, nil, nil)
	assert.Equal(t, 10*time.Second, svc.validationTimeout(0))
	assert.Equal(t, 15*time.Second, svc.validationTimeout(50))
	assert.Equal(t, 60*time.Second, svc.validationTimeout(5000))
}

func TestFindRoomConflictsIgnoresSameCourseAndYearlyOverlap(t *testing.T) {
	yearly := models.Course{
		ID: 1, RawID: "Y1", Semester: models.SemesterYearly,
		Groups: map[models.GroupType][]models.Group{models.GroupLecture: {{
			Type:     models.GroupLecture,
			Sessions: []models.Session{{Day: 2, StartTime: "09:00", EndTime: "11:00", Building: "B", Room: "1"}},
		}}},
	}
	other := models.Course{
		ID: 2, RawID: "S2", Semester: models.SemesterB,
		Groups: map[models.GroupType][]models.Group{
			models.GroupLecture: {{
				Type:     models.GroupLecture,
				Sessions: []models.Session{{Day: 2, StartTime: "10:00", EndTime: "12:00", Building: "B", Room: "1"}},
			}},
			models.GroupTutorial: {{
				Type:     models.GroupTutorial,
				Sessions: []models.Session{{Day: 2, StartTime: "10:30", EndTime: "11:30", Building: "B", Room: "1"}},
			}},
		},
	}

	conflicts, err := FindRoomConflicts(context.Background(), []models.Course{yearly, other})
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	for _, c := range conflicts {
		assert.Equal(t, models.SemesterB, c.Semester)
		assert.Equal(t, "S2", c.First)
		assert.Equal(t, "Y1", c.Second)
	}
}
