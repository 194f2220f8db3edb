package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner/internal/dto"
	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/pkg/config"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
)

type fakeScheduleWriter struct {
	mu        sync.Mutex
	sets      []models.ScheduleSet
	batches   [][]models.ScheduleRecord
	deleted   []int64
	failOn    map[int]bool
	panicOn   int
	setErr    error
	insertCnt int
}

func (f *fakeScheduleWriter) ReplaceSet(ctx context.Context, set *models.ScheduleSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	set.ID = int64(len(f.sets) + 1)
	f.sets = append(f.sets, *set)
	return nil
}

func (f *fakeScheduleWriter) InsertBatch(ctx context.Context, setID int64, records []models.ScheduleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCnt++
	if f.panicOn == f.insertCnt {
		panic("connection reset mid-batch")
	}
	if f.failOn[f.insertCnt] {
		return errors.New("disk full")
	}
	f.batches = append(f.batches, append([]models.ScheduleRecord(nil), records...))
	return nil
}

func (f *fakeScheduleWriter) DeleteSet(ctx context.Context, setID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, setID)
	kept := f.batches[:0]
	for _, batch := range f.batches {
		if len(batch) > 0 && batch[0].SetID == setID {
			continue
		}
		kept = append(kept, batch)
	}
	f.batches = kept
	return nil
}

func (f *fakeScheduleWriter) persisted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, batch := range f.batches {
		total += len(batch)
	}
	return total
}

// freeCourse has one lecture group per listed day, all at 09:00-10:00 on
// distinct days so every combination is valid.
func freeCourse(id int, semester models.Semester, days ...int) models.Course {
	groups := make([]models.Group, 0, len(days))
	for _, day := range days {
		groups = append(groups, models.Group{
			Type:     models.GroupLecture,
			Sessions: []models.Session{{Day: day, StartTime: fmt.Sprintf("%02d:00", 8+id), EndTime: fmt.Sprintf("%02d:00", 9+id)}},
		})
	}
	return models.Course{
		ID:       id,
		RawID:    fmt.Sprintf("C%d", id),
		Name:     fmt.Sprintf("Course %d", id),
		Semester: semester,
		Groups:   map[models.GroupType][]models.Group{models.GroupLecture: groups},
	}
}

func newGenerationServiceForTest(t *testing.T, store ScheduleWriter, cfg config.GenerationConfig) *GenerationService {
	t.Helper()
	svc := NewGenerationService(nil, store, NewMetricsService(), nil, cfg, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func TestGenerateStreamsSchedulesInBatches(t *testing.T) {
	store := &fakeScheduleWriter{}
	svc := newGenerationServiceForTest(t, store, config.GenerationConfig{BatchSize: 2})

	// 3 x 2 = 6 combinations, no clashes because each course uses its own hour.
	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{
		Semester: models.SemesterA,
		Courses: []models.Course{
			freeCourse(1, models.SemesterA, 1, 2, 3),
			freeCourse(2, models.SemesterA, 1, 2),
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Schedules, 6)
	assert.Equal(t, uint64(6), resp.Estimated)
	assert.Equal(t, 6, resp.Persisted)
	assert.Zero(t, resp.FailedBatches)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, int64(1), resp.SetID)

	require.Len(t, store.sets, 1)
	assert.Equal(t, resp.RunID, store.sets[0].RunID)
	assert.Equal(t, int(models.SemesterA), store.sets[0].Semester)
	require.Len(t, store.batches, 3)
	for _, batch := range store.batches {
		assert.Len(t, batch, 2)
		for _, record := range batch {
			assert.Equal(t, int64(1), record.SetID)
		}
	}
	assert.Equal(t, 1, store.batches[0][0].ScheduleIndex)
	assert.Equal(t, 6, store.batches[2][1].ScheduleIndex)
}

func TestGenerateDropsFailedBatchAndContinues(t *testing.T) {
	store := &fakeScheduleWriter{failOn: map[int]bool{2: true}}
	svc := newGenerationServiceForTest(t, store, config.GenerationConfig{BatchSize: 2})

	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{
		Semester: models.SemesterA,
		Courses: []models.Course{
			freeCourse(1, models.SemesterA, 1, 2, 3),
			freeCourse(2, models.SemesterA, 1, 2),
		},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Schedules, 6)
	assert.Equal(t, 4, resp.Persisted)
	assert.Equal(t, 1, resp.FailedBatches)
	assert.Equal(t, 4, store.persisted())
	assert.Equal(t, 3, store.insertCnt)
}

func TestGenerateDiscardsRunWhenSearchAborts(t *testing.T) {
	store := &fakeScheduleWriter{panicOn: 3}
	svc := newGenerationServiceForTest(t, store, config.GenerationConfig{BatchSize: 1})

	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{
		Semester: models.SemesterA,
		Courses: []models.Course{
			freeCourse(1, models.SemesterA, 1, 2, 3),
			freeCourse(2, models.SemesterA, 1, 2),
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCapacity)
	assert.Nil(t, resp)

	require.Len(t, store.sets, 1)
	assert.Equal(t, []int64{1}, store.deleted)
	assert.Zero(t, store.persisted())
	assert.Equal(t, 3, store.insertCnt)
}

func TestGenerateRegistersRunEvenWithoutSchedules(t *testing.T) {
	store := &fakeScheduleWriter{}
	svc := newGenerationServiceForTest(t, store, config.GenerationConfig{})

	clash := freeCourse(1, models.SemesterA, 1)
	other := freeCourse(2, models.SemesterA, 1)
	other.Groups[models.GroupLecture][0].Sessions[0].StartTime = "09:30"

	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{
		Semester: models.SemesterA,
		Courses:  []models.Course{clash, other},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Schedules)
	require.Len(t, store.sets, 1)
	assert.Equal(t, resp.RunID, store.sets[0].RunID)
	assert.Zero(t, store.insertCnt)
}

func TestGenerateWithoutStoreStillReturnsSchedules(t *testing.T) {
	svc := newGenerationServiceForTest(t, nil, config.GenerationConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{
		Semester: models.SemesterB,
		Courses:  []models.Course{freeCourse(1, models.SemesterB, 1, 2)},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Schedules, 2)
	assert.Zero(t, resp.Persisted)
	assert.Zero(t, resp.SetID)
}

func TestGenerateSetCreationFailureDisablesPersistence(t *testing.T) {
	store := &fakeScheduleWriter{setErr: errors.New("locked")}
	svc := newGenerationServiceForTest(t, store, config.GenerationConfig{BatchSize: 1})

	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{
		Semester: models.SemesterA,
		Courses:  []models.Course{freeCourse(1, models.SemesterA, 1, 2, 3)},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Schedules, 3)
	assert.Zero(t, resp.Persisted)
	assert.Equal(t, 1, resp.FailedBatches)
	assert.Zero(t, store.insertCnt)
}

func TestGenerateRejectsInvalidSelections(t *testing.T) {
	svc := newGenerationServiceForTest(t, nil, config.GenerationConfig{MaxCoursesPerSemester: 2})

	tooMany := []models.Course{
		freeCourse(1, models.SemesterA, 1),
		freeCourse(2, models.SemesterA, 2),
		freeCourse(3, models.SemesterA, 3),
	}
	noGroups := freeCourse(4, models.SemesterA, 1)
	noGroups.Groups = nil
	badTime := freeCourse(5, models.SemesterA, 1)
	badTime.Groups[models.GroupLecture][0].Sessions[0].EndTime = "07:00"

	cases := []struct {
		name string
		req  dto.GenerateSchedulesRequest
	}{
		{"empty selection", dto.GenerateSchedulesRequest{Semester: models.SemesterA}},
		{"semester out of range", dto.GenerateSchedulesRequest{Semester: models.SemesterYearly}},
		{"over course cap", dto.GenerateSchedulesRequest{Semester: models.SemesterA, Courses: tooMany}},
		{"duplicate course", dto.GenerateSchedulesRequest{Semester: models.SemesterA, Courses: []models.Course{tooMany[0], tooMany[0]}}},
		{"course without groups", dto.GenerateSchedulesRequest{Semester: models.SemesterA, Courses: []models.Course{noGroups}}},
		{"end before start", dto.GenerateSchedulesRequest{Semester: models.SemesterA, Courses: []models.Course{badTime}}},
		{"reserved id", dto.GenerateSchedulesRequest{Semester: models.SemesterA, Courses: []models.Course{freeCourse(models.BlockCourseID, models.SemesterA, 1)}}},
		{"overlapping blocks", dto.GenerateSchedulesRequest{
			Semester: models.SemesterA,
			Courses:  []models.Course{tooMany[0]},
			BlockTimes: []models.BlockTime{
				{Day: 2, StartTime: "12:00", EndTime: "14:00", Semester: models.SemesterA},
				{Day: 2, StartTime: "13:30", EndTime: "15:00", Semester: models.SemesterA},
			},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestGenerateBlockTimesOnly(t *testing.T) {
	svc := newGenerationServiceForTest(t, nil, config.GenerationConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{
		Semester: models.SemesterA,
		BlockTimes: []models.BlockTime{
			{Day: 3, StartTime: "08:00", EndTime: "10:00", Semester: models.SemesterA},
			{Day: 3, StartTime: "10:00", EndTime: "11:00", Semester: models.SemesterA},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Schedules, 1)
	assert.Equal(t, 2, resp.Schedules[0].ItemCount())
}

func TestGenerateExpandsYearlyCourses(t *testing.T) {
	svc := newGenerationServiceForTest(t, nil, config.GenerationConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{
		Semester: models.SemesterB,
		Courses:  []models.Course{freeCourse(1, models.SemesterYearly, 1, 2)},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Schedules, 2)
}

func TestGenerateAllRunsSemestersInOrder(t *testing.T) {
	store := &fakeScheduleWriter{}
	svc := newGenerationServiceForTest(t, store, config.GenerationConfig{})

	var order []models.Semester
	resp, err := svc.GenerateAll(context.Background(), dto.GenerateAllRequest{
		Courses: []models.Course{
			freeCourse(1, models.SemesterSummer, 1),
			freeCourse(2, models.SemesterA, 1, 2),
			freeCourse(3, models.SemesterB, 1, 2, 3),
		},
	}, func(result dto.SemesterResult) {
		order = append(order, result.Semester)
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, []models.Semester{models.SemesterA, models.SemesterB, models.SemesterSummer}, order)

	for i, want := range []int{2, 3, 1} {
		result := resp.Results[i]
		assert.False(t, result.Skipped)
		assert.Empty(t, result.Error)
		require.NotNil(t, result.Result)
		assert.Len(t, result.Result.Schedules, want)
	}
	require.Len(t, store.sets, 3)
	assert.Equal(t, int(models.SemesterA), store.sets[0].Semester)
	assert.Equal(t, int(models.SemesterSummer), store.sets[2].Semester)
}

func TestGenerateAllSkipsEmptySemesters(t *testing.T) {
	svc := newGenerationServiceForTest(t, nil, config.GenerationConfig{})

	resp, err := svc.GenerateAll(context.Background(), dto.GenerateAllRequest{
		Courses: []models.Course{freeCourse(1, models.SemesterB, 1, 2)},
	}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[0].Skipped)
	assert.False(t, resp.Results[1].Skipped)
	assert.True(t, resp.Results[2].Skipped)
	require.NotNil(t, resp.Results[1].Result)
	assert.Len(t, resp.Results[1].Result.Schedules, 2)
}

func TestGenerateAllRejectsBeforeRunning(t *testing.T) {
	store := &fakeScheduleWriter{}
	svc := newGenerationServiceForTest(t, store, config.GenerationConfig{MaxCoursesPerSemester: 1})

	_, err := svc.GenerateAll(context.Background(), dto.GenerateAllRequest{
		Courses: []models.Course{
			freeCourse(1, models.SemesterA, 1),
			freeCourse(2, models.SemesterB, 1),
			freeCourse(3, models.SemesterB, 2),
		},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, store.sets)

	_, err = svc.GenerateAll(context.Background(), dto.GenerateAllRequest{}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGenerateAllHonoursCancellation(t *testing.T) {
	svc := newGenerationServiceForTest(t, nil, config.GenerationConfig{})
	release := make(chan struct{})
	svc.run = func(ctx context.Context, job *generationJob) error {
		<-release
		return nil
	}
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.GenerateAll(ctx, dto.GenerateAllRequest{
		Courses: []models.Course{freeCourse(1, models.SemesterA, 1)},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrTimeout)
}

func TestGenerateAllRequiresRunningWorker(t *testing.T) {
	svc := NewGenerationService(nil, nil, nil, nil, config.GenerationConfig{}, nil)

	_, err := svc.GenerateAll(context.Background(), dto.GenerateAllRequest{
		Courses: []models.Course{freeCourse(1, models.SemesterA, 1)},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestGenerateAllReportsSemesterFailure(t *testing.T) {
	svc := newGenerationServiceForTest(t, nil, config.GenerationConfig{})
	svc.run = func(ctx context.Context, job *generationJob) error {
		if job.semester == models.SemesterB {
			return appErrors.Clone(appErrors.ErrCapacity, "too many combinations")
		}
		return svc.runJob(ctx, job)
	}

	resp, err := svc.GenerateAll(context.Background(), dto.GenerateAllRequest{
		Courses: []models.Course{
			freeCourse(1, models.SemesterA, 1),
			freeCourse(2, models.SemesterB, 1),
		},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Results[0].Result)
	assert.Nil(t, resp.Results[1].Result)
	assert.Equal(t, "too many combinations", resp.Results[1].Error)
	assert.True(t, resp.Results[2].Skipped)
}
