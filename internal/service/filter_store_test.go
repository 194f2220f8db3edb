package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner/internal/dto"
	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/internal/repository"
	"github.com/noah-isme/course-planner/internal/scheduler"
	"github.com/noah-isme/course-planner/pkg/config"
	"github.com/noah-isme/course-planner/pkg/database"
)

func newSQLiteScheduleStore(t *testing.T) *repository.ScheduleRepository {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "schedules.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewScheduleRepository(db, repository.DialectSQLite, 0, nil)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

// mondayCourse offers one one-hour Monday lecture group per start time.
func mondayCourse(id int, semester models.Semester, starts ...string) models.Course {
	groups := make([]models.Group, 0, len(starts))
	for _, start := range starts {
		minutes, err := scheduler.ParseClock(start)
		if err != nil {
			panic(err)
		}
		end := scheduler.FormatClock(minutes + 60)
		groups = append(groups, models.Group{
			Type:     models.GroupLecture,
			Sessions: []models.Session{{Day: 2, StartTime: start, EndTime: end}},
		})
	}
	course := freeCourse(id, semester)
	course.Groups = map[models.GroupType][]models.Group{models.GroupLecture: groups}
	return course
}

func generateInto(t *testing.T, svc *GenerationService, semester models.Semester, course models.Course) {
	t.Helper()
	resp, err := svc.Generate(context.Background(), dto.GenerateSchedulesRequest{Semester: semester, Courses: []models.Course{course}})
	require.NoError(t, err)
	require.Zero(t, resp.FailedBatches)
}

func filterReply(sql, params string) *fakeCompleter {
	return &fakeCompleter{configured: true, reply: "RESPONSE: Filtered.\nSQL: " + sql + "\nPARAMETERS: " + params}
}

func TestFilterOverStoreKeepsSemestersApart(t *testing.T) {
	store := newSQLiteScheduleStore(t)
	generation := newGenerationServiceForTest(t, store, config.GenerationConfig{})

	generateInto(t, generation, models.SemesterA, mondayCourse(1, models.SemesterA, "08:00", "10:00"))
	generateInto(t, generation, models.SemesterB, mondayCourse(2, models.SemesterB, "10:00"))

	llm := filterReply("SELECT schedule_index, unique_id FROM schedule WHERE earliest_start >= ?", "540")
	filter := NewFilterService(store, llm, nil, nil, nil, nil)

	resp, err := filter.Query(context.Background(), dto.BotQueryRequest{UserText: "start late", Semester: models.SemesterA, AvailableIDs: []int{1, 2}})
	require.NoError(t, err)
	assert.False(t, resp.HasError, resp.ErrorMessage)
	assert.Equal(t, []int{2}, resp.FilteredIDs)
	assert.Equal(t, "Filtered.\n\n1 of 2 schedules match.", resp.ResponseText)

	resp, err = filter.Query(context.Background(), dto.BotQueryRequest{UserText: "start late", Semester: models.SemesterB, AvailableIDs: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, resp.FilteredIDs)
	assert.Equal(t, "Filtered.\n\n1 of 1 schedules match.", resp.ResponseText)

	// Without an id list the total is the semester's own schedule count.
	resp, err = filter.Query(context.Background(), dto.BotQueryRequest{UserText: "start late", Semester: models.SemesterA})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, resp.FilteredIDs)
	assert.Equal(t, "Filtered.\n\n1 of 2 schedules match.", resp.ResponseText)
}

func TestFilterOverStoreIgnoresReplacedRuns(t *testing.T) {
	store := newSQLiteScheduleStore(t)
	generation := newGenerationServiceForTest(t, store, config.GenerationConfig{})

	generateInto(t, generation, models.SemesterA, mondayCourse(1, models.SemesterA, "08:00"))
	generateInto(t, generation, models.SemesterB, mondayCourse(2, models.SemesterB, "08:00"))
	generateInto(t, generation, models.SemesterA, mondayCourse(1, models.SemesterA, "12:00"))

	countA, err := store.Count(context.Background(), models.SemesterA)
	require.NoError(t, err)
	assert.Equal(t, 1, countA)
	countB, err := store.Count(context.Background(), models.SemesterB)
	require.NoError(t, err)
	assert.Equal(t, 1, countB)

	llm := filterReply("SELECT schedule_index, unique_id FROM schedule WHERE earliest_start < ?", "600")
	filter := NewFilterService(store, llm, nil, nil, nil, nil)

	resp, err := filter.Query(context.Background(), dto.BotQueryRequest{UserText: "early", Semester: models.SemesterA, AvailableIDs: []int{1}})
	require.NoError(t, err)
	assert.Empty(t, resp.FilteredIDs)
	assert.Equal(t, "Filtered.\n\nNo schedules match these criteria.", resp.ResponseText)

	resp, err = filter.Query(context.Background(), dto.BotQueryRequest{UserText: "early", Semester: models.SemesterB, AvailableIDs: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, resp.FilteredIDs)
}
