package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/internal/scheduler"
	"github.com/noah-isme/course-planner/pkg/config"
	"github.com/noah-isme/course-planner/pkg/database"
)

func sqlmockNow() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }

func newSQLiteStore(t *testing.T, bulkThreshold int) (*ScheduleRepository, *sqlx.DB) {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "schedules.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewScheduleRepository(db, DialectSQLite, bulkThreshold, nil)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo, db
}

func buildSchedules(t *testing.T) []models.InformativeSchedule {
	t.Helper()
	lecture := func(day int, start, end string) models.Group {
		return models.Group{Type: models.GroupLecture, Sessions: []models.Session{{Day: day, StartTime: start, EndTime: end, Building: "B1", Room: "101"}}}
	}
	courses := []models.Course{
		{ID: 1, RawID: "C1", Name: "Algebra", Semester: models.SemesterA, Groups: map[models.GroupType][]models.Group{
			models.GroupLecture: {lecture(1, "08:00", "10:00"), lecture(2, "09:00", "11:00"), lecture(3, "12:00", "14:00")},
		}},
		{ID: 2, RawID: "C2", Name: "Physics", Semester: models.SemesterA, Groups: map[models.GroupType][]models.Group{
			models.GroupLecture:  {lecture(2, "13:00", "15:00"), lecture(4, "18:00", "21:00")},
			models.GroupTutorial: {{Type: models.GroupTutorial, Sessions: []models.Session{{Day: 2, StartTime: "16:00", EndTime: "17:00"}}}},
		}},
	}
	result, err := scheduler.NewBuilder(scheduler.BuilderConfig{}, nil, nil).Build(models.SemesterA, courses, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Schedules)
	return result.Schedules
}

func persist(t *testing.T, repo *ScheduleRepository, schedules []models.InformativeSchedule) *models.ScheduleSet {
	t.Helper()
	set := &models.ScheduleSet{Semester: int(models.SemesterA)}
	require.NoError(t, repo.CreateSet(context.Background(), set))
	records := make([]models.ScheduleRecord, 0, len(schedules))
	for _, schedule := range schedules {
		record, err := models.NewScheduleRecord(schedule, set.ID)
		require.NoError(t, err)
		records = append(records, record)
	}
	require.NoError(t, repo.InsertBatch(context.Background(), set.ID, records))
	return set
}

func TestSQLiteStoreMigrationsAreIdempotent(t *testing.T) {
	repo, db := newSQLiteStore(t, 0)
	require.NoError(t, repo.Migrate(context.Background()))

	migrator := NewMigrator(db, DialectSQLite, nil)
	latest, err := migrator.Latest()
	require.NoError(t, err)
	version, err := migrator.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.Equal(t, 2, version)
}

func TestSQLiteStoreMetricsRoundTrip(t *testing.T) {
	repo, _ := newSQLiteStore(t, 0)
	schedules := buildSchedules(t)
	set := persist(t, repo, schedules)

	records, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, len(schedules))

	for i, record := range records {
		assert.Equal(t, set.ID, record.SetID)
		informative, err := record.Informative()
		require.NoError(t, err)
		assert.Equal(t, schedules[i].UniqueID, informative.UniqueID)
		assert.Equal(t, schedules[i].Week, informative.Week)

		recomputed, err := scheduler.CalculateMetrics(informative.Week)
		require.NoError(t, err)
		assert.Equal(t, record.ScheduleMetrics, recomputed, "metrics of %s", record.UniqueID)
	}

	byID, err := repo.GetByIDs(context.Background(), []int64{records[0].ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, records[0].UniqueID, byID[0].UniqueID)
}

func TestSQLiteStoreBulkPathAndCustomQuery(t *testing.T) {
	repo, db := newSQLiteStore(t, 2)
	schedules := buildSchedules(t)
	persist(t, repo, schedules)

	var journal string
	require.NoError(t, db.Get(&journal, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", journal)

	result, err := repo.ExecuteCustomQuery(context.Background(),
		"SELECT schedule_index, unique_id, semester FROM schedule WHERE has_late_evening = ? ORDER BY schedule_index", []interface{}{1}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, result.Indexes)
	assert.Len(t, result.Semesters, len(result.Indexes))
	for _, schedule := range schedules {
		if bool(schedule.Metrics.HasLateEvening) {
			assert.Contains(t, result.Indexes, schedule.Index)
		} else {
			assert.NotContains(t, result.Indexes, schedule.Index)
		}
	}

	mapping, err := repo.IndexesForUniqueIDs(context.Background(), []string{schedules[0].UniqueID})
	require.NoError(t, err)
	assert.Equal(t, schedules[0].Index, mapping[schedules[0].UniqueID])

	var count int
	require.NoError(t, db.Get(&count, "SELECT schedule_count FROM schedule_set"))
	assert.Equal(t, len(schedules), count)
}

func TestSQLiteStoreRejectsDuplicateUniqueIDs(t *testing.T) {
	repo, _ := newSQLiteStore(t, 0)
	schedules := buildSchedules(t)
	persist(t, repo, schedules)

	set := &models.ScheduleSet{Semester: 1}
	require.NoError(t, repo.CreateSet(context.Background(), set))
	record, err := models.NewScheduleRecord(schedules[0], set.ID)
	require.NoError(t, err)
	require.Error(t, repo.InsertBatch(context.Background(), set.ID, []models.ScheduleRecord{record}))

	total, err := repo.Count(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, len(schedules), total)
}

func TestSQLiteStoreMetadataAndCleanup(t *testing.T) {
	repo, db := newSQLiteStore(t, 0)

	empty, err := repo.Metadata(context.Background())
	require.NoError(t, err)
	assert.Contains(t, empty, "no schedules stored yet")

	schedules := buildSchedules(t)
	persist(t, repo, schedules)

	history := NewFileHistoryRepository(db)
	require.NoError(t, history.Record(context.Background(), &models.FileHistory{FileName: "a.xlsx", Fingerprint: "f1", CourseCount: 2}))

	meta, err := repo.Metadata(context.Background())
	require.NoError(t, err)
	assert.Contains(t, meta, "earliest_start INTEGER")
	assert.Contains(t, meta, "has_monday INTEGER 0/1")
	assert.Contains(t, meta, "08:30 = 510")
	assert.Contains(t, meta, "earliest_start: min 480")

	deleted, err := repo.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(schedules)), deleted)

	total, err := repo.Count(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	entries, err := history.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	found, err := history.FindByFingerprint(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "a.xlsx", found.FileName)
}

func TestSQLiteStoreReplaceSetScopesSemester(t *testing.T) {
	repo, db := newSQLiteStore(t, 0)
	schedules := buildSchedules(t)
	first := persist(t, repo, schedules)

	summer := &models.ScheduleSet{Semester: int(models.SemesterSummer)}
	require.NoError(t, repo.CreateSet(context.Background(), summer))
	record, err := models.NewScheduleRecord(models.InformativeSchedule{
		UniqueID: "3_1_1_0001",
		Index:    1,
		Semester: models.SemesterSummer,
		Week:     models.EmptyWeek(),
		Metrics:  models.DefaultMetrics(),
	}, summer.ID)
	require.NoError(t, err)
	require.NoError(t, repo.InsertBatch(context.Background(), summer.ID, []models.ScheduleRecord{record}))

	scoped, err := repo.ExecuteCustomQuery(context.Background(),
		"SELECT schedule_index, unique_id FROM schedule WHERE schedule_index = ?", []interface{}{1}, models.SemesterSummer)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, scoped.Indexes)
	assert.Equal(t, []string{"3_1_1_0001"}, scoped.UniqueIDs)
	assert.Equal(t, []int{int(models.SemesterSummer)}, scoped.Semesters)

	unscoped, err := repo.ExecuteCustomQuery(context.Background(),
		"SELECT schedule_index, unique_id FROM schedule WHERE schedule_index = ?", []interface{}{1}, 0)
	require.NoError(t, err)
	assert.Len(t, unscoped.Indexes, 2)

	countA, err := repo.Count(context.Background(), models.SemesterA)
	require.NoError(t, err)
	assert.Equal(t, len(schedules), countA)

	next := &models.ScheduleSet{Semester: int(models.SemesterA)}
	require.NoError(t, repo.ReplaceSet(context.Background(), next))
	assert.NotEqual(t, first.ID, next.ID)

	countA, err = repo.Count(context.Background(), models.SemesterA)
	require.NoError(t, err)
	assert.Zero(t, countA)
	countSummer, err := repo.Count(context.Background(), models.SemesterSummer)
	require.NoError(t, err)
	assert.Equal(t, 1, countSummer)

	var sets int
	require.NoError(t, db.Get(&sets, "SELECT COUNT(*) FROM schedule_set WHERE semester = ?", int(models.SemesterA)))
	assert.Equal(t, 1, sets)

	require.NoError(t, repo.DeleteSet(context.Background(), summer.ID))
	total, err := repo.Count(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}
