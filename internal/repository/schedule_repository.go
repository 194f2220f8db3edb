package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/models"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"

	defaultBulkThreshold = 500
)

const scheduleColumns = `unique_id, schedule_index, semester, set_id, week_json, amount_days, amount_gaps, gaps_time, avg_start, avg_end,
earliest_start, latest_end, longest_gap, total_class_time, schedule_span, compactness_ratio, consecutive_days, max_daily_hours,
min_daily_hours, avg_daily_hours, max_daily_gaps, avg_gap_length, has_early_morning, has_morning_classes, has_evening_classes,
has_late_evening, has_lunch_break, weekend_classes, weekday_only, has_sunday, has_monday, has_tuesday, has_wednesday,
has_thursday, has_friday, has_saturday, days_json, created_at`

const insertScheduleQuery = `INSERT INTO schedule (` + scheduleColumns + `) VALUES (:unique_id, :schedule_index, :semester, :set_id, :week_json,
:amount_days, :amount_gaps, :gaps_time, :avg_start, :avg_end, :earliest_start, :latest_end, :longest_gap, :total_class_time,
:schedule_span, :compactness_ratio, :consecutive_days, :max_daily_hours, :min_daily_hours, :avg_daily_hours, :max_daily_gaps,
:avg_gap_length, :has_early_morning, :has_morning_classes, :has_evening_classes, :has_late_evening, :has_lunch_break,
:weekend_classes, :weekday_only, :has_sunday, :has_monday, :has_tuesday, :has_wednesday, :has_thursday, :has_friday,
:has_saturday, :days_json, :created_at)`

const selectScheduleQuery = `SELECT id, ` + scheduleColumns + ` FROM schedule`

// CustomQueryResult holds the identifiers read from a validated filter query.
type CustomQueryResult struct {
	Indexes   []int
	UniqueIDs []string
	// Semesters is parallel to Indexes. Each value comes from the semester
	// column, else from the unique_id prefix, else it is 0.
	Semesters []int
}

// ScheduleRepository is the schedule store. All access is serialised by an
// internal lock so it can be shared by generation workers and the filter pipeline.
type ScheduleRepository struct {
	db            *sqlx.DB
	dialect       string
	bulkThreshold int
	logger        *zap.Logger
	mu            sync.Mutex
}

// NewScheduleRepository constructs the store.
func NewScheduleRepository(db *sqlx.DB, dialect string, bulkThreshold int, logger *zap.Logger) *ScheduleRepository {
	if dialect == "" {
		dialect = DialectSQLite
	}
	if bulkThreshold <= 0 {
		bulkThreshold = defaultBulkThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleRepository{db: db, dialect: dialect, bulkThreshold: bulkThreshold, logger: logger}
}

// Migrate initialises or upgrades the schema.
func (r *ScheduleRepository) Migrate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return NewMigrator(r.db, r.dialect, r.logger).Up(ctx)
}

// CreateSet inserts a generation run and assigns its id.
func (r *ScheduleRepository) CreateSet(ctx context.Context, set *models.ScheduleSet) error {
	if set == nil {
		return fmt.Errorf("schedule set payload is nil")
	}
	if set.RunID == "" {
		set.RunID = uuid.NewString()
	}
	if set.Source == "" {
		set.Source = "generation"
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	const query = `INSERT INTO schedule_set (run_id, semester, source, schedule_count, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(query), set.RunID, set.Semester, set.Source, set.ScheduleCount, set.CreatedAt).Scan(&set.ID); err != nil {
		return fmt.Errorf("insert schedule set: %w", err)
	}
	return nil
}

// ReplaceSet inserts a generation run for set.Semester and removes every
// earlier run of that semester with its schedules, in one transaction.
func (r *ScheduleRepository) ReplaceSet(ctx context.Context, set *models.ScheduleSet) (err error) {
	if set == nil {
		return fmt.Errorf("schedule set payload is nil")
	}
	if set.RunID == "" {
		set.RunID = uuid.NewString()
	}
	if set.Source == "" {
		set.Source = "generation"
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule set replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var replaced int64
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schedule WHERE semester = ?`), set.Semester)
	if err != nil {
		return fmt.Errorf("delete previous schedules: %w", err)
	}
	if replaced, err = res.RowsAffected(); err != nil {
		return fmt.Errorf("previous schedules affected: %w", err)
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schedule_set WHERE semester = ?`), set.Semester); err != nil {
		return fmt.Errorf("delete previous schedule sets: %w", err)
	}

	const query = `INSERT INTO schedule_set (run_id, semester, source, schedule_count, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`
	if err = tx.QueryRowxContext(ctx, tx.Rebind(query), set.RunID, set.Semester, set.Source, set.ScheduleCount, set.CreatedAt).Scan(&set.ID); err != nil {
		return fmt.Errorf("insert schedule set: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule set replace: %w", err)
	}
	if replaced > 0 {
		r.logger.Info("previous schedules replaced", zap.Int("semester", set.Semester), zap.Int64("deleted", replaced))
	}
	return nil
}

// DeleteSet removes one generation run and its schedules.
func (r *ScheduleRepository) DeleteSet(ctx context.Context, setID int64) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule set delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schedule WHERE set_id = ?`), setID); err != nil {
		return fmt.Errorf("delete set schedules: %w", err)
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schedule_set WHERE id = ?`), setID); err != nil {
		return fmt.Errorf("delete schedule set: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule set delete: %w", err)
	}
	return nil
}

// InsertBatch writes records in one transaction and bumps the set's schedule_count.
// The transaction rolls back entirely on any failure.
func (r *ScheduleRepository) InsertBatch(ctx context.Context, setID int64, records []models.ScheduleRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dialect == DialectSQLite && len(records) >= r.bulkThreshold {
		restore, err := r.loosenDurability(ctx)
		if err != nil {
			r.logger.Warn("bulk pragmas not applied", zap.Error(err))
		} else {
			defer restore()
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range records {
		records[i].SetID = setID
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = time.Now().UTC()
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, insertScheduleQuery, records[i]); err != nil {
			return fmt.Errorf("insert schedule %s: %w", records[i].UniqueID, err)
		}
	}

	const countQuery = `UPDATE schedule_set SET schedule_count = schedule_count + ? WHERE id = ?`
	if _, err = tx.ExecContext(ctx, tx.Rebind(countQuery), len(records), setID); err != nil {
		return fmt.Errorf("update schedule set count: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule batch: %w", err)
	}
	return nil
}

// loosenDurability trades crash safety for throughput during large writes.
func (r *ScheduleRepository) loosenDurability(ctx context.Context) (func(), error) {
	var journal string
	if err := r.db.GetContext(ctx, &journal, `PRAGMA journal_mode`); err != nil {
		return nil, fmt.Errorf("read journal mode: %w", err)
	}
	for _, pragma := range []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY", "PRAGMA cache_size = -64000"} {
		if _, err := r.db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	return func() {
		restore := []string{"PRAGMA synchronous = NORMAL", "PRAGMA journal_mode = " + journal, "PRAGMA cache_size = -2000"}
		for _, pragma := range restore {
			if _, err := r.db.ExecContext(context.Background(), pragma); err != nil {
				r.logger.Warn("restore pragma failed", zap.String("pragma", pragma), zap.Error(err))
			}
		}
	}, nil
}

// GetAll returns every stored schedule in insertion order.
func (r *ScheduleRepository) GetAll(ctx context.Context) ([]models.ScheduleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []models.ScheduleRecord
	if err := r.db.SelectContext(ctx, &records, selectScheduleQuery+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return records, nil
}

// GetByIDs returns the schedules with the given row ids in insertion order.
func (r *ScheduleRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.ScheduleRecord, error) {
	if len(ids) == 0 {
		return []models.ScheduleRecord{}, nil
	}

	query, args, err := sqlx.In(selectScheduleQuery+` WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build schedule id lookup: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var records []models.ScheduleRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get schedules by id: %w", err)
	}
	return records, nil
}

// IndexesForUniqueIDs maps unique ids to their schedule_index.
func (r *ScheduleRepository) IndexesForUniqueIDs(ctx context.Context, uniqueIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(uniqueIDs))
	if len(uniqueIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT unique_id, schedule_index FROM schedule WHERE unique_id IN (?)`, uniqueIDs)
	if err != nil {
		return nil, fmt.Errorf("build unique id lookup: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("resolve unique ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			uniqueID string
			index    int
		)
		if err := rows.Scan(&uniqueID, &index); err != nil {
			return nil, fmt.Errorf("scan unique id: %w", err)
		}
		out[uniqueID] = index
	}
	return out, rows.Err()
}

// ExecuteCustomQuery runs an already validated SELECT with positional
// parameters and collects the identifier columns of every row. A non-zero
// semester limits the query to that semester's schedules.
func (r *ScheduleRepository) ExecuteCustomQuery(ctx context.Context, query string, params []interface{}, semester models.Semester) (*CustomQueryResult, error) {
	args := params
	if semester != 0 {
		query = r.scopeToSemester(query)
		args = append([]interface{}{int(semester)}, params...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("execute filter query: %w", err)
	}
	defer rows.Close()

	result := &CustomQueryResult{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan filter row: %w", err)
		}

		uniqueID := ""
		value, hasUniqueID := lookupColumn(row, "unique_id")
		if hasUniqueID {
			uniqueID = toString(value)
			result.UniqueIDs = append(result.UniqueIDs, uniqueID)
		}

		value, ok := lookupColumn(row, "schedule_index")
		if !ok {
			continue
		}
		index, err := toInt(value)
		if err != nil {
			return nil, fmt.Errorf("schedule_index: %w", err)
		}
		result.Indexes = append(result.Indexes, index)

		rowSemester := 0
		if value, ok := lookupColumn(row, "semester"); ok {
			if s, err := toInt(value); err == nil {
				rowSemester = s
			}
		} else if hasUniqueID {
			rowSemester = semesterPrefix(uniqueID)
		}
		result.Semesters = append(result.Semesters, rowSemester)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filter rows: %w", err)
	}
	return result, nil
}

// scopeToSemester shadows the schedule table with a CTE restricted to one
// semester. The validator only admits the bare table name, so the query
// cannot reach around the CTE.
func (r *ScheduleRepository) scopeToSemester(query string) string {
	base := "main.schedule"
	if r.dialect == DialectPostgres {
		base = "public.schedule"
	}
	return `WITH schedule AS (SELECT * FROM ` + base + ` WHERE semester = ?) ` + query
}

// DeleteAll removes every stored schedule and generation run.
func (r *ScheduleRepository) DeleteAll(ctx context.Context) (deleted int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin schedule cleanup: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM schedule`)
	if err != nil {
		return 0, fmt.Errorf("delete schedules: %w", err)
	}
	deleted, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("schedule rows affected: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_set`); err != nil {
		return 0, fmt.Errorf("delete schedule sets: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit schedule cleanup: %w", err)
	}
	return deleted, nil
}

// Count returns the number of stored schedules, limited to semester when it is non-zero.
func (r *ScheduleRepository) Count(ctx context.Context, semester models.Semester) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `SELECT COUNT(*) FROM schedule`
	var args []interface{}
	if semester != 0 {
		query += ` WHERE semester = ?`
		args = append(args, int(semester))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count schedules: %w", err)
	}
	return total, nil
}

func lookupColumn(row map[string]interface{}, name string) (interface{}, bool) {
	if value, ok := row[name]; ok {
		return value, true
	}
	for key, value := range row {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case []byte:
		return strconv.Atoi(string(v))
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("unexpected type %T", value)
	}
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// semesterPrefix reads the semester from a unique id of the form
// <semester>_<stamp>_<index>_<suffix>.
func semesterPrefix(uniqueID string) int {
	prefix, _, ok := strings.Cut(uniqueID, "_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0
	}
	return n
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
