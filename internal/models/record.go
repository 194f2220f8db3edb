package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleRecord is one persisted row of the schedule table.
type ScheduleRecord struct {
	ID            int64          `db:"id" json:"id"`
	UniqueID      string         `db:"unique_id" json:"unique_id"`
	ScheduleIndex int            `db:"schedule_index" json:"schedule_index"`
	Semester      int            `db:"semester" json:"semester"`
	SetID         int64          `db:"set_id" json:"set_id"`
	Week          types.JSONText `db:"week_json" json:"week"`
	ScheduleMetrics
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewScheduleRecord flattens an informative schedule into a row.
func NewScheduleRecord(schedule InformativeSchedule, setID int64) (ScheduleRecord, error) {
	week, err := json.Marshal(schedule.Week)
	if err != nil {
		return ScheduleRecord{}, fmt.Errorf("marshal week: %w", err)
	}
	return ScheduleRecord{
		UniqueID:        schedule.UniqueID,
		ScheduleIndex:   schedule.Index,
		Semester:        int(schedule.Semester),
		SetID:           setID,
		Week:            types.JSONText(week),
		ScheduleMetrics: schedule.Metrics,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Informative rebuilds the in-memory schedule from a row.
func (r ScheduleRecord) Informative() (InformativeSchedule, error) {
	var week []ScheduleDay
	if len(r.Week) > 0 {
		if err := json.Unmarshal(r.Week, &week); err != nil {
			return InformativeSchedule{}, fmt.Errorf("unmarshal week of %s: %w", r.UniqueID, err)
		}
	}
	if len(week) == 0 {
		week = EmptyWeek()
	}
	return InformativeSchedule{
		Index:    r.ScheduleIndex,
		UniqueID: r.UniqueID,
		Semester: Semester(r.Semester),
		Week:     week,
		Metrics:  r.ScheduleMetrics,
	}, nil
}

// ScheduleSet groups the rows written by one generation run.
type ScheduleSet struct {
	ID            int64     `db:"id" json:"id"`
	RunID         string    `db:"run_id" json:"run_id"`
	Semester      int       `db:"semester" json:"semester"`
	Source        string    `db:"source" json:"source"`
	ScheduleCount int       `db:"schedule_count" json:"schedule_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// FileHistory records one uploaded course file.
type FileHistory struct {
	ID          int64     `db:"id" json:"id"`
	FileName    string    `db:"file_name" json:"file_name"`
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	CourseCount int       `db:"course_count" json:"course_count"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
}
