package models

// ColumnKind groups schedule columns for prompt rendering.
type ColumnKind string

const (
	ColumnIdentity ColumnKind = "identity"
	ColumnBasic    ColumnKind = "basic"
	ColumnEnhanced ColumnKind = "enhanced"
	ColumnFlag     ColumnKind = "flag"
	ColumnDay      ColumnKind = "day"
)

// ColumnInfo describes one filterable column of the schedule table.
type ColumnInfo struct {
	Name        string
	Type        string
	Kind        ColumnKind
	Description string
	// Ranged columns get min/max statistics in the store metadata.
	Ranged bool
}

// ScheduleColumns is the filterable vocabulary of the schedule table.
var ScheduleColumns = []ColumnInfo{
	{Name: "id", Type: "INTEGER", Kind: ColumnIdentity, Description: "row id"},
	{Name: "unique_id", Type: "TEXT", Kind: ColumnIdentity, Description: "globally unique schedule id"},
	{Name: "schedule_index", Type: "INTEGER", Kind: ColumnIdentity, Description: "1-based position of the schedule within its semester"},
	{Name: "semester", Type: "INTEGER", Kind: ColumnIdentity, Description: "1=A, 2=B, 3=Summer"},
	{Name: "created_at", Type: "DATETIME", Kind: ColumnIdentity, Description: "insertion time"},

	{Name: "amount_days", Type: "INTEGER", Kind: ColumnBasic, Description: "number of days with classes", Ranged: true},
	{Name: "amount_gaps", Type: "INTEGER", Kind: ColumnBasic, Description: "number of gaps of 30 minutes or more", Ranged: true},
	{Name: "gaps_time", Type: "INTEGER", Kind: ColumnBasic, Description: "total gap minutes", Ranged: true},
	{Name: "avg_start", Type: "INTEGER", Kind: ColumnBasic, Description: "average first start, minutes from midnight", Ranged: true},
	{Name: "avg_end", Type: "INTEGER", Kind: ColumnBasic, Description: "average last end, minutes from midnight", Ranged: true},

	{Name: "earliest_start", Type: "INTEGER", Kind: ColumnEnhanced, Description: "earliest start of the week, minutes from midnight", Ranged: true},
	{Name: "latest_end", Type: "INTEGER", Kind: ColumnEnhanced, Description: "latest end of the week, minutes from midnight", Ranged: true},
	{Name: "longest_gap", Type: "INTEGER", Kind: ColumnEnhanced, Description: "longest single gap in minutes", Ranged: true},
	{Name: "total_class_time", Type: "INTEGER", Kind: ColumnEnhanced, Description: "total class minutes", Ranged: true},
	{Name: "schedule_span", Type: "INTEGER", Kind: ColumnEnhanced, Description: "latest_end - earliest_start in minutes"},
	{Name: "compactness_ratio", Type: "REAL", Kind: ColumnEnhanced, Description: "total_class_time / schedule_span, 0..1"},
	{Name: "consecutive_days", Type: "INTEGER", Kind: ColumnEnhanced, Description: "longest run of consecutive days with classes"},
	{Name: "max_daily_hours", Type: "INTEGER", Kind: ColumnEnhanced, Description: "most class hours in one day", Ranged: true},
	{Name: "min_daily_hours", Type: "INTEGER", Kind: ColumnEnhanced, Description: "fewest class hours on a day with classes"},
	{Name: "avg_daily_hours", Type: "REAL", Kind: ColumnEnhanced, Description: "average class hours per day with classes, rounded to whole hours"},
	{Name: "max_daily_gaps", Type: "INTEGER", Kind: ColumnEnhanced, Description: "most gaps in one day"},
	{Name: "avg_gap_length", Type: "REAL", Kind: ColumnEnhanced, Description: "average gap length in minutes"},

	{Name: "has_early_morning", Type: "BOOLEAN", Kind: ColumnFlag, Description: "some day starts before 08:30"},
	{Name: "has_morning_classes", Type: "BOOLEAN", Kind: ColumnFlag, Description: "some day starts before 10:00"},
	{Name: "has_evening_classes", Type: "BOOLEAN", Kind: ColumnFlag, Description: "some day ends after 18:00"},
	{Name: "has_late_evening", Type: "BOOLEAN", Kind: ColumnFlag, Description: "some day ends after 20:00"},
	{Name: "has_lunch_break", Type: "BOOLEAN", Kind: ColumnFlag, Description: "a gap overlaps 12:00-14:00"},
	{Name: "weekend_classes", Type: "BOOLEAN", Kind: ColumnFlag, Description: "classes on Sunday or Saturday"},
	{Name: "weekday_only", Type: "BOOLEAN", Kind: ColumnFlag, Description: "no weekend classes"},

	{Name: "has_sunday", Type: "BOOLEAN", Kind: ColumnDay, Description: "classes on Sunday"},
	{Name: "has_monday", Type: "BOOLEAN", Kind: ColumnDay, Description: "classes on Monday"},
	{Name: "has_tuesday", Type: "BOOLEAN", Kind: ColumnDay, Description: "classes on Tuesday"},
	{Name: "has_wednesday", Type: "BOOLEAN", Kind: ColumnDay, Description: "classes on Wednesday"},
	{Name: "has_thursday", Type: "BOOLEAN", Kind: ColumnDay, Description: "classes on Thursday"},
	{Name: "has_friday", Type: "BOOLEAN", Kind: ColumnDay, Description: "classes on Friday"},
	{Name: "has_saturday", Type: "BOOLEAN", Kind: ColumnDay, Description: "classes on Saturday"},
	{Name: "days_json", Type: "TEXT", Kind: ColumnBasic, Description: "JSON array of occupied day numbers, e.g. [2,4]"},
}

// IsScheduleColumn reports whether name is a filterable schedule column.
func IsScheduleColumn(name string) bool {
	for _, column := range ScheduleColumns {
		if column.Name == name {
			return true
		}
	}
	return false
}
