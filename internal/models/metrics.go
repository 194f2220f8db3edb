package models

// ScheduleMetrics are the descriptive attributes computed per schedule.
// Column names double as the filter vocabulary exposed to the language model.
type ScheduleMetrics struct {
	AmountDays       int     `db:"amount_days" json:"amount_days"`
	AmountGaps       int     `db:"amount_gaps" json:"amount_gaps"`
	GapsTime         int     `db:"gaps_time" json:"gaps_time"`
	AvgStart         int     `db:"avg_start" json:"avg_start"`
	AvgEnd           int     `db:"avg_end" json:"avg_end"`
	EarliestStart    int     `db:"earliest_start" json:"earliest_start"`
	LatestEnd        int     `db:"latest_end" json:"latest_end"`
	LongestGap       int     `db:"longest_gap" json:"longest_gap"`
	TotalClassTime   int     `db:"total_class_time" json:"total_class_time"`
	ScheduleSpan     int     `db:"schedule_span" json:"schedule_span"`
	CompactnessRatio float64 `db:"compactness_ratio" json:"compactness_ratio"`
	ConsecutiveDays  int     `db:"consecutive_days" json:"consecutive_days"`
	MaxDailyHours    int     `db:"max_daily_hours" json:"max_daily_hours"`
	MinDailyHours    int     `db:"min_daily_hours" json:"min_daily_hours"`
	AvgDailyHours    float64 `db:"avg_daily_hours" json:"avg_daily_hours"`
	MaxDailyGaps     int     `db:"max_daily_gaps" json:"max_daily_gaps"`
	AvgGapLength     float64 `db:"avg_gap_length" json:"avg_gap_length"`

	HasEarlyMorning   Flag `db:"has_early_morning" json:"has_early_morning"`
	HasMorningClasses Flag `db:"has_morning_classes" json:"has_morning_classes"`
	HasEveningClasses Flag `db:"has_evening_classes" json:"has_evening_classes"`
	HasLateEvening    Flag `db:"has_late_evening" json:"has_late_evening"`
	HasLunchBreak     Flag `db:"has_lunch_break" json:"has_lunch_break"`
	WeekendClasses    Flag `db:"weekend_classes" json:"weekend_classes"`
	WeekdayOnly       Flag `db:"weekday_only" json:"weekday_only"`

	HasSunday    Flag `db:"has_sunday" json:"has_sunday"`
	HasMonday    Flag `db:"has_monday" json:"has_monday"`
	HasTuesday   Flag `db:"has_tuesday" json:"has_tuesday"`
	HasWednesday Flag `db:"has_wednesday" json:"has_wednesday"`
	HasThursday  Flag `db:"has_thursday" json:"has_thursday"`
	HasFriday    Flag `db:"has_friday" json:"has_friday"`
	HasSaturday  Flag `db:"has_saturday" json:"has_saturday"`

	DaysJSON string `db:"days_json" json:"days_json"`
}

// DefaultMetrics is the degraded value used for empty or failed calculations.
func DefaultMetrics() ScheduleMetrics {
	return ScheduleMetrics{DaysJSON: "[]"}
}

// SetDay marks day (1..7) as occupied.
func (m *ScheduleMetrics) SetDay(day int) {
	switch day {
	case 1:
		m.HasSunday = true
	case 2:
		m.HasMonday = true
	case 3:
		m.HasTuesday = true
	case 4:
		m.HasWednesday = true
	case 5:
		m.HasThursday = true
	case 6:
		m.HasFriday = true
	case 7:
		m.HasSaturday = true
	}
}
