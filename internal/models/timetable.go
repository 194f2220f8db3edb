package models

// DayNames are indexed by day_of_week - 1, Sunday first.
var DayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ScheduleItem is a session placed inside a day.
type ScheduleItem struct {
	CourseName string    `json:"course_name"`
	RawID      string    `json:"raw_id"`
	Type       GroupType `json:"type"`
	Day        int       `json:"day"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Building   string    `json:"building,omitempty"`
	Room       string    `json:"room,omitempty"`
}

// ScheduleDay holds the items of one day sorted by start time.
type ScheduleDay struct {
	Day   int            `json:"day"`
	Name  string         `json:"name"`
	Items []ScheduleItem `json:"items"`
}

// InformativeSchedule is a completed weekly timetable with its metrics.
type InformativeSchedule struct {
	Index    int             `json:"index"`
	UniqueID string          `json:"unique_id"`
	Semester Semester        `json:"semester"`
	Week     []ScheduleDay   `json:"week"`
	Metrics  ScheduleMetrics `json:"metrics"`
}

// EmptyWeek returns seven empty days in Sunday-first order.
func EmptyWeek() []ScheduleDay {
	week := make([]ScheduleDay, 7)
	for i := range week {
		week[i] = ScheduleDay{Day: i + 1, Name: DayNames[i], Items: []ScheduleItem{}}
	}
	return week
}

// ItemCount returns the number of placed items over the week.
func (s InformativeSchedule) ItemCount() int {
	total := 0
	for _, day := range s.Week {
		total += len(day.Items)
	}
	return total
}
