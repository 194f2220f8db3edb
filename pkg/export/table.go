package export

import (
	"fmt"

	"github.com/noah-isme/course-planner/internal/models"
)

// Table is tabular export content.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ScheduleHeaders are the item columns written for a schedule.
var ScheduleHeaders = []string{"day", "start", "end", "course", "raw_id", "type", "building", "room"}

// ScheduleTable flattens the week of schedule into one row per item, Sunday first.
func ScheduleTable(schedule models.InformativeSchedule) Table {
	table := Table{Headers: ScheduleHeaders}
	for _, day := range schedule.Week {
		name := day.Name
		if name == "" && day.Day >= 1 && day.Day <= len(models.DayNames) {
			name = models.DayNames[day.Day-1]
		}
		for _, item := range day.Items {
			table.Rows = append(table.Rows, []string{
				name,
				item.StartTime,
				item.EndTime,
				item.CourseName,
				item.RawID,
				string(item.Type),
				item.Building,
				item.Room,
			})
		}
	}
	return table
}

// ScheduleSummary lists the headline metrics shown above the item table.
func ScheduleSummary(m models.ScheduleMetrics) [][2]string {
	return [][2]string{
		{"Study days", fmt.Sprintf("%d", m.AmountDays)},
		{"Gaps", fmt.Sprintf("%d (%d min)", m.AmountGaps, m.GapsTime)},
		{"Earliest start", clock(m.EarliestStart)},
		{"Latest end", clock(m.LatestEnd)},
		{"Weekly class time", fmt.Sprintf("%d min", m.TotalClassTime)},
		{"Compactness", fmt.Sprintf("%.2f", m.CompactnessRatio)},
		{"Longest gap", fmt.Sprintf("%d min", m.LongestGap)},
	}
}

func clock(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
