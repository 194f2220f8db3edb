package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/course-planner/internal/models"
)

// clockReference lists the minute values the prompt uses for common wall-clock times.
var clockReference = []string{
	"07:00", "08:00", "08:30", "09:00", "10:00", "11:00", "12:00", "13:00",
	"14:00", "15:00", "16:00", "17:00", "18:00", "19:00", "20:00", "21:00", "22:00",
}

// Metadata describes the schedule table for the filter prompt: every column
// with its type, current min/max of key metrics and time conversions.
func (r *ScheduleRepository) Metadata(ctx context.Context) (string, error) {
	ranged := make([]string, 0, len(models.ScheduleColumns))
	selects := []string{"COUNT(*) AS total"}
	for _, column := range models.ScheduleColumns {
		if !column.Ranged {
			continue
		}
		ranged = append(ranged, column.Name)
		selects = append(selects, fmt.Sprintf("MIN(%[1]s) AS min_%[1]s, MAX(%[1]s) AS max_%[1]s", column.Name))
	}

	r.mu.Lock()
	stats := make(map[string]interface{})
	err := r.db.QueryRowxContext(ctx, "SELECT "+strings.Join(selects, ", ")+" FROM schedule").MapScan(stats)
	r.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("collect schedule statistics: %w", err)
	}

	var b strings.Builder
	b.WriteString("TABLE schedule\n")
	kinds := []models.ColumnKind{models.ColumnIdentity, models.ColumnBasic, models.ColumnEnhanced, models.ColumnFlag, models.ColumnDay}
	for _, kind := range kinds {
		fmt.Fprintf(&b, "-- %s columns\n", kind)
		for _, column := range models.ScheduleColumns {
			if column.Kind != kind {
				continue
			}
			typ := column.Type
			if typ == "BOOLEAN" {
				typ = "INTEGER 0/1"
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", column.Name, typ, column.Description)
		}
	}

	total, _ := toInt(stats["total"])
	fmt.Fprintf(&b, "\nSTATISTICS (%d schedules stored)\n", total)
	if total == 0 {
		b.WriteString("  no schedules stored yet\n")
	} else {
		for _, name := range ranged {
			lo, minErr := toInt(stats["min_"+name])
			hi, maxErr := toInt(stats["max_"+name])
			if minErr != nil || maxErr != nil {
				continue
			}
			fmt.Fprintf(&b, "  %s: min %d, max %d\n", name, lo, hi)
		}
	}

	b.WriteString("\nTIME CONVERSIONS (minutes from midnight)\n")
	for _, clock := range clockReference {
		var hours, minutes int
		if _, err := fmt.Sscanf(clock, "%d:%d", &hours, &minutes); err == nil {
			fmt.Fprintf(&b, "  %s = %d\n", clock, hours*60+minutes)
		}
	}

	return b.String(), nil
}
