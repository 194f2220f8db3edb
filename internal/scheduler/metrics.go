package scheduler

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/course-planner/internal/models"
)

const (
	minGapMinutes    = 30
	earlyMorningMark = 8*60 + 30
	morningMark      = 10 * 60
	eveningMark      = 18 * 60
	lateEveningMark  = 20 * 60
	lunchStart       = 12 * 60
	lunchEnd         = 14 * 60
)

// CalculateMetrics computes the descriptive attributes of a week in one pass.
// A malformed week returns an error; callers fall back to models.DefaultMetrics.
func CalculateMetrics(week []models.ScheduleDay) (metrics models.ScheduleMetrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics = models.DefaultMetrics()
			err = fmt.Errorf("metrics calculation panicked: %v", r)
		}
	}()

	metrics = models.DefaultMetrics()

	var (
		days         []int
		startSum     int
		endSum       int
		dailyMinutes []int
		gapCount     int
		earliest     = math.MaxInt
		latest       = math.MinInt
	)

	for _, day := range week {
		if len(day.Items) == 0 {
			continue
		}
		if day.Day < 1 || day.Day > 7 {
			return models.DefaultMetrics(), fmt.Errorf("invalid day %d", day.Day)
		}

		spans := make([]Span, 0, len(day.Items))
		for _, item := range day.Items {
			start, err := ParseClock(item.StartTime)
			if err != nil {
				return models.DefaultMetrics(), err
			}
			end, err := ParseClock(item.EndTime)
			if err != nil {
				return models.DefaultMetrics(), err
			}
			spans = append(spans, Span{Day: day.Day, Start: start, End: end})
		}
		sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

		first := spans[0].Start
		last := spans[0].End
		classMinutes := 0
		dayGaps := 0
		for i, span := range spans {
			classMinutes += span.End - span.Start
			if i > 0 {
				gap := span.Start - last
				if gap >= minGapMinutes {
					dayGaps++
					metrics.GapsTime += gap
					if gap > metrics.LongestGap {
						metrics.LongestGap = gap
					}
					if last < lunchEnd && span.Start > lunchStart {
						metrics.HasLunchBreak = true
					}
				}
			}
			if span.End > last {
				last = span.End
			}
		}

		days = append(days, day.Day)
		metrics.SetDay(day.Day)
		startSum += first
		endSum += last
		dailyMinutes = append(dailyMinutes, classMinutes)
		metrics.TotalClassTime += classMinutes
		gapCount += dayGaps
		if dayGaps > metrics.MaxDailyGaps {
			metrics.MaxDailyGaps = dayGaps
		}
		if first < earliest {
			earliest = first
		}
		if last > latest {
			latest = last
		}
		if first < earlyMorningMark {
			metrics.HasEarlyMorning = true
		}
		if first < morningMark {
			metrics.HasMorningClasses = true
		}
		if last > eveningMark {
			metrics.HasEveningClasses = true
		}
		if last > lateEveningMark {
			metrics.HasLateEvening = true
		}
		if day.Day == 1 || day.Day == 7 {
			metrics.WeekendClasses = true
		}
	}

	if len(days) == 0 {
		return models.DefaultMetrics(), nil
	}

	sort.Ints(days)
	metrics.AmountDays = len(days)
	metrics.AmountGaps = gapCount
	metrics.AvgStart = startSum / len(days)
	metrics.AvgEnd = endSum / len(days)
	metrics.EarliestStart = earliest
	metrics.LatestEnd = latest
	metrics.ScheduleSpan = latest - earliest
	if metrics.ScheduleSpan > 0 {
		ratio := float64(metrics.TotalClassTime) / float64(metrics.ScheduleSpan)
		metrics.CompactnessRatio = roundTo(math.Min(math.Max(ratio, 0), 1), 4)
	}
	metrics.ConsecutiveDays = longestRun(days)

	maxMinutes, minMinutes := dailyMinutes[0], dailyMinutes[0]
	for _, minutes := range dailyMinutes[1:] {
		if minutes > maxMinutes {
			maxMinutes = minutes
		}
		if minutes < minMinutes {
			minMinutes = minutes
		}
	}
	metrics.MaxDailyHours = int(math.Round(float64(maxMinutes) / 60))
	metrics.MinDailyHours = int(math.Round(float64(minMinutes) / 60))
	metrics.AvgDailyHours = math.Round(float64(metrics.TotalClassTime) / 60 / float64(len(days)))
	if gapCount > 0 {
		metrics.AvgGapLength = roundTo(float64(metrics.GapsTime)/float64(gapCount), 2)
	}
	metrics.WeekdayOnly = !metrics.WeekendClasses

	encoded, err := json.Marshal(days)
	if err != nil {
		return models.DefaultMetrics(), err
	}
	metrics.DaysJSON = string(encoded)

	return metrics, nil
}

func longestRun(sortedDays []int) int {
	best, run := 0, 0
	prev := -1
	for _, day := range sortedDays {
		if day == prev+1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = day
	}
	return best
}

func roundTo(value float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(value*pow) / pow
}
