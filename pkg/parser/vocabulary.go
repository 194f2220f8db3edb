package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/noah-isme/course-planner/internal/models"
)

var hebrewDays = map[string]int{
	"א": 1,
	"ב": 2,
	"ג": 3,
	"ד": 4,
	"ה": 5,
	"ו": 6,
	"ש": 7,
}

var englishDays = map[string]int{
	"sun": 1, "sunday": 1,
	"mon": 2, "monday": 2,
	"tue": 3, "tuesday": 3,
	"wed": 4, "wednesday": 4,
	"thu": 5, "thursday": 5,
	"fri": 6, "friday": 6,
	"sat": 7, "saturday": 7,
}

var groupTypeNames = map[string]models.GroupType{
	"הרצאה":         models.GroupLecture,
	"תרגיל":         models.GroupTutorial,
	"תרגול":         models.GroupTutorial,
	"מעבדה":         models.GroupLab,
	"שעור מחלקתי":   models.GroupDepartmental,
	"שיעור מחלקתי":  models.GroupDepartmental,
	"מחלקתי":        models.GroupDepartmental,
	"תגבור":         models.GroupReinforcement,
	"הדרכה":         models.GroupGuidance,
	"קולוקוויום":    models.GroupColloquium,
	"רישום":         models.GroupRegistration,
	"תזה":           models.GroupThesis,
	"עבודת גמר":     models.GroupThesis,
	"פרויקט":        models.GroupProject,
	"lecture":       models.GroupLecture,
	"tutorial":      models.GroupTutorial,
	"exercise":      models.GroupTutorial,
	"lab":           models.GroupLab,
	"laboratory":    models.GroupLab,
	"departmental":  models.GroupDepartmental,
	"reinforcement": models.GroupReinforcement,
	"guidance":      models.GroupGuidance,
	"colloquium":    models.GroupColloquium,
	"registration":  models.GroupRegistration,
	"thesis":        models.GroupThesis,
	"project":       models.GroupProject,
}

// slotPattern matches `<day>'HH:MM-HH:MM`; the apostrophe may be ASCII or a Hebrew geresh.
var slotPattern = regexp.MustCompile(`^([^\s'׳\d]+)\s*['׳]?\s*(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})$`)

// Slot is one parsed meeting time.
type Slot struct {
	Day   int
	Start string
	End   string
}

// ParseSemester maps a period string to a semester.
func ParseSemester(value string) (models.Semester, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(value), " "))
	switch normalized {
	case "סמסטר א", "סמסטר א'", "א", "a", "semester a", "1":
		return models.SemesterA, nil
	case "סמסטר ב", "סמסטר ב'", "ב", "b", "semester b", "2":
		return models.SemesterB, nil
	case "קיץ", "סמסטר קיץ", "summer", "semester summer", "3":
		return models.SemesterSummer, nil
	case "שנתי", "yearly", "annual", "year", "4":
		return models.SemesterYearly, nil
	}
	return 0, fmt.Errorf("unknown semester %q", value)
}

// ParseDay maps a Hebrew day letter or an English day name to 1..7, Sunday first.
func ParseDay(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if day, ok := hebrewDays[trimmed]; ok {
		return day, nil
	}
	if day, ok := englishDays[strings.ToLower(trimmed)]; ok {
		return day, nil
	}
	return 0, fmt.Errorf("unknown day %q", value)
}

// ParseGroupType maps a meeting type label to a group type.
func ParseGroupType(value string) (models.GroupType, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(value), " "))
	if t, ok := groupTypeNames[normalized]; ok {
		return t, nil
	}
	if t := models.GroupType(normalized); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown meeting type %q", value)
}

// ParseSlot parses a single `<day>'HH:MM-HH:MM` slot.
func ParseSlot(value string) (Slot, error) {
	match := slotPattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return Slot{}, fmt.Errorf("malformed time slot %q", value)
	}
	day, err := ParseDay(match[1])
	if err != nil {
		return Slot{}, err
	}
	start, err := normalizeClock(match[2])
	if err != nil {
		return Slot{}, err
	}
	end, err := normalizeClock(match[3])
	if err != nil {
		return Slot{}, err
	}
	if end <= start {
		return Slot{}, fmt.Errorf("time slot %q ends before it starts", value)
	}
	return Slot{Day: day, Start: start, End: end}, nil
}

// ParseSlots splits a cell holding several slots separated by newlines, commas or semicolons.
func ParseSlots(cell string) ([]Slot, error) {
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';'
	})
	slots := make([]Slot, 0, len(fields))
	for _, field := range fields {
		if strings.TrimSpace(field) == "" {
			continue
		}
		slot, err := ParseSlot(field)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func normalizeClock(value string) (string, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return "", fmt.Errorf("invalid clock %q", value)
	}
	return parsed.Format("15:04"), nil
}
