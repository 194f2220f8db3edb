package parser

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/course-planner/internal/models"
)

var (
	// ErrNoData is returned for a workbook without data rows.
	ErrNoData = errors.New("workbook has no course rows")
	// ErrBadHeader is returned when a required column is missing.
	ErrBadHeader = errors.New("workbook header is missing required columns")
)

const (
	colCode     = "code"
	colName     = "name"
	colPeriod   = "period"
	colGroup    = "group"
	colType     = "type"
	colTeacher  = "teacher"
	colTime     = "time"
	colRoom     = "room"
	colBuilding = "building"
)

var headerAliases = map[string]string{
	"קוד קורס":     colCode,
	"קוד":          colCode,
	"course code":  colCode,
	"code":         colCode,
	"שם קורס":      colName,
	"שם":           colName,
	"course name":  colName,
	"name":         colName,
	"תקופה":        colPeriod,
	"סמסטר":        colPeriod,
	"period":       colPeriod,
	"semester":     colPeriod,
	"קבוצה":        colGroup,
	"group":        colGroup,
	"סוג מפגש":     colType,
	"סוג":          colType,
	"meeting type": colType,
	"type":         colType,
	"מרצה":         colTeacher,
	"מורה":         colTeacher,
	"teacher":      colTeacher,
	"lecturer":     colTeacher,
	"מועד":         colTime,
	"זמן":          colTime,
	"time":         colTime,
	"חדר":          colRoom,
	"room":         colRoom,
	"בניין":        colBuilding,
	"building":     colBuilding,
}

var requiredColumns = []string{colCode, colName, colPeriod, colType, colTime}

var nonDigits = regexp.MustCompile(`\D`)

// Workbook is the outcome of reading one course file.
type Workbook struct {
	Sheet    string
	Courses  []models.Course
	Warnings []string
}

// ParseWorkbook reads the first sheet of an xlsx course file. Each row is one
// session; rows sharing code, period, meeting type and group form one group.
// Rows that cannot be read are skipped with a warning.
func ParseWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	headerRow := -1
	var index map[string]int
	for i, row := range rows {
		candidate := parseHeaderIndex(row)
		if hasRequired(candidate) {
			headerRow = i
			index = candidate
			break
		}
	}
	if headerRow < 0 {
		if len(rows) == 0 {
			return nil, ErrNoData
		}
		return nil, ErrBadHeader
	}

	out := &Workbook{Sheet: sheet}
	assembler := newAssembler()
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		if err := assembler.add(index, row); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}

	out.Courses = assembler.courses()
	if len(out.Courses) == 0 {
		return out, ErrNoData
	}
	return out, nil
}

func parseHeaderIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.Join(strings.Fields(h), " "))
		if column, ok := headerAliases[key]; ok {
			if _, seen := idx[column]; !seen {
				idx[column] = i
			}
		}
	}
	return idx
}

func hasRequired(idx map[string]int) bool {
	for _, column := range requiredColumns {
		if _, ok := idx[column]; !ok {
			return false
		}
	}
	return true
}

func cell(row []string, idx map[string]int, column string) string {
	i, ok := idx[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

type groupKey struct {
	course   string
	semester models.Semester
	kind     models.GroupType
	label    string
}

type assembler struct {
	order  []string
	byKey  map[string]*models.Course
	groups map[groupKey]int
}

func newAssembler() *assembler {
	return &assembler{
		byKey:  make(map[string]*models.Course),
		groups: make(map[groupKey]int),
	}
}

func (a *assembler) add(idx map[string]int, row []string) error {
	code := cell(row, idx, colCode)
	if code == "" {
		return errors.New("missing course code")
	}
	id, err := strconv.Atoi(nonDigits.ReplaceAllString(code, ""))
	if err != nil {
		return fmt.Errorf("course code %q has no numeric id", code)
	}

	semester, err := ParseSemester(cell(row, idx, colPeriod))
	if err != nil {
		return err
	}
	kind, err := ParseGroupType(cell(row, idx, colType))
	if err != nil {
		return err
	}
	slots, err := ParseSlots(cell(row, idx, colTime))
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		return errors.New("missing meeting time")
	}

	course := models.Course{
		ID:       id,
		RawID:    code,
		Name:     cell(row, idx, colName),
		Teacher:  cell(row, idx, colTeacher),
		Semester: semester,
	}
	key := course.Key()
	existing, ok := a.byKey[key]
	if !ok {
		course.Groups = make(map[models.GroupType][]models.Group)
		existing = &course
		a.byKey[key] = existing
		a.order = append(a.order, key)
	}
	if existing.Teacher == "" {
		existing.Teacher = course.Teacher
	}

	gk := groupKey{course: key, semester: semester, kind: kind, label: cell(row, idx, colGroup)}
	position, ok := a.groups[gk]
	if !ok {
		existing.Groups[kind] = append(existing.Groups[kind], models.Group{Type: kind})
		position = len(existing.Groups[kind]) - 1
		a.groups[gk] = position
	}

	building := cell(row, idx, colBuilding)
	room := cell(row, idx, colRoom)
	group := &existing.Groups[kind][position]
	for _, slot := range slots {
		group.Sessions = append(group.Sessions, models.Session{
			Day:       slot.Day,
			StartTime: slot.Start,
			EndTime:   slot.End,
			Building:  building,
			Room:      room,
		})
	}
	return nil
}

func (a *assembler) courses() []models.Course {
	out := make([]models.Course, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.byKey[key])
	}
	return out
}
