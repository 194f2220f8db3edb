package parser

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/course-planner/internal/models"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, axis, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseSemester(t *testing.T) {
	cases := map[string]models.Semester{
		"סמסטר א":  models.SemesterA,
		"סמסטר  ב": models.SemesterB,
		"קיץ":      models.SemesterSummer,
		"שנתי":     models.SemesterYearly,
		"Summer":   models.SemesterSummer,
		"a":        models.SemesterA,
	}
	for input, want := range cases {
		got, err := ParseSemester(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseSemester("winter")
	assert.Error(t, err)
}

func TestParseSlot(t *testing.T) {
	slot, err := ParseSlot("ב'10:00-12:00")
	require.NoError(t, err)
	assert.Equal(t, Slot{Day: 2, Start: "10:00", End: "12:00"}, slot)

	slot, err = ParseSlot("ש׳ 9:30 - 11:00")
	require.NoError(t, err)
	assert.Equal(t, Slot{Day: 7, Start: "09:30", End: "11:00"}, slot)

	slot, err = ParseSlot("Wed 14:00-15:30")
	require.NoError(t, err)
	assert.Equal(t, 4, slot.Day)

	for _, bad := range []string{"ז'10:00-12:00", "ב'12:00-10:00", "ב'25:00-26:00", "monday"} {
		_, err := ParseSlot(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseSlotsSplitsCell(t *testing.T) {
	slots, err := ParseSlots("א'08:00-10:00\nג'08:00-10:00, ה'12:00-13:00")
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, 1, slots[0].Day)
	assert.Equal(t, 3, slots[1].Day)
	assert.Equal(t, 5, slots[2].Day)
}

func TestParseWorkbookGroupsSessions(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Course list 2026"},
		{"קוד קורס", "שם קורס", "תקופה", "קבוצה", "סוג מפגש", "מרצה", "מועד", "חדר", "בניין"},
		{"83-112", "Algorithms", "סמסטר א", "01", "הרצאה", "Dr. Levi", "ב'10:00-12:00", "101", "605"},
		{"83-112", "Algorithms", "סמסטר א", "01", "הרצאה", "Dr. Levi", "ד'10:00-12:00", "101", "605"},
		{"83-112", "Algorithms", "סמסטר א", "02", "תרגול", "", "ג'14:00-15:00", "12", "604"},
		{"83-112", "Algorithms", "סמסטר א", "03", "תרגול", "", "ה'14:00-15:00", "12", "604"},
		{},
		{"83-113", "Logic", "שנתי", "01", "lecture", "Dr. Cohen", "Sun 08:00-10:00", "", ""},
		{"83-114", "Broken", "סמסטר א", "01", "הרצאה", "", "someday", "", ""},
	})

	parsed, err := ParseWorkbook(buf)
	require.NoError(t, err)
	require.Len(t, parsed.Courses, 2)
	require.Len(t, parsed.Warnings, 1)
	assert.Contains(t, parsed.Warnings[0], "row 9")

	algorithms := parsed.Courses[0]
	assert.Equal(t, 83112, algorithms.ID)
	assert.Equal(t, "83-112", algorithms.RawID)
	assert.Equal(t, "Dr. Levi", algorithms.Teacher)
	assert.Equal(t, models.SemesterA, algorithms.Semester)
	require.Len(t, algorithms.Groups[models.GroupLecture], 1)
	assert.Len(t, algorithms.Groups[models.GroupLecture][0].Sessions, 2)
	require.Len(t, algorithms.Groups[models.GroupTutorial], 2)
	assert.Equal(t, "604", algorithms.Groups[models.GroupTutorial][0].Sessions[0].Building)

	logic := parsed.Courses[1]
	assert.Equal(t, models.SemesterYearly, logic.Semester)
	assert.Equal(t, 1, logic.Groups[models.GroupLecture][0].Sessions[0].Day)
}

func TestParseWorkbookRejectsMissingHeader(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"name", "time"},
		{"Algorithms", "ב'10:00-12:00"},
	})

	_, err := ParseWorkbook(buf)
	assert.ErrorIs(t, err, ErrBadHeader)
}
