package models

import (
	"fmt"
	"strings"
)

// Semester identifies an academic period.
type Semester int

const (
	SemesterA      Semester = 1
	SemesterB      Semester = 2
	SemesterSummer Semester = 3
	SemesterYearly Semester = 4
)

// GenerationSemesters lists the periods generation runs for, in order.
var GenerationSemesters = []Semester{SemesterA, SemesterB, SemesterSummer}

func (s Semester) String() string {
	switch s {
	case SemesterA:
		return "A"
	case SemesterB:
		return "B"
	case SemesterSummer:
		return "Summer"
	case SemesterYearly:
		return "Yearly"
	default:
		return fmt.Sprintf("Semester(%d)", int(s))
	}
}

// Valid reports whether s is a known semester value.
func (s Semester) Valid() bool {
	return s >= SemesterA && s <= SemesterYearly
}

// GroupType is the kind of instruction a group provides.
type GroupType string

const (
	GroupBlock         GroupType = "block"
	GroupLecture       GroupType = "lecture"
	GroupTutorial      GroupType = "tutorial"
	GroupLab           GroupType = "lab"
	GroupDepartmental  GroupType = "departmental"
	GroupReinforcement GroupType = "reinforcement"
	GroupGuidance      GroupType = "guidance"
	GroupColloquium    GroupType = "colloquium"
	GroupRegistration  GroupType = "registration"
	GroupThesis        GroupType = "thesis"
	GroupProject       GroupType = "project"
)

// GroupTypeOrder is the fixed recursion order used by the combination generator.
var GroupTypeOrder = []GroupType{
	GroupBlock,
	GroupLecture,
	GroupTutorial,
	GroupLab,
	GroupDepartmental,
	GroupReinforcement,
	GroupGuidance,
	GroupColloquium,
	GroupRegistration,
	GroupThesis,
	GroupProject,
}

// Valid reports whether t is one of the known group types.
func (t GroupType) Valid() bool {
	for _, known := range GroupTypeOrder {
		if known == t {
			return true
		}
	}
	return false
}

// BlockCourseID is the synthetic course id that carries user block times.
const BlockCourseID = 90000

// Session is one concrete classroom meeting.
type Session struct {
	Day       int    `json:"day" validate:"min=1,max=7"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Building  string `json:"building,omitempty"`
	Room      string `json:"room,omitempty"`
}

// Group is an indivisible bundle of sessions taken together.
type Group struct {
	Type     GroupType `json:"type"`
	Sessions []Session `json:"sessions" validate:"dive"`
}

// Course is a single course in a single semester.
type Course struct {
	ID       int                   `json:"id" validate:"required"`
	RawID    string                `json:"raw_id" validate:"required"`
	Name     string                `json:"name"`
	Teacher  string                `json:"teacher,omitempty"`
	Semester Semester              `json:"semester" validate:"min=1,max=4"`
	Groups   map[GroupType][]Group `json:"groups"`
}

// Key is the per-semester identity used for conflict tracking and upload merging.
func (c Course) Key() string {
	return fmt.Sprintf("%d_s%d", c.ID, int(c.Semester))
}

// HasGroups reports whether at least one group collection is non-empty.
func (c Course) HasGroups() bool {
	for _, groups := range c.Groups {
		if len(groups) > 0 {
			return true
		}
	}
	return false
}

// IsBlock reports whether c is the synthetic block-time course.
func (c Course) IsBlock() bool {
	return c.ID == BlockCourseID
}

// ExpandYearly replaces every yearly course with one instance for A and one for B.
func ExpandYearly(courses []Course) []Course {
	out := make([]Course, 0, len(courses))
	for _, course := range courses {
		if course.Semester != SemesterYearly {
			out = append(out, course)
			continue
		}
		first := course
		first.Semester = SemesterA
		second := course
		second.Semester = SemesterB
		out = append(out, first, second)
	}
	return out
}

// FilterBySemester returns the courses belonging to semester, preserving order.
func FilterBySemester(courses []Course, semester Semester) []Course {
	out := make([]Course, 0, len(courses))
	for _, course := range courses {
		if course.Semester == semester {
			out = append(out, course)
		}
	}
	return out
}

// BlockTime is a user-declared busy interval.
type BlockTime struct {
	Day       int      `json:"day" validate:"min=1,max=7"`
	StartTime string   `json:"start_time" validate:"required"`
	EndTime   string   `json:"end_time" validate:"required"`
	Semester  Semester `json:"semester" validate:"min=1,max=3"`
}

// BlockCourse packs the block times of semester into the synthetic course.
// It returns false when semester has no block times.
func BlockCourse(semester Semester, blocks []BlockTime) (Course, bool) {
	sessions := make([]Session, 0, len(blocks))
	for _, block := range blocks {
		if block.Semester != semester {
			continue
		}
		sessions = append(sessions, Session{Day: block.Day, StartTime: block.StartTime, EndTime: block.EndTime})
	}
	if len(sessions) == 0 {
		return Course{}, false
	}
	return Course{
		ID:       BlockCourseID,
		RawID:    fmt.Sprintf("%d", BlockCourseID),
		Name:     "Blocked time",
		Semester: semester,
		Groups: map[GroupType][]Group{
			GroupBlock: {{Type: GroupBlock, Sessions: sessions}},
		},
	}, true
}

// GroupRef points at one group of a course by type and position.
type GroupRef struct {
	Type  GroupType `json:"type"`
	Index int       `json:"index"`
}

// CourseSelection is one legal pick of one group per non-empty group type.
// It indexes into the course it was generated from and must not outlive it.
type CourseSelection struct {
	Course int        `json:"course"`
	Groups []GroupRef `json:"groups"`
}

// Resolve returns the selected groups of course in selection order.
func (s CourseSelection) Resolve(course Course) []Group {
	groups := make([]Group, 0, len(s.Groups))
	for _, ref := range s.Groups {
		groups = append(groups, course.Groups[ref.Type][ref.Index])
	}
	return groups
}

func (s CourseSelection) String() string {
	parts := make([]string, 0, len(s.Groups))
	for _, ref := range s.Groups {
		parts = append(parts, fmt.Sprintf("%s#%d", ref.Type, ref.Index))
	}
	return strings.Join(parts, ",")
}
