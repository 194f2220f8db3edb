package scheduler

import (
	"fmt"
	"math/rand"

	"github.com/noah-isme/course-planner/internal/models"
)

func session(day int, start, end string) models.Session {
	return models.Session{Day: day, StartTime: start, EndTime: end}
}

func group(groupType models.GroupType, sessions ...models.Session) models.Group {
	return models.Group{Type: groupType, Sessions: sessions}
}

func course(id int, groups map[models.GroupType][]models.Group) models.Course {
	return models.Course{
		ID:       id,
		RawID:    fmt.Sprintf("C%d", id),
		Name:     fmt.Sprintf("Course %d", id),
		Semester: models.SemesterA,
		Groups:   groups,
	}
}

func lectureOnly(id, day int, start, end string) models.Course {
	return course(id, map[models.GroupType][]models.Group{
		models.GroupLecture: {group(models.GroupLecture, session(day, start, end))},
	})
}

// randomCourses builds courses with one to three groups per type. Sessions of
// one group fall on distinct days.
func randomCourses(rnd *rand.Rand, n int) []models.Course {
	types := []models.GroupType{models.GroupLecture, models.GroupTutorial, models.GroupLab}
	courses := make([]models.Course, 0, n)
	for c := 0; c < n; c++ {
		groups := make(map[models.GroupType][]models.Group)
		for _, groupType := range types {
			if groupType != models.GroupLecture && rnd.Intn(2) == 0 {
				continue
			}
			perGroup := 1 + rnd.Intn(2)
			count := 1 + rnd.Intn(3)
			for g := 0; g < count; g++ {
				sessions := make([]models.Session, 0, perGroup)
				day := 1 + rnd.Intn(6)
				for s := 0; s < perGroup; s++ {
					start := 8*60 + rnd.Intn(20)*30
					length := 60 + rnd.Intn(3)*30
					sessions = append(sessions, session(day, FormatClock(start), FormatClock(start+length)))
					day = day%6 + 1
				}
				groups[groupType] = append(groups[groupType], group(groupType, sessions...))
			}
		}
		courses = append(courses, course(c+1, groups))
	}
	return courses
}
