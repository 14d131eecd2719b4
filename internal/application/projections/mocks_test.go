package projections

import (
	"context"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/domain/course"
	"scheduler/internal/domain/section"
	"scheduler/internal/domain/term"
)

// fakeBackend implements every backend interface the projections use.
type fakeBackend struct {
	terms    []term.Term
	courses  []course.Course
	sections []section.Section
	schedule backend.Schedule

	termsErr    error
	coursesErr  error
	sectionsErr error

	calls       []string
	sectionTerm string
	sectionYear int
}

// ListTerms implements TermLister.
func (f *fakeBackend) ListTerms(_ context.Context, _ string) ([]term.Term, error) {
	f.calls = append(f.calls, "ListTerms")
	return f.terms, f.termsErr
}

// ListCourses implements CourseLister.
func (f *fakeBackend) ListCourses(_ context.Context, _ string) ([]course.Course, error) {
	f.calls = append(f.calls, "ListCourses")
	return f.courses, f.coursesErr
}

// GetCourse implements CourseGetter.
func (f *fakeBackend) GetCourse(_ context.Context, _ string, code string) (course.Course, error) {
	f.calls = append(f.calls, "GetCourse")
	for _, c := range f.courses {
		if c.CourseCode == code {
			return c, nil
		}
	}
	return course.Course{}, &backend.APIError{Op: "get_course", Status: 404, Message: "Course not found"}
}

// ListSectionsByTermAndYear implements SectionYearLister.
func (f *fakeBackend) ListSectionsByTermAndYear(_ context.Context, _ string, termID string, year int) ([]section.Section, error) {
	f.calls = append(f.calls, "ListSectionsByTermAndYear")
	f.sectionTerm, f.sectionYear = termID, year
	return f.sections, f.sectionsErr
}

// GetSchedule implements ScheduleReader.
func (f *fakeBackend) GetSchedule(_ context.Context, _ string, _ string) (backend.Schedule, error) {
	f.calls = append(f.calls, "GetSchedule")
	return f.schedule, nil
}

var errUnauthorized = &backend.APIError{Op: "test", Status: 401, Message: "Unauthorized"}

func weeklySection(id, code string, days []string, start, end string) section.Section {
	return section.Section{
		ID:            id,
		Course:        &course.Course{ID: "c-" + code, CourseCode: code, Name: code + " name"},
		SectionNumber: 1,
		Sessions: []section.Session{{
			LessonType: section.LessonLecture,
			Days:       days,
			TimeSlots:  []section.TimeSlot{{Start: start, End: end}},
		}},
	}
}
