package projections

import (
	"context"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/domain/course"
	"scheduler/internal/domain/section"
	"scheduler/internal/domain/term"
)

// TermLister lists academic terms.
type TermLister interface {
	ListTerms(ctx context.Context, token string) ([]term.Term, error)
}

// CourseLister lists the course catalog.
type CourseLister interface {
	ListCourses(ctx context.Context, token string) ([]course.Course, error)
}

// CourseGetter fetches one course by its code.
type CourseGetter interface {
	GetCourse(ctx context.Context, token, code string) (course.Course, error)
}

// SectionYearLister fetches the sections of one term and year level.
type SectionYearLister interface {
	ListSectionsByTermAndYear(ctx context.Context, token, termID string, yearLevel int) ([]section.Section, error)
}

// ScheduleReader fetches the latest scheduling run of a term.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, token, termID string) (backend.Schedule, error)
}

// DashboardBackend is everything the dashboard reads from the backend.
type DashboardBackend interface {
	TermLister
	CourseLister
	SectionYearLister
}

// inlineError turns a backend failure into text shown next to the affected
// panel. An expired session is returned as an error so the caller can sign the
// user out.
func inlineError(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	if backend.IsUnauthenticated(err) {
		return "", err
	}
	return err.Error(), nil
}
