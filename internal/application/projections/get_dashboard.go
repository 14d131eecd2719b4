package projections

import (
	"context"

	"scheduler/internal/domain/course"
	"scheduler/internal/domain/term"
	"scheduler/internal/domain/wizard"
)

// GetDashboardQuery carries input for the dashboard projection.
type GetDashboardQuery struct {
	Token          string
	State          wizard.State
	PriorityPrefix string
}

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	Backend DashboardBackend
}

// StepView is one entry of the progress indicator.
type StepView struct {
	Step    wizard.Step
	Number  int
	Label   string
	Current bool
	Done    bool
}

// CourseRow is one line of the selection table.
type CourseRow struct {
	Course  course.Course
	Checked bool
	Count   string
}

// DashboardResult carries everything the current step renders.
type DashboardResult struct {
	State         wizard.State
	Steps         []StepView
	Terms         []term.Term
	SelectedTerm  *term.Term
	DefaultedTerm bool // the first term was picked because nothing was selected
	TermsError    string

	Courses        []CourseRow
	HiddenSelected []CourseRow // checked courses the search filter hides
	CoursesTotal   int
	CoursesError   string

	Calendar *CalendarResult
}

// QueryGetDashboard assembles the data for the current workflow step.
// PRE: State has been loaded for the session
// POST: only the backend data the current step displays is fetched; fetch
// failures are reported inline and only an expired session is returned as an error
func QueryGetDashboard(ctx context.Context, query GetDashboardQuery, deps GetDashboardDeps) (DashboardResult, error) {
	st := query.State
	res := DashboardResult{State: st, Steps: stepViews(st.Step)}

	switch st.Step {
	case wizard.StepTerm, wizard.StepExcel:
		terms, err := deps.Backend.ListTerms(ctx, query.Token)
		msg, err := inlineError(err)
		if err != nil {
			return DashboardResult{}, err
		}
		res.TermsError = msg
		res.Terms = terms
		if st.SelectedTermID == "" && len(terms) > 0 {
			res.State.SelectTerm(terms[0].ID)
			res.DefaultedTerm = true
		}
		res.SelectedTerm = findTerm(terms, res.State.SelectedTermID)

	case wizard.StepSelect:
		courses, err := deps.Backend.ListCourses(ctx, query.Token)
		msg, err := inlineError(err)
		if err != nil {
			return DashboardResult{}, err
		}
		res.CoursesError = msg
		res.CoursesTotal = len(courses)
		sorted := course.SortCatalog(courses, query.PriorityPrefix)
		visible := make(map[string]bool)
		for _, c := range course.Filter(sorted, st.Search) {
			visible[c.ID] = true
			res.Courses = append(res.Courses, courseRow(c, st))
		}
		for _, c := range sorted {
			if st.Checked[c.ID] && !visible[c.ID] {
				res.HiddenSelected = append(res.HiddenSelected, courseRow(c, st))
			}
		}

	case wizard.StepCalendar:
		cal, err := QueryGetCalendar(ctx, GetCalendarQuery{
			Token:     query.Token,
			TermID:    st.SelectedTermID,
			YearLevel: st.CalendarYear,
		}, GetCalendarDeps{Backend: deps.Backend})
		if err != nil {
			return DashboardResult{}, err
		}
		res.Calendar = &cal
	}
	return res, nil
}

func stepViews(current wizard.Step) []StepView {
	views := make([]StepView, 0, len(wizard.Steps))
	for i, s := range wizard.Steps {
		views = append(views, StepView{
			Step:    s,
			Number:  i + 1,
			Label:   s.Label(),
			Current: s == current,
			Done:    i < current.Index(),
		})
	}
	return views
}

func courseRow(c course.Course, st wizard.State) CourseRow {
	return CourseRow{Course: c, Checked: st.Checked[c.ID], Count: st.Counts[c.ID]}
}

func findTerm(terms []term.Term, id string) *term.Term {
	for i := range terms {
		if terms[i].ID == id {
			return &terms[i]
		}
	}
	return nil
}
