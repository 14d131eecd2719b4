package projections

import (
	"context"
	"log/slog"

	"scheduler/internal/domain/calendar"
	"scheduler/internal/domain/section"
	"scheduler/internal/domain/wizard"
)

// GetCalendarQuery carries input for the calendar projection.
type GetCalendarQuery struct {
	Token     string
	TermID    string
	YearLevel int
}

// GetCalendarDeps holds dependencies for the calendar projection.
type GetCalendarDeps struct {
	Backend SectionYearLister
}

// CalendarResult is the weekly grid for one term and year level.
type CalendarResult struct {
	TermID     string
	YearLevel  int
	YearLevels []int
	Sections   int
	Grid       calendar.Grid
	Error      string
}

// QueryGetCalendar fetches the term's sections for a year level and lays them
// out as a day x time-slot grid.
// PRE: YearLevel is in 1..4; other values fall back to the default year
// POST: a failed fetch yields an empty grid with Error set; only an expired
// session is returned as an error
// INVARIANT: the section map is rebuilt from the fetched sections on every call
func QueryGetCalendar(ctx context.Context, query GetCalendarQuery, deps GetCalendarDeps) (CalendarResult, error) {
	year := query.YearLevel
	if year < wizard.MinYearLevel || year > wizard.MaxYearLevel {
		year = wizard.DefaultYearLevel
	}
	res := CalendarResult{TermID: query.TermID, YearLevel: year, YearLevels: YearLevels()}
	if query.TermID == "" {
		res.Error = wizard.ErrNoTermSelected.Error()
		return res, nil
	}

	sections, err := deps.Backend.ListSectionsByTermAndYear(ctx, query.Token, query.TermID, year)
	if msg, err := inlineError(err); err != nil {
		return CalendarResult{}, err
	} else if msg != "" {
		slog.Warn("calendar_event", "event", "fetch_failed", "term_id", query.TermID, "year", year, "error", msg)
		res.Error = msg
		return res, nil
	}

	scheduled := make([]section.Section, 0, len(sections))
	for _, s := range sections {
		if s.HasSessions() {
			scheduled = append(scheduled, s)
		}
	}
	m := calendar.BuildSectionMap(scheduled)
	res.Sections = m.Len()
	res.Grid = calendar.BuildGrid(m)
	if res.Grid.Skipped > 0 {
		slog.Warn("calendar_event", "event", "malformed_sessions", "term_id", query.TermID, "skipped", res.Grid.Skipped)
	}
	return res, nil
}

// YearLevels lists the options of the year filter.
func YearLevels() []int {
	out := make([]int, 0, wizard.MaxYearLevel-wizard.MinYearLevel+1)
	for y := wizard.MinYearLevel; y <= wizard.MaxYearLevel; y++ {
		out = append(out, y)
	}
	return out
}
