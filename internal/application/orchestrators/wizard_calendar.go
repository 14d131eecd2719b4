package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/domain/section"
	"scheduler/internal/domain/wizard"
)

// ExecuteSetCalendarYear changes the calendar's year-level filter.
// PRE: raw parses to an integer in 1..4
// POST: CalendarYear is persisted, or a *ValidationError and nothing is saved
func ExecuteSetCalendarYear(ctx context.Context, sessionID, raw string, deps WizardDeps) (wizard.State, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return wizard.State{}, asValidation(wizard.ErrInvalidYearLevel)
	}
	return updateWizardState(ctx, sessionID, deps, func(st *wizard.State) error {
		return asValidation(st.SetCalendarYear(year))
	})
}

// SectionCleaner is the backend surface needed by StartOver.
type SectionCleaner interface {
	ListSections(ctx context.Context, token string) ([]section.Section, error)
	DeleteSection(ctx context.Context, token, id string) error
}

// StartOverDeps holds dependencies for StartOver.
type StartOverDeps struct {
	Backend SectionCleaner
	Wizard  WizardDeps
}

// ExecuteStartOver deletes every section in the backend, one at a time, and
// resets the workflow to the term step. The session itself is kept.
// PRE: token is the session's bearer token
// POST: on success no sections remain and no wizard state is stored;
// the first failed deletion aborts and leaves the state untouched
func ExecuteStartOver(ctx context.Context, sessionID, token string, deps StartOverDeps) (int, error) {
	sections, err := deps.Backend.ListSections(ctx, token)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, s := range sections {
		if s.ID == "" {
			continue
		}
		if err := deps.Backend.DeleteSection(ctx, token, s.ID); err != nil {
			slog.Warn("schedule_event", "event", "start_over_aborted",
				"section_id", s.ID, "deleted", deleted, "remaining", len(sections)-deleted, "error", err)
			return deleted, fmt.Errorf("deleted %d of %d sections: %w", deleted, len(sections), err)
		}
		deleted++
	}

	if err := deps.Wizard.Store.Delete(ctx, sessionID); err != nil {
		return deleted, err
	}
	slog.Info("schedule_event", "event", "start_over", "deleted_sections", deleted)
	return deleted, nil
}

// ScheduleGenerator is the backend surface needed by GenerateSchedule.
type ScheduleGenerator interface {
	GenerateSchedule(ctx context.Context, token, termID string) (backend.Schedule, error)
}

// GenerateScheduleDeps holds dependencies for GenerateSchedule.
type GenerateScheduleDeps struct {
	Backend ScheduleGenerator
	Wizard  WizardDeps
}

// ExecuteGenerateSchedule asks the backend to run the scheduler for the
// selected term.
// PRE: a term is selected
// POST: returns the run summary; wizard state is not changed
func ExecuteGenerateSchedule(ctx context.Context, sessionID, token string, deps GenerateScheduleDeps) (backend.Schedule, error) {
	st, err := LoadWizardState(ctx, sessionID, deps.Wizard)
	if err != nil {
		return backend.Schedule{}, err
	}
	if st.SelectedTermID == "" {
		return backend.Schedule{}, asValidation(wizard.ErrNoTermSelected)
	}
	run, err := deps.Backend.GenerateSchedule(ctx, token, st.SelectedTermID)
	if err != nil {
		return backend.Schedule{}, err
	}
	slog.Info("schedule_event", "event", "schedule_generated", "term_id", st.SelectedTermID, "conflicts", run.Conflicts)
	return run, nil
}
