package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"scheduler/internal/adapters/backend"
	"scheduler/internal/domain/course"
	"scheduler/internal/domain/wizard"
)

// BulkScheduler is the backend surface needed by the selection step.
type BulkScheduler interface {
	BulkSchedule(ctx context.Context, token string, req backend.BulkRequest) (backend.BulkResult, error)
}

// SubmitSelectionInput carries the submitted course-selection form.
type SubmitSelectionInput struct {
	SessionID       string
	Token           string
	Checked         map[string]bool   // course ID -> checked
	Counts          map[string]string // course ID -> raw expected students
	Codes           map[string]string // course ID -> course code, for ordering and messages
	DefaultCapacity string
}

// SubmitSelectionDeps holds dependencies for SubmitSelection.
type SubmitSelectionDeps struct {
	Backend BulkScheduler
	Wizard  WizardDeps
}

var bulkLabels = map[string]string{
	"TermID":           "Term",
	"Sections":         "Course selection",
	"CourseID":         "Course",
	"ExpectedStudents": "Expected students",
	"DefaultCapacity":  "Default capacity",
}

// ExecuteSubmitSelection validates the selection and sends a bulk scheduling
// request.
// PRE: none; input is validated here
// POST: the form values are always persisted; on success the step is calendar;
// every validation failure is reported before any network call
func ExecuteSubmitSelection(ctx context.Context, input SubmitSelectionInput, deps SubmitSelectionDeps) (backend.BulkResult, error) {
	var capacityErr error
	st, err := updateWizardState(ctx, input.SessionID, deps.Wizard, func(st *wizard.State) error {
		st.SetSelection(input.Checked, input.Counts)
		if strings.TrimSpace(input.DefaultCapacity) != "" {
			capacityErr = st.SetDefaultCapacity(input.DefaultCapacity)
		}
		return nil
	})
	if err != nil {
		return backend.BulkResult{}, err
	}
	if capacityErr != nil {
		return backend.BulkResult{}, asValidation(capacityErr)
	}

	if len(st.Checked) == 0 {
		return backend.BulkResult{}, asValidation(wizard.ErrNothingSelected)
	}
	if st.SelectedTermID == "" {
		return backend.BulkResult{}, asValidation(wizard.ErrNoTermSelected)
	}

	catalog := make([]course.Course, 0, len(input.Codes))
	for id, code := range input.Codes {
		catalog = append(catalog, course.Course{ID: id, CourseCode: code})
	}
	selected, err := st.Selection(catalog)
	if err != nil {
		return backend.BulkResult{}, asValidation(err)
	}

	req := backend.BulkRequest{TermID: st.SelectedTermID, DefaultCapacity: st.DefaultCapacity}
	for _, s := range selected {
		req.Sections = append(req.Sections, backend.BulkSection{CourseID: s.CourseID, ExpectedStudents: s.ExpectedStudents})
	}
	if err := checkStruct(req, bulkLabels); err != nil {
		return backend.BulkResult{}, err
	}

	result, err := deps.Backend.BulkSchedule(ctx, input.Token, req)
	if err != nil {
		slog.Warn("schedule_event", "event", "bulk_failed", "term_id", req.TermID, "error", err)
		return backend.BulkResult{}, err
	}

	if _, err := updateWizardState(ctx, input.SessionID, deps.Wizard, func(st *wizard.State) error {
		st.CompleteSelection()
		return nil
	}); err != nil {
		return backend.BulkResult{}, err
	}

	slog.Info("schedule_event", "event", "bulk_submitted",
		"term_id", req.TermID, "courses", len(req.Sections), "conflicts", result.ConflictCount())
	return result, nil
}

// ExecuteSetCourseSearch stores the catalog filter for the selection step.
func ExecuteSetCourseSearch(ctx context.Context, sessionID, query string, deps WizardDeps) (wizard.State, error) {
	return updateWizardState(ctx, sessionID, deps, func(st *wizard.State) error {
		st.Search = strings.TrimSpace(query)
		return nil
	})
}
