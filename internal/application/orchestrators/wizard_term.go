package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"scheduler/internal/domain/term"
	"scheduler/internal/domain/wizard"
)

// TermBackend is the backend surface needed by the term step.
type TermBackend interface {
	CreateTerm(ctx context.Context, token string, t term.Term) (term.Term, error)
	DeleteTerm(ctx context.Context, token, id string) error
}

// --- Select Term ---

// ExecuteSelectTerm records the administrator's term choice.
// PRE: termID is non-empty
// POST: SelectedTermID is persisted; the step is unchanged
func ExecuteSelectTerm(ctx context.Context, sessionID, termID string, deps WizardDeps) (wizard.State, error) {
	termID = strings.TrimSpace(termID)
	if termID == "" {
		return wizard.State{}, &ValidationError{Message: "Please choose a term."}
	}
	return updateWizardState(ctx, sessionID, deps, func(st *wizard.State) error {
		st.SelectTerm(termID)
		return nil
	})
}

// --- Create Term ---

// CreateTermInput carries the raw create-term form.
type CreateTermInput struct {
	Token     string
	Name      string `validate:"required"`
	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`
}

// CreateTermDeps holds dependencies for CreateTerm.
type CreateTermDeps struct {
	Backend TermBackend
}

var createTermLabels = map[string]string{
	"Name":      "Term name",
	"StartDate": "Start date",
	"EndDate":   "End date",
}

// ExecuteCreateTerm validates the form and creates the term in the backend.
// PRE: none; input is validated here
// POST: the backend holds the new term, or a *ValidationError is returned
// without a network call
func ExecuteCreateTerm(ctx context.Context, input CreateTermInput, deps CreateTermDeps) (term.Term, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.StartDate = strings.TrimSpace(input.StartDate)
	input.EndDate = strings.TrimSpace(input.EndDate)
	if err := checkStruct(input, createTermLabels); err != nil {
		return term.Term{}, err
	}

	start, _ := term.ParseDate(input.StartDate)
	end, _ := term.ParseDate(input.EndDate)
	t := term.Term{Name: input.Name, StartDate: start, EndDate: end}
	if err := t.Validate(); err != nil {
		if errors.Is(err, term.ErrInvalidDates) {
			return term.Term{}, &ValidationError{Message: "Start date must be before end date."}
		}
		return term.Term{}, asValidation(err)
	}

	created, err := deps.Backend.CreateTerm(ctx, input.Token, t)
	if err != nil {
		return term.Term{}, err
	}
	slog.Info("term_event", "event", "term_created", "term_id", created.ID, "name", t.Name)
	return created, nil
}

// --- Delete Term ---

// DeleteTermDeps holds dependencies for DeleteTerm.
type DeleteTermDeps struct {
	Backend TermBackend
	Wizard  WizardDeps
}

// ExecuteDeleteTerm deletes a term and clears it from the selection.
// PRE: termID is non-empty
// POST: the term is gone from the backend; SelectedTermID no longer names it
func ExecuteDeleteTerm(ctx context.Context, sessionID, token, termID string, deps DeleteTermDeps) (wizard.State, error) {
	termID = strings.TrimSpace(termID)
	if termID == "" {
		return wizard.State{}, &ValidationError{Message: "Please choose a term to delete."}
	}
	if err := deps.Backend.DeleteTerm(ctx, token, termID); err != nil {
		return wizard.State{}, err
	}
	slog.Info("term_event", "event", "term_deleted", "term_id", termID)
	return updateWizardState(ctx, sessionID, deps.Wizard, func(st *wizard.State) error {
		st.ClearTermIfSelected(termID)
		return nil
	})
}

// --- Navigation ---

// ExecuteAdvanceToExcel moves from the term step to the upload step.
// PRE: a term is selected
// POST: step is excel, or a *ValidationError and nothing is saved
func ExecuteAdvanceToExcel(ctx context.Context, sessionID string, deps WizardDeps) (wizard.State, error) {
	return updateWizardState(ctx, sessionID, deps, func(st *wizard.State) error {
		return asValidation(st.AdvanceToExcel())
	})
}

// ExecuteBackToTerm returns to the term step with no other side effects.
func ExecuteBackToTerm(ctx context.Context, sessionID string, deps WizardDeps) (wizard.State, error) {
	return updateWizardState(ctx, sessionID, deps, func(st *wizard.State) error {
		st.BackToTerm()
		return nil
	})
}
