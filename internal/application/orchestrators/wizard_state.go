package orchestrators

import (
	"context"
	"errors"

	wizardStore "scheduler/internal/adapters/storage/wizard"
	"scheduler/internal/domain/wizard"
)

// WizardStore persists per-session workflow state.
type WizardStore interface {
	Get(ctx context.Context, sessionID string) (wizard.State, error)
	Save(ctx context.Context, st wizard.State) error
	Delete(ctx context.Context, sessionID string) error
}

// WizardDeps holds the dependencies shared by the workflow orchestrators.
type WizardDeps struct {
	Store           WizardStore
	DefaultCapacity int
}

// LoadWizardState returns the saved state for a session, or a fresh state
// when none has been saved yet.
// PRE: sessionID is non-empty
// POST: the returned state is normalized and carries sessionID
func LoadWizardState(ctx context.Context, sessionID string, deps WizardDeps) (wizard.State, error) {
	st, err := deps.Store.Get(ctx, sessionID)
	if errors.Is(err, wizardStore.ErrNotFound) {
		return wizard.NewState(sessionID, deps.DefaultCapacity), nil
	}
	if err != nil {
		return wizard.State{}, err
	}
	st.SessionID = sessionID
	st.Normalize(deps.DefaultCapacity)
	return st, nil
}

// updateWizardState loads, mutates and saves the state. Nothing is saved when
// mutate returns an error.
func updateWizardState(ctx context.Context, sessionID string, deps WizardDeps, mutate func(*wizard.State) error) (wizard.State, error) {
	st, err := LoadWizardState(ctx, sessionID, deps)
	if err != nil {
		return wizard.State{}, err
	}
	if err := mutate(&st); err != nil {
		return st, err
	}
	if err := deps.Store.Save(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}

// asValidation converts a domain rule violation into a *ValidationError.
func asValidation(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Message: err.Error()}
}
