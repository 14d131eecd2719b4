package orchestrators

import (
	"context"
	"log/slog"
)

// SessionDeleter removes a persisted session.
type SessionDeleter interface {
	Delete(ctx context.Context, id string) error
}

// WizardDeleter removes persisted wizard state.
type WizardDeleter interface {
	Delete(ctx context.Context, sessionID string) error
}

// LogoutDeps holds dependencies for Logout.
type LogoutDeps struct {
	SessionStore SessionDeleter
	WizardStore  WizardDeleter
}

// ExecuteLogout forgets the session and its workflow state. No backend call
// is made. Logging out twice is not an error.
// PRE: none
// POST: neither the session nor its wizard state is stored
func ExecuteLogout(ctx context.Context, sessionID string, deps LogoutDeps) error {
	if sessionID == "" {
		return nil
	}
	if err := deps.WizardStore.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := deps.SessionStore.Delete(ctx, sessionID); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "logout", "session_id", sessionID)
	return nil
}
