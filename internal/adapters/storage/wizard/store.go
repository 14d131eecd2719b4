package wizard

import (
	"context"
	"errors"

	domain "scheduler/internal/domain/wizard"
)

// ErrNotFound is returned when a session has no saved workflow state.
var ErrNotFound = errors.New("wizard state not found")

// Store persists per-session workflow state.
type Store interface {
	Get(ctx context.Context, sessionID string) (domain.State, error)
	Save(ctx context.Context, value domain.State) error
	Delete(ctx context.Context, sessionID string) error
}
