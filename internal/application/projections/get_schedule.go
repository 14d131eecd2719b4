package projections

import (
	"context"
	"strings"

	"scheduler/internal/adapters/backend"
)

// GetScheduleDeps holds dependencies for the schedule projection.
type GetScheduleDeps struct {
	Backend ScheduleReader
}

// QueryGetSchedule returns the backend's latest scheduling run for a term.
func QueryGetSchedule(ctx context.Context, token, termID string, deps GetScheduleDeps) (backend.Schedule, error) {
	return deps.Backend.GetSchedule(ctx, token, strings.TrimSpace(termID))
}
