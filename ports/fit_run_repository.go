package ports

import (
	"context"

	"goattrib/domain/core"
	"goattrib/models"
)

// FitRunRepository defines the interface for fit history operations
type FitRunRepository interface {
	// SaveFitRun appends one fit to the history
	SaveFitRun(ctx context.Context, run *models.FitRun) error

	// ListBySession returns the fits of a session, newest first, optionally limited
	ListBySession(ctx context.Context, sessionID core.SessionID, limit int) ([]*models.FitRun, error)

	// GetFitRun retrieves one fit by ID
	GetFitRun(ctx context.Context, id core.FitRunID) (*models.FitRun, error)
}
