package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"goattrib/domain/core"
	"goattrib/models"
	"goattrib/ports"

	"github.com/jmoiron/sqlx"
)

// ErrFitRunNotFound is returned when no fit run matches an ID
var ErrFitRunNotFound = errors.New("fit run not found")

const fitRunColumns = `id, session_id, generation, method, alpha, observations, r_squared,
	adj_r_squared, aic, bic, coefficients, dataset_fingerprint, bootstrap_samples, duration_ms, created_at`

// FitRunRepositoryImpl implements FitRunRepository for PostgreSQL
type FitRunRepositoryImpl struct {
	db *sqlx.DB
}

// NewFitRunRepository creates a new PostgreSQL fit run repository
func NewFitRunRepository(db *sqlx.DB) ports.FitRunRepository {
	return &FitRunRepositoryImpl{db: db}
}

// SaveFitRun appends one fit to the history
func (r *FitRunRepositoryImpl) SaveFitRun(ctx context.Context, run *models.FitRun) error {
	// CoefficientMap implements driver.Valuer, so it is stored as JSONB
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO fit_runs (`+fitRunColumns+`)
		VALUES (:id, :session_id, :generation, :method, :alpha, :observations, :r_squared,
			:adj_r_squared, :aic, :bic, :coefficients, :dataset_fingerprint, :bootstrap_samples, :duration_ms, :created_at)
	`, run)
	if err != nil {
		return fmt.Errorf("failed to insert fit run %s: %w", run.ID, err)
	}
	return nil
}

// ListBySession returns the fits of a session, newest first
func (r *FitRunRepositoryImpl) ListBySession(ctx context.Context, sessionID core.SessionID, limit int) ([]*models.FitRun, error) {
	query := `SELECT ` + fitRunColumns + `
		FROM fit_runs
		WHERE session_id = $1
		ORDER BY created_at DESC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	runs := []*models.FitRun{}
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list fit runs for session %s: %w", sessionID, err)
	}
	return runs, nil
}

// GetFitRun retrieves one fit by ID
func (r *FitRunRepositoryImpl) GetFitRun(ctx context.Context, id core.FitRunID) (*models.FitRun, error) {
	var run models.FitRun
	err := r.db.GetContext(ctx, &run, `SELECT `+fitRunColumns+` FROM fit_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrFitRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
