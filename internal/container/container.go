package container

import (
	"context"
	"fmt"

	"goattrib/adapters/postgres"
	"goattrib/app"
	"goattrib/internal"
	"goattrib/internal/config"
	apperrors "goattrib/internal/errors"
	"goattrib/internal/migration"
	"goattrib/internal/metrics"
	"goattrib/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB      *sqlx.DB
	Metrics *metrics.Registry

	// Repositories (data access layer); nil without a database
	FitRunRepo ports.FitRunRepository

	// Services
	Attribution *app.AttributionService
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}

	return &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewRegistry(),
	}, nil
}

// InitWithDatabase applies migrations and initializes the repositories
// that require database access
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	if err := db.PingContext(ctx); err != nil {
		return apperrors.DatabaseError(err, "database connection test failed")
	}
	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		return apperrors.Wrapf(err, "database migration %s failed", runner.Version())
	}

	c.DB = db
	c.FitRunRepo = postgres.NewFitRunRepository(db)
	c.Logger.Info("Container initialized with database connection, fit-run history enabled")
	return nil
}

// AttributionService builds the service on first use
func (c *Container) AttributionService() *app.AttributionService {
	if c.Attribution == nil {
		c.Attribution = app.NewAttributionService(c.Config, c.FitRunRepo, c.Metrics, c.Logger)
	}
	return c.Attribution
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
