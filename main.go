package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"goattrib/app"
	"goattrib/internal"
	"goattrib/internal/config"
	"goattrib/internal/container"
	"goattrib/internal/errors"
	"goattrib/ui"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase connects to PostgreSQL when DATABASE_URL is set and hands
// the connection to the container
func initDatabase(ctx context.Context, appContainer *container.Container) error {
	if !appContainer.Config.Database.Enabled() {
		appContainer.Logger.Info("DATABASE_URL not set, fit-run history disabled")
		return nil
	}

	db, err := sqlx.Connect("postgres", appContainer.Config.Database.URL)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	if err := appContainer.InitWithDatabase(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database initialization failed")
	}
	return nil
}

// evictIdleSessions drops sessions nobody has touched for ttl
func evictIdleSessions(ctx context.Context, service *app.AttributionService, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.EvictIdle(ttl)
		}
	}
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := initDatabase(ctx, appContainer); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	service := appContainer.AttributionService()

	if ttl := appConfig.Limits.SessionIdleTTL; ttl > 0 {
		go evictIdleSessions(ctx, service, ttl)
	}

	server := ui.NewServer(appConfig, service, appContainer.Metrics, logger)
	if err := server.Start(ctx, ":"+appConfig.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
