package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"goattrib/adapters/excel"
	"goattrib/app"
	"goattrib/internal"
	"goattrib/internal/config"
	"goattrib/internal/metrics"
	"goattrib/ui/middleware"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end of the attribution service
type Server struct {
	router  *gin.Engine
	service *app.AttributionService
	reader  *excel.DataReader
	metrics *metrics.Registry
	config  *config.Config
	logger  *internal.Logger
}

// NewServer creates a server with middleware and routes installed
func NewServer(cfg *config.Config, service *app.AttributionService, reg *metrics.Registry, logger *internal.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	s := &Server{
		router:  gin.New(),
		service: service,
		reader:  excel.NewDataReader(logger),
		metrics: reg,
		config:  cfg,
		logger:  logger.With("http"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(s.config.Server.CORSOrigins))
	s.router.Use(middleware.BodyLimit(s.config.Limits.MaxUploadBytes))
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api/sessions")
	api.POST("", s.handleCreateSession)
	api.DELETE("/:id", s.handleDeleteSession)
	api.POST("/:id/upload", s.handleUpload)
	api.POST("/:id/fit", s.handleFit)
	api.POST("/:id/simulate", s.handleSimulate)
	api.GET("/:id/status", s.handleStatus)
	api.GET("/:id/metrics", s.handleResidualMetrics)
	api.GET("/:id/report", s.handleReport)
	api.GET("/:id/history", s.handleHistory)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting goattrib on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
