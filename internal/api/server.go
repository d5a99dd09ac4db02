// Package api provides the HTTP API server for the ops dashboard.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/narvanalabs/ops-dashboard/internal/api/handlers"
	"github.com/narvanalabs/ops-dashboard/internal/api/health"
	"github.com/narvanalabs/ops-dashboard/internal/api/middleware"
	"github.com/narvanalabs/ops-dashboard/internal/notify"
	"github.com/narvanalabs/ops-dashboard/pkg/config"
	"github.com/narvanalabs/ops-dashboard/pkg/logger"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Dispatcher    handlers.Dispatcher
	Collector     handlers.Collector
	Notifications *notify.Queue
	Jenkins       health.Pinger
}

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	deps          Deps
	config        *config.Config
	logger        *logger.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, deps Deps, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		deps:   deps,
		config: cfg,
		logger: log,
	}

	s.healthChecker = health.NewChecker(Version)
	s.healthChecker.Register("jenkins", deps.Jenkins)

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger.Logger))
	r.Use(middleware.Recovery(s.logger.Logger))

	timeout := chimiddleware.Timeout(60 * time.Second)

	r.With(timeout).Get("/health", s.healthChecker.Handler())

	mcpHandler := handlers.NewMCPHandler(s.deps.Dispatcher, s.deps.Notifications, s.logger)
	r.Route("/api", func(r chi.Router) {
		r.Use(timeout)
		r.Post("/jenkins/mcp", mcpHandler.Query)
		r.Get("/mcp/contexts", mcpHandler.Contexts)
		r.Get("/mcp/stats", mcpHandler.Stats)
	})

	diagnosticsHandler := handlers.NewDiagnosticsHandler(s.deps.Collector, s.deps.Notifications, s.logger)
	notificationHandler := handlers.NewNotificationHandler(s.deps.Notifications, s.logger)
	r.Route("/v1", func(r chi.Router) {
		// Long-lived stream, outside the request timeout.
		r.Get("/notifications/ws", notificationHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/diagnostics", diagnosticsHandler.Get)
			r.Get("/notifications", notificationHandler.List)
			r.Post("/notifications", notificationHandler.Create)
			r.Delete("/notifications/{id}", notificationHandler.Dismiss)
		})
	})

	s.router = r
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails. It does not stop the server; call Shutdown for that.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Name identifies the server during shutdown.
func (s *Server) Name() string {
	return "api"
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
