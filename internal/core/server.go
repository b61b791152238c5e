// Package core provides the API chassis for the jobboard payments backend:
// a chi router with the cross-cutting middleware chain (request IDs, panic
// recovery, structured request logging) and the standard response envelopes,
// applied before requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jobboard/internal/config"
)

// RouteRegistrar mounts a group of routes on the router. Domain handlers
// implement this so main can wire them without core importing domain
// packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the HTTP chassis dependencies, allowing injection
// during testing and distinct configuration per environment.
type Server struct {
	Config *config.Config
	Logger *slog.Logger

	// Registrars are applied in order by MountRoutes.
	Registrars []RouteRegistrar

	router *chi.Mux

	// closers are shut down in reverse order on Shutdown.
	closers []func(context.Context) error
}

// NewServer initializes the chassis and prepares the server for route
// mounting. It performs a fail-fast check on critical dependencies.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// MountRoutes applies the middleware chain, mounts the health endpoint, and
// runs every registered RouteRegistrar.
func (s *Server) MountRoutes() {
	s.router.Use(Recoverer(s.Logger))
	s.router.Use(RequestID)
	s.router.Use(RequestLogger(s.Logger, []string{"Authorization"}))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		Success(w, r, map[string]string{"service": s.Config.Service, "status": "ok"})
	})

	for _, register := range s.Registrars {
		register(s.router)
	}
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a resource closer invoked during Shutdown, after the
// HTTP listener has drained.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Shutdown performs graceful termination of server resources in reverse
// registration order.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		s.Logger.Error("error during resource shutdown", "error", firstErr)
		return fmt.Errorf("closing resources: %w", firstErr)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
