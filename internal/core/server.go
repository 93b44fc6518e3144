// Package core provides the API chassis for the HydraChat backend.
// It creates a chi router and enforces cross-cutting concerns -- security,
// logging, observability, and error handling -- before requests reach
// domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hydrachat/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server encapsulates all dependencies for the HydraChat API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator // Resolves tokens to Actors; injected for testability.

	// HealthProbes are the subsystem checks executed by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars are handler registration callbacks mounted under /v1.
	// Populated by the application entry point to avoid import cycles between
	// core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// Closers are resources released during Shutdown, in order (e.g., the
	// database pool).
	Closers []func()

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a "fail-fast" check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources by running the
// registered Closers (database pool, outbound HTTP clients).
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	for _, closer := range s.Closers {
		closer()
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
