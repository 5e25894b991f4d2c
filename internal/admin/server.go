// Package admin serves the operator endpoints on their own listener:
// /healthz, /services, /metrics and the /events SSE stream.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/svcengine/internal/events"
	"github.com/mattjoyce/svcengine/internal/service"
	"github.com/mattjoyce/svcengine/internal/worker"
)

// ServiceSource lists the configured services.
type ServiceSource interface {
	Services() []service.Service
}

// WorkerStater is implemented by worker-backed services.
type WorkerStater interface {
	WorkerState() worker.State
}

// WorkerReporter is implemented by services that can describe their current
// worker run.
type WorkerReporter interface {
	WorkerInfo() (worker.Info, bool)
}

// Config holds admin server configuration.
type Config struct {
	Listen            string
	KeepAliveInterval time.Duration
}

// Server is the admin HTTP server.
type Server struct {
	config    Config
	services  ServiceSource
	events    *events.Hub
	logger    *slog.Logger
	startedAt time.Time
	server    *http.Server
}

// New creates an admin server. hub may be nil, in which case /events only
// sends keep-alives.
func New(config Config, services ServiceSource, hub *events.Hub, logger *slog.Logger) *Server {
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = 15 * time.Second
	}
	return &Server{
		config:    config,
		services:  services,
		events:    hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Listen, err)
	}

	s.server = &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("admin server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// SSE streams never finish on their own.
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			_ = s.server.Close()
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("admin server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/services", s.handleServices)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/events", s.handleEvents)

	return r
}
