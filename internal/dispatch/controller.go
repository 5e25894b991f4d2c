package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/svcengine/internal/auth"
	"github.com/mattjoyce/svcengine/internal/events"
	"github.com/mattjoyce/svcengine/internal/log"
	"github.com/mattjoyce/svcengine/internal/metrics"
	"github.com/mattjoyce/svcengine/internal/router"
	"github.com/mattjoyce/svcengine/internal/service"
)

// Options configures a Controller.
type Options struct {
	ConflictPolicy router.ConflictPolicy
	Events         *events.Hub
	Logger         *slog.Logger
}

// Controller routes requests to services and owns their lifecycle.
type Controller struct {
	all     []service.Service
	enabled []service.Service
	table   *router.Table[service.Service]
	hub     *events.Hub
	logger  *slog.Logger

	mu      sync.Mutex
	started []service.Service
	running bool
}

// New builds the ownership table from the enabled services. Services are
// registered in slice order, which matters only under router.ConflictLastWins.
func New(services []service.Service, opts Options) (*Controller, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithComponent("dispatch")
	}

	enabled := make([]service.Service, 0, len(services))
	for _, svc := range services {
		if svc.Enabled() {
			enabled = append(enabled, svc)
		}
	}

	table, err := router.Build(enabled, opts.ConflictPolicy, logger)
	if err != nil {
		return nil, fmt.Errorf("build ownership table: %w", err)
	}

	return &Controller{
		all:     services,
		enabled: enabled,
		table:   table,
		hub:     opts.Events,
		logger:  logger,
	}, nil
}

// Services returns every configured service, enabled or not.
func (c *Controller) Services() []service.Service {
	return append([]service.Service(nil), c.all...)
}

// Table exposes the ownership table for inspection.
func (c *Controller) Table() *router.Table[service.Service] {
	return c.table
}

// Resolve returns the service that would handle method and path.
func (c *Controller) Resolve(method, path string) (service.Service, bool) {
	if router.HasDoubleSlash(path) {
		return nil, false
	}
	return c.table.Resolve(method, path)
}

// Dispatch runs one request through resolution, the auth gate and the owning
// service. It always returns a response; failures below this point are
// converted rather than propagated.
func (c *Controller) Dispatch(ctx context.Context, req *service.Request) *service.Response {
	start := time.Now()
	reqID := RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	method := strings.ToUpper(req.Method)
	logger := c.logger.With("request_id", reqID, "method", method, "path", req.Path)

	owner := ""
	resp := func() *service.Response {
		if router.HasDoubleSlash(req.Path) {
			logger.Debug("rejecting malformed path")
			return service.NewResponse(http.StatusBadRequest, nil)
		}

		svc, ok := c.table.Resolve(method, req.Path)
		if !ok {
			logger.Debug("no owner for path")
			return service.NewResponse(http.StatusNotFound, nil)
		}
		owner = svc.Name()

		policy := svc.AuthPolicy(req.Path)
		if svc.AuthAllEnabled() || policy.Required() {
			if err := auth.CheckRequest(policy, req.Header); err != nil {
				// Same log line for missing and wrong credentials.
				logger.Info("authentication failed", "service", owner)
				logger.Debug("authentication failure detail", "service", owner, "error", err)
				c.hub.Unauthorized(owner, method, req.Path, reqID)
				return service.NewResponse(http.StatusUnauthorized, nil,
					service.WithHeader("WWW-Authenticate", auth.Challenge(owner)))
			}
		}

		return c.invoke(ctx, svc, req, logger)
	}()

	metrics.RecordDispatch(owner, method, resp.StatusCode, time.Since(start))
	logger.Debug("request dispatched", "service", owner, "status", resp.StatusCode, "duration", time.Since(start))
	return resp
}

func (c *Controller) invoke(ctx context.Context, svc service.Service, req *service.Request, logger *slog.Logger) (resp *service.Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("service panicked",
				"service", svc.Name(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			resp = service.NewResponse(http.StatusInternalServerError, nil)
		}
	}()

	resp = svc.Handle(ctx, req)
	if resp == nil {
		logger.Error("service returned no response", "service", svc.Name())
		return service.NewResponse(http.StatusInternalServerError, nil)
	}
	return resp
}

// Start initialises every enabled service with the full list, then starts
// them in order. If a Start fails, services already started are stopped in
// reverse order and the error is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	for _, svc := range c.enabled {
		if err := svc.Initialise(append([]service.Service(nil), c.enabled...)); err != nil {
			return fmt.Errorf("initialise %s: %w", svc.Name(), err)
		}
	}

	c.started = c.started[:0]
	for _, svc := range c.enabled {
		if err := svc.Start(ctx); err != nil {
			c.logger.Error("service failed to start", "service", svc.Name(), "error", err)
			c.stopStartedLocked(ctx)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		c.started = append(c.started, svc)
		c.hub.ServiceStarted(svc.Name())
		c.logger.Info("service started", "service", svc.Name())
	}

	c.running = true
	return nil
}

// Stop stops started services in reverse order. Calling it again is a no-op.
// Every service is asked to stop even if an earlier one fails; the errors are
// joined.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false
	return c.stopStartedLocked(ctx)
}

// Running reports whether Start has completed and Stop has not been called.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) stopStartedLocked(ctx context.Context) error {
	var errs []error
	for i := len(c.started) - 1; i >= 0; i-- {
		svc := c.started[i]
		err := svc.Stop(ctx)
		if err != nil {
			c.logger.Error("service failed to stop", "service", svc.Name(), "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", svc.Name(), err))
		} else {
			c.logger.Info("service stopped", "service", svc.Name())
		}
		c.hub.ServiceStopped(svc.Name(), err)
	}
	c.started = c.started[:0]
	return errors.Join(errs...)
}
