package service

import (
	"context"

	"github.com/mattjoyce/svcengine/internal/auth"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks github.com/mattjoyce/svcengine/internal/service Service

// Service is a unit that owns URL paths and answers requests for them.
//
// There are two variants. Synchronous services embed *Base and answer inline
// in Handle. Worker-backed services embed *Backed and forward work to their
// background worker through Backed.Request.
type Service interface {
	Name() string
	Enabled() bool
	// OwnedPathsByMethod returns, per upper-case HTTP method, the owned paths.
	OwnedPathsByMethod() map[string][]string
	// FullMatchOnly reports whether the owned path may only match exactly.
	FullMatchOnly(path string) bool
	// AuthAllEnabled reports whether the auth gate runs for this service at all.
	AuthAllEnabled() bool
	// AuthPolicy returns the effective auth policy for a request path.
	AuthPolicy(path string) auth.Policy

	// Initialise is called once with every enabled service, before any Start.
	Initialise(all []Service) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Handle answers one request. It must not return nil.
	Handle(ctx context.Context, req *Request) *Response
}
