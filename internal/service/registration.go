package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattjoyce/svcengine/internal/auth"
	"github.com/mattjoyce/svcengine/internal/router"
)

// ErrInvalidRegistration is wrapped by every registration validation failure.
var ErrInvalidRegistration = errors.New("invalid service registration")

// Methods a service may declare.
var knownMethods = map[string]struct{}{
	"GET":     {},
	"HEAD":    {},
	"POST":    {},
	"PUT":     {},
	"PATCH":   {},
	"DELETE":  {},
	"OPTIONS": {},
}

// Worker defaults.
const (
	DefaultRequestTimeout = 2 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultGracePeriod    = 2 * time.Second
)

// Registration is the configuration record of one service.
type Registration struct {
	Name           string                `yaml:"name"`
	Kind           string                `yaml:"kind"`
	Enabled        bool                  `yaml:"enabled"`
	OwnedPaths     map[string]PathConfig `yaml:"owned_paths"`
	AuthAllEnabled *bool                 `yaml:"auth_all_enabled,omitempty"`
	Settings       map[string]any        `yaml:"settings,omitempty"`
	Worker         WorkerConfig          `yaml:"worker,omitempty"`
}

// PathConfig is the per-path part of a registration.
type PathConfig struct {
	AllowedMethods   []string `yaml:"allowed_methods"`
	FullMatchOnly    bool     `yaml:"full_match_only"`
	AuthBasicEnabled *bool    `yaml:"auth_basic_enabled,omitempty"`
	AuthUsername     string   `yaml:"auth_username,omitempty"`
	AuthPassword     string   `yaml:"auth_password,omitempty"`
	AuthPasswordHash string   `yaml:"auth_password_hash,omitempty"`
}

// Policy converts the auth fields into an auth.Policy.
func (p PathConfig) Policy() auth.Policy {
	return auth.Policy{
		Basic:        p.AuthBasicEnabled,
		Username:     p.AuthUsername,
		Password:     p.AuthPassword,
		PasswordHash: p.AuthPasswordHash,
	}
}

// WorkerConfig tunes a worker-backed service. Zero values take the defaults.
type WorkerConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval,omitempty"`
	GracePeriod    time.Duration `yaml:"grace_period,omitempty"`
}

// WithDefaults fills unset fields.
func (w WorkerConfig) WithDefaults() WorkerConfig {
	if w.RequestTimeout <= 0 {
		w.RequestTimeout = DefaultRequestTimeout
	}
	if w.PollInterval <= 0 {
		w.PollInterval = DefaultPollInterval
	}
	if w.GracePeriod <= 0 {
		w.GracePeriod = DefaultGracePeriod
	}
	return w
}

// AuthAll reports the effective auth_all_enabled value (default true).
func (r Registration) AuthAll() bool {
	if r.AuthAllEnabled == nil {
		return true
	}
	return *r.AuthAllEnabled
}

// SortedPaths returns the owned paths in lexical order.
func (r Registration) SortedPaths() []string {
	out := make([]string, 0, len(r.OwnedPaths))
	for p := range r.OwnedPaths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Validate checks the registration for errors that must stop startup.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRegistration)
	}
	if len(r.OwnedPaths) == 0 {
		return fmt.Errorf("%w: service %q: owned_paths is empty", ErrInvalidRegistration, r.Name)
	}

	for _, p := range r.SortedPaths() {
		pc := r.OwnedPaths[p]
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: service %q: path %q must be absolute", ErrInvalidRegistration, r.Name, p)
		}
		if router.HasDoubleSlash(p) {
			return fmt.Errorf("%w: service %q: path %q contains an empty segment", ErrInvalidRegistration, r.Name, p)
		}
		if len(pc.AllowedMethods) == 0 {
			return fmt.Errorf("%w: service %q: path %q has no allowed_methods", ErrInvalidRegistration, r.Name, p)
		}
		for _, m := range pc.AllowedMethods {
			if _, ok := knownMethods[strings.ToUpper(m)]; !ok {
				return fmt.Errorf("%w: service %q: path %q: unknown method %q", ErrInvalidRegistration, r.Name, p, m)
			}
		}
		hasSecret := pc.AuthPassword != "" || pc.AuthPasswordHash != ""
		if pc.AuthUsername != "" && !hasSecret {
			return fmt.Errorf("%w: service %q: path %q: auth_username without auth_password", ErrInvalidRegistration, r.Name, p)
		}
		if pc.AuthUsername == "" && hasSecret {
			return fmt.Errorf("%w: service %q: path %q: auth_password without auth_username", ErrInvalidRegistration, r.Name, p)
		}
		if pc.AuthPassword != "" && pc.AuthPasswordHash != "" {
			return fmt.Errorf("%w: service %q: path %q: set auth_password or auth_password_hash, not both", ErrInvalidRegistration, r.Name, p)
		}
	}

	if r.Worker.RequestTimeout < 0 || r.Worker.PollInterval < 0 || r.Worker.GracePeriod < 0 {
		return fmt.Errorf("%w: service %q: worker durations must not be negative", ErrInvalidRegistration, r.Name)
	}
	return nil
}
