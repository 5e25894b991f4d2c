package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mattjoyce/svcengine/internal/auth"
	"github.com/mattjoyce/svcengine/internal/log"
	"github.com/mattjoyce/svcengine/internal/router"
)

// Base implements the configuration-driven part of Service. It is immutable
// after NewBase, so its methods are safe for concurrent use.
type Base struct {
	reg    Registration
	byVerb map[string][]string
	logger *slog.Logger
}

// NewBase validates reg and builds the shared service behaviour.
func NewBase(reg Registration) (*Base, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	byVerb := make(map[string][]string)
	for _, p := range reg.SortedPaths() {
		for _, m := range reg.OwnedPaths[p].AllowedMethods {
			verb := strings.ToUpper(m)
			byVerb[verb] = append(byVerb[verb], p)
		}
	}

	return &Base{
		reg:    reg,
		byVerb: byVerb,
		logger: log.WithService(reg.Name),
	}, nil
}

func (b *Base) Name() string { return b.reg.Name }
func (b *Base) Kind() string { return b.reg.Kind }
func (b *Base) Enabled() bool { return b.reg.Enabled }
func (b *Base) AuthAllEnabled() bool { return b.reg.AuthAll() }
func (b *Base) Registration() Registration { return b.reg }
func (b *Base) Logger() *slog.Logger { return b.logger }

// OwnedPathsByMethod returns a copy of the method index.
func (b *Base) OwnedPathsByMethod() map[string][]string {
	out := make(map[string][]string, len(b.byVerb))
	for verb, paths := range b.byVerb {
		out[verb] = append([]string(nil), paths...)
	}
	return out
}

// FullMatchOnly reports the full_match_only flag of an owned path.
func (b *Base) FullMatchOnly(path string) bool {
	return b.reg.OwnedPaths[path].FullMatchOnly
}

// PathConfig returns the configuration of the nearest owned path at or above
// path, along with that owned path.
func (b *Base) PathConfig(path string) (string, PathConfig, bool) {
	var (
		owned string
		cfg   PathConfig
		found bool
	)
	router.Walk(path, func(candidate string, _ bool) bool {
		pc, ok := b.reg.OwnedPaths[candidate]
		if !ok {
			return true
		}
		owned, cfg, found = candidate, pc, true
		return false
	})
	return owned, cfg, found
}

// AuthPolicy returns the auth settings for path. An owned path with no auth
// settings of its own inherits those of its nearest configured ancestor.
func (b *Base) AuthPolicy(path string) auth.Policy {
	var policy auth.Policy
	router.Walk(path, func(candidate string, _ bool) bool {
		pc, ok := b.reg.OwnedPaths[candidate]
		if !ok || !hasAuthSettings(pc) {
			return true
		}
		policy = pc.Policy()
		return false
	})
	return policy
}

func hasAuthSettings(pc PathConfig) bool {
	return pc.AuthBasicEnabled != nil || pc.AuthUsername != "" || pc.AuthPassword != "" || pc.AuthPasswordHash != ""
}

// AllowedMethods lists the methods accepted at the nearest owned path.
func (b *Base) AllowedMethods(path string) []string {
	_, pc, ok := b.PathConfig(path)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(pc.AllowedMethods))
	for _, m := range pc.AllowedMethods {
		out = append(out, strings.ToUpper(m))
	}
	sort.Strings(out)
	return out
}

func (b *Base) Initialise([]Service) error { return nil }
func (b *Base) Start(context.Context) error { return nil }
func (b *Base) Stop(context.Context) error { return nil }

// StringSetting returns settings[key] as a string, or def when unset.
func (b *Base) StringSetting(key, def string) string {
	v, ok := b.reg.Settings[key]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// DurationSetting parses settings[key] as a Go duration ("5s"). Bare numbers are seconds.
func (b *Base) DurationSetting(key string, def time.Duration) (time.Duration, error) {
	v, ok := b.reg.Settings[key]
	if !ok || v == nil {
		return def, nil
	}
	switch d := v.(type) {
	case int:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(d))
		if err != nil {
			return 0, fmt.Errorf("%w: service %q: setting %s: %v", ErrInvalidRegistration, b.reg.Name, key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: service %q: setting %s: unsupported type %T", ErrInvalidRegistration, b.reg.Name, key, v)
	}
}

// StringSliceSetting returns settings[key] as a list of strings.
func (b *Base) StringSliceSetting(key string) []string {
	v, ok := b.reg.Settings[key]
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return strings.Fields(list)
	default:
		return []string{fmt.Sprint(v)}
	}
}
