package config

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/svcengine/internal/router"
)

// ConflictPolicy returns the parsed ownership.on_conflict value.
func (c *Config) ConflictPolicy() (router.ConflictPolicy, error) {
	return router.ParseConflictPolicy(c.Ownership.OnConflict)
}

// validate performs validation on the assembled configuration. Registration
// rules live in service.Registration.Validate; this adds the cross-service
// and process-level checks.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Service.LogFormat)] {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must not be negative")
	}

	if _, err := cfg.ConflictPolicy(); err != nil {
		return fmt.Errorf("ownership.on_conflict: %w", err)
	}

	if cfg.Admin.Enabled && cfg.Admin.Listen == cfg.Listen {
		return fmt.Errorf("admin.listen must differ from listen (%s)", cfg.Listen)
	}

	seen := make(map[string]bool, len(cfg.Services))
	for i, reg := range cfg.Services {
		if err := reg.Validate(); err != nil {
			return fmt.Errorf("services[%d]: %w", i, err)
		}
		if seen[reg.Name] {
			return fmt.Errorf("services[%d]: duplicate service name %q", i, reg.Name)
		}
		seen[reg.Name] = true

		for _, p := range reg.SortedPaths() {
			pc := reg.OwnedPaths[p]
			for field, v := range map[string]string{
				"auth_username":      pc.AuthUsername,
				"auth_password":      pc.AuthPassword,
				"auth_password_hash": pc.AuthPasswordHash,
			} {
				if name := unresolvedEnvVar(v); name != "" {
					return fmt.Errorf("service %q: path %q: %s: environment variable ${%s} is not set",
						reg.Name, p, field, name)
				}
			}
		}
		if reg.Settings != nil {
			if err := checkUnresolvedEnvVars(reg.Settings, reg.Name); err != nil {
				return err
			}
		}
	}

	return nil
}

func unresolvedEnvVar(v string) string {
	if m := envVarPattern.FindStringSubmatch(v); len(m) > 1 {
		return m[1]
	}
	return ""
}

// checkUnresolvedEnvVars recursively checks for ${VAR} placeholders in settings.
func checkUnresolvedEnvVars(data map[string]any, serviceName string) error {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if name := unresolvedEnvVar(v); name != "" {
				return fmt.Errorf("service %q: settings.%s: environment variable ${%s} is not set", serviceName, key, name)
			}
		case map[string]any:
			if err := checkUnresolvedEnvVars(v, serviceName); err != nil {
				return err
			}
		}
	}
	return nil
}
