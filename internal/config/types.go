package config

import (
	"github.com/mattjoyce/svcengine/internal/service"
)

// Config represents the complete svcengine configuration.
type Config struct {
	Service      ServiceConfig          `yaml:"service"`
	Listen       string                 `yaml:"listen"`
	ResourceDir  string                 `yaml:"resource_dir,omitempty"`
	PIDFile      string                 `yaml:"pid_file,omitempty"`
	MaxBodyBytes int64                  `yaml:"max_body_bytes,omitempty"`
	Ownership    OwnershipConfig        `yaml:"ownership"`
	Admin        AdminConfig            `yaml:"admin"`
	ServicesDir  string                 `yaml:"services_dir,omitempty"`
	Services     []service.Registration `yaml:"services"`

	// SourceFiles lists every file the config was assembled from, root first.
	SourceFiles []string `yaml:"-"`
	// ConfigDir is the directory of the root config file.
	ConfigDir string `yaml:"-"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// OwnershipConfig controls what happens when two services claim the same
// method and path.
type OwnershipConfig struct {
	OnConflict string `yaml:"on_conflict"`
}

// AdminConfig defines the admin listener (/healthz, /metrics, /events).
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// ChecksumManifest is the on-disk form of .checksums.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with the default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "svcengine",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Listen:       ":9090",
		MaxBodyBytes: 1 << 20,
		Ownership: OwnershipConfig{
			OnConflict: "reject",
		},
		Admin: AdminConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9091",
		},
	}
}

// Redacted returns a copy with clear-text passwords masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Services = make([]service.Registration, len(c.Services))
	for i, reg := range c.Services {
		paths := make(map[string]service.PathConfig, len(reg.OwnedPaths))
		for p, pc := range reg.OwnedPaths {
			if pc.AuthPassword != "" {
				pc.AuthPassword = "********"
			}
			paths[p] = pc
		}
		reg.OwnedPaths = paths
		out.Services[i] = reg
	}
	return &out
}

// FindService returns the registration called name.
func (c *Config) FindService(name string) (service.Registration, bool) {
	for _, reg := range c.Services {
		if reg.Name == name {
			return reg, true
		}
	}
	return service.Registration{}, false
}
