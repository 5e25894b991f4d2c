package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/svcengine/internal/service"
)

// DefaultConfigName is looked up when a directory is given instead of a file.
const DefaultConfigName = "config.yaml"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, verifies and validates the configuration at configPath.
// configPath may be a file or a directory holding config.yaml. Registrations
// found in services_dir are appended after the inline services.
func Load(configPath string) (*Config, error) {
	absPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	files, err := DiscoverFiles(absPath)
	if err != nil {
		return nil, err
	}

	configDir := filepath.Dir(absPath)
	if err := verifyIntegrity(configDir, files); err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.ConfigDir = configDir
	cfg.SourceFiles = files

	for _, path := range files[1:] {
		reg, err := loadServiceFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Services = append(cfg.Services, reg)
	}

	cfg = applyConfigDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Discover finds the config file by checking standard locations.
// Priority order: $SVCENGINE_CONFIG, ./config.yaml, ~/.config/svcengine/config.yaml,
// /etc/svcengine/config.yaml.
func Discover() (string, error) {
	if p := os.Getenv("SVCENGINE_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	candidates := []string{DefaultConfigName}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "svcengine", DefaultConfigName))
	}
	candidates = append(candidates, filepath.Join("/etc", "svcengine", DefaultConfigName))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf("no config found (checked: $SVCENGINE_CONFIG, %s)", strings.Join(candidates, ", "))
}

// DiscoverFiles returns the absolute paths of every file the configuration
// is assembled from: the root file first, then services_dir/*.yaml sorted.
// Nothing is verified, so `config lock` can run on edited files.
func DiscoverFiles(configPath string) ([]string, error) {
	absPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}

	files := []string{absPath}
	if cfg.ServicesDir == "" {
		return files, nil
	}

	dir := cfg.ServicesDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(absPath), dir)
	}
	extra, err := walkYAMLDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to walk services_dir %s: %w", dir, err)
	}
	return append(files, extra...), nil
}

func resolveConfigPath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, DefaultConfigName)
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but %s not found: %s", DefaultConfigName, absPath)
		}
	}
	return absPath, nil
}

// verifyIntegrity checks files against .checksums when the manifest exists.
// Without a manifest there is nothing to verify against.
func verifyIntegrity(configDir string, files []string) error {
	manifest, err := LoadChecksums(configDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return VerifyFiles(configDir, manifest, files)
}

// loadConfigFile loads and parses the root config file.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}

	return &cfg, nil
}

// loadServiceFile parses one services_dir file holding a single registration.
func loadServiceFile(path string) (service.Registration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return service.Registration{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var reg service.Registration
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &reg); err != nil {
		return service.Registration{}, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}
	return reg, nil
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Listen == "" {
		cfg.Listen = defaults.Listen
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.Ownership.OnConflict == "" {
		cfg.Ownership.OnConflict = defaults.Ownership.OnConflict
	}
	if cfg.Admin.Listen == "" {
		cfg.Admin.Listen = defaults.Admin.Listen
	}

	if cfg.ResourceDir != "" && !filepath.IsAbs(cfg.ResourceDir) && cfg.ConfigDir != "" {
		cfg.ResourceDir = filepath.Join(cfg.ConfigDir, cfg.ResourceDir)
	}
	if cfg.PIDFile != "" && !filepath.IsAbs(cfg.PIDFile) && cfg.ConfigDir != "" {
		cfg.PIDFile = filepath.Join(cfg.ConfigDir, cfg.PIDFile)
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// Left in place; validation reports it.
		return match
	})
}

// walkYAMLDir returns sorted absolute paths of *.yaml and *.yml files in dir.
// Returns nil (not error) if the directory doesn't exist.
func walkYAMLDir(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			abs, err := filepath.Abs(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			files = append(files, abs)
		}
	}
	sort.Strings(files)
	return files, nil
}
