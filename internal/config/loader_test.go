package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/svcengine/internal/router"
	"github.com/mattjoyce/svcengine/internal/service"
)

const rootService = `
services:
  - name: Root
    kind: root
    enabled: true
    owned_paths:
      /:
        allowed_methods: [GET]
        full_match_only: true
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults applied",
			yaml: rootService,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.Name != "svcengine" {
					t.Errorf("service.name = %q", cfg.Service.Name)
				}
				if cfg.Listen != ":9090" {
					t.Errorf("listen = %q, want :9090", cfg.Listen)
				}
				if cfg.MaxBodyBytes != 1<<20 {
					t.Errorf("max_body_bytes = %d", cfg.MaxBodyBytes)
				}
				if cfg.Ownership.OnConflict != "reject" {
					t.Errorf("ownership.on_conflict = %q", cfg.Ownership.OnConflict)
				}
				if cfg.Admin.Enabled {
					t.Error("admin should be disabled by default")
				}
				if len(cfg.Services) != 1 || cfg.Services[0].Name != "Root" {
					t.Fatalf("unexpected services %+v", cfg.Services)
				}
				if !cfg.Services[0].OwnedPaths["/"].FullMatchOnly {
					t.Error("full_match_only not parsed")
				}
			},
		},
		{
			name: "explicit values and worker durations",
			yaml: `
service:
  name: edge
  log_level: debug
  log_format: text
listen: ":8080"
max_body_bytes: 2048
ownership:
  on_conflict: last_wins
admin:
  enabled: true
  listen: "127.0.0.1:9999"
services:
  - name: Random
    kind: random
    enabled: true
    owned_paths:
      /random:
        allowed_methods: [get]
    settings:
      interval: 500ms
    worker:
      request_timeout: 750ms
      poll_interval: 100ms
      grace_period: 1s
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Listen != ":8080" || cfg.MaxBodyBytes != 2048 {
					t.Errorf("listen/max_body_bytes not parsed: %q %d", cfg.Listen, cfg.MaxBodyBytes)
				}
				policy, err := cfg.ConflictPolicy()
				if err != nil || policy != router.ConflictLastWins {
					t.Errorf("ConflictPolicy() = %v, %v", policy, err)
				}
				if !cfg.Admin.Enabled || cfg.Admin.Listen != "127.0.0.1:9999" {
					t.Errorf("admin not parsed: %+v", cfg.Admin)
				}
				w := cfg.Services[0].Worker
				if w.RequestTimeout != 750*time.Millisecond || w.PollInterval != 100*time.Millisecond || w.GracePeriod != time.Second {
					t.Errorf("worker durations not parsed: %+v", w)
				}
				if cfg.Services[0].Settings["interval"] != "500ms" {
					t.Errorf("settings not parsed: %v", cfg.Services[0].Settings)
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
services:
  - name: Secure
    enabled: true
    owned_paths:
      /secure:
        allowed_methods: [GET]
        auth_username: ${SVC_USER}
        auth_password: ${SVC_PASS}
`,
			env: map[string]string{"SVC_USER": "admin", "SVC_PASS": "secret"},
			checkFn: func(t *testing.T, cfg *Config) {
				pc := cfg.Services[0].OwnedPaths["/secure"]
				if pc.AuthUsername != "admin" || pc.AuthPassword != "secret" {
					t.Errorf("credentials not interpolated: %+v", pc)
				}
			},
		},
		{
			name: "unresolved env var",
			yaml: `
services:
  - name: Secure
    enabled: true
    owned_paths:
      /secure:
        allowed_methods: [GET]
        auth_username: admin
        auth_password: ${SVC_MISSING_PASSWORD}
`,
			wantErr: "SVC_MISSING_PASSWORD",
		},
		{
			name: "unresolved env var in settings",
			yaml: `
services:
  - name: List
    enabled: true
    owned_paths:
      /list/:
        allowed_methods: [GET]
    settings:
      directory: ${SVC_MISSING_DIR}
`,
			wantErr: "SVC_MISSING_DIR",
		},
		{
			name:    "invalid log level",
			yaml:    "service:\n  log_level: chatty\n" + rootService,
			wantErr: "log_level",
		},
		{
			name:    "invalid conflict policy",
			yaml:    "ownership:\n  on_conflict: first_wins\n" + rootService,
			wantErr: "on_conflict",
		},
		{
			name:    "admin on the main listener",
			yaml:    "listen: \":9090\"\nadmin:\n  enabled: true\n  listen: \":9090\"\n" + rootService,
			wantErr: "admin.listen",
		},
		{
			name: "duplicate service names",
			yaml: rootService + `
  - name: Root
    enabled: true
    owned_paths:
      /other:
        allowed_methods: [GET]
`,
			wantErr: "duplicate service name",
		},
		{
			name:    "malformed yaml",
			yaml:    "services: [",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() succeeded, want error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			tt.checkFn(t, cfg)
		})
	}
}

func TestLoadInvalidRegistration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
services:
  - name: Broken
    enabled: true
    owned_paths:
      /x:
        allowed_methods: [FETCH]
`)

	_, err := Load(path)
	if !errors.Is(err, service.ErrInvalidRegistration) {
		t.Fatalf("Load() error = %v, want ErrInvalidRegistration", err)
	}
}

func TestLoadDirectoryAndServicesDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
resource_dir: ./resources
pid_file: ./run/svcengine.pid
services_dir: services.d
`+rootService)
	writeFile(t, filepath.Join(dir, "services.d", "b-random.yaml"), `
name: Random
kind: random
enabled: true
owned_paths:
  /random:
    allowed_methods: [GET]
`)
	writeFile(t, filepath.Join(dir, "services.d", "a-list.yml"), `
name: List
kind: listdir
enabled: false
owned_paths:
  /list/:
    allowed_methods: [GET]
`)
	writeFile(t, filepath.Join(dir, "services.d", "README.md"), "ignored")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	var names []string
	for _, reg := range cfg.Services {
		names = append(names, reg.Name)
	}
	if strings.Join(names, ",") != "Root,List,Random" {
		t.Fatalf("services = %v, want Root,List,Random", names)
	}
	if len(cfg.SourceFiles) != 3 {
		t.Fatalf("SourceFiles = %v", cfg.SourceFiles)
	}
	if cfg.ResourceDir != filepath.Join(dir, "resources") {
		t.Errorf("resource_dir = %q, want it resolved against the config dir", cfg.ResourceDir)
	}
	if cfg.PIDFile != filepath.Join(dir, "run", "svcengine.pid") {
		t.Errorf("pid_file = %q", cfg.PIDFile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() succeeded for a missing file")
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load() succeeded for a directory without config.yaml")
	}
}

func TestDiscoverUsesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, rootService)
	t.Setenv("SVCENGINE_CONFIG", path)

	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if got != path {
		t.Fatalf("Discover() = %q, want %q", got, path)
	}
}

func TestInterpolateEnvLeavesUnknown(t *testing.T) {
	t.Setenv("SVC_KNOWN", "yes")
	got := interpolateEnv("${SVC_KNOWN} ${SVC_UNKNOWN_VAR} $PLAIN")
	if got != "yes ${SVC_UNKNOWN_VAR} $PLAIN" {
		t.Fatalf("interpolateEnv() = %q", got)
	}
}
