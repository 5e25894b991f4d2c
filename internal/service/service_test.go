package service

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/svcengine/internal/auth"
	"github.com/mattjoyce/svcengine/internal/worker"
)

func boolPtr(b bool) *bool { return &b }

func validRegistration() Registration {
	return Registration{
		Name:    "List Dir",
		Kind:    "listdir",
		Enabled: true,
		OwnedPaths: map[string]PathConfig{
			"/list/": {
				AllowedMethods: []string{"get", "POST"},
				AuthUsername:   "admin",
				AuthPassword:   "secret",
			},
			"/list/public": {
				AllowedMethods:   []string{"GET"},
				FullMatchOnly:    true,
				AuthBasicEnabled: boolPtr(false),
			},
			"/list/private/": {
				AllowedMethods: []string{"GET"},
			},
		},
	}
}

func TestNewResponseAutoBody(t *testing.T) {
	resp := NewResponse(http.StatusNotFound, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "<html>Not Found - Nothing matches the given URI</html>", string(resp.Body))
	assert.Equal(t, "text/html", resp.ContentType)

	resp = NewResponse(http.StatusUnauthorized, nil, WithoutHTMLWrapper())
	assert.Equal(t, "Unauthorized - No permission -- see authorization schemes", string(resp.Body))
}

func TestNewResponseKeepsBody(t *testing.T) {
	resp := NewResponse(http.StatusOK, []byte(`{"ok":true}`), WithContentType("application/json"), WithHeader("X-Test", "1"))
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType)
	assert.Equal(t, map[string]string{"X-Test": "1"}, resp.Headers)

	ok := Text(http.StatusOK, "")
	assert.Equal(t, "<html></html>", string(ok.Body), "2xx bodies are never auto-generated")
}

func TestStatusSummaryUnknown(t *testing.T) {
	assert.Equal(t, "I'm a teapot", StatusSummary(http.StatusTeapot))
	assert.Equal(t, "Unknown Status", StatusSummary(599))
}

func TestRegistrationValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
		want   string
	}{
		{"missing name", func(r *Registration) { r.Name = " " }, "name is required"},
		{"no paths", func(r *Registration) { r.OwnedPaths = nil }, "owned_paths is empty"},
		{"relative path", func(r *Registration) {
			r.OwnedPaths["rel"] = PathConfig{AllowedMethods: []string{"GET"}}
		}, "must be absolute"},
		{"double slash", func(r *Registration) {
			r.OwnedPaths["/a//b"] = PathConfig{AllowedMethods: []string{"GET"}}
		}, "empty segment"},
		{"no methods", func(r *Registration) {
			r.OwnedPaths["/x"] = PathConfig{}
		}, "no allowed_methods"},
		{"unknown method", func(r *Registration) {
			r.OwnedPaths["/x"] = PathConfig{AllowedMethods: []string{"FETCH"}}
		}, "unknown method"},
		{"username without password", func(r *Registration) {
			r.OwnedPaths["/x"] = PathConfig{AllowedMethods: []string{"GET"}, AuthUsername: "u"}
		}, "auth_username without auth_password"},
		{"password without username", func(r *Registration) {
			r.OwnedPaths["/x"] = PathConfig{AllowedMethods: []string{"GET"}, AuthPassword: "p"}
		}, "auth_password without auth_username"},
		{"password and hash", func(r *Registration) {
			r.OwnedPaths["/x"] = PathConfig{AllowedMethods: []string{"GET"}, AuthUsername: "u", AuthPassword: "p", AuthPasswordHash: "h"}
		}, "not both"},
		{"negative duration", func(r *Registration) { r.Worker.GracePeriod = -time.Second }, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := validRegistration()
			tt.mutate(&reg)
			err := reg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRegistration))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, validRegistration().Validate())
}

func TestRegistrationAuthAllDefault(t *testing.T) {
	reg := validRegistration()
	assert.True(t, reg.AuthAll())
	reg.AuthAllEnabled = boolPtr(false)
	assert.False(t, reg.AuthAll())
}

func TestWorkerConfigDefaults(t *testing.T) {
	cfg := WorkerConfig{PollInterval: 10 * time.Millisecond}.WithDefaults()
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, DefaultGracePeriod, cfg.GracePeriod)
}

func TestBaseOwnedPathsByMethod(t *testing.T) {
	b, err := NewBase(validRegistration())
	require.NoError(t, err)

	got := b.OwnedPathsByMethod()
	assert.Equal(t, []string{"/list/", "/list/private/", "/list/public"}, got["GET"])
	assert.Equal(t, []string{"/list/"}, got["POST"])

	// Returned map is a copy.
	got["GET"][0] = "/mutated"
	assert.Equal(t, "/list/", b.OwnedPathsByMethod()["GET"][0])

	assert.True(t, b.FullMatchOnly("/list/public"))
	assert.False(t, b.FullMatchOnly("/list/"))
	assert.Equal(t, []string{"GET", "POST"}, b.AllowedMethods("/list/x"))
}

func TestBasePathConfigHierarchy(t *testing.T) {
	b, err := NewBase(validRegistration())
	require.NoError(t, err)

	owned, _, ok := b.PathConfig("/list/a/b")
	require.True(t, ok)
	assert.Equal(t, "/list/", owned)

	owned, _, ok = b.PathConfig("/list/private/file")
	require.True(t, ok)
	assert.Equal(t, "/list/private/", owned)

	_, _, ok = b.PathConfig("/elsewhere")
	assert.False(t, ok)
}

func TestBaseAuthPolicyInheritance(t *testing.T) {
	b, err := NewBase(validRegistration())
	require.NoError(t, err)

	// Child without auth settings inherits the ancestor's credentials.
	p := b.AuthPolicy("/list/private/file")
	assert.True(t, p.Required())
	assert.Equal(t, "admin", p.Username)

	// Explicitly disabled child.
	assert.False(t, b.AuthPolicy("/list/public").Required())

	// Path owned by nobody.
	assert.Equal(t, auth.Policy{}, b.AuthPolicy("/nope"))
}

func TestBaseSettings(t *testing.T) {
	reg := validRegistration()
	reg.Settings = map[string]any{
		"dir":      "/tmp",
		"interval": "250ms",
		"seconds":  2,
		"args":     []any{"-c", 1},
		"bad":      "x",
	}
	b, err := NewBase(reg)
	require.NoError(t, err)

	assert.Equal(t, "/tmp", b.StringSetting("dir", "."))
	assert.Equal(t, ".", b.StringSetting("missing", "."))

	d, err := b.DurationSetting("interval", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
	d, err = b.DurationSetting("seconds", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
	_, err = b.DurationSetting("bad", time.Second)
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	assert.Equal(t, []string{"-c", "1"}, b.StringSliceSetting("args"))
	assert.Nil(t, b.StringSliceSetting("missing"))
}

type echoTask struct {
	worker.NoWork
}

func (echoTask) HandleRequest(_ context.Context, payload any) any { return payload }

func TestBackedLifecycle(t *testing.T) {
	reg := validRegistration()
	reg.Worker = WorkerConfig{
		RequestTimeout: time.Second,
		PollInterval:   20 * time.Millisecond,
		GracePeriod:    200 * time.Millisecond,
	}
	base, err := NewBase(reg)
	require.NoError(t, err)

	var transitions atomic.Int32
	var made atomic.Int32
	b := NewBacked(base, func() (worker.Task, error) {
		made.Add(1)
		return echoTask{}, nil
	}, WithStateObserver(func(service string, _, _ worker.State) {
		assert.Equal(t, "List Dir", service)
		transitions.Add(1)
	}))

	assert.Equal(t, worker.Created, b.WorkerState())
	_, ok := b.WorkerInfo()
	assert.False(t, ok)

	require.NoError(t, b.Start(context.Background()))
	assert.Equal(t, worker.Running, b.WorkerState())
	assert.ErrorIs(t, b.Start(context.Background()), worker.ErrAlreadyStarted)

	reply, ok := b.Request(context.Background(), "ping")
	require.True(t, ok)
	assert.Equal(t, "ping", reply)

	info, ok := b.WorkerInfo()
	require.True(t, ok)
	assert.Equal(t, "running", info.State)
	assert.Equal(t, uint64(1), info.Handled)
	firstRun := info.RunID

	require.NoError(t, b.Stop(context.Background()))
	assert.Equal(t, worker.Stopped, b.WorkerState())
	require.NoError(t, b.Stop(context.Background()))

	// Restart uses a new worker and keeps counting transaction ids.
	require.NoError(t, b.Start(context.Background()))
	_, ok = b.Request(context.Background(), "pong")
	require.True(t, ok)
	assert.Equal(t, uint64(2), b.LastTransactionID())
	info, _ = b.WorkerInfo()
	assert.NotEqual(t, firstRun, info.RunID)
	require.NoError(t, b.Stop(context.Background()))

	assert.Equal(t, int32(2), made.Load())
	assert.Equal(t, int32(6), transitions.Load())
}

func TestBackedTaskFactoryError(t *testing.T) {
	base, err := NewBase(validRegistration())
	require.NoError(t, err)

	b := NewBacked(base, func() (worker.Task, error) {
		return nil, errors.New("no binary")
	})
	err = b.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no binary")

	_, ok := b.Request(context.Background(), "x")
	assert.False(t, ok)
	assert.NoError(t, b.Stop(context.Background()))
}
