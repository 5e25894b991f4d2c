package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/mattjoyce/svcengine/internal/service"
	"github.com/mattjoyce/svcengine/internal/worker"
)

// KindExec forwards requests to a long-lived child process.
const KindExec = "exec"

// Exec is a worker-backed service whose task is a child process speaking
// newline-delimited JSON. Each request is sent as an ExecRequest; the reply
// is either an ExecReply object, a string, or any other JSON value.
type Exec struct {
	*service.Backed
}

// ExecRequest is what the child receives as the envelope payload.
type ExecRequest struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	PayloadType string `json:"payload_type,omitempty"`
	Payload     any    `json:"payload,omitempty"`
}

// ExecReply is the structured reply a child may send back.
type ExecReply struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
}

func NewExec(base *service.Base, deps Deps) (service.Service, error) {
	command := base.StringSetting("command", "")
	if command == "" {
		return nil, fmt.Errorf("%w: service %q: settings.command is required", service.ErrInvalidRegistration, base.Name())
	}
	replyTimeout, err := base.DurationSetting("reply_timeout", 0)
	if err != nil {
		return nil, err
	}
	restartDelay, err := base.DurationSetting("restart_delay", 0)
	if err != nil {
		return nil, err
	}

	cfg := worker.ProcessConfig{
		Command:      command,
		Args:         base.StringSliceSetting("args"),
		Dir:          base.StringSetting("dir", ""),
		ReplyTimeout: replyTimeout,
		RestartDelay: restartDelay,
		Logger:       base.Logger(),
	}
	if extra := base.StringSliceSetting("env"); len(extra) > 0 {
		cfg.Env = append(os.Environ(), extra...)
	}

	newTask := func() (worker.Task, error) {
		return worker.NewProcessTask(cfg)
	}
	return &Exec{Backed: service.NewBacked(base, newTask, deps.backedOptions()...)}, nil
}

func (e *Exec) Handle(ctx context.Context, req *service.Request) *service.Response {
	payload := req.Payload
	if raw, ok := payload.([]byte); ok {
		payload = string(raw)
	}

	reply, ok := e.Request(ctx, ExecRequest{
		Method:      req.Method,
		Path:        req.Path,
		PayloadType: req.PayloadType,
		Payload:     payload,
	})
	if !ok {
		return service.NewResponse(http.StatusServiceUnavailable, nil)
	}
	if reply == nil {
		return service.NewResponse(http.StatusBadGateway, nil)
	}
	return e.toResponse(reply)
}

func (e *Exec) toResponse(reply any) *service.Response {
	switch v := reply.(type) {
	case string:
		return service.Text(http.StatusOK, v)
	case map[string]any:
		if r, ok := asExecReply(v); ok {
			var opts []service.ResponseOption
			if r.ContentType != "" {
				opts = append(opts, service.WithContentType(r.ContentType))
			}
			return service.Text(r.Status, r.Body, opts...)
		}
	}

	body, err := json.Marshal(reply)
	if err != nil {
		e.Logger().Error("cannot encode child reply", "error", err)
		return service.NewResponse(http.StatusInternalServerError, nil)
	}
	return service.NewResponse(http.StatusOK, body, service.WithContentType("application/json"))
}

// asExecReply recognises a decoded object carrying a numeric status.
func asExecReply(m map[string]any) (ExecReply, bool) {
	status, ok := m["status"].(float64)
	if !ok || status < 100 || status > 999 {
		return ExecReply{}, false
	}
	r := ExecReply{Status: int(status)}
	if body, ok := m["body"].(string); ok {
		r.Body = body
	}
	if ct, ok := m["content_type"].(string); ok {
		r.ContentType = ct
	}
	return r, true
}
