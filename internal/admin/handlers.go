package admin

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/mattjoyce/svcengine/internal/worker"
)

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status          string                 `json:"status"`
	UptimeSeconds   int64                  `json:"uptime_seconds"`
	ServicesEnabled int                    `json:"services_enabled"`
	ServicesTotal   int                    `json:"services_total"`
	Workers         map[string]string      `json:"workers"`
	WorkerRuns      map[string]worker.Info `json:"worker_runs"`
	EventsDropped   uint64                 `json:"events_dropped"`
}

// ServiceInfo describes one service in GET /services. Credentials are never
// included.
type ServiceInfo struct {
	Name           string              `json:"name"`
	Kind           string              `json:"kind,omitempty"`
	Enabled        bool                `json:"enabled"`
	AuthAllEnabled bool                `json:"auth_all_enabled"`
	Paths          map[string][]string `json:"paths"`
	WorkerState    string              `json:"worker_state,omitempty"`
}

// ServicesResponse is returned by GET /services.
type ServicesResponse struct {
	Services []ServiceInfo `json:"services"`
}

type kinded interface {
	Kind() string
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Workers:       map[string]string{},
		WorkerRuns:    map[string]worker.Info{},
		EventsDropped: s.events.Dropped(),
	}

	for _, svc := range s.services.Services() {
		resp.ServicesTotal++
		if svc.Enabled() {
			resp.ServicesEnabled++
		}
		if ws, ok := svc.(WorkerStater); ok {
			resp.Workers[svc.Name()] = ws.WorkerState().String()
		}
		if wr, ok := svc.(WorkerReporter); ok {
			if info, ok := wr.WorkerInfo(); ok {
				resp.WorkerRuns[svc.Name()] = info
			}
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleServices handles GET /services.
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	svcs := s.services.Services()
	resp := ServicesResponse{Services: make([]ServiceInfo, 0, len(svcs))}

	for _, svc := range svcs {
		info := ServiceInfo{
			Name:           svc.Name(),
			Enabled:        svc.Enabled(),
			AuthAllEnabled: svc.AuthAllEnabled(),
			Paths:          svc.OwnedPathsByMethod(),
		}
		if k, ok := svc.(kinded); ok {
			info.Kind = k.Kind()
		}
		if ws, ok := svc.(WorkerStater); ok {
			info.WorkerState = ws.WorkerState().String()
		}
		resp.Services = append(resp.Services, info)
	}

	sort.Slice(resp.Services, func(i, j int) bool {
		return resp.Services[i].Name < resp.Services[j].Name
	})

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to encode admin response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
