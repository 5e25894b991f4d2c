package events

// Event types published by the engine.
const (
	TypeServiceStarted       = "service.started"
	TypeServiceStopped       = "service.stopped"
	TypeWorkerState          = "worker.state"
	TypeDispatchUnauthorized = "dispatch.unauthorized"
)

type ServicePayload struct {
	Service string `json:"service"`
	Error   string `json:"error,omitempty"`
}

type WorkerStatePayload struct {
	Service string `json:"service"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type UnauthorizedPayload struct {
	Service   string `json:"service"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Hub) ServiceStarted(service string) {
	h.Publish(TypeServiceStarted, ServicePayload{Service: service})
}

func (h *Hub) ServiceStopped(service string, err error) {
	p := ServicePayload{Service: service}
	if err != nil {
		p.Error = err.Error()
	}
	h.Publish(TypeServiceStopped, p)
}

func (h *Hub) WorkerState(service, from, to string) {
	h.Publish(TypeWorkerState, WorkerStatePayload{Service: service, From: from, To: to})
}

func (h *Hub) Unauthorized(service, method, path, requestID string) {
	h.Publish(TypeDispatchUnauthorized, UnauthorizedPayload{
		Service:   service,
		Method:    method,
		Path:      path,
		RequestID: requestID,
	})
}
