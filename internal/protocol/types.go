package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is one line of the worker process protocol. The engine writes
// envelopes to the child's stdin and reads replies with the same id from its
// stdout, one JSON object per line.
type Envelope struct {
	ID      uint64          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// Error is set by the child instead of Payload when it could not answer.
	Error string `json:"error,omitempty"`
}

// NewEnvelope marshals payload into an envelope with the given id.
func NewEnvelope(id uint64, payload any) (*Envelope, error) {
	env := &Envelope{ID: id}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	env.Payload = raw
	return env, nil
}

// Value unmarshals the payload into a generic value. An empty payload is nil.
func (e *Envelope) Value() (any, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return v, nil
}
