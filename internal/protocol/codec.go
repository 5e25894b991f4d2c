package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Encoder writes newline-delimited envelopes. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes env followed by a newline.
func (e *Encoder) Encode(env *Envelope) error {
	if env.ID == 0 {
		return fmt.Errorf("envelope id must be positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(env); err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	return nil
}

// Decoder reads envelopes from a stream.
type Decoder struct {
	dec *json.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields() // Strict parsing
	return &Decoder{dec: dec}
}

// Decode reads the next envelope. io.EOF is returned unwrapped at end of stream.
func (d *Decoder) Decode() (*Envelope, error) {
	var env Envelope
	if err := d.dec.Decode(&env); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.ID == 0 {
		return nil, fmt.Errorf("envelope missing required field: id")
	}
	return &env, nil
}
