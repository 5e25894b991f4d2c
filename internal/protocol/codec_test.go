package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestEncodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		id      uint64
		payload any
		want    string
		wantErr bool
	}{
		{name: "string payload", id: 1, payload: "ping", want: `{"id":1,"payload":"ping"}` + "\n"},
		{name: "object payload", id: 7, payload: map[string]any{"n": 3}, want: `{"id":7,"payload":{"n":3}}` + "\n"},
		{name: "nil payload", id: 2, payload: nil, want: `{"id":2}` + "\n"},
		{name: "zero id", id: 0, payload: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := NewEnvelope(tt.id, tt.payload)
			if err != nil {
				t.Fatalf("NewEnvelope() error = %v", err)
			}

			var buf bytes.Buffer
			err = NewEncoder(&buf).Encode(env)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewEnvelopeUnmarshalable(t *testing.T) {
	if _, err := NewEnvelope(1, make(chan int)); err == nil {
		t.Fatal("expected error for channel payload")
	}
}

func TestDecodeStream(t *testing.T) {
	input := `{"id":1,"payload":"a"}
{"id":2,"payload":{"value":42}}
{"id":3,"error":"boom"}
`
	dec := NewDecoder(strings.NewReader(input))

	first, err := dec.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	v, err := first.Value()
	if err != nil || v != "a" {
		t.Fatalf("first.Value() = %v, %v", v, err)
	}

	second, err := dec.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	v, err = second.Value()
	if err != nil {
		t.Fatalf("second.Value() error = %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["value"] != float64(42) {
		t.Fatalf("second.Value() = %#v", v)
	}

	third, err := dec.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if third.Error != "boom" {
		t.Errorf("third.Error = %q, want boom", third.Error)
	}
	if v, _ := third.Value(); v != nil {
		t.Errorf("third.Value() = %v, want nil", v)
	}

	if _, err := dec.Decode(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing id", `{"payload":"x"}`},
		{"unknown field", `{"id":1,"extra":true}`},
		{"not json", `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDecoder(strings.NewReader(tt.input)).Decode(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
