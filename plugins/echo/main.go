// Command echo is a minimal worker child for the exec service kind. It reads
// request envelopes on stdin and answers each with a structured reply that
// echoes the request back.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mattjoyce/svcengine/internal/protocol"
)

type request struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	PayloadType string `json:"payload_type,omitempty"`
	Payload     any    `json:"payload,omitempty"`
}

type reply struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
}

func main() {
	if err := serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "echo: %v\n", err)
		os.Exit(1)
	}
}

// serve answers envelopes until r is exhausted.
func serve(r io.Reader, w io.Writer) error {
	dec := protocol.NewDecoder(r)
	enc := protocol.NewEncoder(w)

	for {
		in, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		out, err := protocol.NewEnvelope(in.ID, handle(in))
		if err != nil {
			out = &protocol.Envelope{ID: in.ID, Error: err.Error()}
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
}

func handle(in *protocol.Envelope) reply {
	var req request
	if err := json.Unmarshal(in.Payload, &req); err != nil {
		return reply{Status: http.StatusBadRequest, Body: "invalid request: " + err.Error(), ContentType: "text/plain"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", req.Method, req.Path)
	switch p := req.Payload.(type) {
	case nil:
	case string:
		b.WriteString(p)
	default:
		data, _ := json.Marshal(p)
		b.Write(data)
	}
	return reply{Status: http.StatusOK, Body: b.String(), ContentType: "text/plain"}
}
