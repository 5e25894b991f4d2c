package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mattjoyce/svcengine/internal/protocol"
)

func TestServeEchoesEachEnvelope(t *testing.T) {
	in := strings.Join([]string{
		`{"id":1,"payload":{"method":"GET","path":"/echo"}}`,
		`{"id":2,"payload":{"method":"POST","path":"/echo/x","payload_type":"text/plain","payload":"hi"}}`,
		`{"id":3,"payload":{"method":"POST","path":"/echo","payload_type":"application/json","payload":{"n":1}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := serve(strings.NewReader(in), &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	dec := protocol.NewDecoder(&out)
	want := []struct {
		id   uint64
		body string
	}{
		{1, "GET /echo\n"},
		{2, "POST /echo/x\nhi"},
		{3, "POST /echo\n{\"n\":1}"},
	}
	for _, w := range want {
		env, err := dec.Decode()
		if err != nil {
			t.Fatalf("decode reply %d: %v", w.id, err)
		}
		if env.ID != w.id {
			t.Fatalf("reply id = %d, want %d", env.ID, w.id)
		}
		var r reply
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			t.Fatalf("unmarshal reply: %v", err)
		}
		if r.Status != 200 || r.Body != w.body || r.ContentType != "text/plain" {
			t.Fatalf("reply %d = %+v, want body %q", w.id, r, w.body)
		}
	}
}

func TestServeRejectsBadPayload(t *testing.T) {
	var out bytes.Buffer
	if err := serve(strings.NewReader(`{"id":4,"payload":"not an object"}`+"\n"), &out); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !strings.Contains(out.String(), `"status":400`) {
		t.Fatalf("expected 400 reply, got %s", out.String())
	}
}

func TestServeStopsOnMalformedLine(t *testing.T) {
	var out bytes.Buffer
	if err := serve(strings.NewReader("nope\n"), &out); err == nil {
		t.Fatal("expected decode error")
	}
}
