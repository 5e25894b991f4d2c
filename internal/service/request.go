package service

import "net/http"

// Payload types reported by the transport.
const (
	PayloadNone = ""
	PayloadJSON = "application/json"
	PayloadForm = "application/x-www-form-urlencoded"
)

// Request is a transport-neutral request handed to Service.Handle.
//
// Payload holds the decoded JSON value when PayloadType is application/json,
// url.Values for form bodies, and the raw []byte for anything else.
type Request struct {
	Method      string
	Path        string
	Header      http.Header
	PayloadType string
	Payload     any
}
