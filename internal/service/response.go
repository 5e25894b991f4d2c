package service

import (
	"net/http"
)

// DefaultContentType is used when a response does not name one.
const DefaultContentType = "text/html"

// Response is what a service hands back to the transport. It is written verbatim.
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Headers     map[string]string
}

type responseOptions struct {
	contentType string
	headers     map[string]string
	wrapHTML    bool
}

// ResponseOption customises NewResponse.
type ResponseOption func(*responseOptions)

// WithContentType sets the Content-Type of the response.
func WithContentType(ct string) ResponseOption {
	return func(o *responseOptions) { o.contentType = ct }
}

// WithHeader adds an extra response header.
func WithHeader(key, value string) ResponseOption {
	return func(o *responseOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithoutHTMLWrapper disables the <html> envelope around text/html bodies.
func WithoutHTMLWrapper() ResponseOption {
	return func(o *responseOptions) { o.wrapHTML = false }
}

// NewResponse builds a Response. An empty body on a non-2xx status is replaced by
// "<phrase> - <description>" for that status. text/html bodies are wrapped in
// <html></html> unless WithoutHTMLWrapper is given.
func NewResponse(status int, body []byte, opts ...ResponseOption) *Response {
	o := responseOptions{contentType: DefaultContentType, wrapHTML: true}
	for _, opt := range opts {
		opt(&o)
	}

	if len(body) == 0 && (status < 200 || status > 299) {
		body = []byte(StatusSummary(status))
	}
	if o.wrapHTML && o.contentType == DefaultContentType {
		wrapped := make([]byte, 0, len(body)+13)
		wrapped = append(wrapped, "<html>"...)
		wrapped = append(wrapped, body...)
		wrapped = append(wrapped, "</html>"...)
		body = wrapped
	}

	return &Response{
		StatusCode:  status,
		Body:        body,
		ContentType: o.contentType,
		Headers:     o.headers,
	}
}

// Text is a shortcut for a text/html response with a string body.
func Text(status int, body string, opts ...ResponseOption) *Response {
	return NewResponse(status, []byte(body), opts...)
}

// StatusSummary returns "<phrase> - <description>" for status.
func StatusSummary(status int) string {
	phrase := http.StatusText(status)
	if phrase == "" {
		phrase = "Unknown Status"
	}
	desc, ok := statusDescriptions[status]
	if !ok {
		return phrase
	}
	return phrase + " - " + desc
}

var statusDescriptions = map[int]string{
	http.StatusContinue:                      "Request received, please continue",
	http.StatusSwitchingProtocols:            "Switching to new protocol; obey Upgrade header",
	http.StatusMultipleChoices:               "Object has several resources -- see URI list",
	http.StatusMovedPermanently:              "Object moved permanently -- see URI list",
	http.StatusFound:                         "Object moved temporarily -- see URI list",
	http.StatusSeeOther:                      "Object moved -- see Method and URL list",
	http.StatusNotModified:                   "Document has not changed since given time",
	http.StatusTemporaryRedirect:             "Object moved temporarily -- see URI list",
	http.StatusPermanentRedirect:             "Object moved permanently -- see URI list",
	http.StatusBadRequest:                    "Bad request syntax or unsupported method",
	http.StatusUnauthorized:                  "No permission -- see authorization schemes",
	http.StatusForbidden:                     "Request forbidden -- authorization will not help",
	http.StatusNotFound:                      "Nothing matches the given URI",
	http.StatusMethodNotAllowed:              "Specified method is invalid for this resource",
	http.StatusNotAcceptable:                 "URI not available in preferred format",
	http.StatusRequestTimeout:                "Request timed out; try again later",
	http.StatusConflict:                      "Request conflict",
	http.StatusGone:                          "URI no longer exists and has been permanently removed",
	http.StatusLengthRequired:                "Client must specify Content-Length",
	http.StatusPreconditionFailed:            "Precondition in headers is false",
	http.StatusRequestEntityTooLarge:         "Entity is too large",
	http.StatusRequestURITooLong:             "URI is too long",
	http.StatusUnsupportedMediaType:          "Entity body in unsupported format",
	http.StatusTooManyRequests:               "The user has sent too many requests in a given amount of time",
	http.StatusInternalServerError:           "Server got itself in trouble",
	http.StatusNotImplemented:                "Server does not support this operation",
	http.StatusBadGateway:                    "Invalid responses from another server/proxy",
	http.StatusServiceUnavailable:            "The server cannot process the request due to a high load",
	http.StatusGatewayTimeout:                "The gateway server did not receive a timely response",
	http.StatusHTTPVersionNotSupported:       "Cannot fulfill request",
	http.StatusNetworkAuthenticationRequired: "The client needs to authenticate to gain network access",
}
