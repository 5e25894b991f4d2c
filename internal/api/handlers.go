package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/svcengine/internal/dispatch"
	"github.com/mattjoyce/svcengine/internal/service"
)

const faviconPath = "/favicon.ico"

var errBadPayload = errors.New("malformed request body")

// handleDispatch converts the HTTP request, hands it to the dispatcher and
// writes whatever comes back.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == faviconPath && s.serveFavicon(w, r) {
		return
	}

	payloadType, payload, err := s.readPayload(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.writeResponse(w, service.NewResponse(http.StatusRequestEntityTooLarge, nil))
		case errors.Is(err, errBadPayload):
			s.logger.Debug("rejecting request body", "path", r.URL.Path, "error", err)
			s.writeResponse(w, service.NewResponse(http.StatusBadRequest, nil))
		default:
			s.logger.Warn("failed to read request body", "path", r.URL.Path, "error", err)
			s.writeResponse(w, service.NewResponse(http.StatusBadRequest, nil))
		}
		return
	}

	ctx := dispatch.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	resp := s.dispatcher.Dispatch(ctx, &service.Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Header:      r.Header,
		PayloadType: payloadType,
		Payload:     payload,
	})
	s.writeResponse(w, resp)
}

// readPayload reads at most MaxBodyBytes and decodes the body by media type:
// JSON into any, forms into url.Values, everything else as raw bytes.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request) (string, any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return service.PayloadNone, nil, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		return "", nil, err
	}
	if len(body) == 0 {
		return service.PayloadNone, nil, nil
	}

	mediaType := r.Header.Get("Content-Type")
	if mediaType != "" {
		if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
			mediaType = mt
		}
	}

	switch mediaType {
	case service.PayloadJSON:
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return "", nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return service.PayloadJSON, v, nil
	case service.PayloadForm:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return service.PayloadForm, values, nil
	default:
		return mediaType, body, nil
	}
}

// writeResponse writes resp verbatim.
func (s *Server) writeResponse(w http.ResponseWriter, resp *service.Response) {
	h := w.Header()
	for k, v := range resp.Headers {
		h.Set(k, v)
	}
	if resp.ContentType != "" {
		h.Set("Content-Type", resp.ContentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		s.logger.Debug("failed to write response body", "error", err)
	}
}

// serveFavicon writes resource_dir/favicon.ico. It reports false when there
// is nothing to serve so the request falls through to the dispatcher.
func (s *Server) serveFavicon(w http.ResponseWriter, r *http.Request) bool {
	if s.config.ResourceDir == "" {
		return false
	}
	p := filepath.Join(s.config.ResourceDir, "favicon.ico")
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	w.Header().Set("Content-Type", "image/x-icon")
	http.ServeFile(w, r, p)
	return true
}
