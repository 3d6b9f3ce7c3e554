// Package dispatch implements the request pipeline: resolve route, gate
// auth, rate limit, admit through the breaker, forward, record the outcome.
package dispatch

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tripwell/tripgate/internal/route"
)

// Machine-readable error codes carried in the response envelope.
const (
	CodeNoRoute             = "NO_ROUTE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// errorEnvelope is the JSON body of every gateway-fabricated error response.
type errorEnvelope struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := errorEnvelope{
		Error:     message,
		Code:      code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	_ = json.NewEncoder(w).Encode(body)
}

// WriteFallback writes a route's configured fallback verbatim, or the default
// service-unavailable envelope when none is configured.
func WriteFallback(w http.ResponseWriter, entry *route.Entry) int {
	if entry.Fallback != nil {
		w.Header().Set("Content-Type", entry.Fallback.ContentType)
		w.WriteHeader(entry.Fallback.Status)
		_, _ = w.Write(entry.Fallback.Body)
		return entry.Fallback.Status
	}

	WriteError(w, http.StatusServiceUnavailable, CodeServiceUnavailable,
		"service temporarily unavailable: "+entry.Name)
	return http.StatusServiceUnavailable
}
