package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tripwell/tripgate/internal/observability"
	"github.com/tripwell/tripgate/internal/route"
	"github.com/tripwell/tripgate/internal/util"
)

// hopHeaders are connection-scoped headers never forwarded to a backend.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// identityHeaders are client-supplied identity carriers stripped on forward.
// Backends trust only the gateway-minted assertion.
var identityHeaders = []string{
	"Authorization",
	"X-User-Id",
	"X-User-Roles",
}

// ForwardResult classifies one completed (or failed) backend call.
type ForwardResult struct {
	StatusCode int
	Latency    time.Duration
	Succeeded  bool
	Err        error
}

// Forwarder issues the single backend call for an admitted request.
type Forwarder struct {
	transport       http.RoundTripper
	assertionHeader string
	logger          observability.Logger
}

// ForwarderOption is a functional option for the forwarder.
type ForwarderOption func(*Forwarder)

// WithTransport sets the transport used for backend calls.
func WithTransport(transport http.RoundTripper) ForwarderOption {
	return func(f *Forwarder) {
		f.transport = transport
	}
}

// WithAssertionHeader sets the header name carrying the minted assertion.
func WithAssertionHeader(name string) ForwarderOption {
	return func(f *Forwarder) {
		f.assertionHeader = name
	}
}

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// NewForwarder creates a forwarder.
func NewForwarder(opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		transport: http.DefaultTransport,
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Forward sends the request to the route's target, preserving method, path,
// query, and body, within the route's timeout. The response is streamed back
// to w; upstream faults are translated to 502/504 envelopes. A 5xx from the
// backend is forwarded verbatim but still counts as a failed result.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, entry *route.Entry, assertion string) *ForwardResult {
	start := time.Now()

	ctx := r.Context()
	if entry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.Timeout)
		defer cancel()
	}

	outbound := r.Clone(ctx)
	outbound.URL.Scheme = entry.Target.Scheme
	outbound.URL.Host = entry.Target.Host
	outbound.URL.Path = singleJoiningSlash(entry.Target.Path, r.URL.Path)
	outbound.Host = entry.Target.Host
	outbound.RequestURI = ""

	for _, h := range hopHeaders {
		outbound.Header.Del(h)
	}
	for _, h := range identityHeaders {
		outbound.Header.Del(h)
	}
	if f.assertionHeader != "" {
		outbound.Header.Del(f.assertionHeader)
		if assertion != "" {
			outbound.Header.Set(f.assertionHeader, assertion)
		}
	}
	if clientIP := util.ClientIPFromContext(r.Context()); clientIP != "" {
		outbound.Header.Set("X-Forwarded-For", clientIP)
	}

	resp, err := f.transport.RoundTrip(outbound)
	if err != nil {
		return f.handleTransportError(w, r, entry, err, time.Since(start))
	}
	defer func() { _ = resp.Body.Close() }()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.logger.WithContext(r.Context()).Debug("response body copy interrupted",
			observability.String("route", entry.Name),
			observability.Error(err),
		)
	}

	return &ForwardResult{
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
		Succeeded:  resp.StatusCode < 500,
	}
}

// handleTransportError classifies a failed round trip and writes the
// corresponding envelope. A client disconnect produces no response body but
// still records a failure so breaker evaluation is not skewed low.
func (f *Forwarder) handleTransportError(
	w http.ResponseWriter,
	r *http.Request,
	entry *route.Entry,
	err error,
	latency time.Duration,
) *ForwardResult {
	result := &ForwardResult{Latency: latency, Succeeded: false}

	switch {
	case r.Context().Err() != nil:
		// Client went away; nothing to write.
		result.Err = util.NewUpstreamConnError(entry.Name, r.Context().Err())
		result.StatusCode = http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		result.Err = util.NewUpstreamTimeoutError(entry.Name, err)
		result.StatusCode = http.StatusGatewayTimeout
		WriteError(w, http.StatusGatewayTimeout, CodeUpstreamTimeout,
			"upstream timed out: "+entry.Name)

	default:
		result.Err = util.NewUpstreamConnError(entry.Name, err)
		result.StatusCode = http.StatusBadGateway
		WriteError(w, http.StatusBadGateway, CodeUpstreamUnavailable,
			"upstream unavailable: "+entry.Name)
	}

	f.logger.WithContext(r.Context()).Warn("backend call failed",
		observability.String("route", entry.Name),
		observability.Error(result.Err),
	)

	return result
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// copyHeaders copies all non-hop headers from src to dst.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopHeader(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// singleJoiningSlash joins base and path with exactly one slash.
func singleJoiningSlash(base, path string) string {
	switch {
	case base == "" || base == "/":
		return path
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	default:
		return base + path
	}
}
