package dispatch

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tripwell/tripgate/internal/auth"
	"github.com/tripwell/tripgate/internal/circuitbreaker"
	"github.com/tripwell/tripgate/internal/metrics"
	"github.com/tripwell/tripgate/internal/observability"
	"github.com/tripwell/tripgate/internal/ratelimit"
	"github.com/tripwell/tripgate/internal/route"
	"github.com/tripwell/tripgate/internal/util"
)

// scope carries one request's state through the stage pipeline.
type scope struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time

	match     *route.Match
	identity  *auth.Identity
	assertion string
	breaker   *circuitbreaker.Breaker

	outcome metrics.Outcome
	status  int
}

// stage handles one pipeline concern. Returning false short-circuits: the
// stage has written the response and set the scope's outcome and status.
type stage func(*scope) bool

// Dispatcher runs each request through the ordered stage pipeline: resolve
// the route, gate auth, rate limit, admit through the breaker, forward, and
// record the outcome. Exactly one stage writes the response, and at most one
// backend call is made per request.
type Dispatcher struct {
	table     *route.Table
	gate      *auth.Gate
	signer    *auth.AssertionSigner
	limiter   ratelimit.Limiter
	breakers  *circuitbreaker.Registry
	forwarder *Forwarder
	sink      metrics.Sink
	logger    observability.Logger

	stages []stage
}

// DispatcherOption is a functional option for the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithGate sets the auth gate. Without a gate every route is treated as
// public.
func WithGate(gate *auth.Gate) DispatcherOption {
	return func(d *Dispatcher) {
		d.gate = gate
	}
}

// WithAssertionSigner sets the signer minting internal identity assertions.
func WithAssertionSigner(signer *auth.AssertionSigner) DispatcherOption {
	return func(d *Dispatcher) {
		d.signer = signer
	}
}

// WithLimiter sets the rate limiter.
func WithLimiter(limiter ratelimit.Limiter) DispatcherOption {
	return func(d *Dispatcher) {
		d.limiter = limiter
	}
}

// WithSink sets the metrics sink.
func WithSink(sink metrics.Sink) DispatcherOption {
	return func(d *Dispatcher) {
		d.sink = sink
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger observability.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a dispatcher over the given route table and breaker
// registry.
func NewDispatcher(table *route.Table, breakers *circuitbreaker.Registry, forwarder *Forwarder, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		table:     table,
		breakers:  breakers,
		forwarder: forwarder,
		limiter:   ratelimit.NoopLimiter{},
		sink:      metrics.NopSink{},
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.stages = []stage{
		d.resolveRoute,
		d.gateAuth,
		d.applyRateLimit,
		d.admitBreaker,
		d.forward,
	}

	return d
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := &scope{w: w, r: r, start: time.Now()}

	for _, st := range d.stages {
		if !st(s) {
			break
		}
	}

	d.record(s)
}

// resolveRoute matches method and path against the table. Resolution runs
// before auth so an unmatched path is a 404 no matter what credentials the
// request carries.
func (d *Dispatcher) resolveRoute(s *scope) bool {
	match, err := d.table.Resolve(s.r.Method, s.r.URL.Path)
	if err != nil {
		s.outcome = metrics.OutcomeNoRoute
		s.status = http.StatusNotFound
		WriteError(s.w, http.StatusNotFound, CodeNoRoute,
			"no route for "+s.r.Method+" "+s.r.URL.Path)
		return false
	}

	s.match = match
	ctx := util.ContextWithRoute(s.r.Context(), match.Entry.Name)
	if len(match.Params) > 0 {
		ctx = util.ContextWithPathParams(ctx, match.Params)
	}
	s.r = s.r.WithContext(ctx)

	return true
}

// gateAuth authenticates and authorizes per the route's requirement. Denials
// here happen before the limiter and breaker, so an unauthenticated request
// consumes no rate budget and records no breaker outcome.
func (d *Dispatcher) gateAuth(s *scope) bool {
	req := s.match.Entry.Auth
	if req.Level == auth.LevelNone || d.gate == nil {
		return true
	}

	raw, err := auth.BearerToken(s.r)
	if err != nil {
		return d.denyAuth(s, err)
	}

	id, err := d.gate.Authenticate(s.r.Context(), raw)
	if err != nil {
		return d.denyAuth(s, err)
	}

	if err := d.gate.Authorize(id, req); err != nil {
		return d.denyAuth(s, err)
	}

	s.identity = id
	s.r = s.r.WithContext(auth.ContextWithIdentity(s.r.Context(), id))

	if d.signer != nil {
		assertion, err := d.signer.Mint(id)
		if err != nil {
			d.logger.WithContext(s.r.Context()).Error("assertion minting failed",
				observability.String("route", s.match.Entry.Name),
				observability.Error(err),
			)
			s.outcome = metrics.OutcomeUpstreamError
			s.status = http.StatusBadGateway
			WriteError(s.w, http.StatusBadGateway, CodeUpstreamUnavailable,
				"identity assertion unavailable")
			return false
		}
		s.assertion = assertion
	}

	return true
}

func (d *Dispatcher) denyAuth(s *scope, err error) bool {
	s.outcome = metrics.OutcomeUnauthorized
	s.status = auth.Status(err)
	WriteError(s.w, s.status, auth.Code(err), err.Error())
	return false
}

// applyRateLimit takes one token from the route bucket keyed by subject when
// authenticated, client IP otherwise. A denial answers 429 with Retry-After
// rounded up to whole seconds.
func (d *Dispatcher) applyRateLimit(s *scope) bool {
	entry := s.match.Entry
	if entry.RateLimit.Capacity <= 0 {
		return true
	}

	key := ratelimit.KeyFor(entry.Name, s.identity, util.ClientIPFromContext(s.r.Context()))
	decision, err := d.limiter.Acquire(s.r.Context(), key, entry.RateLimit)
	if err != nil {
		// Limiter faults never block traffic.
		d.logger.WithContext(s.r.Context()).Warn("rate limiter unavailable, allowing",
			observability.String("route", entry.Name),
			observability.Error(err),
		)
		return true
	}

	ratelimit.RecordDecision(entry.Name, decision.Allowed)
	if decision.Allowed {
		return true
	}

	s.outcome = metrics.OutcomeRateLimited
	s.status = http.StatusTooManyRequests
	s.w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
	WriteError(s.w, http.StatusTooManyRequests, CodeRateLimited,
		"rate limit exceeded for route "+entry.Name)
	return false
}

// retryAfterSeconds rounds the wait up to whole seconds, never below one.
func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// admitBreaker asks the route's breaker for admission. A rejection serves the
// route's configured fallback verbatim without touching the backend.
func (d *Dispatcher) admitBreaker(s *scope) bool {
	entry := s.match.Entry
	if entry.Breaker == nil {
		return true
	}

	breaker := d.breakers.GetOrCreate(entry.Name, entry.Breaker)
	if err := breaker.Admit(); err != nil {
		if !errors.Is(err, circuitbreaker.ErrOpen) {
			d.logger.WithContext(s.r.Context()).Error("breaker admission failed",
				observability.String("route", entry.Name),
				observability.Error(err),
			)
		}
		s.outcome = metrics.OutcomeBreakerRejected
		s.status = WriteFallback(s.w, entry)
		s.breaker = breaker
		return false
	}

	s.breaker = breaker
	return true
}

// forward makes the single backend call and reports the classified result to
// the breaker.
func (d *Dispatcher) forward(s *scope) bool {
	result := d.forwarder.Forward(s.w, s.r, s.match.Entry, s.assertion)

	if s.breaker != nil {
		if result.Succeeded {
			s.breaker.OnSuccess()
		} else {
			s.breaker.OnFailure()
		}
	}

	s.status = result.StatusCode
	if result.Succeeded {
		s.outcome = metrics.OutcomeSuccess
	} else {
		s.outcome = metrics.OutcomeUpstreamError
	}

	return false
}

// record emits the request sample. Recording is fire and forget; the response
// has already been written.
func (d *Dispatcher) record(s *scope) {
	routeName := "unmatched"
	breakerState := ""
	if s.match != nil {
		routeName = s.match.Entry.Name
	}
	if s.breaker != nil {
		breakerState = s.breaker.State().String()
	}

	d.sink.Record(metrics.Sample{
		Route:        routeName,
		Method:       s.r.Method,
		Outcome:      s.outcome,
		Status:       s.status,
		Latency:      time.Since(s.start),
		BreakerState: breakerState,
	})
}
