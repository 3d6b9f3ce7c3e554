// Package gateway assembles the edge gateway: the request pipeline, the
// public listener, and the admin surface.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tripwell/tripgate/internal/auth"
	"github.com/tripwell/tripgate/internal/cache"
	"github.com/tripwell/tripgate/internal/circuitbreaker"
	"github.com/tripwell/tripgate/internal/config"
	"github.com/tripwell/tripgate/internal/dispatch"
	"github.com/tripwell/tripgate/internal/metrics"
	"github.com/tripwell/tripgate/internal/middleware"
	"github.com/tripwell/tripgate/internal/observability"
	"github.com/tripwell/tripgate/internal/ratelimit"
	"github.com/tripwell/tripgate/internal/route"
)

// State represents the gateway lifecycle state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// pipeline is one immutable generation of the request path. Reload builds a
// fresh pipeline and swaps the pointer; in-flight requests finish on the old
// one.
type pipeline struct {
	handler http.Handler
	table   *route.Table
}

// Gateway owns the long-lived components (store, limiter, breakers, sink)
// and the current pipeline generation.
type Gateway struct {
	logger observability.Logger
	tracer *observability.Tracer

	store    cache.Cache
	limiter  ratelimit.Limiter
	breakers *circuitbreaker.Registry
	sink     metrics.Sink

	current atomic.Pointer[pipeline]

	mu     sync.RWMutex
	config *config.GatewayConfig

	server *http.Server
	admin  *AdminServer

	state           atomic.Int32
	startTime       time.Time
	shutdownTimeout time.Duration
}

// Option is a functional option for the gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithTracer sets the tracer. Without one no spans are emitted.
func WithTracer(tracer *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

// WithStore overrides the key-value store used for revocation lookups and
// shared rate-limit buckets.
func WithStore(store cache.Cache) Option {
	return func(g *Gateway) {
		g.store = store
	}
}

// WithSink overrides the metrics sink.
func WithSink(sink metrics.Sink) Option {
	return func(g *Gateway) {
		g.sink = sink
	}
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// New creates a gateway from a validated configuration and builds its first
// pipeline. The context bounds background lookups such as the JWKS cache.
func New(ctx context.Context, cfg *config.GatewayConfig, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	g := &Gateway{
		logger:          observability.NopLogger(),
		config:          cfg,
		sink:            metrics.NopSink{},
		shutdownTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.store == nil {
		store, err := g.buildStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build store: %w", err)
		}
		g.store = store
	}

	g.limiter = g.buildLimiter(cfg)
	g.breakers = circuitbreaker.NewRegistry(g.logger)

	p, err := g.buildPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	g.current.Store(p)

	g.state.Store(int32(StateStopped))

	return g, nil
}

// buildStore selects the key-value store: Redis when enabled, otherwise an
// in-process store usable for single-instance deployments and tests.
func (g *Gateway) buildStore(cfg *config.GatewayConfig) (cache.Cache, error) {
	if cfg.Redis.Enabled {
		return cache.NewRedisCache(cfg.Redis, cache.WithRedisLogger(g.logger))
	}
	return cache.NewMemoryCache(), nil
}

// buildLimiter selects the rate limiter. With Redis the bucket state is
// shared across instances; the limiter falls back to local buckets when the
// store misbehaves.
func (g *Gateway) buildLimiter(cfg *config.GatewayConfig) ratelimit.Limiter {
	if rc, ok := g.store.(*cache.RedisCache); ok {
		return ratelimit.NewRedisBucketLimiter(rc.Client(),
			ratelimit.WithRedisLimiterLogger(g.logger),
		)
	}
	return ratelimit.NewTokenBucketLimiter(
		ratelimit.WithLimiterLogger(g.logger),
	)
}

// buildPipeline compiles the route table and composes the handler chain for
// one configuration generation.
func (g *Gateway) buildPipeline(ctx context.Context, cfg *config.GatewayConfig) (*pipeline, error) {
	table, err := route.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}

	dispatcherOpts := []dispatch.DispatcherOption{
		dispatch.WithLimiter(g.limiter),
		dispatch.WithSink(g.sink),
		dispatch.WithDispatcherLogger(g.logger),
	}

	forwarderOpts := []dispatch.ForwarderOption{
		dispatch.WithForwarderLogger(g.logger),
	}

	if authRequired(cfg) {
		gateOpts := []auth.GateOption{auth.WithGateLogger(g.logger)}
		if cfg.Auth.Revocation.Enabled {
			prefix := cfg.Auth.Revocation.KeyPrefix
			if prefix == "" {
				prefix = config.DefaultRevocationKeyPrefix
			}
			gateOpts = append(gateOpts,
				auth.WithRevocations(auth.NewRevocationSet(g.store, prefix, g.logger)),
			)
		}

		gate, err := auth.NewGate(ctx, cfg.Auth, gateOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build auth gate: %w", err)
		}
		dispatcherOpts = append(dispatcherOpts, dispatch.WithGate(gate))

		signer, err := auth.NewAssertionSigner(cfg.Auth.Assertion)
		if err != nil {
			return nil, fmt.Errorf("failed to build assertion signer: %w", err)
		}
		dispatcherOpts = append(dispatcherOpts, dispatch.WithAssertionSigner(signer))
		forwarderOpts = append(forwarderOpts, dispatch.WithAssertionHeader(signer.Header()))
	}

	forwarder := dispatch.NewForwarder(forwarderOpts...)
	dispatcher := dispatch.NewDispatcher(table, g.breakers, forwarder, dispatcherOpts...)

	var handler http.Handler = dispatcher
	if cfg.GlobalRateLimit.Enabled {
		handler = middleware.Throttle(cfg.GlobalRateLimit.RPS, cfg.GlobalRateLimit.Burst)(handler)
	}
	if g.tracer != nil {
		handler = observability.TracingMiddleware(g.tracer)(handler)
	}
	handler = middleware.AccessLog(g.logger)(handler)
	handler = middleware.ClientIP(middleware.NewClientIPExtractor(cfg.Server.TrustedProxies))(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.Recovery(g.logger)(handler)

	return &pipeline{handler: handler, table: table}, nil
}

// authRequired reports whether any route needs the auth gate.
func authRequired(cfg *config.GatewayConfig) bool {
	for i := range cfg.Routes {
		if cfg.Routes[i].Auth.Requirement != "" && cfg.Routes[i].Auth.Requirement != "none" {
			return true
		}
	}
	return false
}

// ServeHTTP delegates to the current pipeline generation.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.current.Load().handler.ServeHTTP(w, r)
}

// Start starts the public listener and, when enabled, the admin server.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("gateway is not in stopped state")
	}

	cfg := g.Config()

	g.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      g,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
	}

	go func() {
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("listener failed", observability.Error(err))
		}
	}()

	if cfg.Admin.Enabled {
		g.admin = NewAdminServer(g, cfg.Admin.Address, g.logger)
		g.admin.Start()
	}

	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("address", cfg.Server.Address),
		observability.Int("routes", g.current.Load().table.Len()),
	)

	return nil
}

// Stop drains the listeners within the shutdown timeout and releases the
// limiter and store.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return fmt.Errorf("gateway is not running")
	}

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("listener shutdown failed", observability.Error(err))
		}
	}
	if g.admin != nil {
		if err := g.admin.Stop(ctx); err != nil {
			g.logger.Error("admin shutdown failed", observability.Error(err))
		}
	}

	if err := g.limiter.Close(); err != nil {
		g.logger.Error("limiter close failed", observability.Error(err))
	}
	if err := g.store.Close(); err != nil {
		g.logger.Error("store close failed", observability.Error(err))
	}

	g.state.Store(int32(StateStopped))
	g.logger.Info("gateway stopped")

	return nil
}

// Reload validates cfg, builds a fresh pipeline, and swaps it in atomically.
// On any error the running pipeline is left untouched.
func (g *Gateway) Reload(ctx context.Context, cfg *config.GatewayConfig) error {
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := g.buildPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	g.mu.Lock()
	g.config = cfg
	g.mu.Unlock()

	g.current.Store(p)

	g.logger.Info("configuration reloaded",
		observability.Int("routes", p.table.Len()),
	)

	return nil
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning reports whether the gateway serves traffic.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the time since the gateway started.
func (g *Gateway) Uptime() time.Duration {
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Config returns the current configuration.
func (g *Gateway) Config() *config.GatewayConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}

// Table returns the current route table generation.
func (g *Gateway) Table() *route.Table {
	return g.current.Load().table
}

// Breakers returns the breaker registry.
func (g *Gateway) Breakers() *circuitbreaker.Registry {
	return g.breakers
}
