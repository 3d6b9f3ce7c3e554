// Package config defines the gateway configuration model and its loader.
package config

import (
	"time"
)

// GatewayConfig is the root configuration for the gateway process.
type GatewayConfig struct {
	Server          ServerConfig          `yaml:"server"`
	Admin           AdminConfig           `yaml:"admin"`
	Logging         LoggingConfig         `yaml:"logging"`
	Tracing         TracingConfig         `yaml:"tracing"`
	Auth            AuthConfig            `yaml:"auth"`
	Redis           RedisConfig           `yaml:"redis"`
	GlobalRateLimit GlobalRateLimitConfig `yaml:"globalRateLimit"`
	Defaults        DefaultsConfig        `yaml:"defaults"`
	Routes          []RouteConfig         `yaml:"routes"`
}

// ServerConfig configures the public listener.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	TrustedProxies  []string `yaml:"trustedProxies"`
}

// AdminConfig configures the admin/observability listener.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// AuthConfig configures bearer-token validation and the internal assertion.
type AuthConfig struct {
	Issuer     string           `yaml:"issuer"`
	Audience   string           `yaml:"audience"`
	SigningKey string           `yaml:"signingKey"`
	JWKSURL    string           `yaml:"jwksURL"`
	ClockSkew  Duration         `yaml:"clockSkew"`
	Revocation RevocationConfig `yaml:"revocation"`
	Assertion  AssertionConfig  `yaml:"assertion"`
}

// RevocationConfig configures the shared revocation set lookup.
type RevocationConfig struct {
	Enabled   bool   `yaml:"enabled"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// AssertionConfig configures the signed identity assertion minted on forward.
type AssertionConfig struct {
	Header     string   `yaml:"header"`
	SigningKey string   `yaml:"signingKey"`
	TTL        Duration `yaml:"ttl"`
}

// RedisConfig configures the shared key-value store used for the revocation
// set and the distributed rate-limit buckets.
type RedisConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Address      string   `yaml:"address"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	DialTimeout  Duration `yaml:"dialTimeout"`
	ReadTimeout  Duration `yaml:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout"`
}

// GlobalRateLimitConfig configures the gateway-wide protective request ceiling
// applied before any per-route bucket.
type GlobalRateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// DefaultsConfig holds per-route policy defaults applied when a route omits
// its own settings.
type DefaultsConfig struct {
	RateLimit *RateLimitConfig `yaml:"rateLimit"`
	Breaker   *BreakerConfig   `yaml:"breaker"`
	Timeout   Duration         `yaml:"timeout"`
}

// RouteConfig configures one route entry.
type RouteConfig struct {
	Name      string           `yaml:"name"`
	Pattern   string           `yaml:"pattern"`
	Methods   []string         `yaml:"methods"`
	Target    string           `yaml:"target"`
	Auth      RouteAuthConfig  `yaml:"auth"`
	RateLimit *RateLimitConfig `yaml:"rateLimit"`
	Breaker   *BreakerConfig   `yaml:"breaker"`
	Timeout   Duration         `yaml:"timeout"`
	Fallback  *FallbackConfig  `yaml:"fallback"`
}

// RouteAuthConfig configures the auth requirement of a route.
type RouteAuthConfig struct {
	Requirement string   `yaml:"requirement"`
	Roles       []string `yaml:"roles"`
}

// RateLimitConfig configures a token-bucket policy.
type RateLimitConfig struct {
	Capacity        int      `yaml:"capacity"`
	RefillPerSecond float64  `yaml:"refillPerSecond"`
	IdleTTL         Duration `yaml:"idleTTL"`
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	MinCalls             int      `yaml:"minCalls"`
	FailureRateThreshold float64  `yaml:"failureRateThreshold"`
	WaitDuration         Duration `yaml:"waitDuration"`
	MaxHalfOpenProbes    int      `yaml:"maxHalfOpenProbes"`
	RequiredSuccesses    int      `yaml:"requiredSuccesses"`
	WindowSize           int      `yaml:"windowSize"`
}

// FallbackConfig configures the static response returned while a breaker
// rejects requests.
type FallbackConfig struct {
	Status      int    `yaml:"status"`
	ContentType string `yaml:"contentType"`
	Body        string `yaml:"body"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultServerAddress       = ":8080"
	DefaultAdminAddress        = ":9090"
	DefaultShutdownTimeout     = 15 * time.Second
	DefaultRouteTimeout        = 10 * time.Second
	DefaultBucketIdleTTL       = 10 * time.Minute
	DefaultAssertionHeader     = "X-Gateway-Assertion"
	DefaultAssertionTTL        = 30 * time.Second
	DefaultRevocationKeyPrefix = "revoked:"
)

// DefaultRateLimit is the per-route bucket policy used when neither the route
// nor the defaults section supplies one.
func DefaultRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Capacity:        100,
		RefillPerSecond: 50,
		IdleTTL:         Duration(DefaultBucketIdleTTL),
	}
}

// DefaultBreaker is the per-route breaker policy used when neither the route
// nor the defaults section supplies one.
func DefaultBreaker() *BreakerConfig {
	return &BreakerConfig{
		MinCalls:             5,
		FailureRateThreshold: 0.5,
		WaitDuration:         Duration(30 * time.Second),
		MaxHalfOpenProbes:    1,
		RequiredSuccesses:    2,
		WindowSize:           10,
	}
}

// ApplyDefaults fills unset fields with defaults, including per-route policy
// inheritance from the defaults section.
func (c *GatewayConfig) ApplyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Admin.Address == "" {
		c.Admin.Address = DefaultAdminAddress
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "tripgate"
	}
	if c.Auth.Assertion.Header == "" {
		c.Auth.Assertion.Header = DefaultAssertionHeader
	}
	if c.Auth.Assertion.TTL == 0 {
		c.Auth.Assertion.TTL = Duration(DefaultAssertionTTL)
	}
	if c.Auth.Revocation.KeyPrefix == "" {
		c.Auth.Revocation.KeyPrefix = DefaultRevocationKeyPrefix
	}
	if c.Defaults.RateLimit == nil {
		c.Defaults.RateLimit = DefaultRateLimit()
	}
	if c.Defaults.RateLimit.IdleTTL == 0 {
		c.Defaults.RateLimit.IdleTTL = Duration(DefaultBucketIdleTTL)
	}
	if c.Defaults.Breaker == nil {
		c.Defaults.Breaker = DefaultBreaker()
	}
	if c.Defaults.Timeout == 0 {
		c.Defaults.Timeout = Duration(DefaultRouteTimeout)
	}

	for i := range c.Routes {
		r := &c.Routes[i]
		if len(r.Methods) == 0 {
			r.Methods = []string{"*"}
		}
		if r.Auth.Requirement == "" {
			r.Auth.Requirement = "none"
		}
		if r.RateLimit == nil {
			rl := *c.Defaults.RateLimit
			r.RateLimit = &rl
		}
		if r.RateLimit.IdleTTL == 0 {
			r.RateLimit.IdleTTL = c.Defaults.RateLimit.IdleTTL
		}
		if r.Breaker == nil {
			br := *c.Defaults.Breaker
			r.Breaker = &br
		}
		if r.Breaker.WindowSize == 0 {
			r.Breaker.WindowSize = c.Defaults.Breaker.WindowSize
		}
		if r.Timeout == 0 {
			r.Timeout = c.Defaults.Timeout
		}
	}
}
