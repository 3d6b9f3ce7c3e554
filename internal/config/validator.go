package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tripwell/tripgate/internal/util"
)

// validRequirements enumerates accepted route auth requirements.
var validRequirements = map[string]bool{
	"none":          true,
	"authenticated": true,
	"role":          true,
}

// ValidateConfig checks a loaded configuration for semantic errors.
// It assumes ApplyDefaults has already run.
func ValidateConfig(c *GatewayConfig) error {
	if c == nil {
		return util.NewConfigError("", "configuration is nil")
	}

	if len(c.Routes) == 0 {
		return util.NewConfigError("routes", "at least one route is required")
	}

	if c.Auth.SigningKey == "" && c.Auth.JWKSURL == "" && requiresAuth(c.Routes) {
		return util.NewConfigError("auth", "signingKey or jwksURL is required when any route requires authentication")
	}

	if requiresAuth(c.Routes) && c.Auth.Assertion.SigningKey == "" {
		return util.NewConfigError("auth.assertion.signingKey", "assertion signing key is required when any route requires authentication")
	}

	seen := make(map[string]bool)
	for i, r := range c.Routes {
		field := fmt.Sprintf("routes[%d]", i)

		if r.Name == "" {
			return util.NewConfigError(field+".name", "route name is required")
		}
		if r.Pattern == "" || !strings.HasPrefix(r.Pattern, "/") {
			return util.NewConfigError(field+".pattern", "pattern must start with /")
		}
		if r.Target == "" {
			return util.NewConfigError(field+".target", "target base URL is required")
		}
		if u, err := url.Parse(r.Target); err != nil || u.Scheme == "" || u.Host == "" {
			return util.NewConfigError(field+".target", "target must be an absolute URL")
		}

		if !validRequirements[r.Auth.Requirement] {
			return util.NewConfigError(field+".auth.requirement",
				fmt.Sprintf("unknown requirement %q", r.Auth.Requirement))
		}
		if r.Auth.Requirement == "role" && len(r.Auth.Roles) == 0 {
			return util.NewConfigError(field+".auth.roles", "role requirement needs at least one role")
		}

		for _, m := range r.Methods {
			key := strings.ToUpper(m) + " " + r.Pattern
			if seen[key] {
				return util.NewConfigError(field, fmt.Sprintf("duplicate pattern/method pair %q", key))
			}
			seen[key] = true
		}

		if err := validateRateLimit(field, r.RateLimit); err != nil {
			return err
		}
		if err := validateBreaker(field, r.Breaker); err != nil {
			return err
		}
		if r.Fallback != nil && (r.Fallback.Status < 100 || r.Fallback.Status > 599) {
			return util.NewConfigError(field+".fallback.status", "status must be a valid HTTP status code")
		}
	}

	if c.GlobalRateLimit.Enabled && c.GlobalRateLimit.RPS <= 0 {
		return util.NewConfigError("globalRateLimit.rps", "rps must be positive")
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return util.NewConfigError("redis.address", "address is required when redis is enabled")
	}

	return nil
}

func requiresAuth(routes []RouteConfig) bool {
	for _, r := range routes {
		if r.Auth.Requirement == "authenticated" || r.Auth.Requirement == "role" {
			return true
		}
	}
	return false
}

func validateRateLimit(field string, rl *RateLimitConfig) error {
	if rl == nil {
		return nil
	}
	if rl.Capacity < 1 {
		return util.NewConfigError(field+".rateLimit.capacity", "capacity must be at least 1")
	}
	if rl.RefillPerSecond <= 0 {
		return util.NewConfigError(field+".rateLimit.refillPerSecond", "refillPerSecond must be positive")
	}
	return nil
}

func validateBreaker(field string, b *BreakerConfig) error {
	if b == nil {
		return nil
	}
	if b.MinCalls < 1 {
		return util.NewConfigError(field+".breaker.minCalls", "minCalls must be at least 1")
	}
	if b.FailureRateThreshold <= 0 || b.FailureRateThreshold > 1 {
		return util.NewConfigError(field+".breaker.failureRateThreshold", "failureRateThreshold must be in (0, 1]")
	}
	if b.WaitDuration <= 0 {
		return util.NewConfigError(field+".breaker.waitDuration", "waitDuration must be positive")
	}
	if b.MaxHalfOpenProbes < 1 {
		return util.NewConfigError(field+".breaker.maxHalfOpenProbes", "maxHalfOpenProbes must be at least 1")
	}
	if b.RequiredSuccesses < 1 {
		return util.NewConfigError(field+".breaker.requiredSuccesses", "requiredSuccesses must be at least 1")
	}
	if b.WindowSize < b.MinCalls {
		return util.NewConfigError(field+".breaker.windowSize", "windowSize must be at least minCalls")
	}
	return nil
}
