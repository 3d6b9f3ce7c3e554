package auth

import (
	"context"
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/tripwell/tripgate/internal/config"
	"github.com/tripwell/tripgate/internal/observability"
)

// Gate validates bearer tokens and enforces per-route auth requirements.
type Gate struct {
	parseOpts   []jwt.ParseOption
	revocations *RevocationSet
	logger      observability.Logger
}

// GateOption is a functional option for the gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger for the gate.
func WithGateLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithRevocations sets the revocation set consulted after signature checks.
func WithRevocations(r *RevocationSet) GateOption {
	return func(g *Gate) {
		g.revocations = r
	}
}

// NewGate creates an authentication gate from configuration. Keys come from
// either a shared HS256 secret or a JWKS endpoint (cached and refreshed in
// the background).
func NewGate(ctx context.Context, cfg config.AuthConfig, opts ...GateOption) (*Gate, error) {
	g := &Gate{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithValidate(true),
	}

	switch {
	case cfg.JWKSURL != "":
		jwksCache := jwk.NewCache(ctx)
		if err := jwksCache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			return nil, err
		}
		parseOpts = append(parseOpts, jwt.WithKeySet(jwk.NewCachedSet(jwksCache, cfg.JWKSURL)))
	case cfg.SigningKey != "":
		parseOpts = append(parseOpts, jwt.WithKey(jwa.HS256, []byte(cfg.SigningKey)))
	default:
		return nil, errors.New("auth: no key source configured")
	}

	if cfg.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.ClockSkew > 0 {
		parseOpts = append(parseOpts, jwt.WithAcceptableSkew(cfg.ClockSkew.Duration()))
	}

	g.parseOpts = parseOpts
	return g, nil
}

// Authenticate verifies the raw bearer token and returns the caller identity.
// A cryptographically valid token that appears in the revocation set is
// rejected; a failed revocation lookup also rejects (fail closed).
func (g *Gate) Authenticate(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		recordValidation("missing")
		return nil, ErrTokenMissing
	}

	tok, err := jwt.Parse([]byte(raw), g.parseOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			recordValidation("expired")
			return nil, ErrTokenExpired
		}
		g.logger.WithContext(ctx).Debug("token validation failed", observability.Error(err))
		recordValidation("invalid")
		return nil, ErrTokenInvalid
	}

	id := &Identity{
		Subject:   tok.Subject(),
		TokenID:   tok.JwtID(),
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
		Roles:     rolesClaim(tok),
	}

	if g.revocations != nil && id.TokenID != "" {
		revoked, err := g.revocations.IsRevoked(ctx, id.TokenID)
		if err != nil {
			g.logger.WithContext(ctx).Warn("revocation lookup failed, rejecting token",
				observability.Error(err),
			)
			recordValidation("revocation_unavailable")
			return nil, ErrRevocationUnavailable
		}
		if revoked {
			recordValidation("revoked")
			return nil, ErrTokenRevoked
		}
	}

	recordValidation("ok")
	return id, nil
}

// Authorize checks the identity against a route requirement. A nil identity
// passes only LevelNone.
func (g *Gate) Authorize(id *Identity, req Requirement) error {
	switch req.Level {
	case LevelNone:
		return nil
	case LevelAuthenticated:
		if id == nil {
			return ErrTokenMissing
		}
		return nil
	case LevelRole:
		if id == nil {
			return ErrTokenMissing
		}
		if !id.HasAnyRole(req.Roles) {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

// rolesClaim extracts the "roles" claim as a string slice. Absent or
// malformed claims yield no roles rather than an error.
func rolesClaim(tok jwt.Token) []string {
	raw, ok := tok.Get("roles")
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		return []string{v}
	default:
		return nil
	}
}
