// Package auth implements the gateway's authentication gate: bearer-token
// validation, revocation checking, role-based authorization, and minting of
// the signed internal identity assertion forwarded to backends.
package auth

import (
	"context"
	"time"
)

// Identity is the verified caller identity for a single request. It is never
// persisted and never forwarded raw; backends see only the signed assertion.
type Identity struct {
	Subject   string
	Roles     []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasAnyRole reports whether the identity holds at least one of the given roles.
func (id *Identity) HasAnyRole(roles []string) bool {
	for _, want := range roles {
		for _, have := range id.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Level is the authentication level a route may require.
type Level int

const (
	// LevelNone admits any request.
	LevelNone Level = iota

	// LevelAuthenticated requires a verified identity.
	LevelAuthenticated

	// LevelRole requires a verified identity holding one of the listed roles.
	LevelRole
)

// String returns the configuration name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelAuthenticated:
		return "authenticated"
	case LevelRole:
		return "role"
	default:
		return "unknown"
	}
}

// Requirement is a route's authentication requirement.
type Requirement struct {
	Level Level
	Roles []string
}

// ParseLevel parses a configuration requirement name.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "", "none":
		return LevelNone, true
	case "authenticated":
		return LevelAuthenticated, true
	case "role":
		return LevelRole, true
	default:
		return LevelNone, false
	}
}

type contextKey string

const identityKey contextKey = "identity"

// ContextWithIdentity attaches the verified identity to the request context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the verified identity, or nil for anonymous
// requests.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey).(*Identity); ok {
		return id
	}
	return nil
}
