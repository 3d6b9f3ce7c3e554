package auth

import (
	"errors"
	"net/http"
)

// Authentication and authorization errors.
var (
	// ErrTokenMissing indicates no bearer token was supplied.
	ErrTokenMissing = errors.New("missing bearer token")

	// ErrTokenInvalid indicates the token failed signature or claim validation.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked indicates the token is in the revocation set.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrForbidden indicates an authenticated identity lacks a required role.
	ErrForbidden = errors.New("insufficient role")

	// ErrRevocationUnavailable indicates the revocation set could not be
	// consulted. Lookups fail closed, so this surfaces as a 401.
	ErrRevocationUnavailable = errors.New("revocation set unavailable")
)

// Code maps an auth error to its machine-readable response code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "AUTH_MISSING"
	case errors.Is(err, ErrTokenExpired):
		return "AUTH_EXPIRED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrTokenRevoked), errors.Is(err, ErrRevocationUnavailable):
		return "AUTH_INVALID"
	default:
		return "AUTH_INVALID"
	}
}

// Status maps an auth error to its HTTP status code.
func Status(err error) int {
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}
