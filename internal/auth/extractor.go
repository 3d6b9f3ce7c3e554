package auth

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the bearer token from the Authorization header.
// Returns ErrTokenMissing when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrTokenMissing
	}

	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrTokenMissing
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrTokenMissing
	}

	return token, nil
}
