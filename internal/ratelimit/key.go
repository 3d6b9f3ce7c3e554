package ratelimit

import (
	"github.com/tripwell/tripgate/internal/auth"
)

// KeyFor derives the bucket key for a request: the authenticated subject when
// an identity is present, the client address otherwise. Scoping by route name
// keeps distinct route policies from sharing a bucket.
func KeyFor(route string, id *auth.Identity, clientIP string) string {
	if id != nil && id.Subject != "" {
		return route + ":sub:" + id.Subject
	}
	return route + ":ip:" + clientIP
}
