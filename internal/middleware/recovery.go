// Package middleware provides the HTTP middleware chain wrapped around the
// dispatch pipeline.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/tripwell/tripgate/internal/dispatch"
	"github.com/tripwell/tripgate/internal/observability"
)

// Recovery returns a middleware that recovers from handler panics and answers
// a 500 envelope.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.Any("error", err),
						observability.String("stack", string(debug.Stack())),
					)

					dispatch.WriteError(w, http.StatusInternalServerError,
						dispatch.CodeInternal, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
