package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/tripwell/tripgate/internal/dispatch"
)

// Throttle returns a middleware enforcing a process-wide request ceiling in
// front of the per-route limiters. It protects the gateway itself; per-route
// budgets are the dispatcher's job.
func Throttle(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				dispatch.WriteError(w, http.StatusTooManyRequests,
					dispatch.CodeRateLimited, "gateway at capacity")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
