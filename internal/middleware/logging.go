package middleware

import (
	"net/http"
	"time"

	"github.com/tripwell/tripgate/internal/observability"
	"github.com/tripwell/tripgate/internal/util"
)

// AccessLog returns a middleware that logs one line per completed request.
func AccessLog(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := util.ContextWithStartTime(r.Context(), start)
			// Install the route holder so the dispatcher's match is visible
			// here after the chain unwinds.
			ctx = util.ContextWithRoute(ctx, "")
			r = r.WithContext(ctx)

			rw := &util.StatusCapturingResponseWriter{
				ResponseWriter: w,
				StatusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			logger.Info("access",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", rw.StatusCode),
				observability.Int("size", rw.BytesWritten),
				observability.Duration("latency", time.Since(start)),
				observability.String("client_ip", util.ClientIPFromContext(r.Context())),
				observability.String("route", util.RouteFromContext(r.Context())),
				observability.String("request_id", observability.RequestIDFromContext(r.Context())),
			)
		})
	}
}
