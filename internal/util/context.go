package util

import (
	"context"
	"time"
)

type contextKey string

const (
	routeKey      contextKey = "route"
	pathParamsKey contextKey = "path_params"
	clientIPKey   contextKey = "client_ip"
	startTimeKey  contextKey = "start_time"
)

// routeHolder carries the matched route name. It is a pointer so a name set
// deep in the pipeline is visible to middleware that installed the holder
// earlier in the chain.
type routeHolder struct {
	name string
}

// ContextWithRoute stores the matched route name in the context, writing
// through an existing holder when one is present.
func ContextWithRoute(ctx context.Context, route string) context.Context {
	if h, ok := ctx.Value(routeKey).(*routeHolder); ok {
		h.name = route
		return ctx
	}
	return context.WithValue(ctx, routeKey, &routeHolder{name: route})
}

// RouteFromContext returns the matched route name, or "" if none.
func RouteFromContext(ctx context.Context) string {
	if h, ok := ctx.Value(routeKey).(*routeHolder); ok {
		return h.name
	}
	return ""
}

// ContextWithPathParams stores extracted path parameters in the context.
func ContextWithPathParams(ctx context.Context, params map[string]string) context.Context {
	return context.WithValue(ctx, pathParamsKey, params)
}

// PathParamsFromContext returns extracted path parameters, or nil.
func PathParamsFromContext(ctx context.Context) map[string]string {
	if params, ok := ctx.Value(pathParamsKey).(map[string]string); ok {
		return params
	}
	return nil
}

// ContextWithClientIP stores the resolved client IP in the context.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the resolved client IP, or "" if none.
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return ""
}

// ContextWithStartTime stores the request start time in the context.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey, t)
}

// StartTimeFromContext returns the request start time, or the zero time.
func StartTimeFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}
