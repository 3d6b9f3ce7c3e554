// Package util provides shared helpers and the error taxonomy for the gateway.
//
// # Error Conventions
//
// The project follows one error pattern across packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions that
//     callers check with errors.Is(). Example: ErrNoRoute.
//   - Structured error types for context-rich errors that carry additional
//     fields (e.g., UpstreamError). Each type implements Error(), Unwrap()
//     (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context without
//     introducing a new type.
package util

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors.
var (
	ErrNoRoute         = errors.New("no matching route")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrUpstreamUnavail = errors.New("upstream unavailable")
	ErrConfigInvalid   = errors.New("invalid configuration")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// RouteNotFoundError represents an unresolved method/path pair.
type RouteNotFoundError struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route found for %s %s", e.Method, e.Path)
}

// Is checks if the error matches the target.
func (e *RouteNotFoundError) Is(target error) bool {
	if target == ErrNoRoute {
		return true
	}
	_, ok := target.(*RouteNotFoundError)
	return ok
}

// NewRouteNotFoundError creates a new RouteNotFoundError.
func NewRouteNotFoundError(method, path string) *RouteNotFoundError {
	return &RouteNotFoundError{Method: method, Path: path}
}

// RateLimitError represents a denied rate-limit acquisition.
type RateLimitError struct {
	Key        string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (retry after %v)", e.Key, e.RetryAfter)
}

// Is checks if the error matches the target.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimited {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(key string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Key: key, RetryAfter: retryAfter}
}

// CircuitOpenError represents a request rejected by an open circuit.
type CircuitOpenError struct {
	Breaker string
	State   string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is %s", e.Breaker, e.State)
}

// Is checks if the error matches the target.
func (e *CircuitOpenError) Is(target error) bool {
	if target == ErrCircuitOpen {
		return true
	}
	_, ok := target.(*CircuitOpenError)
	return ok
}

// NewCircuitOpenError creates a new CircuitOpenError.
func NewCircuitOpenError(breaker, state string) *CircuitOpenError {
	return &CircuitOpenError{Breaker: breaker, State: state}
}

// UpstreamError represents a failed forward to a backend.
type UpstreamError struct {
	Backend    string
	StatusCode int
	Timeout    bool
	Cause      error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("upstream %s timed out", e.Backend)
	case e.StatusCode > 0:
		return fmt.Sprintf("upstream %s returned status %d", e.Backend, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("upstream %s unreachable: %v", e.Backend, e.Cause)
	default:
		return fmt.Sprintf("upstream %s failed", e.Backend)
	}
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *UpstreamError) Is(target error) bool {
	if target == ErrUpstreamTimeout && e.Timeout {
		return true
	}
	if target == ErrUpstreamUnavail && !e.Timeout {
		return true
	}
	_, ok := target.(*UpstreamError)
	return ok || errors.Is(e.Cause, target)
}

// NewUpstreamTimeoutError creates an UpstreamError for an exceeded deadline.
func NewUpstreamTimeoutError(backend string, cause error) *UpstreamError {
	return &UpstreamError{Backend: backend, Timeout: true, Cause: cause}
}

// NewUpstreamConnError creates an UpstreamError for a failed connection.
func NewUpstreamConnError(backend string, cause error) *UpstreamError {
	return &UpstreamError{Backend: backend, Cause: cause}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsUpstreamError reports whether the error counts toward breaker failure rate.
func IsUpstreamError(err error) bool {
	if err == nil {
		return false
	}
	var ue *UpstreamError
	return errors.As(err, &ue) ||
		errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, ErrUpstreamUnavail)
}

// IsClientError reports whether the error is the caller's fault (4xx class).
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoRoute) || errors.Is(err, ErrRateLimited)
}
