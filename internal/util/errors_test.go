package util

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("routes[0].target", "target must be an absolute URL")

	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Contains(t, err.Error(), "routes[0].target")

	var ce *ConfigError
	assert.ErrorAs(t, fmt.Errorf("loading: %w", err), &ce)
	assert.Equal(t, "routes[0].target", ce.Field)
}

func TestRouteNotFoundError(t *testing.T) {
	err := NewRouteNotFoundError("GET", "/api/v1/cruises")

	assert.ErrorIs(t, err, ErrNoRoute)
	assert.Contains(t, err.Error(), "GET /api/v1/cruises")
	assert.True(t, IsClientError(err))
	assert.False(t, IsUpstreamError(err))
}

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("flights:ip:1.2.3.4", 2*time.Second)

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, IsClientError(err))
}

func TestCircuitOpenError(t *testing.T) {
	err := NewCircuitOpenError("payments", "open")

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "payments")
}

func TestUpstreamError_TimeoutVsConn(t *testing.T) {
	timeout := NewUpstreamTimeoutError("flights", errors.New("deadline exceeded"))
	assert.ErrorIs(t, timeout, ErrUpstreamTimeout)
	assert.NotErrorIs(t, timeout, ErrUpstreamUnavail)
	assert.True(t, IsUpstreamError(timeout))

	conn := NewUpstreamConnError("flights", errors.New("connection refused"))
	assert.ErrorIs(t, conn, ErrUpstreamUnavail)
	assert.NotErrorIs(t, conn, ErrUpstreamTimeout)
	assert.True(t, IsUpstreamError(conn))
}

func TestUpstreamError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUpstreamConnError("flights", cause)

	assert.ErrorIs(t, err, cause)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "context"))

	wrapped := WrapError(ErrNoRoute, "resolving")
	assert.ErrorIs(t, wrapped, ErrNoRoute)
	assert.Contains(t, wrapped.Error(), "resolving")
}
