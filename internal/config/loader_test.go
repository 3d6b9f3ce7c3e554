package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  address: ":8081"
  readTimeout: 15s
auth:
  issuer: "https://id.tripwell.io"
  signingKey: "secret"
  assertion:
    signingKey: "assertion-secret"
routes:
  - name: flights
    pattern: /api/v1/flights/**
    methods: ["GET"]
    target: http://flight-service:8080
  - name: bookings
    pattern: /api/v1/bookings/**
    target: http://booking-service:8080
    auth:
      requirement: authenticated
    rateLimit:
      capacity: 50
      refillPerSecond: 10
    timeout: 15s
`

func TestLoadConfigFromReader(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Duration())
	require.Len(t, cfg.Routes, 2)

	flights := cfg.Routes[0]
	assert.Equal(t, "flights", flights.Name)
	assert.Equal(t, []string{"GET"}, flights.Methods)

	bookings := cfg.Routes[1]
	assert.Equal(t, 50, bookings.RateLimit.Capacity)
	assert.Equal(t, 10.0, bookings.RateLimit.RefillPerSecond)
	assert.Equal(t, 15*time.Second, bookings.Timeout.Duration())
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(minimalYAML))
	require.NoError(t, err)

	// Unset fields inherit defaults, per route where applicable.
	assert.Equal(t, DefaultAdminAddress, cfg.Admin.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DefaultAssertionHeader, cfg.Auth.Assertion.Header)

	flights := cfg.Routes[0]
	assert.Equal(t, []string{"*"}, cfg.Routes[1].Methods)
	assert.Equal(t, "none", flights.Auth.Requirement)
	require.NotNil(t, flights.RateLimit)
	assert.Equal(t, DefaultRateLimit().Capacity, flights.RateLimit.Capacity)
	require.NotNil(t, flights.Breaker)
	assert.Equal(t, DefaultBreaker().WaitDuration, flights.Breaker.WaitDuration)
	assert.Equal(t, DefaultRouteTimeout, flights.Timeout.Duration())
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Routes, 2)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("routes: [unclosed"))
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TRIPGATE_TEST_ADDR", ":9999")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "addr: ${TRIPGATE_TEST_ADDR}", "addr: :9999"},
		{"set variable ignores default", "addr: ${TRIPGATE_TEST_ADDR:-:1}", "addr: :9999"},
		{"unset variable uses default", "addr: ${TRIPGATE_TEST_UNSET:-:8080}", "addr: :8080"},
		{"unset variable without default is empty", "addr: ${TRIPGATE_TEST_UNSET}", "addr: "},
		{"escaped dollar", "pass: $${literal}", "pass: ${literal}"},
		{"no substitution", "plain: value", "plain: value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.input))
		})
	}
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(`
server:
  readTimeout: 1h30m
routes:
  - name: r
    pattern: /x
    target: http://svc:8080
`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Server.ReadTimeout.Duration())

	_, err = LoadConfigFromReader(strings.NewReader("server:\n  readTimeout: nonsense\n"))
	assert.Error(t, err)
}
