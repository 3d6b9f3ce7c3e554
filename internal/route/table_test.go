package route

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwell/tripgate/internal/auth"
	"github.com/tripwell/tripgate/internal/config"
	"github.com/tripwell/tripgate/internal/util"
)

func tableConfig() *config.GatewayConfig {
	cfg := &config.GatewayConfig{
		Routes: []config.RouteConfig{
			{
				Name:    "flight-search",
				Pattern: "/api/v1/flights/**",
				Methods: []string{"GET"},
				Target:  "http://flight-service:8080",
			},
			{
				Name:    "flight-deals",
				Pattern: "/api/v1/flights/deals",
				Methods: []string{"GET"},
				Target:  "http://deals-service:8080",
			},
			{
				Name:    "user-profile",
				Pattern: "/api/v1/users/{userId}",
				Methods: []string{"GET", "PUT"},
				Target:  "http://user-service:8080",
				Auth:    config.RouteAuthConfig{Requirement: "authenticated"},
			},
			{
				Name:    "bookings",
				Pattern: "/api/v1/bookings/**",
				Methods: []string{"*"},
				Target:  "http://booking-service:8080",
				Auth:    config.RouteAuthConfig{Requirement: "role", Roles: []string{"traveler"}},
				Timeout: config.Duration(15 * time.Second),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestBuild_SortsMostSpecificFirst(t *testing.T) {
	table, err := Build(tableConfig())
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())

	// The exact deals pattern must outrank the flights wildcard.
	m, err := table.Resolve(http.MethodGet, "/api/v1/flights/deals")
	require.NoError(t, err)
	assert.Equal(t, "flight-deals", m.Entry.Name)

	m, err = table.Resolve(http.MethodGet, "/api/v1/flights/search")
	require.NoError(t, err)
	assert.Equal(t, "flight-search", m.Entry.Name)
}

func TestResolve_TemplateParams(t *testing.T) {
	table, err := Build(tableConfig())
	require.NoError(t, err)

	m, err := table.Resolve(http.MethodPut, "/api/v1/users/42")
	require.NoError(t, err)
	assert.Equal(t, "user-profile", m.Entry.Name)
	assert.Equal(t, "42", m.Params["userId"])
	assert.Equal(t, auth.LevelAuthenticated, m.Entry.Auth.Level)
}

func TestResolve_MethodMismatchIsNotFound(t *testing.T) {
	table, err := Build(tableConfig())
	require.NoError(t, err)

	_, err = table.Resolve(http.MethodDelete, "/api/v1/users/42")
	require.Error(t, err)

	var nf *util.RouteNotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.ErrorIs(t, err, util.ErrNoRoute)
}

func TestResolve_UnmatchedPath(t *testing.T) {
	table, err := Build(tableConfig())
	require.NoError(t, err)

	_, err = table.Resolve(http.MethodGet, "/api/v1/cruises/search")
	assert.ErrorIs(t, err, util.ErrNoRoute)
}

func TestResolve_WildcardMethods(t *testing.T) {
	table, err := Build(tableConfig())
	require.NoError(t, err)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPatch} {
		m, err := table.Resolve(method, "/api/v1/bookings/b1")
		require.NoError(t, err)
		assert.Equal(t, "bookings", m.Entry.Name)
	}
}

func TestBuild_AppliesRouteDefaults(t *testing.T) {
	cfg := tableConfig()
	table, err := Build(cfg)
	require.NoError(t, err)

	m, err := table.Resolve(http.MethodGet, "/api/v1/flights/search")
	require.NoError(t, err)

	// Routes without explicit policies inherit the defaults.
	assert.Equal(t, config.DefaultRateLimit().Capacity, m.Entry.RateLimit.Capacity)
	require.NotNil(t, m.Entry.Breaker)
	assert.Equal(t, config.DefaultBreaker().MinCalls, m.Entry.Breaker.MinCalls)
}

func TestBuild_RejectsInvalidTarget(t *testing.T) {
	cfg := &config.GatewayConfig{
		Routes: []config.RouteConfig{
			{
				Name:    "broken",
				Pattern: "/api/v1/broken",
				Methods: []string{"GET"},
				Target:  "://missing-scheme",
			},
		},
	}

	_, err := Build(cfg)
	assert.Error(t, err)
}

func TestBuild_FallbackDefaults(t *testing.T) {
	cfg := &config.GatewayConfig{
		Routes: []config.RouteConfig{
			{
				Name:    "flights",
				Pattern: "/api/v1/flights/**",
				Methods: []string{"GET"},
				Target:  "http://svc:8080",
				Fallback: &config.FallbackConfig{
					Status: 503,
					Body:   `{"flights":[],"degraded":true}`,
				},
			},
		},
	}

	table, err := Build(cfg)
	require.NoError(t, err)

	entry := table.Entries()[0]
	require.NotNil(t, entry.Fallback)
	assert.Equal(t, 503, entry.Fallback.Status)
	assert.Equal(t, "application/json", entry.Fallback.ContentType)
}
