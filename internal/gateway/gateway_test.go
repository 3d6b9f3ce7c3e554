package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwell/tripgate/internal/config"
)

func gatewayConfig(backendURL string) *config.GatewayConfig {
	cfg := &config.GatewayConfig{
		Routes: []config.RouteConfig{
			{
				Name:    "flights",
				Pattern: "/api/v1/flights/**",
				Methods: []string{"GET"},
				Target:  backendURL,
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestGateway_ServesConfiguredRoute(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"flights":[]}`))
	}))
	defer backend.Close()

	gw, err := New(context.Background(), gatewayConfig(backend.URL))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/flights/search", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"flights":[]}`, rec.Body.String())

	// Every response carries a request ID.
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestGateway_UnknownPathIs404(t *testing.T) {
	gw, err := New(context.Background(), gatewayConfig("http://flight-service:8080"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/cruises", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_ROUTE")
}

func TestGateway_ReloadSwapsRoutes(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	ctx := context.Background()
	gw, err := New(ctx, gatewayConfig(backend.URL))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/hotels/h1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	next := gatewayConfig(backend.URL)
	next.Routes = append(next.Routes, config.RouteConfig{
		Name:    "hotels",
		Pattern: "/api/v1/hotels/**",
		Methods: []string{"GET"},
		Target:  backend.URL,
	})
	next.ApplyDefaults()
	require.NoError(t, gw.Reload(ctx, next))

	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/hotels/h1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, gw.Table().Len())
}

func TestGateway_ReloadRejectsInvalidConfigAndKeepsServing(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	ctx := context.Background()
	gw, err := New(ctx, gatewayConfig(backend.URL))
	require.NoError(t, err)

	bad := &config.GatewayConfig{}
	bad.ApplyDefaults()
	assert.Error(t, gw.Reload(ctx, bad))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/flights/search", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateway_Lifecycle(t *testing.T) {
	cfg := gatewayConfig("http://flight-service:8080")
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Admin.Enabled = false

	ctx := context.Background()
	gw, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, gw.State())

	require.NoError(t, gw.Start(ctx))
	assert.True(t, gw.IsRunning())
	assert.Error(t, gw.Start(ctx))

	require.NoError(t, gw.Stop(ctx))
	assert.Equal(t, StateStopped, gw.State())
	assert.Error(t, gw.Stop(ctx))
}
