package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tripwell/tripgate/internal/observability"
)

// AdminServer exposes health, readiness, metrics, and introspection endpoints
// on a separate listener so they never compete with proxied traffic.
type AdminServer struct {
	gateway *Gateway
	logger  observability.Logger
	server  *http.Server
}

// routeView is the admin representation of one route entry.
type routeView struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Target  string `json:"target"`
	Auth    string `json:"auth"`
	Timeout string `json:"timeout,omitempty"`
}

// NewAdminServer creates the admin server bound to addr.
func NewAdminServer(g *Gateway, addr string, logger observability.Logger) *AdminServer {
	a := &AdminServer{
		gateway: g,
		logger:  logger,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", a.handleHealth)
	engine.GET("/readyz", a.handleReady)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := engine.Group("/admin")
	admin.GET("/routes", a.handleRoutes)
	admin.GET("/breakers", a.handleBreakers)
	admin.POST("/breakers/reset", a.handleBreakersReset)

	a.server = &http.Server{
		Addr:        addr,
		Handler:     engine,
		ReadTimeout: 10 * time.Second,
	}

	return a
}

// Start begins serving in the background.
func (a *AdminServer) Start() {
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("admin listener failed", observability.Error(err))
		}
	}()

	a.logger.Info("admin server started",
		observability.String("address", a.server.Addr),
	)
}

// Stop drains the admin listener.
func (a *AdminServer) Stop(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *AdminServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": a.gateway.Uptime().String(),
	})
}

func (a *AdminServer) handleReady(c *gin.Context) {
	if !a.gateway.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": a.gateway.State().String(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (a *AdminServer) handleRoutes(c *gin.Context) {
	entries := a.gateway.Table().Entries()
	views := make([]routeView, 0, len(entries))
	for _, e := range entries {
		views = append(views, routeView{
			Name:    e.Name,
			Pattern: e.Pattern,
			Target:  e.Target.String(),
			Auth:    e.Auth.Level.String(),
			Timeout: e.Timeout.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"routes": views})
}

func (a *AdminServer) handleBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"breakers": a.gateway.Breakers().Stats()})
}

func (a *AdminServer) handleBreakersReset(c *gin.Context) {
	a.gateway.Breakers().ResetAll()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
