// Package admin is the driver's diagnostics HTTP surface: a loopback
// side-channel for operators, never the INDI wire transport itself
// (SPEC_FULL.md §2). Grounded on internal/seed/server.go's
// gin.New()+cors+observability middleware wiring and
// internal/mirage/routes.go's /health, /metrics, /ready route shape.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/indidrv/internal/observability"
	"github.com/danmuck/indidrv/internal/plugins"
)

// Server is the driver's admin HTTP surface.
type Server struct {
	name     string
	appeared time.Time
	router   *gin.Engine
}

// New builds an admin server for driver name, bound to no address
// until Run is called.
func New(name string, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(name))
	// With no origins configured, no CORS middleware is installed and
	// no cross-origin headers are sent.
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{name: name, appeared: time.Now(), router: r}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"driver":  s.name,
			"uptime":  time.Since(s.appeared).String(),
			"version": "0.0.1",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/plugins", func(c *gin.Context) {
		out := make(map[string]any)
		for name, p := range plugins.All() {
			status, err := p.Status()
			if err != nil {
				out[name] = gin.H{"error": err.Error()}
				continue
			}
			out[name] = status
		}
		c.JSON(http.StatusOK, out)
	})

	s.router.POST("/plugins/:name/actions/:action", func(c *gin.Context) {
		p, ok := plugins.Get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown plugin"})
			return
		}
		action, ok := p.Actions()[c.Param("action")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
			return
		}
		result, err := action()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": result})
	})
}

// Run serves the admin surface on addr until the listener fails or
// the process exits. It is meant to be launched in its own goroutine
// by the driver binary, exactly like ghost.Service.serveAdminControl.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
