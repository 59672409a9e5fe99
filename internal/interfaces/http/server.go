// internal/interfaces/http/server.go
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/app"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/interfaces/http/middleware"
	"github.com/kg-components/storefront/internal/interfaces/http/routes"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const maxRequestBody = 1 << 20

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	log        logrus.FieldLogger
	app        *app.App
	gin        *gin.Engine
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer builds the engine with every route mounted
func NewServer(cfg *config.Config, log logrus.FieldLogger, a *app.App) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:    cfg,
		log:       log.WithField("component", "http"),
		app:       a,
		gin:       gin.New(),
		startedAt: time.Now(),
	}
	if err := s.gin.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		s.log.WithError(err).Warn("invalid trusted proxies")
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      s.gin,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// Handler returns the gin engine
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start serves until Stop
func (s *Server) Start() error {
	s.log.WithField("port", s.config.Server.Port).Info("HTTP server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

func (s *Server) setupMiddleware() {
	s.gin.Use(gin.Recovery())
	s.gin.Use(middleware.RequestID())
	s.gin.Use(middleware.Logger(s.log))
	s.gin.Use(middleware.Metrics())
	s.gin.Use(middleware.CORS(s.config))
	s.gin.Use(middleware.SecurityHeaders())
	s.gin.Use(middleware.RateLimit(s.config, s.app.Client().Cache(), s.log))
	s.gin.Use(middleware.RequestSizeLimit(maxRequestBody))
	s.gin.Use(middleware.Timeout(s.config.Server.RequestTimeout))
}

func (s *Server) setupRoutes() {
	s.gin.GET("/health", s.healthCheck)
	s.gin.GET("/ready", s.readinessCheck)
	s.gin.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.SetupRoutes(s.gin.Group(""), routes.Dependencies{
		Config:      s.config,
		Log:         s.log,
		Storefronts: s.app,
		Contact:     s.app,
	})
}

// healthCheck reports the backend. A store without a database is offline
// by configuration and still healthy.
func (s *Server) healthCheck(c *gin.Context) {
	client := s.app.Client()
	if !client.Online() {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"store":     "offline",
			"timestamp": time.Now().UTC(),
			"version":   s.config.App.Version,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"store":       "online",
		"timestamp":   time.Now().UTC(),
		"version":     s.config.App.Version,
		"environment": s.config.App.Environment,
	})
}

func (s *Server) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
		"storefronts": s.app.Registry().Len(),
	})
}
