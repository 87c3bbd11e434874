// Package server wires the gin engine: middleware, the /api routes, health
// and metrics endpoints, and the http.Server lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	assistanthandler "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/assistant/handler"
	authhandler "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/auth/handler"
	unithandler "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit/handler"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/metrics"
)

// Config holds the HTTP settings.
type Config struct {
	Addr               string
	CORSOrigins        []string
	RateLimitPerSecond int
	RateLimitBurst     int
	// MetricsEnabled mounts GET /metrics.
	MetricsEnabled bool
}

// Handlers are the domain handlers mounted under /api.
type Handlers struct {
	Auth      *authhandler.AuthHandler
	Units     *unithandler.UnitHandler
	Assistant *assistanthandler.AssistantHandler
}

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	limiter *ipLimiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds the engine and mounts every route.
func New(cfg Config, h Handlers, m *metrics.Metrics, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:  gin.New(),
		limiter: newIPLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		metrics: m,
		logger:  logger,
	}

	s.engine.Use(gin.CustomRecovery(s.recovery))
	s.engine.Use(requestID())
	s.engine.Use(s.requestLogger())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		s.engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := s.engine.Group("/api", s.rateLimit())
	h.Auth.RegisterRoutes(api)
	h.Units.RegisterRoutes(api, h.Auth.RequireAdmin())
	h.Assistant.RegisterRoutes(api)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	})

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.Handler(s.engine),
		ReadHeaderTimeout: 10 * time.Second,
		// Spreadsheet uploads and grounded answers can take a while.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	go s.limiter.startCleanup()

	s.logger.Info("http server starting", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.http.Shutdown(ctx)
}

func (s *Server) recovery(c *gin.Context, recovered any) {
	s.logger.Error("panic serving request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Any("panic", recovered),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Erro interno do servidor."})
}
