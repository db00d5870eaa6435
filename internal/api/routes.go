package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/curatarr/curatarr/internal/api/handlers"
	apimw "github.com/curatarr/curatarr/internal/api/middleware"
	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/health"
	"github.com/curatarr/curatarr/internal/metrics"
	"github.com/curatarr/curatarr/internal/rules"
)

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// Request body size limit (2MB)
	s.echo.Use(middleware.BodyLimit("2M"))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)
	api.POST("/status/connections/:app/test", s.testConnection)

	if s.deps.Rules != nil {
		rules.NewHandlers(s.deps.Rules).RegisterRoutes(api.Group("/rules"))
	}
	if s.deps.Collections != nil {
		collectionHandlers := collections.NewHandlers(s.deps.Collections)
		collectionHandlers.RegisterRoutes(api.Group("/collections"))
		collectionHandlers.RegisterExclusionRoutes(api.Group("/exclusions"))
	}
	if s.deps.Health != nil {
		health.NewHandlers(s.deps.Health).RegisterRoutes(api.Group("/health"))
	}
	if s.deps.Scheduler != nil {
		handlers.NewSchedulerHandler(s.deps.Scheduler).RegisterRoutes(api.Group("/tasks"), s.limiter.Middleware())
	}

	NewLogsHandlers(s.deps.Recent, s.deps.LogPath).RegisterRoutes(api.Group("/logs"))
}
