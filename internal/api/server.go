package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/api/handlers"
	"github.com/curatarr/curatarr/internal/api/ratelimit"
	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/health"
	"github.com/curatarr/curatarr/internal/logger"
	"github.com/curatarr/curatarr/internal/rules"
)

// Connection is an external application reported by the status endpoint.
type Connection interface {
	IsConfigured() bool
	Test(ctx context.Context) error
}

// Deps are the services the API exposes.
type Deps struct {
	Rules       *rules.Service
	Collections *collections.Service
	Scheduler   handlers.TaskRunner
	Connections map[string]Connection
	Health      *health.Service
	Recent      *logger.Recent
	LogPath     string
}

// Server handles HTTP requests for the Curatarr API.
type Server struct {
	echo      *echo.Echo
	logger    zerolog.Logger
	cfg       *config.Config
	deps      Deps
	limiter   *ratelimit.Limiter
	startTime time.Time
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		logger:    logger.With().Str("component", "api").Logger(),
		cfg:       cfg,
		deps:      deps,
		limiter:   ratelimit.New(ratelimit.DefaultRequestsPerWindow, ratelimit.DefaultWindow),
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type connectionStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// getStatus reports the version and which applications are configured.
// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	conns := make([]connectionStatus, 0, len(s.deps.Connections))
	for name, conn := range s.deps.Connections {
		conns = append(conns, connectionStatus{Name: name, Configured: conn.IsConfigured()})
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Name < conns[j].Name })

	return c.JSON(http.StatusOK, map[string]any{
		"version":     config.Version,
		"startTime":   s.startTime.Format(time.RFC3339),
		"connections": conns,
	})
}

// testConnection checks that an application answers with the configured
// credentials.
// POST /api/v1/status/connections/:app/test
func (s *Server) testConnection(c echo.Context) error {
	name := c.Param("app")
	conn, ok := s.deps.Connections[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown application "+name)
	}
	if !conn.IsConfigured() {
		return echo.NewHTTPError(http.StatusBadRequest, name+" is not configured")
	}
	if err := conn.Test(c.Request().Context()); err != nil {
		return c.JSON(http.StatusOK, map[string]any{"success": false, "message": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
