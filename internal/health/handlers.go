package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for connection health.
type Handlers struct {
	health *Service
}

// NewHandlers creates new health handlers.
func NewHandlers(health *Service) *Handlers {
	return &Handlers{health: health}
}

// RegisterRoutes registers the health routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/summary", h.GetSummary)
	g.POST("/:name/test", h.Test)
}

// List returns all tracked connections.
// GET /api/v1/health
func (h *Handlers) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.List())
}

// GetSummary returns counts per status.
// GET /api/v1/health/summary
func (h *Handlers) GetSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.Summary())
}

// Test probes one connection now and returns its updated state.
// POST /api/v1/health/:name/test
func (h *Handlers) Test(c echo.Context) error {
	item, ok := h.health.Check(c.Request().Context(), c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown connection")
	}
	return c.JSON(http.StatusOK, item)
}
