package collections

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for collections and exclusions.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new collection handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers collection routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.GET("/:id/media", h.Members)
	g.POST("/:id/media", h.AddMedia)
	g.DELETE("/:id/media/:plexId", h.RemoveMedia)
	g.GET("/:id/logs", h.Logs)
}

// RegisterExclusionRoutes registers exclusion routes on an Echo group.
func (h *Handlers) RegisterExclusionRoutes(g *echo.Group) {
	g.GET("", h.ListExclusions)
	g.POST("", h.AddExclusion)
	g.DELETE("/:id", h.RemoveExclusion)
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMemberNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// List returns all collections.
// GET /api/v1/collections
func (h *Handlers) List(c echo.Context) error {
	cols, err := h.service.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if cols == nil {
		cols = []*Collection{}
	}
	return c.JSON(http.StatusOK, cols)
}

// Get returns a collection.
// GET /api/v1/collections/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	col, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, col)
}

// UpdateInput holds the editable collection settings.
type UpdateInput struct {
	Title                string `json:"title"`
	Description          string `json:"description"`
	ArrAction            Action `json:"arrAction"`
	DeleteAfterDays      int    `json:"deleteAfterDays"`
	ListExclusions       bool   `json:"listExclusions"`
	ForceRequestSync     bool   `json:"forceRequestSync"`
	ManualCollection     bool   `json:"manualCollection"`
	ManualCollectionName string `json:"manualCollectionName"`
	IsActive             bool   `json:"isActive"`
}

// Update changes collection settings.
// PUT /api/v1/collections/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var input UpdateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	col, err := h.service.Get(ctx, id)
	if err != nil {
		return httpError(err)
	}
	col.Title = input.Title
	col.Description = input.Description
	col.ArrAction = input.ArrAction
	col.DeleteAfterDays = input.DeleteAfterDays
	col.ListExclusions = input.ListExclusions
	col.ForceRequestSync = input.ForceRequestSync
	col.ManualCollection = input.ManualCollection
	col.ManualCollectionName = input.ManualCollectionName
	col.IsActive = input.IsActive

	if err := h.service.Update(ctx, col); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, col)
}

// Members returns the members of a collection.
// GET /api/v1/collections/:id/media
func (h *Handlers) Members(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	members, err := h.service.Members(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if members == nil {
		members = []Member{}
	}
	return c.JSON(http.StatusOK, members)
}

type mediaInput struct {
	PlexID string `json:"plexId"`
}

// AddMedia pins an item in a collection.
// POST /api/v1/collections/:id/media
func (h *Handlers) AddMedia(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var input mediaInput
	if err := c.Bind(&input); err != nil || input.PlexID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plexId is required")
	}
	if err := h.service.AddManual(c.Request().Context(), id, input.PlexID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveMedia removes an item from a collection and excludes it.
// DELETE /api/v1/collections/:id/media/:plexId
func (h *Handlers) RemoveMedia(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.RemoveManual(c.Request().Context(), id, c.Param("plexId")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Logs returns the collection log.
// GET /api/v1/collections/:id/logs
func (h *Handlers) Logs(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	logs, err := h.service.Logs(c.Request().Context(), id, limit)
	if err != nil {
		return httpError(err)
	}
	if logs == nil {
		logs = []LogEntry{}
	}
	return c.JSON(http.StatusOK, logs)
}

// ListExclusions returns all exclusions.
// GET /api/v1/exclusions
func (h *Handlers) ListExclusions(c echo.Context) error {
	list, err := h.service.Exclusions(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if list == nil {
		list = []Exclusion{}
	}
	return c.JSON(http.StatusOK, list)
}

// AddExclusion excludes an item from a rule group or from all groups.
// POST /api/v1/exclusions
func (h *Handlers) AddExclusion(c echo.Context) error {
	var e Exclusion
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.AddExclusion(c.Request().Context(), &e); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

// RemoveExclusion deletes an exclusion.
// DELETE /api/v1/exclusions/:id
func (h *Handlers) RemoveExclusion(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.RemoveExclusion(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
