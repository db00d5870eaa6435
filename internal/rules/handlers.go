package rules

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/plex"
)

// Handlers provides HTTP handlers for rule groups.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new rule handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers rule routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/properties", h.Properties)
	g.POST("/test", h.Test)
	g.POST("/yaml/decode", h.DecodeYAML)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/yaml", h.ExportYAML)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, collections.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, collections.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// List returns all rule groups.
// GET /api/v1/rules
func (h *Handlers) List(c echo.Context) error {
	groups, err := h.service.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if groups == nil {
		groups = []*RuleGroup{}
	}
	return c.JSON(http.StatusOK, groups)
}

// Get returns a rule group.
// GET /api/v1/rules/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	g, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, g)
}

// Create stores a new rule group.
// POST /api/v1/rules
func (h *Handlers) Create(c echo.Context) error {
	var in SaveInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g, err := h.service.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, g)
}

// Update saves a rule group.
// PUT /api/v1/rules/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in SaveInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g, err := h.service.Update(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, g)
}

// Delete removes a rule group and its collection.
// DELETE /api/v1/rules/:id
func (h *Handlers) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Properties returns the property catalog.
// GET /api/v1/rules/properties
func (h *Handlers) Properties(c echo.Context) error {
	return c.JSON(http.StatusOK, Properties())
}

type testInput struct {
	RuleGroupID int64  `json:"ruleGroupId"`
	PlexID      string `json:"plexId"`
}

// Test evaluates a rule group against one item.
// POST /api/v1/rules/test
func (h *Handlers) Test(c echo.Context) error {
	var in testInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.RuleGroupID == 0 || in.PlexID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ruleGroupId and plexId are required")
	}
	res, err := h.service.Test(c.Request().Context(), in.RuleGroupID, in.PlexID)
	if errors.Is(err, plex.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// ExportYAML renders a rule group's rules as YAML.
// GET /api/v1/rules/:id/yaml
func (h *Handlers) ExportYAML(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	g, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	data, err := EncodeYAML(g.DataType, g.Rules)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "application/yaml", data)
}

type decodedRules struct {
	DataType plex.MediaType `json:"dataType"`
	Rules    []Rule         `json:"rules"`
}

// DecodeYAML parses a YAML rule file into rules.
// POST /api/v1/rules/yaml/decode
func (h *Handlers) DecodeYAML(c echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	dt, rules, err := DecodeYAML(data)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, decodedRules{DataType: dt, Rules: rules})
}
