package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/curatarr/curatarr/internal/scheduler"
)

// TaskRunner is the scheduler surface exposed over HTTP.
type TaskRunner interface {
	ListTasks() []scheduler.TaskInfo
	GetTask(taskID string) (*scheduler.TaskInfo, error)
	RunNow(taskID string) error
}

// SchedulerHandler handles scheduler-related API requests.
type SchedulerHandler struct {
	scheduler TaskRunner
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(sched TaskRunner) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: sched,
	}
}

// RegisterRoutes registers task routes. runMiddleware wraps the run route.
func (h *SchedulerHandler) RegisterRoutes(g *echo.Group, runMiddleware ...echo.MiddlewareFunc) {
	g.GET("", h.ListTasks)
	g.GET("/:id", h.GetTask)
	g.POST("/:id/run", h.RunTask, runMiddleware...)
}

// ListTasks returns all scheduled tasks.
// GET /api/v1/tasks
func (h *SchedulerHandler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// GetTask returns information about a specific task.
// GET /api/v1/tasks/:id
func (h *SchedulerHandler) GetTask(c echo.Context) error {
	task, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, task)
}

// RunTask manually triggers a task. A task that is already running is left
// alone and the request answers 409.
// POST /api/v1/tasks/:id/run
func (h *SchedulerHandler) RunTask(c echo.Context) error {
	taskID := c.Param("id")
	err := h.scheduler.RunNow(taskID)
	switch {
	case errors.Is(err, scheduler.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrTaskRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Task started",
		"taskId":  taskID,
	})
}
