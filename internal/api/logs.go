package api

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/curatarr/curatarr/internal/logger"
)

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	recent  *logger.Recent
	logPath string
}

// NewLogsHandlers creates a new logs handlers instance. recent may be nil.
func NewLogsHandlers(recent *logger.Recent, logPath string) *LogsHandlers {
	return &LogsHandlers{recent: recent, logPath: logPath}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns recent log entries from the ring buffer.
// GET /api/v1/logs
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	logs := []logger.Entry{}
	if h.recent != nil {
		logs = h.recent.Entries()
	}
	return c.JSON(http.StatusOK, logs)
}

// DownloadLogFile serves the current log file for download.
// GET /api/v1/logs/download
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	if h.logPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}
	if _, err := os.Stat(h.logPath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}
	return c.Attachment(h.logPath, "curatarr.log")
}
