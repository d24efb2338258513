package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"uscview/services"
)

// GetHealth returns OK
func (h *Handler) GetHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetStatus returns backend status
func (h *Handler) GetStatus(c echo.Context) error {
	_, refreshedAt, ok := h.Channels.LastResponse()

	status := map[string]interface{}{
		"status":       "running",
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"controller":   h.Cfg.Controller.BaseURL,
		"topology_id":  h.Cfg.Controller.TopologyID,
		"display_mode": string(h.Display.Mode()),
		"refreshed":    ok,
		"timestamp":    time.Now(),
	}
	if ok {
		status["last_refresh"] = refreshedAt
	}
	return c.JSON(http.StatusOK, status)
}

// GetDisplayStatus returns display container health and statistics
func (h *Handler) GetDisplayStatus(c echo.Context) error {
	mode := h.Display.Mode()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"mode":    string(mode),
		"healthy": !h.Cfg.Redis.Enabled || mode == services.DisplayModeRedis,
		"stats":   h.Display.Stats(),
	})
}

// ClearDisplay empties the display container
func (h *Handler) ClearDisplay(c echo.Context) error {
	if err := h.Display.Clear(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Display cleared successfully",
	})
}
