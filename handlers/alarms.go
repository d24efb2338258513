package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// GetAlarms godoc
// @Summary Alarm event history
// @Description Alarm count increases noticed between refreshes, newest first
// @Tags alarms
// @Produce json
// @Param limit query int false "Max events (default: 50, 0 for all)"
// @Success 200 {object} map[string]interface{}
// @Router /api/alarms [get]
func (h *Handler) GetAlarms(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	events := h.Alarms.History(limit)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events":  events,
		"count":   len(events),
		"actions": h.Alarms.Actions(),
	})
}
