package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register mounts every route on e
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.GetHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/usc", h.GetPage)

	e.GET("/display/status", h.GetDisplayStatus)
	e.POST("/display/clear", h.ClearDisplay)

	api := e.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/alarms", h.GetAlarms)

	channels := api.Group("/channels")
	channels.GET("", h.GetChannels)
	channels.POST("", h.AddChannel)
	channels.DELETE("", h.RemoveChannel)
	channels.GET("/panel", h.GetPanel)
	channels.GET("/regions", h.GetRegions)
	channels.POST("/refresh", h.RefreshChannels)
}
