package handlers

import (
	"bytes"
	"context"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"uscview/models"
	"uscview/view"
)

// GetPage godoc
// @Summary Channel dashboard
// @Description Full HTML page wrapping the current channel panel. Refreshes once if the display is empty.
// @Tags channels
// @Produce html
// @Success 200 {string} string
// @Router /usc [get]
func (h *Handler) GetPage(c echo.Context) error {
	data := view.PageData{
		Title:       h.Cfg.Render.Title,
		ContainerID: h.Cfg.Render.ContainerID,
	}
	if panel, ok := h.Channels.EnsurePanel(c.Request().Context()); ok {
		data.Panel = template.HTML(panel.HTML)
		data.Channels = panel.Channels
		data.Sessions = panel.Sessions
		data.RenderedAt = panel.RenderedAt
	}

	var buf bytes.Buffer
	if err := view.WritePage(&buf, data); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// GetPanel godoc
// @Summary Current channel panel
// @Description Returns the panel fragment currently held in the display container
// @Tags channels
// @Produce html
// @Success 200 {string} string
// @Failure 404 {object} map[string]string
// @Router /api/channels/panel [get]
func (h *Handler) GetPanel(c echo.Context) error {
	panel, ok := h.Channels.Panel()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no channel panel rendered yet"})
	}
	return c.HTML(http.StatusOK, panel.HTML)
}

// RefreshChannels godoc
// @Summary Refresh the channel panel
// @Description Fetches the topology from the controller and replaces the display container
// @Tags channels
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /api/channels/refresh [post]
func (h *Handler) RefreshChannels(c echo.Context) error {
	ok, err := h.Channels.Refresh(c.Request().Context())
	if !ok {
		body := map[string]interface{}{"success": false}
		if err != nil {
			body["error"] = err.Error()
		}
		return c.JSON(http.StatusBadGateway, body)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

// GetChannels godoc
// @Summary Channel summaries
// @Description Flattened channels of the last successful refresh, with device location
// @Tags channels
// @Produce json
// @Success 200 {object} models.ChannelsResponse
// @Router /api/channels [get]
func (h *Handler) GetChannels(c echo.Context) error {
	resp, at, _ := h.Channels.LastResponse()
	summaries := h.Topology.Summaries(resp)
	return c.JSON(http.StatusOK, models.ChannelsResponse{
		Channels:    summaries,
		Total:       len(summaries),
		RefreshedAt: at,
	})
}

// GetRegions godoc
// @Summary Channels by region
// @Description Groups channel ids by the country of their device node
// @Tags channels
// @Produce json
// @Success 200 {array} models.RegionalCluster
// @Router /api/channels/regions [get]
func (h *Handler) GetRegions(c echo.Context) error {
	resp, _, _ := h.Channels.LastResponse()
	return c.JSON(http.StatusOK, h.Topology.Regions(resp))
}

// AddChannel godoc
// @Summary Connect a device
// @Description Runs usc-channel:add-channel on the controller and refreshes the panel on success
// @Tags channels
// @Accept json
// @Produce json
// @Param channel body models.ChannelEndpoint true "Device endpoint"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]interface{}
// @Router /api/channels [post]
func (h *Handler) AddChannel(c echo.Context) error {
	return h.manageChannel(c, h.Channels.AddChannel)
}

// RemoveChannel godoc
// @Summary Disconnect a device
// @Description Runs usc-channel:remove-channel on the controller and refreshes the panel on success
// @Tags channels
// @Accept json
// @Produce json
// @Param channel body models.ChannelEndpoint true "Device endpoint"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]interface{}
// @Router /api/channels [delete]
func (h *Handler) RemoveChannel(c echo.Context) error {
	return h.manageChannel(c, h.Channels.RemoveChannel)
}

func (h *Handler) manageChannel(c echo.Context, op func(context.Context, models.ChannelEndpoint) (*models.ChannelOperationResponse, error)) error {
	var ep models.ChannelEndpoint
	if err := c.Bind(&ep); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid channel endpoint"})
	}
	if err := ep.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp, err := op(c.Request().Context(), ep)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]interface{}{"success": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": resp.Succeeded(),
		"result":  resp.Result(),
	})
}
