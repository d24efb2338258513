package handlers

import (
	"time"

	"uscview/config"
	"uscview/services"
)

type Handler struct {
	Cfg      *config.Config
	Channels *services.ChannelService
	Topology *services.TopologyService
	Display  *services.DisplayStore
	Alarms   *services.AlarmService
	started  time.Time
}

func NewHandler(cfg *config.Config, channels *services.ChannelService, topology *services.TopologyService, display *services.DisplayStore, alarms *services.AlarmService) *Handler {
	return &Handler{
		Cfg:      cfg,
		Channels: channels,
		Topology: topology,
		Display:  display,
		Alarms:   alarms,
		started:  time.Now(),
	}
}
