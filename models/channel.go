package models

import "time"

// ChannelSummary is the flattened API model for GET /api/channels
type ChannelSummary struct {
	TopologyID    string `json:"topology_id"`
	ChannelID     string `json:"channel_id"`
	ChannelType   string `json:"channel_type"`
	CallHome      bool   `json:"call_home"`
	Controller    string `json:"controller"`
	Device        string `json:"device"`
	Alarms        int64  `json:"alarms"`
	SessionAlarms int64  `json:"session_alarms"`
	Sessions      int    `json:"sessions"`
	BytesIn       int64  `json:"bytes_in"`
	BytesOut      int64  `json:"bytes_out"`

	// Geo estimation of the device node, when its id is an IP address
	Country string  `json:"country"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`

	// Great-circle distance between controller and device, when both resolve
	DistanceKm float64 `json:"distance_km,omitempty"`
}

// ChannelsResponse wraps summaries with the time of the refresh they came from
type ChannelsResponse struct {
	Channels    []ChannelSummary `json:"channels"`
	Total       int              `json:"total"`
	RefreshedAt time.Time        `json:"refreshed_at"`
}

// RegionalCluster groups channels by the region of their device
type RegionalCluster struct {
	Region       string   `json:"region"`
	ChannelCount int      `json:"channel_count"`
	ChannelIDs   []string `json:"channel_ids"`
	Alarms       int64    `json:"alarms"`
}

// Panel is the rendered content of the channel display container
type Panel struct {
	HTML       string    `json:"html"`
	Channels   int       `json:"channels"`
	Sessions   int       `json:"sessions"`
	Alarms     int64     `json:"alarms"`
	RenderedAt time.Time `json:"rendered_at"`
}
