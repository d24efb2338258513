package models

import "time"

// AlarmEvent records an increase of a channel or session alarm counter
// between two consecutive refreshes
type AlarmEvent struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Scope       string    `json:"scope"` // "channel" or "session"
	ChannelID   string    `json:"channel_id"`
	SessionID   string    `json:"session_id,omitempty"`
	DeviceNode  string    `json:"device_node"`
	Previous    int64     `json:"previous"`
	Current     int64     `json:"current"`
	LastMessage string    `json:"last_message,omitempty"`
	Delivered   []string  `json:"delivered,omitempty"` // action types that succeeded
}

// AlarmAction defines where alarm events are sent
type AlarmAction struct {
	Type   string                 `json:"type"` // "webhook", "discord"
	Config map[string]interface{} `json:"config"`
}

const (
	AlarmScopeChannel = "channel"
	AlarmScopeSession = "session"
)
