package models

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// CallHomeDisplay is the call-home marker the controller emits for channels
// that were opened by the device.
const CallHomeDisplay = "CallHome"

// TopologyResponse is the body returned by usc-channel:view-channel
type TopologyResponse struct {
	Output *TopologyOutput `json:"output"`
}

type TopologyOutput struct {
	Topology []Topology `json:"topology"`
}

// Topology is one named collection of channels. Channel is nil when the
// controller omitted the list, which is distinct from an empty list.
type Topology struct {
	TopologyID string    `json:"topology-id,omitempty"`
	Node       []Node    `json:"node,omitempty"`
	Channel    []Channel `json:"channel"`
}

// Node is a controller or device known to the topology
type Node struct {
	NodeID   string `json:"node-id"`
	NodeType string `json:"node-type,omitempty"`
}

// Channel is a managed connection between a controller node and a device node
type Channel struct {
	ChannelID     string         `json:"channel-id"`
	ChannelAlarms int64          `json:"channel-alarms"`
	ChannelType   string         `json:"channel-type"`
	CallHome      CallHome       `json:"call-home"`
	Sessions      int64          `json:"sessions"`
	BytesIn       int64          `json:"bytes-in"`
	BytesOut      int64          `json:"bytes-out"`
	Source        *ChannelSource `json:"source,omitempty"`
	Destination   *ChannelDest   `json:"destination,omitempty"`
	Session       []Session      `json:"session,omitempty"`
	ChannelAlarm  []Alarm        `json:"channel-alarm,omitempty"`
}

type ChannelSource struct {
	SourceNode string `json:"source-node"`
}

type ChannelDest struct {
	DestNode string `json:"dest-node"`
}

// SourceNode returns the controller node id, or "" when absent
func (c *Channel) SourceNode() string {
	if c.Source == nil {
		return ""
	}
	return c.Source.SourceNode
}

// DestNode returns the device node id, or "" when absent
func (c *Channel) DestNode() string {
	if c.Destination == nil {
		return ""
	}
	return c.Destination.DestNode
}

// Session is a sub-connection within a channel, bound to a termination point
type Session struct {
	SessionID        string            `json:"session-id"`
	SessionAlarms    int64             `json:"session-alarms"`
	BytesIn          int64             `json:"bytes-in"`
	BytesOut         int64             `json:"bytes-out"`
	TerminationPoint *TerminationPoint `json:"termination-point,omitempty"`
	SessionAlarm     []Alarm           `json:"session-alarm,omitempty"`
}

type TerminationPoint struct {
	TerminationPointID string `json:"termination-point-id"`
}

// TerminationPointID returns the port id, or "" when absent
func (s *Session) TerminationPointID() string {
	if s.TerminationPoint == nil {
		return ""
	}
	return s.TerminationPoint.TerminationPointID
}

// Alarm is a single channel or session error reported by the controller
type Alarm struct {
	AlarmID      string `json:"alarm-id"`
	AlarmCode    string `json:"alarm-code,omitempty"`
	AlarmMessage string `json:"alarm-message,omitempty"`
}

// CallHome accepts either a JSON boolean or a JSON string. Older controllers
// send true/false, newer ones send "CallHome" or "".
type CallHome struct {
	text   string
	isBool bool
	value  bool
}

func CallHomeBool(v bool) CallHome {
	return CallHome{text: strconv.FormatBool(v), isBool: true, value: v}
}

func CallHomeString(s string) CallHome {
	return CallHome{text: s, value: s == CallHomeDisplay}
}

// String is the value shown on the dashboard
func (c CallHome) String() string {
	return c.text
}

// Enabled reports whether the channel was established by call home
func (c CallHome) Enabled() bool {
	return c.value
}

func (c *CallHome) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*c = CallHome{}
		return nil
	case "true":
		*c = CallHomeBool(true)
		return nil
	case "false":
		*c = CallHomeBool(false)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("call-home must be a boolean or a string, got %s", data)
	}
	*c = CallHomeString(s)
	return nil
}

func (c CallHome) MarshalJSON() ([]byte, error) {
	if c.isBool {
		return []byte(strconv.FormatBool(c.value)), nil
	}
	return json.Marshal(c.text)
}
