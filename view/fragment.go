// Package view turns a USC topology document into the channel panel shown on
// the dashboard.
//
// Rendering happens in two steps. Render walks the document
// (topologies → channels → sessions) and builds a Fragment, a plain tree of
// blocks in traversal order. Fragment.HTML then executes the panel template
// over that tree; every field from the controller goes through html/template
// escaping, so markup in ids or node names is displayed rather than
// interpreted.
package view

import (
	"errors"
	"fmt"

	"uscview/models"
)

// ErrMalformedResponse is returned when the document lacks output.topology
// or carries values that cannot be displayed.
var ErrMalformedResponse = errors.New("malformed topology response")

// Header columns of the panel, in display order
var HeaderColumns = []string{"Alarms", "Description", "Bytes In", "Bytes Out"}

// Badge styling. A count above zero gets the danger pair, anything else the
// success pair.
const (
	BadgeClassDanger  = "label-danger"
	BadgeClassSuccess = "label-success"
	BadgeColorDanger  = "#d9534f"
	BadgeColorSuccess = "#5cb85c"
)

// Options tweak traversal
type Options struct {
	// StopOnMissingChannels halts at the first topology without a channel
	// list instead of skipping it. The legacy dashboard behaved this way.
	StopOnMissingChannels bool
}

// Badge is the round alarm counter next to a channel or session
type Badge struct {
	Count int64
	Class string
	Color string
}

func NewBadge(alarms int64) Badge {
	if alarms > 0 {
		return Badge{Count: alarms, Class: BadgeClassDanger, Color: BadgeColorDanger}
	}
	return Badge{Count: alarms, Class: BadgeClassSuccess, Color: BadgeColorSuccess}
}

// Danger reports whether the badge uses the alarm styling
func (b Badge) Danger() bool {
	return b.Class == BadgeClassDanger
}

// ChannelBlock is one channel row of the panel with its nested sessions
type ChannelBlock struct {
	Badge      Badge
	ChannelID  string
	Controller string
	Device     string
	Type       string
	CallHome   string
	Sessions   int64
	BytesIn    int64
	BytesOut   int64

	SessionBlocks []SessionBlock
}

// SessionBlock is a session row, indented under its channel
type SessionBlock struct {
	Badge     Badge
	SessionID string
	Port      string
	BytesIn   int64
	BytesOut  int64
}

// Fragment is the display-ready channel panel
type Fragment struct {
	Header   []string
	Channels []ChannelBlock
}

// ChannelCount is the number of channel blocks in the fragment
func (f *Fragment) ChannelCount() int {
	return len(f.Channels)
}

// SessionCount is the number of nested session blocks across all channels
func (f *Fragment) SessionCount() int {
	n := 0
	for i := range f.Channels {
		n += len(f.Channels[i].SessionBlocks)
	}
	return n
}

// AlarmTotal sums channel and session alarm counts
func (f *Fragment) AlarmTotal() int64 {
	var total int64
	for i := range f.Channels {
		total += f.Channels[i].Badge.Count
		for _, s := range f.Channels[i].SessionBlocks {
			total += s.Badge.Count
		}
	}
	return total
}

// Render builds the panel fragment for resp. It does no I/O and returns the
// same fragment for the same document.
func Render(resp *models.TopologyResponse, opts Options) (*Fragment, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedResponse)
	}
	if resp.Output == nil {
		return nil, fmt.Errorf("%w: missing \"output\"", ErrMalformedResponse)
	}
	if resp.Output.Topology == nil {
		return nil, fmt.Errorf("%w: missing \"output.topology\"", ErrMalformedResponse)
	}

	frag := &Fragment{
		Header:   append([]string(nil), HeaderColumns...),
		Channels: make([]ChannelBlock, 0),
	}

	for ti, topo := range Visible(resp, opts) {
		for ci := range topo.Channel {
			block, err := channelBlock(&topo.Channel[ci])
			if err != nil {
				return nil, fmt.Errorf("topology %d channel %d: %w", ti, ci, err)
			}
			frag.Channels = append(frag.Channels, block)
		}
	}

	return frag, nil
}

// Visible returns the topologies whose channels appear on the panel, in
// order: those with a channel list, up to the first one without when
// StopOnMissingChannels is set.
func Visible(resp *models.TopologyResponse, opts Options) []*models.Topology {
	if resp == nil || resp.Output == nil {
		return nil
	}
	visible := make([]*models.Topology, 0, len(resp.Output.Topology))
	for ti := range resp.Output.Topology {
		topo := &resp.Output.Topology[ti]
		if topo.Channel == nil {
			if opts.StopOnMissingChannels {
				break
			}
			continue
		}
		visible = append(visible, topo)
	}
	return visible
}

func channelBlock(ch *models.Channel) (ChannelBlock, error) {
	if ch.ChannelAlarms < 0 {
		return ChannelBlock{}, fmt.Errorf("%w: channel %q has negative alarm count %d",
			ErrMalformedResponse, ch.ChannelID, ch.ChannelAlarms)
	}
	if ch.BytesIn < 0 || ch.BytesOut < 0 {
		return ChannelBlock{}, fmt.Errorf("%w: channel %q has negative byte counters",
			ErrMalformedResponse, ch.ChannelID)
	}

	block := ChannelBlock{
		Badge:      NewBadge(ch.ChannelAlarms),
		ChannelID:  ch.ChannelID,
		Controller: ch.SourceNode(),
		Device:     ch.DestNode(),
		Type:       ch.ChannelType,
		CallHome:   ch.CallHome.String(),
		Sessions:   ch.Sessions,
		BytesIn:    ch.BytesIn,
		BytesOut:   ch.BytesOut,
	}

	for si := range ch.Session {
		s := &ch.Session[si]
		if s.SessionAlarms < 0 {
			return ChannelBlock{}, fmt.Errorf("%w: session %q has negative alarm count %d",
				ErrMalformedResponse, s.SessionID, s.SessionAlarms)
		}
		if s.BytesIn < 0 || s.BytesOut < 0 {
			return ChannelBlock{}, fmt.Errorf("%w: session %q has negative byte counters",
				ErrMalformedResponse, s.SessionID)
		}
		block.SessionBlocks = append(block.SessionBlocks, SessionBlock{
			Badge:     NewBadge(s.SessionAlarms),
			SessionID: s.SessionID,
			Port:      s.TerminationPointID(),
			BytesIn:   s.BytesIn,
			BytesOut:  s.BytesOut,
		})
	}

	return block, nil
}
