package services

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"uscview/config"
	"uscview/metrics"
	"uscview/models"
)

// deliveryQueueSize bounds events waiting for the delivery loop
const deliveryQueueSize = 256

// AlarmSender delivers an alarm event to a chat channel
type AlarmSender interface {
	SendAlarm(event *models.AlarmEvent) error
}

// AlarmService compares alarm counters between consecutive topology
// responses and notifies on increases. Detection happens on the caller's
// goroutine; delivery to the configured actions runs in the loop started by
// Start.
type AlarmService struct {
	mu          sync.RWMutex
	enabled     bool
	seeded      bool
	baseline    map[string]int64
	history     []*models.AlarmEvent
	historySize int
	seq         uint64

	actions    []models.AlarmAction
	discord    AlarmSender
	httpClient *http.Client

	queue    chan *models.AlarmEvent
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewAlarmService(cfg *config.Config, discord *DiscordBotService) *AlarmService {
	size := cfg.Alarms.HistorySize
	if size <= 0 {
		size = 500
	}

	as := &AlarmService{
		enabled:     cfg.Alarms.Enabled,
		baseline:    make(map[string]int64),
		history:     make([]*models.AlarmEvent, 0),
		historySize: size,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		queue:       make(chan *models.AlarmEvent, deliveryQueueSize),
		stopChan:    make(chan struct{}),
	}

	if discord.Enabled() {
		as.discord = discord
		as.actions = append(as.actions, models.AlarmAction{Type: "discord"})
	}
	if cfg.Alarms.WebhookURL != "" {
		as.actions = append(as.actions, models.AlarmAction{
			Type:   "webhook",
			Config: map[string]interface{}{"url": cfg.Alarms.WebhookURL},
		})
	}

	log.Info().Bool("enabled", as.enabled).Int("actions", len(as.actions)).Msg("Alarm notifier ready")
	return as
}

// Start runs the delivery loop
func (as *AlarmService) Start() {
	log.Info().Msg("Starting alarm delivery")

	go func() {
		for {
			select {
			case ev := <-as.queue:
				as.deliver(ev)
			case <-as.stopChan:
				return
			}
		}
	}()
}

// Stop ends the delivery loop. Events still queued are dropped.
func (as *AlarmService) Stop() {
	as.stopOnce.Do(func() { close(as.stopChan) })
}

// Actions lists the configured delivery targets
func (as *AlarmService) Actions() []models.AlarmAction {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return append([]models.AlarmAction(nil), as.actions...)
}

type alarmCounter struct {
	key     string
	scope   string
	channel *models.Channel
	session *models.Session
	count   int64
}

func collectCounters(topos []*models.Topology) []alarmCounter {
	var counters []alarmCounter
	for _, topo := range topos {
		for ci := range topo.Channel {
			ch := &topo.Channel[ci]
			counters = append(counters, alarmCounter{
				key:     "channel|" + topo.TopologyID + "|" + ch.ChannelID,
				scope:   models.AlarmScopeChannel,
				channel: ch,
				count:   ch.ChannelAlarms,
			})
			for si := range ch.Session {
				s := &ch.Session[si]
				counters = append(counters, alarmCounter{
					key:     "session|" + topo.TopologyID + "|" + ch.ChannelID + "|" + s.SessionID,
					scope:   models.AlarmScopeSession,
					channel: ch,
					session: s,
					count:   s.SessionAlarms,
				})
			}
		}
	}
	return counters
}

// Observe compares every topology of resp. See ObserveTopologies.
func (as *AlarmService) Observe(resp *models.TopologyResponse) []models.AlarmEvent {
	if resp == nil || resp.Output == nil {
		return as.ObserveTopologies(nil)
	}
	topos := make([]*models.Topology, 0, len(resp.Output.Topology))
	for i := range resp.Output.Topology {
		topos = append(topos, &resp.Output.Topology[i])
	}
	return as.ObserveTopologies(topos)
}

// ObserveTopologies records topos as the new baseline and returns one event
// per channel or session whose alarm count went up. The first call only
// seeds the baseline. Entities that were not present in the previous
// observation count from zero. Events are queued for delivery and never
// wait on an action.
func (as *AlarmService) ObserveTopologies(topos []*models.Topology) []models.AlarmEvent {
	if !as.enabled {
		return nil
	}
	counters := collectCounters(topos)
	now := time.Now()

	as.mu.Lock()
	next := make(map[string]int64, len(counters))
	for _, c := range counters {
		next[c.key] = c.count
	}
	if !as.seeded {
		as.baseline = next
		as.seeded = true
		as.mu.Unlock()
		log.Debug().Int("counters", len(next)).Msg("Alarm baseline established")
		return nil
	}

	var events []*models.AlarmEvent
	for _, c := range counters {
		prev := as.baseline[c.key]
		if c.count <= prev {
			continue
		}
		as.seq++
		ev := &models.AlarmEvent{
			ID:         fmt.Sprintf("alarm_%d_%d", now.UnixNano(), as.seq),
			Timestamp:  now,
			Scope:      c.scope,
			ChannelID:  c.channel.ChannelID,
			DeviceNode: c.channel.DestNode(),
			Previous:   prev,
			Current:    c.count,
		}
		if c.session != nil {
			ev.SessionID = c.session.SessionID
			ev.LastMessage = lastAlarmMessage(c.session.SessionAlarm)
		} else {
			ev.LastMessage = lastAlarmMessage(c.channel.ChannelAlarm)
		}
		events = append(events, ev)
	}
	as.baseline = next

	as.history = append(as.history, events...)
	if len(as.history) > as.historySize {
		as.history = as.history[len(as.history)-as.historySize:]
	}
	hasActions := len(as.actions) > 0

	out := make([]models.AlarmEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, *ev)
	}
	as.mu.Unlock()

	for _, ev := range events {
		metrics.AlarmEvents.WithLabelValues(ev.Scope).Inc()
		log.Warn().
			Str("scope", ev.Scope).
			Str("channel", ev.ChannelID).
			Str("session", ev.SessionID).
			Int64("previous", ev.Previous).
			Int64("current", ev.Current).
			Msg("Alarm count increased")

		if !hasActions {
			continue
		}
		select {
		case as.queue <- ev:
		default:
			log.Warn().Str("event", ev.ID).Msg("Alarm delivery queue full, dropping notification")
		}
	}
	return out
}

func lastAlarmMessage(alarms []models.Alarm) string {
	if len(alarms) == 0 {
		return ""
	}
	return alarms[len(alarms)-1].AlarmMessage
}

// deliver runs every action for ev and records the ones that succeeded
func (as *AlarmService) deliver(ev *models.AlarmEvent) {
	as.mu.RLock()
	snapshot := *ev
	actions := append([]models.AlarmAction(nil), as.actions...)
	as.mu.RUnlock()
	snapshot.Delivered = nil

	for _, action := range actions {
		if as.executeAction(action, &snapshot) {
			as.mu.Lock()
			ev.Delivered = append(ev.Delivered, action.Type)
			as.mu.Unlock()
		}
	}
}

// History returns up to limit events, newest first. limit <= 0 means all.
func (as *AlarmService) History(limit int) []models.AlarmEvent {
	as.mu.RLock()
	defer as.mu.RUnlock()

	if limit <= 0 || limit > len(as.history) {
		limit = len(as.history)
	}

	result := make([]models.AlarmEvent, 0, limit)
	for i := len(as.history) - 1; i >= len(as.history)-limit; i-- {
		ev := *as.history[i]
		ev.Delivered = append([]string(nil), ev.Delivered...)
		result = append(result, ev)
	}
	return result
}

// Reset forgets the baseline so the next Observe seeds it again
func (as *AlarmService) Reset() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.baseline = make(map[string]int64)
	as.seeded = false
}

func (as *AlarmService) executeAction(action models.AlarmAction, ev *models.AlarmEvent) bool {
	switch action.Type {
	case "webhook":
		return as.sendWebhook(action, ev)
	case "discord":
		return as.sendDiscord(ev)
	default:
		log.Warn().Str("type", action.Type).Msg("Unknown alarm action type")
		return false
	}
}

func (as *AlarmService) sendWebhook(action models.AlarmAction, ev *models.AlarmEvent) bool {
	url, _ := action.Config["url"].(string)
	if url == "" {
		log.Warn().Msg("Webhook URL not provided")
		return false
	}

	payload := map[string]interface{}{
		"event_id":     ev.ID,
		"scope":        ev.Scope,
		"channel_id":   ev.ChannelID,
		"session_id":   ev.SessionID,
		"device_node":  ev.DeviceNode,
		"previous":     ev.Previous,
		"current":      ev.Current,
		"last_message": ev.LastMessage,
		"timestamp":    ev.Timestamp,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Webhook payload encoding failed")
		return false
	}

	resp, err := as.httpClient.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Webhook error")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (as *AlarmService) sendDiscord(ev *models.AlarmEvent) bool {
	if as.discord == nil {
		log.Warn().Msg("Discord bot not configured")
		return false
	}
	if err := as.discord.SendAlarm(ev); err != nil {
		log.Warn().Err(err).Msg("Discord alarm error")
		return false
	}
	return true
}
