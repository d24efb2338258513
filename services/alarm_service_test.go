package services

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uscview/config"
	"uscview/models"
)

type fakeSender struct {
	mu     sync.Mutex
	events []*models.AlarmEvent
	err    error
}

func (f *fakeSender) SendAlarm(ev *models.AlarmEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func topologyWith(channelAlarms, sessionAlarms int64) *models.TopologyResponse {
	return &models.TopologyResponse{Output: &models.TopologyOutput{Topology: []models.Topology{{
		TopologyID: "usc",
		Channel: []models.Channel{{
			ChannelID:     "c1",
			ChannelAlarms: channelAlarms,
			Destination:   &models.ChannelDest{DestNode: "10.0.0.9"},
			ChannelAlarm:  []models.Alarm{{AlarmID: "a1", AlarmMessage: "first"}, {AlarmID: "a2", AlarmMessage: "latest"}},
			Session: []models.Session{{
				SessionID:     "s1",
				SessionAlarms: sessionAlarms,
			}},
		}},
	}}}}
}

func TestAlarmService_FirstObservationIsBaseline(t *testing.T) {
	as := NewAlarmService(config.Default(), nil)
	assert.Empty(t, as.Observe(topologyWith(3, 1)))
	assert.Empty(t, as.History(0))
}

func TestAlarmService_EmitsOnIncrease(t *testing.T) {
	as := NewAlarmService(config.Default(), nil)
	as.Observe(topologyWith(1, 0))

	events := as.Observe(topologyWith(2, 1))
	require.Len(t, events, 2)

	assert.Equal(t, models.AlarmScopeChannel, events[0].Scope)
	assert.Equal(t, "c1", events[0].ChannelID)
	assert.Equal(t, "10.0.0.9", events[0].DeviceNode)
	assert.Equal(t, int64(1), events[0].Previous)
	assert.Equal(t, int64(2), events[0].Current)
	assert.Equal(t, "latest", events[0].LastMessage)

	assert.Equal(t, models.AlarmScopeSession, events[1].Scope)
	assert.Equal(t, "s1", events[1].SessionID)
	assert.NotEqual(t, events[0].ID, events[1].ID)

	// unchanged and decreasing counts are quiet
	assert.Empty(t, as.Observe(topologyWith(2, 1)))
	assert.Empty(t, as.Observe(topologyWith(0, 0)))
}

func TestAlarmService_NewChannelCountsFromZero(t *testing.T) {
	as := NewAlarmService(config.Default(), nil)
	as.Observe(&models.TopologyResponse{Output: &models.TopologyOutput{Topology: []models.Topology{}}})

	events := as.Observe(topologyWith(1, 0))
	require.Len(t, events, 1)
	assert.Equal(t, int64(0), events[0].Previous)
}

func TestAlarmService_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Alarms.Enabled = false
	as := NewAlarmService(cfg, nil)
	as.Observe(topologyWith(0, 0))
	assert.Nil(t, as.Observe(topologyWith(5, 5)))
}

func TestAlarmService_HistoryNewestFirstAndBounded(t *testing.T) {
	cfg := config.Default()
	cfg.Alarms.HistorySize = 3
	as := NewAlarmService(cfg, nil)
	as.Observe(topologyWith(0, 0))

	for i := int64(1); i <= 4; i++ {
		as.Observe(topologyWith(i, 0))
	}

	all := as.History(0)
	require.Len(t, all, 3)
	assert.Equal(t, int64(4), all[0].Current)
	assert.Equal(t, int64(2), all[2].Current)

	assert.Len(t, as.History(1), 1)
	assert.Len(t, as.History(10), 3)
}

func TestAlarmService_Reset(t *testing.T) {
	as := NewAlarmService(config.Default(), nil)
	as.Observe(topologyWith(0, 0))
	as.Reset()
	assert.Empty(t, as.Observe(topologyWith(9, 9)))
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeSender) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestAlarmService_DiscordAction(t *testing.T) {
	as := NewAlarmService(config.Default(), nil)
	sender := &fakeSender{}
	as.discord = sender
	as.actions = []models.AlarmAction{{Type: "discord"}}
	as.Start()
	t.Cleanup(as.Stop)

	as.Observe(topologyWith(0, 0))
	events := as.Observe(topologyWith(1, 0))
	require.Len(t, events, 1)
	assert.Eventually(t, func() bool {
		h := as.History(1)
		return len(h) == 1 && len(h[0].Delivered) == 1 && h[0].Delivered[0] == "discord"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, sender.count())

	sender.fail(errors.New("rate limited"))
	events = as.Observe(topologyWith(2, 0))
	require.Len(t, events, 1)
	assert.Eventually(t, func() bool { return sender.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, as.History(1)[0].Delivered)
}

func TestAlarmService_NotDeliveredWithoutStart(t *testing.T) {
	as := NewAlarmService(config.Default(), nil)
	sender := &fakeSender{}
	as.discord = sender
	as.actions = []models.AlarmAction{{Type: "discord"}}

	as.Observe(topologyWith(0, 0))
	require.Len(t, as.Observe(topologyWith(1, 0)), 1)
	assert.Equal(t, 0, sender.count())
	assert.Empty(t, as.History(1)[0].Delivered)
}

func TestAlarmService_WebhookAction(t *testing.T) {
	var mu sync.Mutex
	var payloads []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var p map[string]interface{}
		assert.NoError(t, json.Unmarshal(body, &p))
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Alarms.WebhookURL = srv.URL
	as := NewAlarmService(cfg, nil)
	require.Len(t, as.Actions(), 1)
	assert.Equal(t, "webhook", as.Actions()[0].Type)
	as.Start()
	defer as.Stop()

	as.Observe(topologyWith(0, 0))
	events := as.Observe(topologyWith(0, 3))
	require.Len(t, events, 1)
	assert.Eventually(t, func() bool {
		h := as.History(1)
		return len(h) == 1 && len(h[0].Delivered) == 1 && h[0].Delivered[0] == "webhook"
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	assert.Equal(t, "session", payloads[0]["scope"])
	assert.Equal(t, "s1", payloads[0]["session_id"])
	assert.Equal(t, float64(3), payloads[0]["current"])
}

func TestAlarmService_ObserveDoesNotWaitOnWebhook(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	defer close(release)

	cfg := config.Default()
	cfg.Alarms.WebhookURL = srv.URL
	as := NewAlarmService(cfg, nil)
	as.Start()
	defer as.Stop()

	as.Observe(topologyWith(0, 0))
	start := time.Now()
	events := as.Observe(topologyWith(5, 0))
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, int64(5), events[0].Current)
	assert.Empty(t, as.History(1)[0].Delivered)
}
