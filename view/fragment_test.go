package view

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uscview/models"
)

const scenarioSingleChannel = `{"output":{"topology":[{"channel":[{"channel-id":"c1","channel-alarms":0,"bytes-in":10,"bytes-out":20,"source":{"source-node":"ctrl"},"destination":{"dest-node":"dev"},"channel-type":"ssh","call-home":true,"sessions":1,"session":[{"session-id":"s1","session-alarms":0,"bytes-in":5,"bytes-out":5,"termination-point":{"termination-point-id":"tp1"}}]}]}]}}`

func decode(t *testing.T, body string) *models.TopologyResponse {
	t.Helper()
	var resp models.TopologyResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return &resp
}

func renderHTML(t *testing.T, resp *models.TopologyResponse, opts Options) string {
	t.Helper()
	frag, err := Render(resp, opts)
	require.NoError(t, err)
	out, err := frag.HTML()
	require.NoError(t, err)
	return string(out)
}

func channelBlocks(html string) int {
	return strings.Count(html, "<span>Channel </span>")
}

func sessionBlocks(html string) int {
	return strings.Count(html, "<span>Session </span>")
}

func TestRender_SingleChannelScenario(t *testing.T) {
	resp := decode(t, scenarioSingleChannel)

	frag, err := Render(resp, Options{})
	require.NoError(t, err)
	require.Len(t, frag.Channels, 1)

	ch := frag.Channels[0]
	assert.Equal(t, "c1", ch.ChannelID)
	assert.Equal(t, "ctrl", ch.Controller)
	assert.Equal(t, "dev", ch.Device)
	assert.Equal(t, "ssh", ch.Type)
	assert.Equal(t, "true", ch.CallHome)
	assert.Equal(t, int64(1), ch.Sessions)
	assert.Equal(t, int64(10), ch.BytesIn)
	assert.Equal(t, int64(20), ch.BytesOut)
	require.Len(t, ch.SessionBlocks, 1)
	assert.Equal(t, "s1", ch.SessionBlocks[0].SessionID)
	assert.Equal(t, "tp1", ch.SessionBlocks[0].Port)

	html := renderHTML(t, resp, Options{})
	assert.Equal(t, 1, channelBlocks(html))
	assert.Equal(t, 1, sessionBlocks(html))
	assert.Contains(t, html, "<span>c1</span>")
	assert.Contains(t, html, "<span>s1</span>")
	assert.Contains(t, html, "<span>tp1</span>")
	assert.Contains(t, html, "10 B")
	assert.Contains(t, html, "20 B")
}

func TestRender_HeaderOnly(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty topology list", body: `{"output":{"topology":[]}}`},
		{name: "topology without channel key", body: `{"output":{"topology":[{}]}}`},
		{name: "topology with null channel", body: `{"output":{"topology":[{"channel":null}]}}`},
		{name: "topology with empty channel list", body: `{"output":{"topology":[{"channel":[]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := renderHTML(t, decode(t, tt.body), Options{})
			assert.Equal(t, 0, channelBlocks(html))
			assert.Equal(t, 0, sessionBlocks(html))
			for _, col := range HeaderColumns {
				assert.Contains(t, html, "<div>"+col+"</div>")
			}
		})
	}
}

func TestRender_MissingChannelList(t *testing.T) {
	body := `{"output":{"topology":[
		{"channel":[{"channel-id":"a1"},{"channel-id":"a2"}]},
		{"topology-id":"broken"},
		{"channel":[{"channel-id":"b1"}]}
	]}}`
	resp := decode(t, body)

	t.Run("default skips the topology", func(t *testing.T) {
		frag, err := Render(resp, Options{})
		require.NoError(t, err)
		assert.Equal(t, 3, frag.ChannelCount())
		assert.Equal(t, "b1", frag.Channels[2].ChannelID)
	})

	t.Run("legacy mode stops at the topology", func(t *testing.T) {
		frag, err := Render(resp, Options{StopOnMissingChannels: true})
		require.NoError(t, err)
		assert.Equal(t, 2, frag.ChannelCount())
		assert.Equal(t, 2, channelBlocks(renderHTML(t, resp, Options{StopOnMissingChannels: true})))
	})
}

func TestVisible(t *testing.T) {
	resp := decode(t, `{"output":{"topology":[
		{"topology-id":"a","channel":[]},
		{"topology-id":"gap"},
		{"topology-id":"b","channel":[{"channel-id":"b1"}]}
	]}}`)

	ids := func(topos []*models.Topology) []string {
		out := make([]string, 0, len(topos))
		for _, topo := range topos {
			out = append(out, topo.TopologyID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b"}, ids(Visible(resp, Options{})))
	assert.Equal(t, []string{"a"}, ids(Visible(resp, Options{StopOnMissingChannels: true})))
	assert.Empty(t, Visible(nil, Options{}))
	assert.Empty(t, Visible(&models.TopologyResponse{}, Options{}))
}

func TestRender_NoSessions(t *testing.T) {
	body := `{"output":{"topology":[{"channel":[
		{"channel-id":"c1","sessions":0},
		{"channel-id":"c2","session":[]},
		{"channel-id":"c3","session":null}
	]}]}}`

	frag, err := Render(decode(t, body), Options{})
	require.NoError(t, err)
	require.Len(t, frag.Channels, 3)
	for _, ch := range frag.Channels {
		assert.Empty(t, ch.SessionBlocks, ch.ChannelID)
	}
	assert.Equal(t, 0, frag.SessionCount())
}

func TestRender_BadgeDependsOnlyOnThreshold(t *testing.T) {
	assert.Equal(t, BadgeClassSuccess, NewBadge(0).Class)
	assert.Equal(t, BadgeColorSuccess, NewBadge(0).Color)

	one := NewBadge(1)
	hundred := NewBadge(100)
	assert.Equal(t, one.Class, hundred.Class)
	assert.Equal(t, one.Color, hundred.Color)
	assert.Equal(t, BadgeClassDanger, one.Class)

	low := renderHTML(t, decode(t, `{"output":{"topology":[{"channel":[{"channel-id":"c","channel-alarms":1}]}]}}`), Options{})
	high := renderHTML(t, decode(t, `{"output":{"topology":[{"channel":[{"channel-id":"c","channel-alarms":100}]}]}}`), Options{})
	assert.Equal(t, strings.Replace(low, ">1</div>", ">100</div>", 1), high)
	assert.Contains(t, low, `class="label-danger"`)
	assert.Contains(t, low, "background-color:#d9534f;")
}

func TestRender_BadgeColorFromBadge(t *testing.T) {
	frag := &Fragment{
		Header:   HeaderColumns,
		Channels: []ChannelBlock{{Badge: Badge{Count: 3, Class: BadgeClassDanger, Color: "#123456"}, ChannelID: "c"}},
	}
	out, err := frag.HTML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "background-color:#123456;")
	assert.NotContains(t, string(out), BadgeColorDanger)
}

func TestRender_Idempotent(t *testing.T) {
	resp := decode(t, scenarioSingleChannel)
	first := renderHTML(t, resp, Options{})
	second := renderHTML(t, resp, Options{})
	assert.Equal(t, first, second)
}

func TestRender_PreservesOrder(t *testing.T) {
	body := `{"output":{"topology":[
		{"channel":[{"channel-id":"z","session":[{"session-id":"s9"},{"session-id":"s1"}]}]},
		{"channel":[{"channel-id":"a"},{"channel-id":"z"}]}
	]}}`
	frag, err := Render(decode(t, body), Options{})
	require.NoError(t, err)

	ids := make([]string, 0, len(frag.Channels))
	for _, ch := range frag.Channels {
		ids = append(ids, ch.ChannelID)
	}
	assert.Equal(t, []string{"z", "a", "z"}, ids)
	assert.Equal(t, "s9", frag.Channels[0].SessionBlocks[0].SessionID)
	assert.Equal(t, "s1", frag.Channels[0].SessionBlocks[1].SessionID)
}

func TestRender_EscapesControllerValues(t *testing.T) {
	body := `{"output":{"topology":[{"channel":[{"channel-id":"<script>alert(1)</script>","destination":{"dest-node":"a&b"}}]}]}}`
	html := renderHTML(t, decode(t, body), Options{})
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Contains(t, html, "a&amp;b")
}

func TestRender_MissingNestedObjects(t *testing.T) {
	body := `{"output":{"topology":[{"channel":[{"channel-id":"c1","session":[{"session-id":"s1"}]}]}]}}`
	frag, err := Render(decode(t, body), Options{})
	require.NoError(t, err)
	assert.Equal(t, "", frag.Channels[0].Controller)
	assert.Equal(t, "", frag.Channels[0].Device)
	assert.Equal(t, "", frag.Channels[0].SessionBlocks[0].Port)
}

func TestRender_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		resp *models.TopologyResponse
	}{
		{name: "nil document", resp: nil},
		{name: "missing output", resp: &models.TopologyResponse{}},
		{name: "missing topology", resp: &models.TopologyResponse{Output: &models.TopologyOutput{}}},
		{name: "negative channel alarms", resp: &models.TopologyResponse{Output: &models.TopologyOutput{
			Topology: []models.Topology{{Channel: []models.Channel{{ChannelID: "c", ChannelAlarms: -1}}}},
		}}},
		{name: "negative session alarms", resp: &models.TopologyResponse{Output: &models.TopologyOutput{
			Topology: []models.Topology{{Channel: []models.Channel{{ChannelID: "c", Session: []models.Session{{SessionID: "s", SessionAlarms: -3}}}}}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, err := Render(tt.resp, Options{})
			assert.Nil(t, frag)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
		})
	}
}

func TestRender_CallHomeString(t *testing.T) {
	body := `{"output":{"topology":[{"channel":[{"channel-id":"c1","call-home":"CallHome"},{"channel-id":"c2","call-home":""}]}]}}`
	frag, err := Render(decode(t, body), Options{})
	require.NoError(t, err)
	assert.Equal(t, "CallHome", frag.Channels[0].CallHome)
	assert.Equal(t, "", frag.Channels[1].CallHome)
}

func TestFragment_Totals(t *testing.T) {
	body := `{"output":{"topology":[{"channel":[
		{"channel-id":"c1","channel-alarms":2,"session":[{"session-id":"s1","session-alarms":1},{"session-id":"s2"}]},
		{"channel-id":"c2","channel-alarms":0}
	]}]}}`
	frag, err := Render(decode(t, body), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, frag.ChannelCount())
	assert.Equal(t, 2, frag.SessionCount())
	assert.Equal(t, int64(3), frag.AlarmTotal())
}
