// Package metrics exposes Prometheus instrumentation for the channel view.
//
// Metrics are served at /metrics:
//   - usc_refresh_total: refresh attempts (counter), label result = success|fetch_error|render_error
//   - usc_refresh_duration_seconds: fetch + render latency (histogram)
//   - usc_rendered_channels / usc_rendered_sessions: blocks in the current panel (gauge)
//   - usc_rendered_alarms: alarm total in the current panel (gauge)
//   - usc_alarm_events_total: alarm increases noticed between refreshes (counter), label scope
//   - usc_display_mode: 1 when the display container is backed by Redis (gauge)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess     = "success"
	ResultFetchError  = "fetch_error"
	ResultRenderError = "render_error"
)

var (
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usc_refresh_total",
			Help: "Channel panel refresh attempts by result",
		},
		[]string{"result"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "usc_refresh_duration_seconds",
			Help:    "Time spent fetching and rendering the channel panel",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	RenderedChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "usc_rendered_channels",
			Help: "Channel blocks in the current panel",
		},
	)

	RenderedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "usc_rendered_sessions",
			Help: "Session blocks in the current panel",
		},
	)

	RenderedAlarms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "usc_rendered_alarms",
			Help: "Sum of channel and session alarms in the current panel",
		},
	)

	AlarmEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usc_alarm_events_total",
			Help: "Alarm counter increases noticed between refreshes",
		},
		[]string{"scope"},
	)

	DisplayMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "usc_display_mode",
			Help: "1 when the display container is stored in Redis, 0 for in-memory",
		},
	)
)

// RecordRefresh counts one refresh attempt and its latency
func RecordRefresh(result string, elapsed time.Duration) {
	RefreshTotal.WithLabelValues(result).Inc()
	RefreshDuration.Observe(elapsed.Seconds())
}

// RecordPanel publishes the size of the panel that just replaced the display
func RecordPanel(channels, sessions int, alarms int64) {
	RenderedChannels.Set(float64(channels))
	RenderedSessions.Set(float64(sessions))
	RenderedAlarms.Set(float64(alarms))
}

func SetDisplayRedis(redis bool) {
	if redis {
		DisplayMode.Set(1)
		return
	}
	DisplayMode.Set(0)
}
