package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"uscview/config"
	"uscview/metrics"
	"uscview/models"
	"uscview/view"
)

// ChannelFetcher retrieves the current channel topology
type ChannelFetcher interface {
	ViewChannels(ctx context.Context) (*models.TopologyResponse, error)
}

// ChannelManager opens and closes channels on the controller
type ChannelManager interface {
	AddChannel(ctx context.Context, ep models.ChannelEndpoint) (*models.ChannelOperationResponse, error)
	RemoveChannel(ctx context.Context, ep models.ChannelEndpoint) (*models.ChannelOperationResponse, error)
}

// ErrManagementUnsupported is returned when the fetcher cannot manage channels
var ErrManagementUnsupported = errors.New("channel management not supported by this controller client")

// ChannelService runs the refresh action: fetch, render, replace the display
// container.
type ChannelService struct {
	fetcher  ChannelFetcher
	display  *DisplayStore
	alarms   *AlarmService
	opts     view.Options
	interval time.Duration
	timeout  time.Duration

	mu          sync.RWMutex
	last        *models.TopologyResponse
	refreshedAt time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewChannelService(cfg *config.Config, fetcher ChannelFetcher, display *DisplayStore, alarms *AlarmService) *ChannelService {
	timeout := cfg.ControllerTimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChannelService{
		fetcher:  fetcher,
		display:  display,
		alarms:   alarms,
		opts:     view.Options{StopOnMissingChannels: cfg.Render.StopOnMissingChannels},
		interval: cfg.RefreshIntervalDuration(),
		timeout:  timeout,
		stopChan: make(chan struct{}),
	}
}

// Start begins polling when a refresh interval is configured
func (cs *ChannelService) Start() {
	if cs.interval <= 0 {
		log.Info().Msg("Channel polling disabled, refreshing on demand")
		return
	}
	log.Info().Dur("interval", cs.interval).Msg("Starting channel polling")

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		cs.poll()
		for {
			select {
			case <-ticker.C:
				cs.poll()
			case <-cs.stopChan:
				return
			}
		}
	}()
}

func (cs *ChannelService) Stop() {
	cs.stopOnce.Do(func() { close(cs.stopChan) })
}

func (cs *ChannelService) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), cs.timeout)
	defer cancel()
	_, _ = cs.Refresh(ctx)
}

// Refresh fetches the topology and replaces the display container with the
// rendered panel. It reports false, leaving the container as it was, when
// the fetch or the render fails. Concurrent calls are not coordinated; the
// last one to finish wins.
func (cs *ChannelService) Refresh(ctx context.Context) (bool, error) {
	start := time.Now()

	resp, err := cs.fetcher.ViewChannels(ctx)
	if err != nil {
		metrics.RecordRefresh(metrics.ResultFetchError, time.Since(start))
		log.Error().Err(err).Msg("Channel refresh failed")
		return false, err
	}

	frag, err := view.Render(resp, cs.opts)
	if err != nil {
		metrics.RecordRefresh(metrics.ResultRenderError, time.Since(start))
		log.Error().Err(err).Msg("Channel response could not be rendered")
		return false, err
	}

	html, err := frag.HTML()
	if err != nil {
		metrics.RecordRefresh(metrics.ResultRenderError, time.Since(start))
		log.Error().Err(err).Msg("Channel panel template failed")
		return false, err
	}

	now := time.Now()
	panel := models.Panel{
		HTML:       string(html),
		Channels:   frag.ChannelCount(),
		Sessions:   frag.SessionCount(),
		Alarms:     frag.AlarmTotal(),
		RenderedAt: now,
	}
	cs.display.Replace(panel)

	cs.mu.Lock()
	cs.last = resp
	cs.refreshedAt = now
	cs.mu.Unlock()

	metrics.RecordRefresh(metrics.ResultSuccess, time.Since(start))
	metrics.RecordPanel(panel.Channels, panel.Sessions, panel.Alarms)
	log.Debug().
		Int("channels", panel.Channels).
		Int("sessions", panel.Sessions).
		Int64("alarms", panel.Alarms).
		Dur("elapsed", time.Since(start)).
		Msg("Channel panel refreshed")

	if cs.alarms != nil {
		cs.alarms.ObserveTopologies(view.Visible(resp, cs.opts))
	}
	return true, nil
}

// LastResponse returns the most recent successfully rendered response
func (cs *ChannelService) LastResponse() (*models.TopologyResponse, time.Time, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.last, cs.refreshedAt, cs.last != nil
}

// Panel returns the current display container content
func (cs *ChannelService) Panel() (*models.Panel, bool) {
	return cs.display.Current()
}

// EnsurePanel refreshes once when the container is empty
func (cs *ChannelService) EnsurePanel(ctx context.Context) (*models.Panel, bool) {
	if panel, ok := cs.display.Current(); ok {
		return panel, true
	}
	if ok, _ := cs.Refresh(ctx); !ok {
		return nil, false
	}
	return cs.display.Current()
}

// AddChannel asks the controller to connect to ep and refreshes the panel
// when it succeeds
func (cs *ChannelService) AddChannel(ctx context.Context, ep models.ChannelEndpoint) (*models.ChannelOperationResponse, error) {
	return cs.manage(ctx, "add", ep, func(m ChannelManager) (*models.ChannelOperationResponse, error) {
		return m.AddChannel(ctx, ep)
	})
}

// RemoveChannel asks the controller to drop the channel to ep and refreshes
// the panel when it succeeds
func (cs *ChannelService) RemoveChannel(ctx context.Context, ep models.ChannelEndpoint) (*models.ChannelOperationResponse, error) {
	return cs.manage(ctx, "remove", ep, func(m ChannelManager) (*models.ChannelOperationResponse, error) {
		return m.RemoveChannel(ctx, ep)
	})
}

func (cs *ChannelService) manage(ctx context.Context, op string, ep models.ChannelEndpoint, call func(ChannelManager) (*models.ChannelOperationResponse, error)) (*models.ChannelOperationResponse, error) {
	m, ok := cs.fetcher.(ChannelManager)
	if !ok {
		return nil, ErrManagementUnsupported
	}

	resp, err := call(m)
	if err != nil {
		log.Error().Err(err).Str("op", op).Str("host", ep.Hostname).Int("port", ep.Port).Msg("Channel operation failed")
		return nil, err
	}

	logger := log.Info()
	if !resp.Succeeded() {
		logger = log.Warn()
	}
	logger.Str("op", op).Str("host", ep.Hostname).Int("port", ep.Port).Str("result", resp.Result()).Msg("Channel operation")

	if resp.Succeeded() {
		_, _ = cs.Refresh(ctx)
	}
	return resp, nil
}
