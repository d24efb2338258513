package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"uscview/config"
	"uscview/models"
)

// RESTCONF operations of the usc-channel module
const (
	ViewChannelPath   = "/restconf/operations/usc-channel:view-channel"
	AddChannelPath    = "/restconf/operations/usc-channel:add-channel"
	RemoveChannelPath = "/restconf/operations/usc-channel:remove-channel"
)

// ErrControllerStatus is wrapped by errors for non-200 controller replies
var ErrControllerStatus = errors.New("unexpected controller status")

// maxResponseBytes bounds how much of a reply is read
const maxResponseBytes = 32 << 20

type ControllerClient struct {
	baseURL    string
	topologyID string
	httpClient *http.Client
}

func NewControllerClient(cfg *config.Config) *ControllerClient {
	timeout := 10 * time.Second
	if t := cfg.ControllerTimeoutDuration(); t > 0 {
		timeout = t
	}

	return &ControllerClient{
		baseURL:    strings.TrimRight(cfg.Controller.BaseURL, "/"),
		topologyID: cfg.Controller.TopologyID,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Endpoint is the full URL of the view-channel operation
func (c *ControllerClient) Endpoint() string {
	return c.baseURL + ViewChannelPath
}

// ViewChannels posts {"input":{"topology-id":...}} once and decodes the
// reply. There is no retry: every call is an independent attempt.
func (c *ControllerClient) ViewChannels(ctx context.Context) (*models.TopologyResponse, error) {
	var topo models.TopologyResponse
	if err := c.post(ctx, "view-channel", ViewChannelPath, models.NewViewChannelRequest(c.topologyID), &topo); err != nil {
		return nil, err
	}
	return &topo, nil
}

// AddChannel asks the controller to connect to ep. The controller reports a
// refused connection in the result text, not the status code.
func (c *ControllerClient) AddChannel(ctx context.Context, ep models.ChannelEndpoint) (*models.ChannelOperationResponse, error) {
	var out models.ChannelOperationResponse
	if err := c.post(ctx, "add-channel", AddChannelPath, models.NewChannelOperationRequest(ep), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveChannel asks the controller to close the channel to ep
func (c *ControllerClient) RemoveChannel(ctx context.Context, ep models.ChannelEndpoint) (*models.ChannelOperationResponse, error) {
	var out models.ChannelOperationResponse
	if err := c.post(ctx, "remove-channel", RemoveChannelPath, models.NewChannelOperationRequest(ep), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ControllerClient) post(ctx context.Context, op, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request to %s failed: %w", op, c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		var rcErr models.RestconfErrors
		if json.Unmarshal(data, &rcErr) == nil && len(rcErr.Errors.Error) > 0 {
			return fmt.Errorf("%w %d: %s", ErrControllerStatus, resp.StatusCode, rcErr.Message())
		}
		return fmt.Errorf("%w %d from %s", ErrControllerStatus, resp.StatusCode, c.baseURL)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
