package models

import (
	"fmt"
	"strings"
)

// DefaultTopologyID is the topology the USC plugin registers on the controller
const DefaultTopologyID = "usc"

// ViewChannelRequest is the input of the usc-channel:view-channel operation
type ViewChannelRequest struct {
	Input ViewChannelInput `json:"input"`
}

type ViewChannelInput struct {
	TopologyID string `json:"topology-id"`
}

func NewViewChannelRequest(topologyID string) ViewChannelRequest {
	if topologyID == "" {
		topologyID = DefaultTopologyID
	}
	return ViewChannelRequest{Input: ViewChannelInput{TopologyID: topologyID}}
}

// RestconfErrors is the error envelope the controller returns on failure
type RestconfErrors struct {
	Errors struct {
		Error []RestconfError `json:"error"`
	} `json:"errors"`
}

type RestconfError struct {
	ErrorType    string `json:"error-type"`
	ErrorTag     string `json:"error-tag"`
	ErrorMessage string `json:"error-message"`
}

// Message joins the error messages of the envelope
func (e RestconfErrors) Message() string {
	msg := ""
	for i, item := range e.Errors.Error {
		if i > 0 {
			msg += "; "
		}
		if item.ErrorMessage != "" {
			msg += item.ErrorMessage
		} else {
			msg += item.ErrorTag
		}
	}
	return msg
}

// ChannelEndpoint identifies a device the controller connects to (add) or
// disconnects from (remove)
type ChannelEndpoint struct {
	Hostname string `json:"hostname" query:"hostname"`
	Port     int    `json:"port" query:"port"`
	TCP      bool   `json:"tcp" query:"tcp"`
	Remote   bool   `json:"remote" query:"remote"`
}

// Validate checks the fields the controller needs to reach the device
func (ep ChannelEndpoint) Validate() error {
	if ep.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if ep.Port <= 0 || ep.Port > 65535 {
		return fmt.Errorf("invalid port %d", ep.Port)
	}
	return nil
}

// ChannelOperationRequest is the input of add-channel and remove-channel
type ChannelOperationRequest struct {
	Input struct {
		Channel ChannelEndpoint `json:"channel"`
	} `json:"input"`
}

func NewChannelOperationRequest(ep ChannelEndpoint) ChannelOperationRequest {
	var req ChannelOperationRequest
	req.Input.Channel = ep
	return req
}

// ChannelOperationResponse carries the controller's human readable result
type ChannelOperationResponse struct {
	Output *ChannelOperationOutput `json:"output"`
}

type ChannelOperationOutput struct {
	Result string `json:"result"`
}

func (r ChannelOperationResponse) Result() string {
	if r.Output == nil {
		return ""
	}
	return r.Output.Result
}

// Succeeded reports whether the controller accepted the operation. Failures
// still come back with status 200 and a "Failed to ..." result.
func (r ChannelOperationResponse) Succeeded() bool {
	return strings.HasPrefix(r.Result(), "Succeed")
}
