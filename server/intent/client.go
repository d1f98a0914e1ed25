// Package intent talks to the external intent-classification service that
// turns free text into one of the fixed session actions. The classification
// is trusted as-is; no language processing happens on this side.
package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Action is the closed set of intents the service may return.
type Action string

const (
	ActionSendMessage Action = "send-message"
	ActionMakeCall    Action = "make-call"
	ActionGetMessages Action = "get-message-list"
)

// Intent is a classified user input. Message is only set for send-message.
type Intent struct {
	Action     Action
	Message    string
	Confidence float64
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

type detectRequest struct {
	BookingCode string `json:"booking_code"`
	UserType    string `json:"user_type"`
	UserInput   string `json:"user_input"`
}

type detectResponse struct {
	Intent     string  `json:"intent"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

// Classify sends the raw user input and returns the service's verdict.
func (c *Client) Classify(ctx context.Context, bookingCode, userType, input string) (Intent, error) {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 15 * time.Second}
	}
	if c.BaseURL == "" {
		return Intent{}, fmt.Errorf("missing intent service url")
	}

	body, err := json.Marshal(detectRequest{BookingCode: bookingCode, UserType: userType, UserInput: input})
	if err != nil {
		return Intent{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect-intent", bytes.NewBuffer(body))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("intent service unreachable: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Intent{}, fmt.Errorf("intent service returned %d", res.StatusCode)
	}

	var resp detectResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return Intent{}, fmt.Errorf("malformed intent response: %w", err)
	}
	if !resp.Success {
		if resp.Error == "" {
			resp.Error = "intent detection failed"
		}
		return Intent{}, fmt.Errorf("%s", resp.Error)
	}

	switch Action(resp.Intent) {
	case ActionSendMessage, ActionMakeCall, ActionGetMessages:
	default:
		return Intent{}, fmt.Errorf("unknown intent %q", resp.Intent)
	}
	return Intent{
		Action:     Action(resp.Intent),
		Message:    resp.Message,
		Confidence: resp.Confidence,
	}, nil
}
