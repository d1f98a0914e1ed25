package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// apiClient is the thin HTTP side of the client; the live push side lives in
// chat.go on top of the websocket endpoint.
type apiClient struct {
	baseURL string
	http    *http.Client
}

type wireMessage struct {
	ID          string `json:"id"`
	BookingCode string `json:"booking_code"`
	SenderRole  string `json:"sender_role"`
	Body        string `json:"body"`
	Kind        string `json:"kind"`
	Seq         uint64 `json:"seq"`
	CreatedAt   string `json:"created_at"`
}

type wireMessageList struct {
	Messages   []wireMessage `json:"messages"`
	NextCursor string        `json:"next_cursor"`
}

type wireCallStatus struct {
	State    string              `json:"state"`
	CallType string              `json:"call_type"`
	Buttons  map[string][]string `json:"buttons"`
}

type wireCallRecord struct {
	State           string `json:"state"`
	CallType        string `json:"call_type"`
	CallerRole      string `json:"caller_role"`
	CalleeRole      string `json:"callee_role"`
	StartedAt       string `json:"started_at"`
	EndedAt         string `json:"ended_at"`
	DurationSeconds int    `json:"duration_seconds"`
}

type wireCallHistory struct {
	Calls []wireCallRecord `json:"calls"`
}

func (c *apiClient) client() *http.Client {
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	return c.http
}

func (c *apiClient) sendMessage(booking, role, body string) (wireMessage, error) {
	var out wireMessage
	err := c.post("/v1/messages", map[string]string{
		"booking_code": booking,
		"sender_role":  role,
		"body":         body,
	}, &out)
	return out, err
}

func (c *apiClient) messages(booking string, limit int, cursor string) (wireMessageList, error) {
	q := url.Values{}
	q.Set("booking_code", booking)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var out wireMessageList
	err := c.get("/v1/messages?"+q.Encode(), &out)
	return out, err
}

func (c *apiClient) callAction(booking, role, action, callType string, duration int) (wireCallStatus, error) {
	payload := map[string]any{
		"booking_code": booking,
		"actor_role":   role,
		"action":       action,
	}
	if callType != "" {
		payload["call_type"] = callType
	}
	if duration > 0 {
		payload["client_reported_duration"] = duration
	}
	var out wireCallStatus
	err := c.post("/v1/call", payload, &out)
	return out, err
}

func (c *apiClient) callHistory(booking string) (wireCallHistory, error) {
	q := url.Values{}
	q.Set("booking_code", booking)
	var out wireCallHistory
	err := c.get("/v1/call/history?"+q.Encode(), &out)
	return out, err
}

func (c *apiClient) post(path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	res, err := c.client().Post(c.baseURL+path, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return decodeResponse(res, out)
}

func (c *apiClient) get(path string, out any) error {
	res, err := c.client().Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return decodeResponse(res, out)
}

func decodeResponse(res *http.Response, out any) error {
	if res.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(res.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
