package adaptor

import (
	"time"

	"github.com/ridewire/ridewire/server/domain"
	"github.com/ridewire/ridewire/server/usecase"
)

// Wire types shared by the HTTP and WebSocket transports. The push side is a
// closed union selected by Type: exactly one of Message and CallState is set.

type messageJSON struct {
	ID          string `json:"id"`
	BookingCode string `json:"booking_code"`
	SenderRole  string `json:"sender_role"`
	Body        string `json:"body"`
	Kind        string `json:"kind"`
	Seq         uint64 `json:"seq"`
	CreatedAt   string `json:"created_at"`
}

type callStateJSON struct {
	State           string   `json:"state"`
	CallType        string   `json:"call_type"`
	Role            string   `json:"role"`
	CallerRole      string   `json:"caller_role"`
	Message         string   `json:"message"`
	ShowButtons     []string `json:"show_buttons"`
	DurationSeconds int      `json:"duration_seconds"`
}

type eventJSON struct {
	Type        string         `json:"type"`
	BookingCode string         `json:"booking_code,omitempty"`
	Message     *messageJSON   `json:"message,omitempty"`
	CallState   *callStateJSON `json:"call_state,omitempty"`
	Error       string         `json:"error,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type sendRequest struct {
	BookingCode string `json:"booking_code"`
	SenderRole  string `json:"sender_role"`
	Body        string `json:"body"`
}

type listResponse struct {
	Messages   []messageJSON `json:"messages"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type callRequest struct {
	BookingCode    string `json:"booking_code"`
	ActorRole      string `json:"actor_role"`
	Action         string `json:"action"`
	CallType       string `json:"call_type,omitempty"`
	ClientDuration int    `json:"client_reported_duration,omitempty"`
}

type callResponse struct {
	State    string              `json:"state"`
	CallType string              `json:"call_type,omitempty"`
	Buttons  map[string][]string `json:"buttons"`
}

type callRecordJSON struct {
	State           string `json:"state"`
	CallType        string `json:"call_type"`
	CallerRole      string `json:"caller_role"`
	CalleeRole      string `json:"callee_role"`
	StartedAt       string `json:"started_at"`
	ConnectedAt     string `json:"connected_at,omitempty"`
	EndedAt         string `json:"ended_at,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
}

type callHistoryResponse struct {
	Calls []callRecordJSON `json:"calls"`
}

// clientFrame is what a WebSocket client may send after connecting.
type clientFrame struct {
	Type           string `json:"type"` // "send" or "call_action"
	Body           string `json:"body,omitempty"`
	Action         string `json:"action,omitempty"`
	CallType       string `json:"call_type,omitempty"`
	ClientDuration int    `json:"client_reported_duration,omitempty"`
}

func toMessageJSON(msg domain.Message) messageJSON {
	return messageJSON{
		ID:          msg.ID,
		BookingCode: msg.BookingCode,
		SenderRole:  msg.Sender.String(),
		Body:        msg.Body,
		Kind:        string(msg.Kind),
		Seq:         msg.Seq,
		CreatedAt:   msg.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toEventJSON(ev domain.Event) eventJSON {
	out := eventJSON{
		Type:        string(ev.Type),
		BookingCode: ev.BookingCode,
		Timestamp:   ev.Timestamp.Format(time.RFC3339Nano),
	}
	if ev.Message != nil {
		msg := toMessageJSON(*ev.Message)
		out.Message = &msg
	}
	if ev.Call != nil {
		out.CallState = &callStateJSON{
			State:           ev.Call.State.String(),
			CallType:        ev.Call.Type.String(),
			Role:            ev.Call.Role.String(),
			CallerRole:      ev.Call.Caller.String(),
			Message:         ev.Call.Body,
			ShowButtons:     ev.Call.Buttons,
			DurationSeconds: ev.Call.DurationSeconds,
		}
	}
	return out
}

func toCallResponse(status usecase.CallStatus) callResponse {
	buttons := make(map[string][]string, len(status.Buttons))
	for role, b := range status.Buttons {
		buttons[role.String()] = b
	}
	return callResponse{State: status.State.String(), CallType: status.Record.Type.String(), Buttons: buttons}
}

func toCallRecordJSON(rec domain.CallRecord) callRecordJSON {
	out := callRecordJSON{
		State:           rec.State.String(),
		CallType:        rec.Type.String(),
		CallerRole:      rec.Caller.String(),
		CalleeRole:      rec.Callee.String(),
		StartedAt:       rec.StartedAt.Format(time.RFC3339Nano),
		DurationSeconds: rec.DurationSeconds,
	}
	if !rec.ConnectedAt.IsZero() {
		out.ConnectedAt = rec.ConnectedAt.Format(time.RFC3339Nano)
	}
	if !rec.EndedAt.IsZero() {
		out.EndedAt = rec.EndedAt.Format(time.RFC3339Nano)
	}
	return out
}
