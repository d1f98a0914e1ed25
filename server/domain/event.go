package domain

import "time"

// EventType is the closed set of payloads pushed to live connections.
type EventType string

const (
	EventTypeMessage   EventType = "message"
	EventTypeCallState EventType = "call_state_update"
)

// CallUpdate is the call-state payload pushed to one role. Buttons differ per
// recipient role, so the machine publishes one update per role.
type CallUpdate struct {
	State           CallState
	Type            CallType
	Role            Role
	Caller          Role
	Body            string
	Buttons         []string
	DurationSeconds int
}

// Event is the tagged union delivered by the broadcaster. Exactly one of
// Message and Call is set, selected by Type.
type Event struct {
	Type        EventType
	BookingCode string
	Message     *Message
	Call        *CallUpdate
	Timestamp   time.Time
}

func NewMessageEvent(msg Message) Event {
	return Event{
		Type:        EventTypeMessage,
		BookingCode: msg.BookingCode,
		Message:     &msg,
		Timestamp:   msg.CreatedAt,
	}
}

func NewCallStateEvent(bookingCode string, update CallUpdate, at time.Time) Event {
	return Event{
		Type:        EventTypeCallState,
		BookingCode: bookingCode,
		Call:        &update,
		Timestamp:   at,
	}
}
