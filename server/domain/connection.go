package domain

import "time"

// ConnectionHandle is the registry's record of one live connection. The
// transport layer only ever holds the ID.
type ConnectionHandle struct {
	ID           string
	BookingCode  string
	Role         Role
	RegisteredAt time.Time
}

func NewConnectionHandle(id, bookingCode string, role Role) ConnectionHandle {
	return ConnectionHandle{
		ID:           id,
		BookingCode:  bookingCode,
		Role:         role,
		RegisteredAt: time.Now(),
	}
}

func (h ConnectionHandle) String() string {
	return h.Role.String() + "@" + h.BookingCode + "(" + h.ID + ")"
}

// EventSink is the delivery end of one registered connection. Send must not
// block; a sink that cannot accept the event returns an error and the
// delivery counts as failed for that connection only.
type EventSink interface {
	Send(Event) error
}

// Subscriber pairs a registered handle with its sink for broadcast fan-out.
type Subscriber struct {
	Handle ConnectionHandle
	Sink   EventSink
}
