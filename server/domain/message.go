package domain

import "time"

type MessageKind string

const (
	MessageKindText      MessageKind = "text"
	MessageKindCallEvent MessageKind = "call_event"
)

// Message is one immutable entry in a booking's chat log. ID and Seq are
// assigned by the store on append; Seq is strictly increasing per booking and
// doubles as the pagination cursor.
type Message struct {
	ID          string
	BookingCode string
	Sender      Role
	Body        string
	Kind        MessageKind
	Seq         uint64
	CreatedAt   time.Time
}

func NewMessage(id, bookingCode string, sender Role, body string, kind MessageKind, seq uint64, createdAt time.Time) Message {
	return Message{
		ID:          id,
		BookingCode: bookingCode,
		Sender:      sender,
		Body:        body,
		Kind:        kind,
		Seq:         seq,
		CreatedAt:   createdAt,
	}
}
