package adaptor

import (
	"github.com/ridewire/ridewire/server/domain"
	"github.com/ridewire/ridewire/server/usecase"
)

// Usecase is what the transports need from the session coordinator.
type Usecase interface {
	SendMessage(bookingCode string, sender domain.Role, body string) (domain.Message, error)
	Messages(bookingCode string, limit int, cursor string) ([]domain.Message, string, error)
	CallAction(bookingCode string, actor domain.Role, action domain.CallAction, callType domain.CallType, clientDuration int) (usecase.CallStatus, error)
	CallState(bookingCode string) domain.CallState
	CallHistory(bookingCode string) ([]domain.CallRecord, error)
	Connect(bookingCode string, role domain.Role, connID string, sink domain.EventSink) error
	Disconnect(connID string)
	Stats() usecase.Stats
}
