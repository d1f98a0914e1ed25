package usecase

import "github.com/ridewire/ridewire/server/domain"

// Repository is the durable-storage contract: ordered append plus ranged
// read, partitioned by booking code. Bookings are implicit; appending to an
// unseen booking never fails for that reason.
type Repository interface {
	// CreateMessage assigns the id and the strictly increasing per-booking
	// sequence position. Once it returns, a ListMessages on the same booking
	// includes the message.
	CreateMessage(bookingCode string, sender domain.Role, body string, kind domain.MessageKind) (domain.Message, error)

	// ListMessages returns messages oldest-first, strictly after afterSeq
	// (0 means from the beginning), at most limit entries.
	ListMessages(bookingCode string, limit int, afterSeq uint64) ([]domain.Message, error)

	// CreateCallLog appends a call record snapshot, no validation.
	CreateCallLog(bookingCode string, rec domain.CallRecord) error

	// ListCallLogs returns recorded snapshots oldest-first.
	ListCallLogs(bookingCode string) ([]domain.CallRecord, error)
}
