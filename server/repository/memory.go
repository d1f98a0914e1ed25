package repository

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ridewire/ridewire/server/domain"
	"github.com/ridewire/ridewire/server/usecase"
)

// Memory is the in-process message store and call log, used for local runs
// and tests. Same contract as the sqlite repository: per-booking sequence
// assignment under one lock, immutable entries, oldest-first reads.
type Memory struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
	calls    map[string][]domain.CallRecord
}

func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string][]domain.Message),
		calls:    make(map[string][]domain.CallRecord),
	}
}

var _ usecase.Repository = (*Memory)(nil)

func (m *Memory) CreateMessage(bookingCode string, sender domain.Role, body string, kind domain.MessageKind) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := uint64(len(m.messages[bookingCode])) + 1
	msg := domain.NewMessage(ulid.Make().String(), bookingCode, sender, body, kind, seq, time.Now().UTC())
	m.messages[bookingCode] = append(m.messages[bookingCode], msg)
	return msg, nil
}

func (m *Memory) ListMessages(bookingCode string, limit int, afterSeq uint64) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Message{}
	for _, msg := range m.messages[bookingCode] {
		if msg.Seq <= afterSeq {
			continue
		}
		out = append(out, msg)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) CreateCallLog(bookingCode string, rec domain.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[bookingCode] = append(m.calls[bookingCode], rec)
	return nil
}

func (m *Memory) ListCallLogs(bookingCode string) ([]domain.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CallRecord, len(m.calls[bookingCode]))
	copy(out, m.calls[bookingCode])
	return out, nil
}
