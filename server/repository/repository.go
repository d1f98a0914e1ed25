package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ridewire/ridewire/server/domain"
	"github.com/ridewire/ridewire/server/usecase"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id           TEXT      NOT NULL,
	booking_code TEXT      NOT NULL,
	seq          INTEGER   NOT NULL,
	sender       TEXT      NOT NULL,
	kind         TEXT      NOT NULL,
	body         TEXT      NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (booking_code, seq)
);
CREATE TABLE IF NOT EXISTS call_logs (
	booking_code     TEXT      NOT NULL,
	seq              INTEGER   NOT NULL,
	state            TEXT      NOT NULL,
	call_type        TEXT      NOT NULL,
	caller           TEXT      NOT NULL,
	callee           TEXT      NOT NULL,
	started_at       TIMESTAMP NOT NULL,
	connected_at     TIMESTAMP,
	ended_at         TIMESTAMP,
	duration_seconds INTEGER   NOT NULL,
	created_at       TIMESTAMP NOT NULL,
	PRIMARY KEY (booking_code, seq)
);
`

// DSN builds the sqlite connection string. WAL with a busy timeout and
// immediate transactions makes concurrent appends queue on the write lock
// instead of failing with SQLITE_BUSY: a deferred transaction that reads the
// sequence first cannot upgrade to the write lock once another writer holds
// it, so every insert transaction must start as a writer.
func DSN(path string) string {
	return path + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}

// Repository is the sqlite-backed message store and call log. Sequence
// positions are assigned inside the insert transaction, so append order and
// read order agree even under concurrent senders.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) (usecase.Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) CreateMessage(bookingCode string, sender domain.Role, body string, kind domain.MessageKind) (domain.Message, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to begin message insert: %w", err)
	}
	defer tx.Rollback()

	var seq uint64
	if err := tx.QueryRow(
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE booking_code = ?", bookingCode,
	).Scan(&seq); err != nil {
		return domain.Message{}, fmt.Errorf("failed to assign sequence for booking %s: %w", bookingCode, err)
	}

	id := ulid.Make().String()
	createdAt := time.Now().UTC()
	query := "INSERT INTO messages (id, booking_code, seq, sender, kind, body, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	if _, err := tx.Exec(query, id, bookingCode, seq, sender.String(), string(kind), body, createdAt); err != nil {
		return domain.Message{}, fmt.Errorf("failed to insert message for booking %s: %w", bookingCode, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Message{}, fmt.Errorf("failed to commit message for booking %s: %w", bookingCode, err)
	}
	return domain.NewMessage(id, bookingCode, sender, body, kind, seq, createdAt), nil
}

func (r *Repository) ListMessages(bookingCode string, limit int, afterSeq uint64) ([]domain.Message, error) {
	query := "SELECT id, seq, sender, kind, body, created_at FROM messages WHERE booking_code = ? AND seq > ? ORDER BY seq LIMIT ?"
	rows, err := r.db.Query(query, bookingCode, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for booking %s: %w", bookingCode, err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var id, sender, kind, body string
		var seq uint64
		var createdAt time.Time
		if err := rows.Scan(&id, &seq, &sender, &kind, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, domain.NewMessage(id, bookingCode, domain.Role(sender), body, domain.MessageKind(kind), seq, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over messages for booking %s: %w", bookingCode, err)
	}
	return messages, nil
}

func (r *Repository) CreateCallLog(bookingCode string, rec domain.CallRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin call log insert: %w", err)
	}
	defer tx.Rollback()

	var seq uint64
	if err := tx.QueryRow(
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM call_logs WHERE booking_code = ?", bookingCode,
	).Scan(&seq); err != nil {
		return fmt.Errorf("failed to assign call log sequence for booking %s: %w", bookingCode, err)
	}

	query := `INSERT INTO call_logs
		(booking_code, seq, state, call_type, caller, callee, started_at, connected_at, ended_at, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.Exec(query,
		bookingCode, seq, rec.State.String(), rec.Type.String(), rec.Caller.String(), rec.Callee.String(),
		rec.StartedAt.UTC(), nullableTime(rec.ConnectedAt), nullableTime(rec.EndedAt),
		rec.DurationSeconds, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert call log for booking %s: %w", bookingCode, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit call log for booking %s: %w", bookingCode, err)
	}
	return nil
}

func (r *Repository) ListCallLogs(bookingCode string) ([]domain.CallRecord, error) {
	query := `SELECT state, call_type, caller, callee, started_at, connected_at, ended_at, duration_seconds
		FROM call_logs WHERE booking_code = ? ORDER BY seq`
	rows, err := r.db.Query(query, bookingCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query call logs for booking %s: %w", bookingCode, err)
	}
	defer rows.Close()

	records := []domain.CallRecord{}
	for rows.Next() {
		var state, callType, caller, callee string
		var startedAt time.Time
		var connectedAt, endedAt sql.NullTime
		var duration int
		if err := rows.Scan(&state, &callType, &caller, &callee, &startedAt, &connectedAt, &endedAt, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan call log: %w", err)
		}
		rec := domain.CallRecord{
			BookingCode:     bookingCode,
			State:           domain.CallState(state),
			Type:            domain.CallType(callType),
			Caller:          domain.Role(caller),
			Callee:          domain.Role(callee),
			StartedAt:       startedAt,
			DurationSeconds: duration,
		}
		if connectedAt.Valid {
			rec.ConnectedAt = connectedAt.Time
		}
		if endedAt.Valid {
			rec.EndedAt = endedAt.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over call logs for booking %s: %w", bookingCode, err)
	}
	return records, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
