package usecase

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ridewire/ridewire/server/domain"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Coordinator is the façade the transports talk to: send a message, read
// history, drive a call, attach and detach connections. It composes the
// store, the registry, the broadcaster and the call machine; each operation
// is a thin validated delegation.
type Coordinator struct {
	repo     Repository
	registry domain.ConnectionRegistry
	pub      domain.Broadcaster
	calls    *domain.CallMachine
	logger   *slog.Logger
}

// CallStatus is the synchronous answer to a call action: the reached state
// and the buttons each role should now be shown.
type CallStatus struct {
	State   domain.CallState
	Buttons map[domain.Role][]string
	Record  domain.CallRecord
}

type Stats struct {
	ActiveConnections int
	ActiveBookings    int
}

func NewCoordinator(repo Repository, registry domain.ConnectionRegistry, pub domain.Broadcaster, logger *slog.Logger, callCfg domain.CallMachineConfig) *Coordinator {
	c := &Coordinator{
		repo:     repo,
		registry: registry,
		pub:      pub,
		logger:   logger,
	}
	c.calls = domain.NewCallMachine(
		callLogSink{repo: repo},
		callMessenger{repo: repo, pub: pub, logger: logger},
		pub,
		logger,
		callCfg,
	)
	return c
}

// SendMessage validates, appends and broadcasts one chat message. Delivery
// failures never fail the send; the message is already durable.
func (c *Coordinator) SendMessage(bookingCode string, sender domain.Role, body string) (domain.Message, error) {
	if bookingCode == "" {
		return domain.Message{}, domain.ValidationError{Reason: "missing booking code"}
	}
	if !sender.IsParticipant() {
		return domain.Message{}, domain.ValidationError{Reason: fmt.Sprintf("invalid sender role %q", sender)}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, domain.ValidationError{Reason: "empty message body"}
	}

	msg, err := c.repo.CreateMessage(bookingCode, sender, body, domain.MessageKindText)
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}

	report := c.pub.Publish(bookingCode, domain.NewMessageEvent(msg), "")
	if failed := report.Failed(); len(failed) > 0 {
		c.logger.Warn("message not delivered to all connections",
			"booking_code", bookingCode, "message_id", msg.ID, "failed", len(failed))
	}
	return msg, nil
}

// Messages reads chat history oldest-first. cursor is the opaque token
// returned by a previous call; empty means from the beginning. The second
// return value is the next cursor, empty once the page was not full.
func (c *Coordinator) Messages(bookingCode string, limit int, cursor string) ([]domain.Message, string, error) {
	if bookingCode == "" {
		return nil, "", domain.ValidationError{Reason: "missing booking code"}
	}
	afterSeq, err := parseCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	msgs, err := c.repo.ListMessages(bookingCode, limit, afterSeq)
	if err != nil {
		return nil, "", fmt.Errorf("read messages: %w", err)
	}
	next := ""
	if len(msgs) == limit {
		next = strconv.FormatUint(msgs[len(msgs)-1].Seq, 10)
	}
	return msgs, next, nil
}

// CallAction drives the call state machine on behalf of a participant.
// callType is only consulted on initiate, empty means voice.
func (c *Coordinator) CallAction(bookingCode string, actor domain.Role, action domain.CallAction, callType domain.CallType, clientDuration int) (CallStatus, error) {
	if bookingCode == "" {
		return CallStatus{}, domain.ValidationError{Reason: "missing booking code"}
	}
	if !actor.IsParticipant() {
		return CallStatus{}, domain.ValidationError{Reason: fmt.Sprintf("invalid actor role %q", actor)}
	}

	rec, err := c.calls.Apply(bookingCode, actor, action, callType, clientDuration)
	if err != nil {
		return CallStatus{}, err
	}
	return CallStatus{
		State: rec.State,
		Buttons: map[domain.Role][]string{
			domain.RoleDriver:    domain.CallButtons(rec.State, domain.RoleDriver, rec.Caller),
			domain.RolePassenger: domain.CallButtons(rec.State, domain.RolePassenger, rec.Caller),
		},
		Record: rec,
	}, nil
}

// CallState reports the current call state for a booking, idle included.
func (c *Coordinator) CallState(bookingCode string) domain.CallState {
	return c.calls.State(bookingCode)
}

// CallHistory returns the audit trail of call transitions, oldest-first.
func (c *Coordinator) CallHistory(bookingCode string) ([]domain.CallRecord, error) {
	if bookingCode == "" {
		return nil, domain.ValidationError{Reason: "missing booking code"}
	}
	recs, err := c.repo.ListCallLogs(bookingCode)
	if err != nil {
		return nil, fmt.Errorf("read call history: %w", err)
	}
	return recs, nil
}

// Connect registers a live connection for a booking.
func (c *Coordinator) Connect(bookingCode string, role domain.Role, connID string, sink domain.EventSink) error {
	if bookingCode == "" {
		return domain.ValidationError{Reason: "missing booking code"}
	}
	if !role.IsParticipant() {
		return domain.ValidationError{Reason: fmt.Sprintf("invalid role %q", role)}
	}
	if connID == "" {
		return domain.ValidationError{Reason: "missing connection id"}
	}
	c.registry.Register(bookingCode, role, connID, sink)
	c.logger.Info("connection registered", "booking_code", bookingCode, "role", role, "connection_id", connID)
	return nil
}

// Disconnect drops a connection; unknown ids are a no-op.
func (c *Coordinator) Disconnect(connID string) {
	c.registry.Deregister(connID)
	c.logger.Info("connection deregistered", "connection_id", connID)
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		ActiveConnections: c.registry.ActiveConnections(),
		ActiveBookings:    c.registry.ActiveBookings(),
	}
}

func parseCursor(cursor string) (uint64, error) {
	if cursor == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return 0, domain.ValidationError{Reason: fmt.Sprintf("bad cursor %q", cursor)}
	}
	return seq, nil
}

// callLogSink adapts the repository to the machine's audit-trail interface.
type callLogSink struct {
	repo Repository
}

func (s callLogSink) RecordCall(bookingCode string, rec domain.CallRecord) error {
	return s.repo.CreateCallLog(bookingCode, rec)
}

// callMessenger lands call events in the chat log and pushes them, so pull
// readers and push subscribers observe the same timeline.
type callMessenger struct {
	repo   Repository
	pub    domain.Broadcaster
	logger *slog.Logger
}

func (cm callMessenger) AppendCallEvent(bookingCode string, body string) {
	msg, err := cm.repo.CreateMessage(bookingCode, domain.RoleSystem, body, domain.MessageKindCallEvent)
	if err != nil {
		cm.logger.Error("save call event", "booking_code", bookingCode, "error", err)
		return
	}
	cm.pub.Publish(bookingCode, domain.NewMessageEvent(msg), "")
}
