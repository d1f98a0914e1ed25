package domain

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultRingDelay     = 200 * time.Millisecond
	defaultAnswerTimeout = 60 * time.Second
	defaultSettleDelay   = 3 * time.Second
)

// CallMachineConfig tunes the timers the machine owns. All three are
// cancelled by any explicit transition on the same call.
type CallMachineConfig struct {
	// RingDelay is how long after initiate the call auto-advances from
	// calling to ringing. The callee transport may apply an explicit ring
	// action earlier.
	RingDelay time.Duration
	// AnswerTimeout auto-cancels a call that stays unanswered in calling or
	// ringing. Zero disables the timeout.
	AnswerTimeout time.Duration
	// SettleDelay is how long a terminal state stays observable before the
	// booking reverts to idle.
	SettleDelay time.Duration
	// Clock overrides wall-clock reads, for tests.
	Clock func() time.Time
}

func (c CallMachineConfig) withDefaults() CallMachineConfig {
	if c.RingDelay <= 0 {
		c.RingDelay = defaultRingDelay
	}
	if c.AnswerTimeout < 0 {
		c.AnswerTimeout = defaultAnswerTimeout
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = defaultSettleDelay
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// CallMachine owns the authoritative call state per booking. Transitions for
// one booking are totally ordered behind that booking's lock; bookings never
// block each other. The lock covers validate+mutate+log only, broadcasts run
// after release.
type CallMachine struct {
	mu    sync.Mutex
	calls map[string]*callSession

	log    CallSink
	msgs   CallMessenger
	pub    Broadcaster
	logger *slog.Logger
	cfg    CallMachineConfig
}

type callSession struct {
	mu          sync.Mutex
	rec         CallRecord
	ringTimer   *time.Timer
	answerTimer *time.Timer
	settleTimer *time.Timer
}

func NewCallMachine(log CallSink, msgs CallMessenger, pub Broadcaster, logger *slog.Logger, cfg CallMachineConfig) *CallMachine {
	return &CallMachine{
		calls:  make(map[string]*callSession),
		log:    log,
		msgs:   msgs,
		pub:    pub,
		logger: logger,
		cfg:    cfg.withDefaults(),
	}
}

// State reports the current state for a booking. Terminal states stay
// visible until the settle delay expires, then the booking reads idle again.
func (m *CallMachine) State(bookingCode string) CallState {
	m.mu.Lock()
	cs, ok := m.calls[bookingCode]
	m.mu.Unlock()
	if !ok {
		return CallStateIdle
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.rec.State
}

// Record returns a snapshot of the live (or settling) call record.
func (m *CallMachine) Record(bookingCode string) (CallRecord, bool) {
	m.mu.Lock()
	cs, ok := m.calls[bookingCode]
	m.mu.Unlock()
	if !ok {
		return CallRecord{}, false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.rec, true
}

// Apply validates and applies one transition. callType only matters for
// initiate, empty means voice. clientDuration is the client-reported
// duration, logged for diagnostics only; the duration of record is always
// computed server-side.
func (m *CallMachine) Apply(bookingCode string, actor Role, action CallAction, callType CallType, clientDuration int) (CallRecord, error) {
	if clientDuration > 0 {
		m.logger.Debug("client reported duration",
			"booking_code", bookingCode, "actor", actor, "action", action, "seconds", clientDuration)
	}
	if action == CallActionInitiate {
		return m.initiate(bookingCode, actor, callType)
	}
	return m.transition(bookingCode, actor, action)
}

func (m *CallMachine) initiate(bookingCode string, actor Role, callType CallType) (CallRecord, error) {
	if callType == "" {
		callType = CallTypeVoice
	}
	now := m.cfg.Clock()
	cs := &callSession{
		rec: CallRecord{
			BookingCode: bookingCode,
			State:       CallStateCalling,
			Type:        callType,
			Caller:      actor,
			Callee:      actor.Peer(),
			StartedAt:   now,
		},
	}

	m.mu.Lock()
	if prev, ok := m.calls[bookingCode]; ok {
		prev.mu.Lock()
		terminal := prev.rec.State.Terminal()
		if terminal {
			prev.stopTimers()
		}
		prev.mu.Unlock()
		if !terminal {
			m.mu.Unlock()
			return CallRecord{}, ErrCallAlreadyActive
		}
		// Settling record: the previous call is closed, a fresh one may start.
	}
	m.calls[bookingCode] = cs
	m.mu.Unlock()

	if err := m.log.RecordCall(bookingCode, cs.rec); err != nil {
		m.mu.Lock()
		if cur, ok := m.calls[bookingCode]; ok && cur == cs {
			delete(m.calls, bookingCode)
		}
		m.mu.Unlock()
		return CallRecord{}, fmt.Errorf("record call: %w", err)
	}

	cs.mu.Lock()
	cs.ringTimer = time.AfterFunc(m.cfg.RingDelay, func() {
		m.autoApply(bookingCode, cs, CallActionRing)
	})
	if m.cfg.AnswerTimeout > 0 {
		cs.answerTimer = time.AfterFunc(m.cfg.AnswerTimeout, func() {
			m.autoApply(bookingCode, cs, CallActionCancel)
		})
	}
	snapshot := cs.rec
	cs.mu.Unlock()

	m.emit(snapshot, CallActionInitiate, actor)
	return snapshot, nil
}

func (m *CallMachine) transition(bookingCode string, actor Role, action CallAction) (CallRecord, error) {
	m.mu.Lock()
	cs, ok := m.calls[bookingCode]
	m.mu.Unlock()
	if !ok {
		return CallRecord{}, InvalidTransitionError{State: CallStateIdle, Action: action, Actor: actor}
	}
	return m.transitionOn(bookingCode, cs, actor, action)
}

// transitionOn applies an explicit or timer transition to a known session. A
// session object is only ever replaced in the map once terminal, so a stale
// reference fails validation instead of touching a newer call.
func (m *CallMachine) transitionOn(bookingCode string, cs *callSession, actor Role, action CallAction) (CallRecord, error) {
	cs.mu.Lock()
	prev := cs.rec
	if err := mutate(&cs.rec, actor, action, m.cfg.Clock()); err != nil {
		cs.mu.Unlock()
		return CallRecord{}, err
	}
	if err := m.log.RecordCall(bookingCode, cs.rec); err != nil {
		cs.rec = prev
		cs.mu.Unlock()
		return CallRecord{}, fmt.Errorf("record call: %w", err)
	}
	switch {
	case cs.rec.State.Terminal():
		cs.stopTimers()
		cs.settleTimer = time.AfterFunc(m.cfg.SettleDelay, func() {
			m.settle(bookingCode, cs)
		})
	case cs.rec.State == CallStateRinging:
		if cs.ringTimer != nil {
			cs.ringTimer.Stop()
		}
	case cs.rec.State == CallStateConnected:
		cs.stopTimers()
	}
	snapshot := cs.rec
	cs.mu.Unlock()

	m.emit(snapshot, action, actor)
	return snapshot, nil
}

// mutate applies the role-aware transition table. Called with the session
// lock held; on error the record is untouched.
func mutate(rec *CallRecord, actor Role, action CallAction, now time.Time) error {
	invalid := InvalidTransitionError{State: rec.State, Action: action, Actor: actor}
	switch action {
	case CallActionRing:
		// Delivered signal: fired by the machine's own timer (system) or by
		// the callee's transport acknowledging delivery.
		if rec.State != CallStateCalling || (actor != RoleSystem && actor != rec.Callee) {
			return invalid
		}
		rec.State = CallStateRinging
	case CallActionAccept:
		if rec.State != CallStateRinging || actor != rec.Callee {
			return invalid
		}
		rec.State = CallStateConnected
		rec.ConnectedAt = now
	case CallActionReject:
		if rec.State != CallStateRinging || actor != rec.Callee {
			return invalid
		}
		rec.State = CallStateRejected
		rec.EndedAt = now
	case CallActionCancel:
		if rec.State != CallStateCalling && rec.State != CallStateRinging {
			return invalid
		}
		if actor != RoleSystem && actor != rec.Caller {
			return invalid
		}
		rec.State = CallStateCancelled
		rec.EndedAt = now
	case CallActionEnd:
		if rec.State != CallStateConnected || !actor.IsParticipant() {
			return invalid
		}
		rec.State = CallStateEnded
		rec.EndedAt = now
		rec.DurationSeconds = int(now.Sub(rec.ConnectedAt) / time.Second)
	default:
		return invalid
	}
	return nil
}

// autoApply runs a timer-driven transition against the session the timer was
// armed for. A transition that is no longer legal is simply dropped.
func (m *CallMachine) autoApply(bookingCode string, cs *callSession, action CallAction) {
	if _, err := m.transitionOn(bookingCode, cs, RoleSystem, action); err != nil {
		m.logger.Debug("timer transition dropped",
			"booking_code", bookingCode, "action", action, "error", err)
	}
}

func (m *CallMachine) settle(bookingCode string, cs *callSession) {
	m.mu.Lock()
	if cur, ok := m.calls[bookingCode]; ok && cur == cs {
		delete(m.calls, bookingCode)
	}
	m.mu.Unlock()
}

// emit writes the chat-log entry and pushes per-role state updates. Runs
// after the session lock is released so a slow peer never stalls the next
// transition.
func (m *CallMachine) emit(rec CallRecord, action CallAction, actor Role) {
	m.msgs.AppendCallEvent(rec.BookingCode, callEventBody(rec, action, actor))

	now := m.cfg.Clock()
	for _, role := range []Role{rec.Caller, rec.Callee} {
		update := CallUpdate{
			State:           rec.State,
			Type:            rec.Type,
			Role:            role,
			Caller:          rec.Caller,
			Body:            callUpdateBody(rec, role),
			Buttons:         CallButtons(rec.State, role, rec.Caller),
			DurationSeconds: rec.DurationSeconds,
		}
		report := m.pub.PublishToRole(rec.BookingCode, role, NewCallStateEvent(rec.BookingCode, update, now))
		if failed := report.Failed(); len(failed) > 0 {
			m.logger.Warn("call update not delivered to all connections",
				"booking_code", rec.BookingCode, "role", role, "failed", len(failed))
		}
	}
}

// callUpdateBody is the human-readable line shown to one role for the
// current state.
func callUpdateBody(rec CallRecord, role Role) string {
	switch rec.State {
	case CallStateCalling:
		if role == rec.Caller {
			return "Calling..."
		}
		return incomingBody(rec)
	case CallStateRinging:
		if role == rec.Caller {
			return "Ringing..."
		}
		return incomingBody(rec)
	case CallStateConnected:
		return "Call connected"
	case CallStateRejected:
		return fmt.Sprintf("Call rejected by %s", rec.Callee.Title())
	case CallStateCancelled:
		return "Call cancelled"
	case CallStateEnded:
		return fmt.Sprintf("Call ended - duration %d seconds", rec.DurationSeconds)
	}
	return ""
}

func incomingBody(rec CallRecord) string {
	if rec.Type == CallTypeVideo {
		return fmt.Sprintf("Incoming video call from %s", rec.Caller.Title())
	}
	return fmt.Sprintf("Incoming call from %s", rec.Caller.Title())
}

func (cs *callSession) stopTimers() {
	if cs.ringTimer != nil {
		cs.ringTimer.Stop()
	}
	if cs.answerTimer != nil {
		cs.answerTimer.Stop()
	}
}
