package domain

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu   sync.Mutex
	recs []CallRecord
	fail bool
}

func (s *recordingSink) RecordCall(bookingCode string, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingSink) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *recordingSink) states() []CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallState, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec.State)
	}
	return out
}

type recordingMessenger struct {
	mu     sync.Mutex
	bodies []string
}

func (m *recordingMessenger) AppendCallEvent(bookingCode, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
}

func (m *recordingMessenger) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.bodies))
	copy(out, m.bodies)
	return out
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (b *recordingBroadcaster) Publish(bookingCode string, ev Event, excludeConnID string) DeliveryReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return DeliveryReport{}
}

func (b *recordingBroadcaster) PublishToRole(bookingCode string, role Role, ev Event) DeliveryReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return DeliveryReport{}
}

func (b *recordingBroadcaster) updatesFor(role Role) []CallUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []CallUpdate
	for _, ev := range b.events {
		if ev.Call != nil && ev.Call.Role == role {
			out = append(out, *ev.Call)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type machineFixture struct {
	machine   *CallMachine
	sink      *recordingSink
	messenger *recordingMessenger
	pub       *recordingBroadcaster
	clock     *fakeClock
}

func newMachineFixture(cfg CallMachineConfig) *machineFixture {
	f := &machineFixture{
		sink:      &recordingSink{},
		messenger: &recordingMessenger{},
		pub:       &recordingBroadcaster{},
		clock:     &fakeClock{now: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)},
	}
	if cfg.Clock == nil {
		cfg.Clock = f.clock.Now
	}
	if cfg.RingDelay == 0 {
		// Keep the auto-ring timer out of the way unless a test wants it.
		cfg.RingDelay = time.Hour
	}
	f.machine = NewCallMachine(f.sink, f.messenger, f.pub, discardLogger(), cfg)
	return f
}

func waitForState(t *testing.T, m *CallMachine, bookingCode string, want CallState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State(bookingCode) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %q, want %q", m.State(bookingCode), want)
}

func TestCallHappyPath(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{})

	rec, err := f.machine.Apply("B1", RoleDriver, CallActionInitiate, CallTypeVoice, 0)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if rec.State != CallStateCalling || rec.Caller != RoleDriver || rec.Callee != RolePassenger {
		t.Fatalf("unexpected record after initiate: %+v", rec)
	}

	rec, err = f.machine.Apply("B1", RolePassenger, CallActionRing, "", 0)
	if err != nil {
		t.Fatalf("ring: %v", err)
	}
	if rec.State != CallStateRinging {
		t.Fatalf("state after ring = %q", rec.State)
	}

	rec, err = f.machine.Apply("B1", RolePassenger, CallActionAccept, "", 0)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if rec.State != CallStateConnected || rec.ConnectedAt.IsZero() {
		t.Fatalf("unexpected record after accept: %+v", rec)
	}

	f.clock.Advance(125 * time.Second)
	rec, err = f.machine.Apply("B1", RoleDriver, CallActionEnd, "", 0)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if rec.State != CallStateEnded {
		t.Fatalf("state after end = %q", rec.State)
	}
	if rec.DurationSeconds != 125 {
		t.Fatalf("duration = %d, want 125", rec.DurationSeconds)
	}

	bodies := f.messenger.all()
	want := []string{
		"Call initiated by Driver",
		"Ringing - incoming call from Driver",
		"Call accepted by Passenger",
		"Call ended by Driver - duration 125 seconds",
	}
	if len(bodies) != len(want) {
		t.Fatalf("chat log entries = %v", bodies)
	}
	for i := range want {
		if bodies[i] != want[i] {
			t.Errorf("chat log[%d] = %q, want %q", i, bodies[i], want[i])
		}
	}

	audit := f.sink.states()
	wantAudit := []CallState{CallStateCalling, CallStateRinging, CallStateConnected, CallStateEnded}
	if len(audit) != len(wantAudit) {
		t.Fatalf("audit trail = %v", audit)
	}
	for i := range wantAudit {
		if audit[i] != wantAudit[i] {
			t.Errorf("audit[%d] = %q, want %q", i, audit[i], wantAudit[i])
		}
	}
}

func TestSingleActiveCallPerBooking(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{})

	if _, err := f.machine.Apply("B1", RoleDriver, CallActionInitiate, CallTypeVoice, 0); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := f.machine.Apply("B1", RolePassenger, CallActionInitiate, CallTypeVoice, 0); !errors.Is(err, ErrCallAlreadyActive) {
		t.Fatalf("second initiate err = %v, want ErrCallAlreadyActive", err)
	}
	if _, err := f.machine.Apply("B1", RoleDriver, CallActionInitiate, CallTypeVoice, 0); !errors.Is(err, ErrCallAlreadyActive) {
		t.Fatalf("same-caller re-initiate err = %v, want ErrCallAlreadyActive", err)
	}

	// Other bookings are unaffected.
	if _, err := f.machine.Apply("B2", RolePassenger, CallActionInitiate, CallTypeVoice, 0); err != nil {
		t.Fatalf("initiate on separate booking: %v", err)
	}
}

func TestIllegalTransitions(t *testing.T) {
	type step struct {
		actor  Role
		action CallAction
	}
	tests := []struct {
		name   string
		setup  []step
		actor  Role
		action CallAction
	}{
		{
			name:   "accept before ringing",
			setup:  []step{{RoleDriver, CallActionInitiate}},
			actor:  RolePassenger,
			action: CallActionAccept,
		},
		{
			name:   "caller accepts own call",
			setup:  []step{{RoleDriver, CallActionInitiate}, {RolePassenger, CallActionRing}},
			actor:  RoleDriver,
			action: CallActionAccept,
		},
		{
			name:   "callee cancels",
			setup:  []step{{RoleDriver, CallActionInitiate}, {RolePassenger, CallActionRing}},
			actor:  RolePassenger,
			action: CallActionCancel,
		},
		{
			name:   "caller rejects own call",
			setup:  []step{{RoleDriver, CallActionInitiate}, {RolePassenger, CallActionRing}},
			actor:  RoleDriver,
			action: CallActionReject,
		},
		{
			name:   "end without connection",
			setup:  []step{{RoleDriver, CallActionInitiate}},
			actor:  RoleDriver,
			action: CallActionEnd,
		},
		{
			name:   "ring when no call exists",
			actor:  RolePassenger,
			action: CallActionRing,
		},
		{
			name:   "end when idle",
			actor:  RoleDriver,
			action: CallActionEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMachineFixture(CallMachineConfig{})
			for _, s := range tt.setup {
				if _, err := f.machine.Apply("B1", s.actor, s.action, "", 0); err != nil {
					t.Fatalf("setup %s/%s: %v", s.actor, s.action, err)
				}
			}
			before := f.machine.State("B1")
			_, err := f.machine.Apply("B1", tt.actor, tt.action, "", 0)
			var invalid InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("err = %v, want InvalidTransitionError", err)
			}
			if got := f.machine.State("B1"); got != before {
				t.Fatalf("state changed on rejected transition: %q -> %q", before, got)
			}
		})
	}
}

func TestRejectThenNewCall(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{SettleDelay: time.Hour})

	mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	mustApply(t, f.machine, "B1", RolePassenger, CallActionRing)
	mustApply(t, f.machine, "B1", RolePassenger, CallActionReject)

	if got := f.machine.State("B1"); got != CallStateRejected {
		t.Fatalf("state = %q, want rejected during settle window", got)
	}

	// A closed call never blocks the next one, even before settle expires.
	rec, err := f.machine.Apply("B1", RolePassenger, CallActionInitiate, CallTypeVoice, 0)
	if err != nil {
		t.Fatalf("re-initiate during settle: %v", err)
	}
	if rec.Caller != RolePassenger || rec.State != CallStateCalling {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func mustApply(t *testing.T, m *CallMachine, bookingCode string, actor Role, action CallAction) CallRecord {
	t.Helper()
	rec, err := m.Apply(bookingCode, actor, action, "", 0)
	if err != nil {
		t.Fatalf("%s/%s: %v", actor, action, err)
	}
	return rec
}

func TestAutoRing(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{RingDelay: 10 * time.Millisecond, Clock: time.Now})

	mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	waitForState(t, f.machine, "B1", CallStateRinging)
}

func TestAnswerTimeout(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{
		RingDelay:     5 * time.Millisecond,
		AnswerTimeout: 40 * time.Millisecond,
		SettleDelay:   time.Hour,
		Clock:         time.Now,
	})

	mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	waitForState(t, f.machine, "B1", CallStateCancelled)

	bodies := f.messenger.all()
	last := bodies[len(bodies)-1]
	if last != "Call cancelled - no answer" {
		t.Fatalf("last chat entry = %q", last)
	}
}

func TestAcceptStopsAnswerTimeout(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{
		RingDelay:     5 * time.Millisecond,
		AnswerTimeout: 40 * time.Millisecond,
		Clock:         time.Now,
	})

	mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	waitForState(t, f.machine, "B1", CallStateRinging)
	mustApply(t, f.machine, "B1", RolePassenger, CallActionAccept)

	time.Sleep(80 * time.Millisecond)
	if got := f.machine.State("B1"); got != CallStateConnected {
		t.Fatalf("state = %q, answer timeout fired after accept", got)
	}
}

func TestSettleRevertsToIdle(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{SettleDelay: 20 * time.Millisecond, Clock: time.Now})

	mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	mustApply(t, f.machine, "B1", RoleDriver, CallActionCancel)

	if got := f.machine.State("B1"); got != CallStateCancelled {
		t.Fatalf("state right after cancel = %q", got)
	}
	waitForState(t, f.machine, "B1", CallStateIdle)
	if _, ok := f.machine.Record("B1"); ok {
		t.Fatal("record still present after settle")
	}
}

func TestInitiateRollsBackOnLogFailure(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{})
	f.sink.setFail(true)

	if _, err := f.machine.Apply("B1", RoleDriver, CallActionInitiate, CallTypeVoice, 0); err == nil {
		t.Fatal("initiate succeeded with failing call log")
	}
	if got := f.machine.State("B1"); got != CallStateIdle {
		t.Fatalf("state = %q, want idle after rollback", got)
	}

	f.sink.setFail(false)
	if _, err := f.machine.Apply("B1", RoleDriver, CallActionInitiate, CallTypeVoice, 0); err != nil {
		t.Fatalf("initiate after sink recovery: %v", err)
	}
}

func TestTransitionRollsBackOnLogFailure(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{})

	mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	f.sink.setFail(true)

	if _, err := f.machine.Apply("B1", RolePassenger, CallActionRing, "", 0); err == nil {
		t.Fatal("ring succeeded with failing call log")
	}
	if got := f.machine.State("B1"); got != CallStateCalling {
		t.Fatalf("state = %q, want calling after rollback", got)
	}
}

func TestPerRoleUpdates(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{})

	mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	mustApply(t, f.machine, "B1", RolePassenger, CallActionRing)

	driver := f.pub.updatesFor(RoleDriver)
	passenger := f.pub.updatesFor(RolePassenger)
	if len(driver) != 2 || len(passenger) != 2 {
		t.Fatalf("updates: driver=%d passenger=%d, want 2 each", len(driver), len(passenger))
	}

	ringing := driver[1]
	if ringing.Body != "Ringing..." {
		t.Errorf("caller body = %q", ringing.Body)
	}
	if len(ringing.Buttons) != 1 || ringing.Buttons[0] != "cancel" {
		t.Errorf("caller buttons = %v", ringing.Buttons)
	}

	incoming := passenger[1]
	if incoming.Body != "Incoming call from Driver" {
		t.Errorf("callee body = %q", incoming.Body)
	}
	if len(incoming.Buttons) != 2 || incoming.Buttons[0] != "accept" || incoming.Buttons[1] != "reject" {
		t.Errorf("callee buttons = %v", incoming.Buttons)
	}
}

func TestVideoCallTypeCarriedThrough(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{})

	rec := mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	if rec.Type != CallTypeVoice {
		t.Fatalf("default call type = %q, want voice", rec.Type)
	}
	mustApply(t, f.machine, "B1", RoleDriver, CallActionCancel)

	rec, err := f.machine.Apply("B1", RolePassenger, CallActionInitiate, CallTypeVideo, 0)
	if err != nil {
		t.Fatalf("video initiate: %v", err)
	}
	if rec.Type != CallTypeVideo {
		t.Fatalf("call type = %q, want video", rec.Type)
	}

	rec = mustApply(t, f.machine, "B1", RoleDriver, CallActionRing)
	if rec.Type != CallTypeVideo {
		t.Fatalf("type lost across transition: %q", rec.Type)
	}

	bodies := f.messenger.all()
	if bodies[len(bodies)-2] != "Video call initiated by Passenger" {
		t.Fatalf("chat entry = %q", bodies[len(bodies)-2])
	}

	updates := f.pub.updatesFor(RoleDriver)
	last := updates[len(updates)-1]
	if last.Type != CallTypeVideo {
		t.Fatalf("pushed update type = %q, want video", last.Type)
	}
	if last.Body != "Incoming video call from Passenger" {
		t.Fatalf("callee body = %q", last.Body)
	}
}

func TestClientDurationNeverTrusted(t *testing.T) {
	f := newMachineFixture(CallMachineConfig{})

	mustApply(t, f.machine, "B1", RoleDriver, CallActionInitiate)
	mustApply(t, f.machine, "B1", RolePassenger, CallActionRing)
	mustApply(t, f.machine, "B1", RolePassenger, CallActionAccept)
	f.clock.Advance(10 * time.Second)

	rec, err := f.machine.Apply("B1", RoleDriver, CallActionEnd, "", 9999)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if rec.DurationSeconds != 10 {
		t.Fatalf("duration = %d, want server-computed 10", rec.DurationSeconds)
	}
}
