package domain

import (
	"fmt"
	"time"
)

type CallState string

const (
	CallStateIdle      CallState = "idle"
	CallStateCalling   CallState = "calling"
	CallStateRinging   CallState = "ringing"
	CallStateConnected CallState = "connected"
	CallStateEnded     CallState = "ended"
	CallStateRejected  CallState = "rejected"
	CallStateCancelled CallState = "cancelled"
)

// Terminal reports whether the state closes the call record. A terminal state
// is still observable until the settle delay reverts the booking to idle.
func (s CallState) Terminal() bool {
	switch s {
	case CallStateEnded, CallStateRejected, CallStateCancelled:
		return true
	}
	return false
}

func (s CallState) String() string {
	return string(s)
}

// CallType distinguishes voice from video calls. It is carried through the
// call log and every push, but never changes the transition rules.
type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

// ParseCallType treats an absent type as voice, the original default.
func ParseCallType(s string) (CallType, error) {
	switch CallType(s) {
	case "":
		return CallTypeVoice, nil
	case CallTypeVoice, CallTypeVideo:
		return CallType(s), nil
	}
	return "", ValidationError{Reason: fmt.Sprintf("unknown call type %q", s)}
}

func (t CallType) String() string {
	return string(t)
}

// Title renders the call type for the rider-facing strings.
func (t CallType) Title() string {
	if t == CallTypeVideo {
		return "Video call"
	}
	return "Call"
}

type CallAction string

const (
	CallActionInitiate CallAction = "initiate"
	CallActionRing     CallAction = "ring"
	CallActionAccept   CallAction = "accept"
	CallActionReject   CallAction = "reject"
	CallActionCancel   CallAction = "cancel"
	CallActionEnd      CallAction = "end"
)

func ParseCallAction(s string) (CallAction, error) {
	switch CallAction(s) {
	case CallActionInitiate, CallActionRing, CallActionAccept, CallActionReject, CallActionCancel, CallActionEnd:
		return CallAction(s), nil
	}
	return "", ValidationError{Reason: fmt.Sprintf("unknown call action %q", s)}
}

func (a CallAction) String() string {
	return string(a)
}

// CallRecord is the live or closed record of one call attempt within a
// booking. DurationSeconds is computed server-side from the connected/ended
// wall-clock interval and stays 0 for calls that never connected.
type CallRecord struct {
	BookingCode     string
	State           CallState
	Type            CallType
	Caller          Role
	Callee          Role
	StartedAt       time.Time
	ConnectedAt     time.Time
	EndedAt         time.Time
	DurationSeconds int
}

// CallButtons derives which action buttons a role should be shown for the
// given state. Derived deterministically, never stored.
func CallButtons(state CallState, role, caller Role) []string {
	switch state {
	case CallStateCalling:
		if role == caller {
			return []string{"cancel"}
		}
		return []string{}
	case CallStateRinging:
		if role == caller {
			return []string{"cancel"}
		}
		return []string{"accept", "reject"}
	case CallStateConnected:
		return []string{"end"}
	}
	return []string{}
}

// callEventBody renders the system chat line written for an applied
// transition.
func callEventBody(rec CallRecord, action CallAction, actor Role) string {
	switch action {
	case CallActionInitiate:
		return fmt.Sprintf("%s initiated by %s", rec.Type.Title(), actor.Title())
	case CallActionRing:
		return fmt.Sprintf("Ringing - incoming call from %s", rec.Caller.Title())
	case CallActionAccept:
		return fmt.Sprintf("Call accepted by %s", actor.Title())
	case CallActionReject:
		return fmt.Sprintf("Call rejected by %s", actor.Title())
	case CallActionCancel:
		if actor == RoleSystem {
			return "Call cancelled - no answer"
		}
		return fmt.Sprintf("Call cancelled by %s", actor.Title())
	case CallActionEnd:
		return fmt.Sprintf("Call ended by %s - duration %d seconds", actor.Title(), rec.DurationSeconds)
	}
	return fmt.Sprintf("Call event: %s", action)
}
