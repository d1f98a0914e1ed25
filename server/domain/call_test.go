package domain

import (
	"reflect"
	"testing"
)

func TestCallButtons(t *testing.T) {
	tests := []struct {
		state  CallState
		role   Role
		caller Role
		want   []string
	}{
		{CallStateCalling, RoleDriver, RoleDriver, []string{"cancel"}},
		{CallStateCalling, RolePassenger, RoleDriver, []string{}},
		{CallStateRinging, RoleDriver, RoleDriver, []string{"cancel"}},
		{CallStateRinging, RolePassenger, RoleDriver, []string{"accept", "reject"}},
		{CallStateConnected, RoleDriver, RoleDriver, []string{"end"}},
		{CallStateConnected, RolePassenger, RoleDriver, []string{"end"}},
		{CallStateEnded, RoleDriver, RoleDriver, []string{}},
		{CallStateRejected, RolePassenger, RoleDriver, []string{}},
		{CallStateIdle, RoleDriver, RoleDriver, []string{}},
	}
	for _, tt := range tests {
		got := CallButtons(tt.state, tt.role, tt.caller)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("CallButtons(%s, %s, caller=%s) = %v, want %v", tt.state, tt.role, tt.caller, got, tt.want)
		}
	}
}

func TestCallStateTerminal(t *testing.T) {
	terminal := []CallState{CallStateEnded, CallStateRejected, CallStateCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false", s)
		}
	}
	live := []CallState{CallStateIdle, CallStateCalling, CallStateRinging, CallStateConnected}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
	}
}

func TestParseCallAction(t *testing.T) {
	for _, raw := range []string{"initiate", "ring", "accept", "reject", "cancel", "end"} {
		if _, err := ParseCallAction(raw); err != nil {
			t.Errorf("ParseCallAction(%q): %v", raw, err)
		}
	}
	for _, raw := range []string{"", "hangup", "Accept", "INITIATE"} {
		if _, err := ParseCallAction(raw); !IsValidation(err) {
			t.Errorf("ParseCallAction(%q) err = %v, want validation error", raw, err)
		}
	}
}

func TestParseCallType(t *testing.T) {
	if ct, err := ParseCallType(""); err != nil || ct != CallTypeVoice {
		t.Fatalf("ParseCallType(\"\") = %v, %v; want voice default", ct, err)
	}
	if ct, err := ParseCallType("voice"); err != nil || ct != CallTypeVoice {
		t.Fatalf("ParseCallType(voice) = %v, %v", ct, err)
	}
	if ct, err := ParseCallType("video"); err != nil || ct != CallTypeVideo {
		t.Fatalf("ParseCallType(video) = %v, %v", ct, err)
	}
	for _, raw := range []string{"hologram", "Voice", "VIDEO"} {
		if _, err := ParseCallType(raw); !IsValidation(err) {
			t.Errorf("ParseCallType(%q) err = %v, want validation error", raw, err)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("driver"); err != nil || r != RoleDriver {
		t.Fatalf("ParseRole(driver) = %v, %v", r, err)
	}
	if r, err := ParseRole("passenger"); err != nil || r != RolePassenger {
		t.Fatalf("ParseRole(passenger) = %v, %v", r, err)
	}
	for _, raw := range []string{"", "system", "rider", "Driver"} {
		if _, err := ParseRole(raw); !IsValidation(err) {
			t.Errorf("ParseRole(%q) err = %v, want validation error", raw, err)
		}
	}
}

func TestRolePeer(t *testing.T) {
	if RoleDriver.Peer() != RolePassenger || RolePassenger.Peer() != RoleDriver {
		t.Fatal("Peer is not symmetric between driver and passenger")
	}
	if RoleSystem.IsParticipant() {
		t.Fatal("system counted as a participant")
	}
}
