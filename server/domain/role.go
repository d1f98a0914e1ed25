package domain

import "fmt"

// Role identifies one of the two fixed participants of a booking, plus the
// synthetic system sender used for call-event chat entries.
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
	RoleSystem    Role = "system"
)

// ParseRole accepts the two participant roles. The system role is never a
// valid caller input, it only appears on messages the server writes itself.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDriver, RolePassenger:
		return Role(s), nil
	}
	return "", ValidationError{Reason: fmt.Sprintf("invalid role %q, must be %q or %q", s, RoleDriver, RolePassenger)}
}

func (r Role) IsParticipant() bool {
	return r == RoleDriver || r == RolePassenger
}

// Peer returns the other participant of the booking.
func (r Role) Peer() Role {
	if r == RoleDriver {
		return RolePassenger
	}
	return RoleDriver
}

// Title renders the role the way the rider-facing strings spell it.
func (r Role) Title() string {
	switch r {
	case RoleDriver:
		return "Driver"
	case RolePassenger:
		return "Passenger"
	default:
		return "System"
	}
}

func (r Role) String() string {
	return string(r)
}
