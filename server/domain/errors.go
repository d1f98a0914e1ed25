package domain

import (
	"errors"
	"fmt"
)

// ErrCallAlreadyActive is returned by initiate while a prior call for the
// booking has not reached a terminal state.
var ErrCallAlreadyActive = errors.New("call already active")

// ValidationError rejects a request before any mutation: bad role, empty
// body, unknown action.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "validation: " + e.Reason
}

// InvalidTransitionError reports a call-state contract violation. State is
// left untouched and no events are emitted.
type InvalidTransitionError struct {
	State  CallState
	Action CallAction
	Actor  Role
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s by %s while %s", e.Action, e.Actor, e.State)
}

// IsValidation reports whether err is a deterministic caller error rather
// than a transient store or delivery failure.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
