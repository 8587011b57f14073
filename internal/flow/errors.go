package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned when Start is called while a session is active
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotStarted is returned when an operation requires an active session
	ErrNotStarted = errors.New("session not started")
)

// InvalidTransitionError is returned when a state transition is not allowed
// by the transition table. The state is left unchanged.
type InvalidTransitionError struct {
	From ConversationState
	To   ConversationState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// InvalidConfigurationError is returned at construction time when an option
// has an unusable value.
type InvalidConfigurationError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
