package flow

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-flow/internal/observability"
)

// ConversationState represents the conversational state of a session
type ConversationState int

const (
	// StateIdle means no session activity
	StateIdle ConversationState = iota
	// StateWaiting means a session is active but no unit has been produced yet
	StateWaiting
	// StateSpeaking means real units are being emitted downstream
	StateSpeaking
	// StateInterrupted means the caller barged in on an active session
	StateInterrupted
)

// String returns a human-readable state name
func (s ConversationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// validTransitions is the fixed transition table. Any pair not listed here
// is rejected with InvalidTransitionError.
var validTransitions = map[ConversationState][]ConversationState{
	StateIdle:        {StateSpeaking, StateWaiting},
	StateWaiting:     {StateSpeaking, StateIdle, StateInterrupted},
	StateSpeaking:    {StateInterrupted, StateIdle},
	StateInterrupted: {StateIdle, StateWaiting},
}

// StateListener is invoked synchronously after every successful transition
type StateListener func(from, to ConversationState)

type stateSubscriber struct {
	id int
	fn StateListener
}

// StateMachine holds the current conversational state and enforces the
// transition table. Listeners are notified in subscription order; a panicking
// listener is logged and does not block the remaining listeners.
type StateMachine struct {
	mu          sync.RWMutex
	current     ConversationState
	subscribers []stateSubscriber
	nextSubID   int
	logger      zerolog.Logger
}

// NewStateMachine creates a state machine in the Idle state
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		logger:  observability.WithComponent("state_machine"),
	}
}

// Current returns the current state
func (sm *StateMachine) Current() ConversationState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition moves the machine to the target state if the transition table
// allows it. On success every subscriber is notified synchronously, in
// subscription order, with the (from, to) pair. On failure the state is left
// unchanged and an InvalidTransitionError is returned.
func (sm *StateMachine) Transition(to ConversationState) error {
	sm.mu.Lock()

	from := sm.current
	if !transitionAllowed(from, to) {
		sm.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}

	sm.current = to
	// Snapshot under the lock so listeners run outside it
	subs := make([]stateSubscriber, len(sm.subscribers))
	copy(subs, sm.subscribers)
	sm.mu.Unlock()

	sm.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("State transition")

	for _, sub := range subs {
		sm.notify(sub, from, to)
	}
	return nil
}

// notify invokes a single listener, recovering and logging any panic so one
// misbehaving subscriber cannot block the others
func (sm *StateMachine) notify(sub stateSubscriber, from, to ConversationState) {
	defer func() {
		if r := recover(); r != nil {
			sm.logger.Error().
				Int("subscriber_id", sub.id).
				Interface("panic", r).
				Msg("State listener panicked")
		}
	}()
	sub.fn(from, to)
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners are invoked in the order they were subscribed.
func (sm *StateMachine) Subscribe(fn StateListener) func() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	id := sm.nextSubID
	sm.nextSubID++
	sm.subscribers = append(sm.subscribers, stateSubscriber{id: id, fn: fn})

	return func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		for i, sub := range sm.subscribers {
			if sub.id == id {
				sm.subscribers = append(sm.subscribers[:i], sm.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Reset forces the state back to Idle without notifying subscribers.
// Intended for reinitialization between sessions, not as a conversational
// transition.
func (sm *StateMachine) Reset() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.current = StateIdle
}

func transitionAllowed(from, to ConversationState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
