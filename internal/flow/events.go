package flow

import (
	"time"
)

// EventKind identifies the type of an orchestrator event
type EventKind string

const (
	// EventStallDetected fires when silence exceeds the stall threshold
	EventStallDetected EventKind = "stall_detected"
	// EventFillerInjected fires when a synthetic filler phrase is emitted
	EventFillerInjected EventKind = "filler_injected"
	// EventFirstUnit fires once per session, before the first real unit
	EventFirstUnit EventKind = "first_unit"
	// EventStateChanged fires on every conversational state transition
	EventStateChanged EventKind = "state_changed"
	// EventInterrupted fires when the session is interrupted
	EventInterrupted EventKind = "interrupted"
	// EventUnitProcessed fires for every real unit forwarded downstream
	EventUnitProcessed EventKind = "unit_processed"
	// EventCompleted fires when the session finishes
	EventCompleted EventKind = "completed"
)

// Event is one notification from the orchestrator. Concrete payloads are the
// *Event structs below, switched on via Kind or a type switch.
type Event interface {
	Kind() EventKind
}

// StallDetectedEvent reports a silence that exceeded the threshold
type StallDetectedEvent struct {
	Elapsed time.Duration
}

// Kind returns EventStallDetected
func (StallDetectedEvent) Kind() EventKind { return EventStallDetected }

// FillerInjectedEvent reports a synthetic phrase emitted to mask a stall
type FillerInjectedEvent struct {
	Phrase string
}

// Kind returns EventFillerInjected
func (FillerInjectedEvent) Kind() EventKind { return EventFillerInjected }

// FirstUnitEvent reports the first real unit of the session, emitted before
// the corresponding UnitProcessedEvent
type FirstUnitEvent struct {
	Unit string
}

// Kind returns EventFirstUnit
func (FirstUnitEvent) Kind() EventKind { return EventFirstUnit }

// StateChangedEvent reports a conversational state transition
type StateChangedEvent struct {
	From ConversationState
	To   ConversationState
}

// Kind returns EventStateChanged
func (StateChangedEvent) Kind() EventKind { return EventStateChanged }

// InterruptedEvent reports that the caller barged in on the session
type InterruptedEvent struct{}

// Kind returns EventInterrupted
func (InterruptedEvent) Kind() EventKind { return EventInterrupted }

// UnitProcessedEvent reports one real unit forwarded downstream
type UnitProcessedEvent struct {
	Unit string
}

// Kind returns EventUnitProcessed
func (UnitProcessedEvent) Kind() EventKind { return EventUnitProcessed }

// CompletedEvent reports session completion with the final statistics
type CompletedEvent struct {
	Stats SessionStats
}

// Kind returns EventCompleted
func (CompletedEvent) Kind() EventKind { return EventCompleted }
