package flow

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-flow/internal/observability"
)

// Defaults for orchestrator configuration
const (
	DefaultStallThreshold       = 700 * time.Millisecond
	DefaultMaxFillersPerSession = 3
	DefaultBufferCapacity       = 10
)

// DefaultFillerPhrases returns the stock filler rotation
func DefaultFillerPhrases() []string {
	return []string{"um", "let me think", "hmm"}
}

// Config holds construction-time options for an Orchestrator. Zero values
// for EnableFillers and MaxFillersPerSession are taken literally, so a
// partially filled literal runs without fillers; start from DefaultConfig
// for the standard behavior.
type Config struct {
	StallThreshold       time.Duration // Silence duration before a stall fires
	FillerPhrases        []string      // Ordered filler rotation; nil selects the defaults
	EnableFillers        bool          // Whether stalls may trigger filler emission
	MaxFillersPerSession int           // Cap on fillers per session
	BufferCapacity       int           // Trailing window of retained units
}

// DefaultConfig returns the standard configuration with fillers enabled
func DefaultConfig() *Config {
	return &Config{
		StallThreshold:       DefaultStallThreshold,
		FillerPhrases:        DefaultFillerPhrases(),
		EnableFillers:        true,
		MaxFillersPerSession: DefaultMaxFillersPerSession,
		BufferCapacity:       DefaultBufferCapacity,
	}
}

// applyDefaults fills unset fields. EnableFillers and MaxFillersPerSession
// are left as given since their zero values are valid explicit choices; a
// zero filler cap means no fillers.
func (c *Config) applyDefaults() {
	if c.StallThreshold <= 0 {
		c.StallThreshold = DefaultStallThreshold
	}
	if c.FillerPhrases == nil {
		c.FillerPhrases = DefaultFillerPhrases()
	}
	if c.MaxFillersPerSession < 0 {
		c.MaxFillersPerSession = 0
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = DefaultBufferCapacity
	}
}

// SessionStats holds the counters and timings for one session. Accessors
// return copies, so callers never observe in-flight mutation.
type SessionStats struct {
	UnitsProcessed   int
	FillersInjected  int
	StallsDetected   int
	FirstUnitLatency time.Duration // Zero until the first real unit arrives
	TotalDuration    time.Duration // Zero until the session completes
}

// Listener receives orchestrator events. Listeners run synchronously, in
// subscription order, inside the orchestrator's serialized execution context.
// A listener must not call back into the orchestrator; if it needs to react
// with further orchestrator calls, it should hand the event off to its own
// goroutine or channel.
type Listener func(Event)

type listenerEntry struct {
	id int
	fn Listener
}

// Orchestrator wires the state machine, stall detector, filler rotation and
// trailing buffer to a stream of incoming text units. It can be driven
// imperatively (Start/ProcessChunk/Complete/Interrupt) or wrapped around a
// channel of units via Stream; both run the same core.
//
// One orchestrator serves one session at a time. Concurrent sessions need
// separate instances.
type Orchestrator struct {
	cfg Config

	state    *StateMachine
	detector *StallDetector
	filler   *FillerInjector
	buffer   *CircularBuffer

	mu             sync.Mutex
	active         bool
	sessionStart   time.Time
	firstUnitSeen  bool
	stats          SessionStats
	pending        []Event
	listeners      []listenerEntry
	nextListenerID int

	logger zerolog.Logger
}

// New creates an orchestrator. A nil config selects DefaultConfig. The
// configuration is rejected with InvalidConfigurationError when the buffer
// capacity is negative or when fillers are enabled with an explicitly empty
// phrase list.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	resolved := *cfg
	resolved.applyDefaults()

	if resolved.EnableFillers && len(resolved.FillerPhrases) == 0 {
		return nil, &InvalidConfigurationError{
			Field:  "fillerPhrases",
			Reason: "must not be empty when fillers are enabled",
		}
	}

	buffer, err := NewCircularBuffer(resolved.BufferCapacity)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:    resolved,
		state:  NewStateMachine(),
		filler: NewFillerInjector(resolved.FillerPhrases, resolved.MaxFillersPerSession),
		buffer: buffer,
		logger: observability.WithComponent("orchestrator"),
	}
	o.detector = NewStallDetector(resolved.StallThreshold, o.onStall)

	// Every transition made by the orchestrator surfaces as a StateChanged
	// event; transitions only happen while o.mu is held, so appending to the
	// pending batch here is safe
	o.state.Subscribe(func(from, to ConversationState) {
		o.pending = append(o.pending, StateChangedEvent{From: from, To: to})
	})

	return o, nil
}

// Start begins a new session: fresh statistics, cleared buffer and filler
// rotation, state Waiting, stall detector armed. Fails with ErrAlreadyStarted
// while a session is active.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}

	o.stats = SessionStats{}
	o.firstUnitSeen = false
	o.sessionStart = time.Now()
	o.buffer.Clear()
	o.filler.Reset()

	if err := o.state.Transition(StateWaiting); err != nil {
		o.pending = nil
		o.mu.Unlock()
		return err
	}
	o.active = true
	o.detector.Start()

	observability.RecordSessionStart()
	o.logger.Debug().Msg("Session started")

	o.deliverPending()
	return nil
}

// ProcessChunk reports one incoming text unit. Fails with ErrNotStarted when
// no session is active. Units arriving after an interrupt are silently
// dropped. The first real unit of a session records the first-unit latency,
// moves the state to Speaking and emits FirstUnit ahead of UnitProcessed.
func (o *Orchestrator) ProcessChunk(unit string) error {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return ErrNotStarted
	}
	if o.state.Current() == StateInterrupted {
		o.mu.Unlock()
		return nil
	}

	o.detector.NotifyActivity()
	o.stats.UnitsProcessed++
	o.buffer.Push(unit)

	if !o.firstUnitSeen {
		o.firstUnitSeen = true
		o.stats.FirstUnitLatency = time.Since(o.sessionStart)
		if err := o.state.Transition(StateSpeaking); err != nil {
			o.logger.Error().Err(err).Msg("Speaking transition failed")
		}
		o.pending = append(o.pending, FirstUnitEvent{Unit: unit})

		observability.RecordFirstUnitLatency(o.stats.FirstUnitLatency)
		o.logger.Debug().
			Dur("latency", o.stats.FirstUnitLatency).
			Msg("First unit received")
	}

	o.pending = append(o.pending, UnitProcessedEvent{Unit: unit})
	observability.RecordUnitProcessed()

	o.deliverPending()
	return nil
}

// Interrupt handles a barge-in. It is a no-op unless the state is Speaking or
// Waiting; otherwise it moves the state to Interrupted, disarms the stall
// detector, resets the filler rotation and clears the buffer. The session
// stays active until Complete is called.
func (o *Orchestrator) Interrupt() {
	o.mu.Lock()
	current := o.state.Current()
	if current != StateSpeaking && current != StateWaiting {
		o.mu.Unlock()
		return
	}

	if err := o.state.Transition(StateInterrupted); err != nil {
		o.logger.Error().Err(err).Msg("Interrupted transition failed")
	}
	o.detector.Stop()
	o.filler.Reset()
	o.buffer.Clear()
	o.pending = append(o.pending, InterruptedEvent{})

	observability.RecordInterrupt()
	o.logger.Debug().Str("from", current.String()).Msg("Session interrupted")

	o.deliverPending()
}

// Complete finishes the session: disarms the stall detector, records the
// total duration and moves the state back to Idle unless the session was
// interrupted, in which case it stays Interrupted. Fails with ErrNotStarted
// when no session is active.
func (o *Orchestrator) Complete() error {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return ErrNotStarted
	}

	o.detector.Stop()
	o.stats.TotalDuration = time.Since(o.sessionStart)

	outcome := "completed"
	if o.state.Current() == StateInterrupted {
		outcome = "interrupted"
	} else if err := o.state.Transition(StateIdle); err != nil {
		o.logger.Error().Err(err).Msg("Idle transition failed")
	}
	o.active = false
	o.pending = append(o.pending, CompletedEvent{Stats: o.stats})

	observability.RecordSessionEnd(outcome, o.stats.TotalDuration)
	o.logger.Debug().
		Str("outcome", outcome).
		Int("units", o.stats.UnitsProcessed).
		Int("fillers", o.stats.FillersInjected).
		Int("stalls", o.stats.StallsDetected).
		Msg("Session completed")

	o.deliverPending()
	return nil
}

// On registers an event listener and returns a function that removes it
func (o *Orchestrator) On(fn Listener) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextListenerID
	o.nextListenerID++
	o.listeners = append(o.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, l := range o.listeners {
			if l.id == id {
				o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
				return
			}
		}
	}
}

// BufferedUnits returns the retained trailing units, oldest to newest
func (o *Orchestrator) BufferedUnits() []string {
	return o.buffer.Snapshot()
}

// Stats returns a copy of the current session statistics
func (o *Orchestrator) Stats() SessionStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// State returns the current conversational state
func (o *Orchestrator) State() ConversationState {
	return o.state.Current()
}

// onStall runs on the stall detector's timer path. A callback that cleared
// the detector's generation check just before an interrupt or completion
// observes the settled session here and does nothing. Fillers are only
// injected before the first real unit of the session; once real output has
// begun, a stall is counted but masks nothing.
func (o *Orchestrator) onStall(elapsed time.Duration) {
	o.mu.Lock()
	if !o.active || o.state.Current() == StateInterrupted {
		o.mu.Unlock()
		return
	}

	o.stats.StallsDetected++
	o.pending = append(o.pending, StallDetectedEvent{Elapsed: elapsed})
	observability.RecordStall()
	o.logger.Debug().Dur("elapsed", elapsed).Msg("Stall detected")

	if o.cfg.EnableFillers && !o.firstUnitSeen {
		if phrase, ok := o.filler.Next(); ok {
			o.stats.FillersInjected++
			o.pending = append(o.pending, FillerInjectedEvent{Phrase: phrase})
			observability.RecordFillerInjected()
			o.logger.Debug().Str("phrase", phrase).Msg("Filler injected")
		}
	}

	o.deliverPending()
}

// deliverPending hands the queued events to the listeners in order, then
// releases o.mu. Delivery stays inside the critical section that serializes
// the caller-driven and timer-driven paths, which keeps the event order
// deterministic; it is also why listeners must not call back in.
func (o *Orchestrator) deliverPending() {
	defer o.mu.Unlock()

	events := o.pending
	o.pending = nil
	for _, ev := range events {
		for _, l := range o.listeners {
			o.invoke(l, ev)
		}
	}
}

// invoke runs a single listener, recovering and logging any panic so one
// misbehaving consumer cannot block delivery to the others
func (o *Orchestrator) invoke(l listenerEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Int("listener_id", l.id).
				Str("event", string(ev.Kind())).
				Interface("panic", r).
				Msg("Event listener panicked")
		}
	}()
	l.fn(ev)
}
