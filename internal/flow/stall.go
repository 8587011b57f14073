package flow

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-flow/internal/observability"
)

// StallCallback is invoked when no activity has been observed for at least
// the configured threshold. It receives the actual elapsed silence.
type StallCallback func(elapsed time.Duration)

// StallDetector watches for gaps in activity. While started, it fires its
// callback every time the threshold elapses with no NotifyActivity call, so a
// long silence is reported repeatedly rather than once.
//
// Each armed timer carries a generation token; Stop and every re-arm bump the
// generation, so a callback that was already queued when the detector was
// stopped observes a stale token and becomes a no-op.
type StallDetector struct {
	threshold time.Duration
	onStall   StallCallback

	mu           sync.Mutex
	timer        *time.Timer
	lastActivity time.Time
	running      bool
	generation   uint64

	logger zerolog.Logger
}

// NewStallDetector creates a detector with the given silence threshold.
// The callback may be nil, in which case stalls are tracked but not reported.
func NewStallDetector(threshold time.Duration, onStall StallCallback) *StallDetector {
	if threshold <= 0 {
		threshold = DefaultStallThreshold
	}
	return &StallDetector{
		threshold: threshold,
		onStall:   onStall,
		logger:    observability.WithComponent("stall_detector"),
	}
}

// Start records the current time as last activity and arms the timer
func (sd *StallDetector) Start() {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	sd.running = true
	sd.lastActivity = time.Now()
	sd.arm(sd.threshold)
}

// NotifyActivity records the current time as last activity and re-arms the
// timer. It does nothing if the detector is not running.
func (sd *StallDetector) NotifyActivity() {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	if !sd.running {
		return
	}
	sd.lastActivity = time.Now()
	sd.arm(sd.threshold)
}

// Stop cancels any armed timer and clears the last activity time. It is
// idempotent, and callbacks that fire after Stop are no-ops.
func (sd *StallDetector) Stop() {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	if !sd.running {
		return
	}
	sd.running = false
	sd.generation++ // Invalidate any queued callback
	if sd.timer != nil {
		sd.timer.Stop()
		sd.timer = nil
	}
	sd.lastActivity = time.Time{}
}

// Running returns whether the detector is currently armed
func (sd *StallDetector) Running() bool {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.running
}

// arm schedules the timer for d from now. Caller must hold sd.mu.
func (sd *StallDetector) arm(d time.Duration) {
	if sd.timer != nil {
		sd.timer.Stop()
	}
	sd.generation++
	gen := sd.generation
	sd.timer = time.AfterFunc(d, func() {
		sd.fired(gen)
	})
}

// fired runs on the timer goroutine when an armed deadline elapses
func (sd *StallDetector) fired(gen uint64) {
	sd.mu.Lock()
	if !sd.running || gen != sd.generation {
		// Stopped or re-armed after this timer was queued
		sd.mu.Unlock()
		return
	}

	elapsed := time.Since(sd.lastActivity)
	if elapsed < sd.threshold {
		// Activity landed just before the deadline; wait out the remainder
		// instead of reporting a false stall
		sd.arm(sd.threshold - elapsed)
		sd.mu.Unlock()
		return
	}

	callback := sd.onStall
	sd.mu.Unlock()

	// Re-arm runs even if the callback panics, so one bad callback cannot
	// leave the detector permanently disarmed
	defer func() {
		if r := recover(); r != nil {
			sd.logger.Error().
				Interface("panic", r).
				Msg("Stall callback panicked")
		}
		sd.mu.Lock()
		if sd.running && sd.generation == gen {
			sd.arm(sd.threshold)
		}
		sd.mu.Unlock()
	}()

	if callback != nil {
		callback(elapsed)
	}
}
