// Package latency records the timing milestones the flow layer reports
// (session start, first unit, finish) and aggregates them into descriptive
// statistics and JSON/CSV exports.
package latency

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-flow/internal/observability"
)

// ErrUnknownSession is returned when finishing an identifier that was never
// begun or was already finished
var ErrUnknownSession = errors.New("unknown session id")

// Record holds the finished timing measurements for one session
type Record struct {
	ID               string
	StartedAt        time.Time
	FirstUnitAt      time.Time // Zero when the session produced no units
	FinishedAt       time.Time
	UnitCount        int
	FirstUnitLatency time.Duration // Zero when the session produced no units
	TotalDuration    time.Duration
}

type activeSession struct {
	startedAt   time.Time
	firstUnitAt time.Time
	unitCount   int
}

// Tracker measures sessions by identifier. It keeps finished records in
// memory so they can be summarized and exported.
type Tracker struct {
	mu      sync.Mutex
	active  map[string]*activeSession
	records []Record
	logger  zerolog.Logger
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		active: make(map[string]*activeSession),
		logger: observability.WithComponent("latency_tracker"),
	}
}

// Begin starts tracking an identifier and returns it. An empty id gets a
// generated one. Beginning an id that is already active restarts its clock.
func (t *Tracker) Begin(id string) string {
	if id == "" {
		id = uuid.New().String()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.active[id] = &activeSession{startedAt: time.Now()}
	return id
}

// RecordUnit notes one produced unit for an active identifier. The first call
// per session pins the first-unit timestamp. Unknown identifiers are ignored.
func (t *Tracker) RecordUnit(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.active[id]
	if !ok {
		t.logger.Debug().Str("session_id", id).Msg("Unit for unknown session")
		return
	}
	s.unitCount++
	if s.firstUnitAt.IsZero() {
		s.firstUnitAt = time.Now()
	}
}

// Finish stops tracking an identifier and returns its record. The record is
// also retained for Records, Summarize and the exporters.
func (t *Tracker) Finish(id string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.active[id]
	if !ok {
		return Record{}, ErrUnknownSession
	}
	delete(t.active, id)

	now := time.Now()
	rec := Record{
		ID:            id,
		StartedAt:     s.startedAt,
		FirstUnitAt:   s.firstUnitAt,
		FinishedAt:    now,
		UnitCount:     s.unitCount,
		TotalDuration: now.Sub(s.startedAt),
	}
	if !s.firstUnitAt.IsZero() {
		rec.FirstUnitLatency = s.firstUnitAt.Sub(s.startedAt)
	}

	t.records = append(t.records, rec)
	return rec, nil
}

// Records returns a copy of all finished records, oldest first
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// ActiveCount returns how many identifiers are currently being tracked
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Clear drops all finished records
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
}
