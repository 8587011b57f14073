package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-flow/internal/config"
	"github.com/lexiqai/speech-flow/internal/flow"
	"github.com/lexiqai/speech-flow/internal/latency"
	"github.com/lexiqai/speech-flow/internal/observability"
	"github.com/lexiqai/speech-flow/internal/textclean"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate the origin of connecting producers
		// For now, allow all origins (development only)
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ClientMessage represents one inbound message on a flow stream
type ClientMessage struct {
	Event string `json:"event"`          // "start", "chunk", "interrupt", "complete"
	Text  string `json:"text,omitempty"` // Unit payload for "chunk"
}

// ServerMessage represents one outbound message on a flow stream
type ServerMessage struct {
	Event     string        `json:"event"`
	Text      string        `json:"text,omitempty"`
	Synthetic bool          `json:"synthetic,omitempty"`
	From      string        `json:"from,omitempty"`
	To        string        `json:"to,omitempty"`
	ElapsedMs float64       `json:"elapsed_ms,omitempty"`
	Stats     *StatsPayload `json:"stats,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// StatsPayload is the wire form of the session statistics
type StatsPayload struct {
	UnitsProcessed     int     `json:"units_processed"`
	FillersInjected    int     `json:"fillers_injected"`
	StallsDetected     int     `json:"stalls_detected"`
	FirstUnitLatencyMs float64 `json:"first_unit_latency_ms"`
	TotalDurationMs    float64 `json:"total_duration_ms"`
}

func toStatsPayload(stats flow.SessionStats) *StatsPayload {
	return &StatsPayload{
		UnitsProcessed:     stats.UnitsProcessed,
		FillersInjected:    stats.FillersInjected,
		StallsDetected:     stats.StallsDetected,
		FirstUnitLatencyMs: float64(stats.FirstUnitLatency) / float64(time.Millisecond),
		TotalDurationMs:    float64(stats.TotalDuration) / float64(time.Millisecond),
	}
}

// Manager creates a flow session per streaming connection and owns the
// process-wide latency tracker
type Manager struct {
	cfg     *config.Config
	tracker *latency.Tracker
	cleaner *textclean.Cleaner
	logger  zerolog.Logger
}

// NewManager creates a session manager for the given configuration
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		cfg:     cfg,
		tracker: latency.NewTracker(),
		logger:  observability.WithComponent("session_manager"),
	}
	if cfg.EnableTextCleanup {
		m.cleaner = textclean.NewCleaner()
	}
	return m
}

// Tracker returns the shared latency tracker
func (m *Manager) Tracker() *latency.Tracker {
	return m.tracker
}

// FlowSession holds the state of one streaming connection
type FlowSession struct {
	conn    *websocket.Conn
	manager *Manager

	sessionID string
	orch      *flow.Orchestrator

	mu      sync.RWMutex
	started bool

	// Outbound messages funnel through one writer goroutine
	outbound chan ServerMessage
	done     chan struct{}

	unsubscribe func()
	logger      zerolog.Logger
}

// HandleFlowStream is the entry point for streaming connections. The client
// drives a session with start/chunk/interrupt/complete messages and receives
// the orchestrator's output units and events.
func (m *Manager) HandleFlowStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
		observability.RecordError("upgrade_failed", "session")
		return
	}
	defer conn.Close()

	s, err := m.newFlowSession(conn)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to create flow session")
		observability.RecordError("session_create_failed", "session")
		return
	}

	observability.RecordConnectionOpen()
	defer observability.RecordConnectionClosed()
	s.logger.Info().Msg("Flow stream connected")

	go s.processOutgoing()
	s.processIncoming()
	s.logger.Info().Msg("Flow stream closed")
}

// newFlowSession builds the per-connection session with its own orchestrator
func (m *Manager) newFlowSession(conn *websocket.Conn) (*FlowSession, error) {
	orch, err := flow.New(m.cfg.FlowConfig())
	if err != nil {
		return nil, err
	}

	sessionID := observability.NewSessionID()
	s := &FlowSession{
		conn:      conn,
		manager:   m,
		sessionID: sessionID,
		orch:      orch,
		outbound:  make(chan ServerMessage, 64),
		done:      make(chan struct{}),
		logger:    observability.WithSessionID(sessionID),
	}
	s.unsubscribe = orch.On(s.onFlowEvent)
	return s, nil
}

// SessionID returns the session identifier
func (s *FlowSession) SessionID() string {
	return s.sessionID
}

// Started returns whether a flow session is currently running on this
// connection
func (s *FlowSession) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// onFlowEvent translates orchestrator events into outbound messages. It runs
// inside the orchestrator's serialized context, so it only enqueues.
func (s *FlowSession) onFlowEvent(ev flow.Event) {
	switch e := ev.(type) {
	case flow.StallDetectedEvent:
		s.send(ServerMessage{
			Event:     "stall",
			ElapsedMs: float64(e.Elapsed) / float64(time.Millisecond),
		})
	case flow.FillerInjectedEvent:
		s.send(ServerMessage{Event: "unit", Text: e.Phrase, Synthetic: true})
	case flow.FirstUnitEvent:
		s.send(ServerMessage{Event: "first_unit", Text: e.Unit})
	case flow.StateChangedEvent:
		s.send(ServerMessage{Event: "state", From: e.From.String(), To: e.To.String()})
	case flow.InterruptedEvent:
		s.send(ServerMessage{Event: "interrupted"})
	case flow.UnitProcessedEvent:
		s.send(ServerMessage{Event: "unit", Text: e.Unit})
	case flow.CompletedEvent:
		s.send(ServerMessage{Event: "completed", Stats: toStatsPayload(e.Stats)})
	}
}

// send enqueues an outbound message without blocking
func (s *FlowSession) send(msg ServerMessage) {
	select {
	case s.outbound <- msg:
	default:
		s.logger.Warn().Str("event", msg.Event).Msg("Outbound queue full, dropping message")
		observability.RecordError("outbound_queue_full", "session")
	}
}

// sendError reports a rejected client message
func (s *FlowSession) sendError(err error) {
	s.send(ServerMessage{Event: "error", Message: err.Error()})
}

// processOutgoing writes queued messages to the connection. It is the only
// goroutine that writes.
func (s *FlowSession) processOutgoing() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.outbound:
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Warn().Err(err).Msg("WebSocket write error")
				return
			}
			observability.RecordMessage("out")
		}
	}
}

// processIncoming reads client messages and drives the orchestrator. It
// returns when the connection closes.
func (s *FlowSession) processIncoming() {
	defer s.cleanup()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		observability.RecordMessage("in")

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error().Err(err).Msg("Failed to parse client message")
			s.sendError(err)
			continue
		}

		switch msg.Event {
		case "start":
			s.handleStart()
		case "chunk":
			s.handleChunk(msg.Text)
		case "interrupt":
			s.handleInterrupt()
		case "complete":
			s.handleComplete()
		default:
			s.logger.Warn().Str("event", msg.Event).Msg("Unknown client event")
			s.sendError(errors.New("unknown event: " + msg.Event))
		}
	}
}

// handleStart begins a flow session on this connection
func (s *FlowSession) handleStart() {
	if err := s.orch.Start(); err != nil {
		s.sendError(err)
		return
	}
	s.manager.tracker.Begin(s.sessionID)

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.logger.Info().Msg("Flow session started")
}

// handleChunk feeds one text unit into the orchestrator, cleaning it first
// when cleanup is enabled. Units that clean away entirely are skipped.
func (s *FlowSession) handleChunk(text string) {
	if s.manager.cleaner != nil {
		text = s.manager.cleaner.Clean(text)
		if text == "" {
			s.logger.Debug().Msg("Chunk cleaned to empty, skipping")
			return
		}
	}

	if err := s.orch.ProcessChunk(text); err != nil {
		s.sendError(err)
		return
	}
	if s.orch.State() != flow.StateInterrupted {
		s.manager.tracker.RecordUnit(s.sessionID)
	}
}

// handleInterrupt forwards a barge-in request
func (s *FlowSession) handleInterrupt() {
	s.orch.Interrupt()
}

// handleComplete finishes the flow session and its latency record
func (s *FlowSession) handleComplete() {
	if err := s.orch.Complete(); err != nil {
		s.sendError(err)
		return
	}

	rec, err := s.manager.tracker.Finish(s.sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("No latency record for session")
	} else {
		s.logger.Info().
			Int("units", rec.UnitCount).
			Dur("first_unit_latency", rec.FirstUnitLatency).
			Dur("total_duration", rec.TotalDuration).
			Msg("Flow session completed")
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// cleanup settles a session left running when the connection drops
func (s *FlowSession) cleanup() {
	s.unsubscribe()

	if s.Started() {
		if err := s.orch.Complete(); err != nil && !errors.Is(err, flow.ErrNotStarted) {
			s.logger.Warn().Err(err).Msg("Failed to complete session on disconnect")
		}
		if _, err := s.manager.tracker.Finish(s.sessionID); err != nil && !errors.Is(err, latency.ErrUnknownSession) {
			s.logger.Warn().Err(err).Msg("Failed to finish latency record on disconnect")
		}
	}

	close(s.done)
}
