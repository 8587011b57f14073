package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_flow_active_sessions",
		Help: "Number of active flow sessions",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_flow_sessions_total",
		Help: "Total number of sessions by outcome",
	}, []string{"outcome"}) // outcome: "completed" or "interrupted"

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_flow_session_duration_seconds",
		Help:    "Duration of flow sessions in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// Flow metrics
	unitsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_flow_units_processed_total",
		Help: "Total number of text units processed",
	})

	stallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_flow_stalls_total",
		Help: "Total number of detected stream stalls",
	})

	fillersInjected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_flow_fillers_injected_total",
		Help: "Total number of synthetic filler phrases emitted",
	})

	interruptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_flow_interrupts_total",
		Help: "Total number of session interrupts (barge-ins)",
	})

	firstUnitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_flow_first_unit_latency_seconds",
		Help:    "Latency from session start to first real unit in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.7, 1.0, 2.0, 5.0},
	})

	// Transport metrics
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_flow_active_connections",
		Help: "Number of open streaming connections",
	})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_flow_messages_total",
		Help: "Total streaming messages by direction",
	}, []string{"direction"}) // direction: "in" or "out"

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_flow_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// RecordSessionStart records the start of a flow session
func RecordSessionStart() {
	activeSessions.Inc()
}

// RecordSessionEnd records the end of a flow session with its outcome
func RecordSessionEnd(outcome string, duration time.Duration) {
	activeSessions.Dec()
	sessionsTotal.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(duration.Seconds())
}

// RecordUnitProcessed records one processed text unit
func RecordUnitProcessed() {
	unitsProcessed.Inc()
}

// RecordStall records one detected stall
func RecordStall() {
	stallsTotal.Inc()
}

// RecordFillerInjected records one emitted filler phrase
func RecordFillerInjected() {
	fillersInjected.Inc()
}

// RecordInterrupt records one session interrupt
func RecordInterrupt() {
	interruptsTotal.Inc()
}

// RecordFirstUnitLatency records the latency to the first real unit
func RecordFirstUnitLatency(latency time.Duration) {
	firstUnitLatency.Observe(latency.Seconds())
}

// RecordConnectionOpen records a new streaming connection
func RecordConnectionOpen() {
	activeConnections.Inc()
}

// RecordConnectionClosed records a closed streaming connection
func RecordConnectionClosed() {
	activeConnections.Dec()
}

// RecordMessage records one streaming message in the given direction
func RecordMessage(direction string) {
	messagesTotal.WithLabelValues(direction).Inc()
}

// RecordError records an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
