package session

import (
	"net/http"

	"github.com/lexiqai/speech-flow/internal/latency"
	"github.com/lexiqai/speech-flow/internal/observability"
)

// HandleLatencyStats serves the collected latency records. The format query
// parameter selects csv; the default is a JSON report with summary and rows.
func (m *Manager) HandleLatencyStats(w http.ResponseWriter, r *http.Request) {
	records := m.tracker.Records()

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="latency.csv"`)
		if err := latency.WriteCSV(w, records); err != nil {
			m.logger.Error().Err(err).Msg("Failed to write latency CSV")
			observability.RecordError("export_failed", "stats")
		}
	default:
		w.Header().Set("Content-Type", "application/json")
		if err := latency.WriteJSON(w, records); err != nil {
			m.logger.Error().Err(err).Msg("Failed to write latency JSON")
			observability.RecordError("export_failed", "stats")
		}
	}
}
