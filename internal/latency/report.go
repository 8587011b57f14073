package latency

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Summary holds descriptive statistics over a set of finished records.
// Latency figures only cover sessions that produced at least one unit.
type Summary struct {
	Sessions             int
	TotalUnits           int
	MeanUnitsPerSession  float64
	MinFirstUnitLatency  time.Duration
	MaxFirstUnitLatency  time.Duration
	MeanFirstUnitLatency time.Duration
	MeanTotalDuration    time.Duration
}

// Summarize computes descriptive statistics over the given records
func Summarize(records []Record) Summary {
	s := Summary{Sessions: len(records)}
	if len(records) == 0 {
		return s
	}

	var latencySum, durationSum time.Duration
	latencyCount := 0
	for _, rec := range records {
		s.TotalUnits += rec.UnitCount
		durationSum += rec.TotalDuration

		if rec.FirstUnitAt.IsZero() {
			continue
		}
		latencyCount++
		latencySum += rec.FirstUnitLatency
		if s.MinFirstUnitLatency == 0 || rec.FirstUnitLatency < s.MinFirstUnitLatency {
			s.MinFirstUnitLatency = rec.FirstUnitLatency
		}
		if rec.FirstUnitLatency > s.MaxFirstUnitLatency {
			s.MaxFirstUnitLatency = rec.FirstUnitLatency
		}
	}

	s.MeanUnitsPerSession = float64(s.TotalUnits) / float64(len(records))
	s.MeanTotalDuration = durationSum / time.Duration(len(records))
	if latencyCount > 0 {
		s.MeanFirstUnitLatency = latencySum / time.Duration(latencyCount)
	}
	return s
}

// exportRow is the flat representation shared by the JSON and CSV exporters,
// with durations in milliseconds
type exportRow struct {
	ID                 string  `json:"id"`
	StartedAt          string  `json:"started_at"`
	FinishedAt         string  `json:"finished_at"`
	UnitCount          int     `json:"unit_count"`
	FirstUnitLatencyMs float64 `json:"first_unit_latency_ms"`
	TotalDurationMs    float64 `json:"total_duration_ms"`
}

// summaryRow is the JSON representation of a Summary, durations in
// milliseconds
type summaryRow struct {
	Sessions               int     `json:"sessions"`
	TotalUnits             int     `json:"total_units"`
	MeanUnitsPerSession    float64 `json:"mean_units_per_session"`
	MinFirstUnitLatencyMs  float64 `json:"min_first_unit_latency_ms"`
	MaxFirstUnitLatencyMs  float64 `json:"max_first_unit_latency_ms"`
	MeanFirstUnitLatencyMs float64 `json:"mean_first_unit_latency_ms"`
	MeanTotalDurationMs    float64 `json:"mean_total_duration_ms"`
}

func toSummaryRow(s Summary) summaryRow {
	return summaryRow{
		Sessions:               s.Sessions,
		TotalUnits:             s.TotalUnits,
		MeanUnitsPerSession:    s.MeanUnitsPerSession,
		MinFirstUnitLatencyMs:  float64(s.MinFirstUnitLatency) / float64(time.Millisecond),
		MaxFirstUnitLatencyMs:  float64(s.MaxFirstUnitLatency) / float64(time.Millisecond),
		MeanFirstUnitLatencyMs: float64(s.MeanFirstUnitLatency) / float64(time.Millisecond),
		MeanTotalDurationMs:    float64(s.MeanTotalDuration) / float64(time.Millisecond),
	}
}

func toRow(rec Record) exportRow {
	return exportRow{
		ID:                 rec.ID,
		StartedAt:          rec.StartedAt.Format(time.RFC3339Nano),
		FinishedAt:         rec.FinishedAt.Format(time.RFC3339Nano),
		UnitCount:          rec.UnitCount,
		FirstUnitLatencyMs: float64(rec.FirstUnitLatency) / float64(time.Millisecond),
		TotalDurationMs:    float64(rec.TotalDuration) / float64(time.Millisecond),
	}
}

// WriteJSON writes a JSON report with the aggregate summary and one row per
// finished record
func WriteJSON(w io.Writer, records []Record) error {
	rows := make([]exportRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toRow(rec))
	}
	report := struct {
		Summary summaryRow  `json:"summary"`
		Records []exportRow `json:"records"`
	}{
		Summary: toSummaryRow(Summarize(records)),
		Records: rows,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode latency report: %w", err)
	}
	return nil
}

// csvHeader is the fixed column order of the CSV export
var csvHeader = []string{"id", "started_at", "finished_at", "unit_count", "first_unit_latency_ms", "total_duration_ms"}

// WriteCSV writes the records as CSV with a header row
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		row := toRow(rec)
		fields := []string{
			row.ID,
			row.StartedAt,
			row.FinishedAt,
			strconv.Itoa(row.UnitCount),
			strconv.FormatFloat(row.FirstUnitLatencyMs, 'f', 3, 64),
			strconv.FormatFloat(row.TotalDurationMs, 'f', 3, 64),
		}
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
