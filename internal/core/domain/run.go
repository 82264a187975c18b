package domain

import (
	"log/slog"
	"time"
)

// RunSummary aggregates the outcome of one pass over a credential list.
//
// Attempted counts tuples submitted to the exchanger, so
// Attempted + Malformed equals the number of non-blank input entries.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Attempted      int           `json:"attempted"`
	Succeeded      int           `json:"succeeded"`
	Malformed      int           `json:"malformed"`
	ExchangeFailed int           `json:"exchange_failed"`
	SinkFailed     int           `json:"sink_failed"`
	Windows        int           `json:"windows"`
	Duration       time.Duration `json:"duration"`
}

// Empty reports whether the run had nothing to process.
func (s *RunSummary) Empty() bool {
	return s.Attempted == 0 && s.Malformed == 0
}

// LogValue implements slog.LogValuer.
func (s *RunSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int("attempted", s.Attempted),
		slog.Int("succeeded", s.Succeeded),
		slog.Int("malformed", s.Malformed),
		slog.Int("exchange_failed", s.ExchangeFailed),
		slog.Int("sink_failed", s.SinkFailed),
		slog.Int("windows", s.Windows),
		slog.Duration("duration", s.Duration),
	)
}
