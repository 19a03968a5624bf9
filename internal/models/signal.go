package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity ranks how urgently a signal or task should be addressed.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank returns the sort rank of a severity; lower sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// SignalType identifies which detection rule produced a signal.
type SignalType string

const (
	SignalHighImpactQuery     SignalType = "high_impact_query"
	SignalHighSequentialScans SignalType = "high_sequential_scans"
	SignalUnusedIndex         SignalType = "unused_index"
	SignalHighDeadRows        SignalType = "high_dead_rows"
	SignalQueryDegradation    SignalType = "query_degradation"
)

// SignalStatus tracks whether a signal has been consumed by the synthesizer.
type SignalStatus string

const (
	SignalStatusNew       SignalStatus = "new"
	SignalStatusProcessed SignalStatus = "processed"
)

// Signal is one prioritized observation produced by the detector.
// It transitions new → processed exactly once and is never reopened.
type Signal struct {
	ID               uuid.UUID      `json:"id"`
	DatabaseID       uuid.UUID      `json:"database_id"`
	Type             SignalType     `json:"signal_type"`
	Severity         Severity       `json:"severity"`
	Description      string         `json:"description"`
	Details          map[string]any `json:"details,omitempty"`
	Table            string         `json:"table,omitempty"`
	QueryFingerprint string         `json:"query_fingerprint,omitempty"`
	Status           SignalStatus   `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}
