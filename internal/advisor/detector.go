// Package advisor holds the decision logic of the pipeline: detecting
// signals from metric snapshots, synthesizing proposals from signals,
// planning maintenance and scoring partition candidates. Everything here is
// pure computation over models types; collection and persistence live in
// their own packages.
package advisor

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/models"
)

// Detection thresholds. Values mirror long-observed operational heuristics:
// a query shape matters once it has consumed ~100 seconds of cumulative
// time, a table scanned sequentially more than half the time is suspect,
// an index under a megabyte is not worth flagging.
const (
	impactThreshold     = 100_000
	impactHighThreshold = 1_000_000

	seqScanMinRows  = 10_000
	seqScanMinScans = 100
	seqRatioEmit    = 0.5
	seqRatioMedium  = 0.8

	unusedIndexMinBytes = 1024 * 1024

	deadRowsMinRows = 1_000
	deadRatioEmit   = 0.1
	deadRatioMedium = 0.3

	degradationEmit    = 0.5
	degradationHigh    = 1.0
	degradationMinMean = 10.0

	topQueriesByImpact = 10
)

// Detector evaluates metric snapshots against a fixed set of detection rules.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a new signal detector.
func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{
		logger: logger.With("component", "detector"),
	}
}

// Detect runs every rule against the current snapshot and returns the
// detected signals ordered by severity, stable within each severity tier.
// previous may be nil, in which case trend detection is skipped. A rule
// that fails is logged and skipped without blocking the remaining rules.
func (d *Detector) Detect(databaseID uuid.UUID, current, previous *models.MetricSnapshot) []*models.Signal {
	rules := []struct {
		name string
		run  func() []*models.Signal
	}{
		{"high_impact_queries", func() []*models.Signal { return d.highImpactQueries(current) }},
		{"sequential_scans", func() []*models.Signal { return d.sequentialScans(current) }},
		{"unused_indexes", func() []*models.Signal { return d.unusedIndexes(current) }},
		{"dead_rows", func() []*models.Signal { return d.deadRows(current) }},
		{"query_degradation", func() []*models.Signal { return d.queryDegradation(current, previous) }},
	}

	var signals []*models.Signal
	for _, rule := range rules {
		emitted, err := runRule(rule.run)
		if err != nil {
			d.logger.Error("detection rule failed", "rule", rule.name, "error", err)
			continue
		}
		signals = append(signals, emitted...)
	}

	now := time.Now().UTC()
	for _, sig := range signals {
		sig.ID = uuid.New()
		sig.DatabaseID = databaseID
		sig.Status = models.SignalStatusNew
		sig.CreatedAt = now
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Severity.Rank() < signals[j].Severity.Rank()
	})

	return signals
}

// runRule confines a rule failure to that rule.
func runRule(run func() []*models.Signal) (signals []*models.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()
	return run(), nil
}

func (d *Detector) highImpactQueries(snapshot *models.MetricSnapshot) []*models.Signal {
	ranked := make([]models.QueryMetric, len(snapshot.QueryMetrics))
	copy(ranked, snapshot.QueryMetrics)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ImpactScore() > ranked[j].ImpactScore()
	})
	if len(ranked) > topQueriesByImpact {
		ranked = ranked[:topQueriesByImpact]
	}

	var signals []*models.Signal
	for _, q := range ranked {
		impact := q.ImpactScore()
		if impact <= impactThreshold {
			continue
		}

		severity := models.SeverityMedium
		if impact > impactHighThreshold {
			severity = models.SeverityHigh
		}

		signals = append(signals, &models.Signal{
			Type:     models.SignalHighImpactQuery,
			Severity: severity,
			Description: fmt.Sprintf("High-impact query detected: %d calls, %.2fms avg",
				q.Calls, q.MeanTimeMs),
			Details: map[string]any{
				"query_sample":  truncate(q.SampleText, 200),
				"fingerprint":   q.Fingerprint,
				"calls":         q.Calls,
				"mean_time_ms":  q.MeanTimeMs,
				"total_time_ms": q.TotalTimeMs,
				"impact_score":  impact,
			},
			Table:            firstTable(q.ReferencedTables),
			QueryFingerprint: q.Fingerprint,
		})
	}
	return signals
}

func (d *Detector) sequentialScans(snapshot *models.MetricSnapshot) []*models.Signal {
	var signals []*models.Signal
	for _, t := range snapshot.TableMetrics {
		if t.RowCount <= seqScanMinRows || t.SeqScan <= seqScanMinScans {
			continue
		}

		// A table with no index scans still gets a denominator of one so the
		// ratio stays below 1.0 and division is always defined.
		idxScans := t.IdxScan
		if idxScans == 0 {
			idxScans = 1
		}
		seqRatio := float64(t.SeqScan) / float64(t.SeqScan+idxScans)
		if seqRatio <= seqRatioEmit {
			continue
		}

		severity := models.SeverityLow
		if seqRatio > seqRatioMedium {
			severity = models.SeverityMedium
		}

		signals = append(signals, &models.Signal{
			Type:     models.SignalHighSequentialScans,
			Severity: severity,
			Description: fmt.Sprintf("Table '%s' has %.0f%% sequential scans (%d seq vs %d idx)",
				t.Table, seqRatio*100, t.SeqScan, t.IdxScan),
			Details: map[string]any{
				"row_count": t.RowCount,
				"seq_scan":  t.SeqScan,
				"idx_scan":  t.IdxScan,
				"seq_ratio": seqRatio,
			},
			Table: t.Table,
		})
	}
	return signals
}

func (d *Detector) unusedIndexes(snapshot *models.MetricSnapshot) []*models.Signal {
	var signals []*models.Signal
	for _, idx := range snapshot.IndexMetrics {
		if idx.IdxScan != 0 || idx.SizeBytes <= unusedIndexMinBytes {
			continue
		}

		signals = append(signals, &models.Signal{
			Type:     models.SignalUnusedIndex,
			Severity: models.SeverityLow,
			Description: fmt.Sprintf("Index '%s' on '%s' has 0 scans but uses %.1fMB",
				idx.Index, idx.Table, float64(idx.SizeBytes)/1024/1024),
			Details: map[string]any{
				"index_name": idx.Index,
				"table_name": idx.Table,
				"size_bytes": idx.SizeBytes,
				"is_primary": idx.Primary,
			},
			Table: idx.Table,
		})
	}
	return signals
}

func (d *Detector) deadRows(snapshot *models.MetricSnapshot) []*models.Signal {
	var signals []*models.Signal
	for _, t := range snapshot.TableMetrics {
		if t.RowCount <= deadRowsMinRows {
			continue
		}

		deadRatio := float64(t.DeadRows) / float64(t.RowCount+t.DeadRows+1)
		if deadRatio <= deadRatioEmit {
			continue
		}

		severity := models.SeverityLow
		if deadRatio > deadRatioMedium {
			severity = models.SeverityMedium
		}

		signals = append(signals, &models.Signal{
			Type:     models.SignalHighDeadRows,
			Severity: severity,
			Description: fmt.Sprintf("Table '%s' has %.0f%% dead rows (%d dead / %d live)",
				t.Table, deadRatio*100, t.DeadRows, t.RowCount),
			Details: map[string]any{
				"row_count":  t.RowCount,
				"dead_rows":  t.DeadRows,
				"dead_ratio": deadRatio,
			},
			Table: t.Table,
		})
	}
	return signals
}

func (d *Detector) queryDegradation(current, previous *models.MetricSnapshot) []*models.Signal {
	if previous == nil {
		return nil
	}

	prevByFingerprint := make(map[string]models.QueryMetric, len(previous.QueryMetrics))
	for _, q := range previous.QueryMetrics {
		if q.MeanTimeMs > 0 {
			prevByFingerprint[q.Fingerprint] = q
		}
	}

	var signals []*models.Signal
	for _, q := range current.QueryMetrics {
		prev, ok := prevByFingerprint[q.Fingerprint]
		if !ok {
			continue
		}

		degradation := (q.MeanTimeMs - prev.MeanTimeMs) / prev.MeanTimeMs
		if degradation <= degradationEmit || q.MeanTimeMs <= degradationMinMean {
			continue
		}

		severity := models.SeverityMedium
		if degradation > degradationHigh {
			severity = models.SeverityHigh
		}

		signals = append(signals, &models.Signal{
			Type:     models.SignalQueryDegradation,
			Severity: severity,
			Description: fmt.Sprintf("Query degraded by %.0f%%: %.2fms -> %.2fms",
				degradation*100, prev.MeanTimeMs, q.MeanTimeMs),
			Details: map[string]any{
				"fingerprint":         q.Fingerprint,
				"query_sample":        truncate(q.SampleText, 200),
				"previous_mean_ms":    prev.MeanTimeMs,
				"current_mean_ms":     q.MeanTimeMs,
				"degradation_percent": degradation * 100,
			},
			Table:            firstTable(q.ReferencedTables),
			QueryFingerprint: q.Fingerprint,
		})
	}
	return signals
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func firstTable(tables []string) string {
	if len(tables) == 0 {
		return ""
	}
	return tables[0]
}
