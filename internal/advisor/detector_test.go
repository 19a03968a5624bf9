package advisor

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsteward/pgsteward/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshotAt(t time.Time) *models.MetricSnapshot {
	return &models.MetricSnapshot{CapturedAt: t}
}

// TestDetector_HighImpactQueries tests the impact-score rule thresholds.
func TestDetector_HighImpactQueries(t *testing.T) {
	tests := []struct {
		name         string
		query        models.QueryMetric
		wantSignal   bool
		wantSeverity models.Severity
	}{
		{
			name: "impact above emit threshold is medium",
			query: models.QueryMetric{
				Fingerprint: "abc123", SampleText: "SELECT * FROM orders WHERE customer_id = 42",
				Calls: 2_000, MeanTimeMs: 100, TotalTimeMs: 200_000,
				ReferencedTables: []string{"orders"},
			},
			wantSignal:   true,
			wantSeverity: models.SeverityMedium,
		},
		{
			name: "impact above high threshold is high",
			query: models.QueryMetric{
				Fingerprint: "def456", SampleText: "SELECT * FROM events",
				Calls: 20_000, MeanTimeMs: 100, TotalTimeMs: 2_000_000,
			},
			wantSignal:   true,
			wantSeverity: models.SeverityHigh,
		},
		{
			name: "impact at the threshold is not emitted",
			query: models.QueryMetric{
				Fingerprint: "ghi789", SampleText: "SELECT 1",
				Calls: 1_000, MeanTimeMs: 100,
			},
			wantSignal: false,
		},
	}

	d := NewDetector(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotAt(time.Now())
			snap.QueryMetrics = []models.QueryMetric{tt.query}

			signals := d.Detect(uuid.New(), snap, nil)
			if !tt.wantSignal {
				assert.Empty(t, signals)
				return
			}

			require.Len(t, signals, 1)
			assert.Equal(t, models.SignalHighImpactQuery, signals[0].Type)
			assert.Equal(t, tt.wantSeverity, signals[0].Severity)
			assert.Equal(t, tt.query.Fingerprint, signals[0].QueryFingerprint)
		})
	}
}

// TestDetector_SequentialScans tests the seq-scan ratio rule, including the
// zero-index-scan denominator handling.
func TestDetector_SequentialScans(t *testing.T) {
	tests := []struct {
		name         string
		table        models.TableMetric
		wantSignal   bool
		wantSeverity models.Severity
	}{
		{
			name:         "dominant seq scans are medium",
			table:        models.TableMetric{Table: "orders", RowCount: 50_000, SeqScan: 800, IdxScan: 100},
			wantSignal:   true,
			wantSeverity: models.SeverityMedium,
		},
		{
			name:         "moderate seq scans are low",
			table:        models.TableMetric{Table: "orders", RowCount: 50_000, SeqScan: 600, IdxScan: 400},
			wantSignal:   true,
			wantSeverity: models.SeverityLow,
		},
		{
			name:         "no index scans at all still yields a defined ratio",
			table:        models.TableMetric{Table: "orders", RowCount: 50_000, SeqScan: 200, IdxScan: 0},
			wantSignal:   true,
			wantSeverity: models.SeverityMedium,
		},
		{
			name:       "small tables are ignored",
			table:      models.TableMetric{Table: "lookup", RowCount: 10_000, SeqScan: 900, IdxScan: 10},
			wantSignal: false,
		},
		{
			name:       "rarely scanned tables are ignored",
			table:      models.TableMetric{Table: "orders", RowCount: 50_000, SeqScan: 100, IdxScan: 0},
			wantSignal: false,
		},
		{
			name:       "index-heavy tables are ignored",
			table:      models.TableMetric{Table: "orders", RowCount: 50_000, SeqScan: 400, IdxScan: 600},
			wantSignal: false,
		},
	}

	d := NewDetector(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotAt(time.Now())
			snap.TableMetrics = []models.TableMetric{tt.table}

			signals := d.Detect(uuid.New(), snap, nil)
			if !tt.wantSignal {
				assert.Empty(t, signals)
				return
			}

			require.Len(t, signals, 1)
			assert.Equal(t, models.SignalHighSequentialScans, signals[0].Type)
			assert.Equal(t, tt.wantSeverity, signals[0].Severity)
			assert.Equal(t, tt.table.Table, signals[0].Table)
		})
	}
}

// TestDetector_UnusedIndexes tests the unused-index rule. Primary key indexes
// are still reported here; the synthesizer is what refuses to drop them.
func TestDetector_UnusedIndexes(t *testing.T) {
	d := NewDetector(testLogger())

	snap := snapshotAt(time.Now())
	snap.IndexMetrics = []models.IndexMetric{
		{Index: "idx_orders_status", Table: "orders", IdxScan: 0, SizeBytes: 5 * 1024 * 1024},
		{Index: "idx_orders_customer", Table: "orders", IdxScan: 12, SizeBytes: 5 * 1024 * 1024},
		{Index: "idx_tiny", Table: "orders", IdxScan: 0, SizeBytes: 512 * 1024},
		{Index: "orders_pkey", Table: "orders", IdxScan: 0, SizeBytes: 2 * 1024 * 1024, Primary: true},
	}

	signals := d.Detect(uuid.New(), snap, nil)
	require.Len(t, signals, 2)

	for _, sig := range signals {
		assert.Equal(t, models.SignalUnusedIndex, sig.Type)
		assert.Equal(t, models.SeverityLow, sig.Severity)
	}
	assert.Equal(t, "idx_orders_status", signals[0].Details["index_name"])
	assert.Contains(t, signals[0].Description, "5.0MB")
	assert.Equal(t, false, signals[0].Details["is_primary"])
	assert.Equal(t, "orders_pkey", signals[1].Details["index_name"])
	assert.Equal(t, true, signals[1].Details["is_primary"])
}

// TestDetector_DeadRows tests the dead-row ratio rule thresholds.
func TestDetector_DeadRows(t *testing.T) {
	tests := []struct {
		name         string
		table        models.TableMetric
		wantSignal   bool
		wantSeverity models.Severity
	}{
		{
			name:         "heavy bloat is medium",
			table:        models.TableMetric{Table: "orders", RowCount: 10_000, DeadRows: 5_000},
			wantSignal:   true,
			wantSeverity: models.SeverityMedium,
		},
		{
			name:         "moderate bloat is low",
			table:        models.TableMetric{Table: "orders", RowCount: 10_000, DeadRows: 2_000},
			wantSignal:   true,
			wantSeverity: models.SeverityLow,
		},
		{
			name:       "small tables are ignored",
			table:      models.TableMetric{Table: "lookup", RowCount: 1_000, DeadRows: 900},
			wantSignal: false,
		},
		{
			name:       "clean tables are ignored",
			table:      models.TableMetric{Table: "orders", RowCount: 100_000, DeadRows: 500},
			wantSignal: false,
		},
	}

	d := NewDetector(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotAt(time.Now())
			snap.TableMetrics = []models.TableMetric{tt.table}

			signals := d.Detect(uuid.New(), snap, nil)
			if !tt.wantSignal {
				assert.Empty(t, signals)
				return
			}

			require.Len(t, signals, 1)
			assert.Equal(t, models.SignalHighDeadRows, signals[0].Type)
			assert.Equal(t, tt.wantSeverity, signals[0].Severity)
		})
	}
}

// TestDetector_QueryDegradation tests trend detection against the previous
// snapshot.
func TestDetector_QueryDegradation(t *testing.T) {
	d := NewDetector(testLogger())
	databaseID := uuid.New()

	prev := snapshotAt(time.Now().Add(-time.Hour))
	prev.QueryMetrics = []models.QueryMetric{
		{Fingerprint: "aaa", MeanTimeMs: 20},
		{Fingerprint: "bbb", MeanTimeMs: 20},
		{Fingerprint: "ccc", MeanTimeMs: 4},
	}

	current := snapshotAt(time.Now())
	current.QueryMetrics = []models.QueryMetric{
		{Fingerprint: "aaa", MeanTimeMs: 35}, // +75%
		{Fingerprint: "bbb", MeanTimeMs: 50}, // +150%
		{Fingerprint: "ccc", MeanTimeMs: 8},  // doubled but below the mean floor
		{Fingerprint: "ddd", MeanTimeMs: 90}, // no baseline
	}

	signals := d.Detect(databaseID, current, prev)
	require.Len(t, signals, 2)

	// Severity ordering puts the worse regression first.
	assert.Equal(t, models.SignalQueryDegradation, signals[0].Type)
	assert.Equal(t, models.SeverityHigh, signals[0].Severity)
	assert.Equal(t, "bbb", signals[0].QueryFingerprint)

	assert.Equal(t, models.SeverityMedium, signals[1].Severity)
	assert.Equal(t, "aaa", signals[1].QueryFingerprint)

	t.Run("nil previous snapshot skips trend detection", func(t *testing.T) {
		assert.Empty(t, d.Detect(databaseID, current, nil))
	})
}

// TestDetector_Detect tests cross-rule behavior: severity ordering, signal
// stamping and determinism over the same input.
func TestDetector_Detect(t *testing.T) {
	d := NewDetector(testLogger())
	databaseID := uuid.New()

	snap := snapshotAt(time.Now())
	snap.QueryMetrics = []models.QueryMetric{
		{Fingerprint: "hot", SampleText: "SELECT * FROM events", Calls: 20_000, MeanTimeMs: 100},
	}
	snap.TableMetrics = []models.TableMetric{
		{Table: "orders", RowCount: 50_000, SeqScan: 600, IdxScan: 400},
	}
	snap.IndexMetrics = []models.IndexMetric{
		{Index: "idx_unused", Table: "orders", IdxScan: 0, SizeBytes: 5 * 1024 * 1024},
	}

	signals := d.Detect(databaseID, snap, nil)
	require.Len(t, signals, 3)

	assert.Equal(t, models.SeverityHigh, signals[0].Severity)
	assert.Equal(t, models.SeverityLow, signals[1].Severity)
	assert.Equal(t, models.SeverityLow, signals[2].Severity)

	for _, sig := range signals {
		assert.NotEqual(t, uuid.Nil, sig.ID)
		assert.Equal(t, databaseID, sig.DatabaseID)
		assert.Equal(t, models.SignalStatusNew, sig.Status)
		assert.False(t, sig.CreatedAt.IsZero())
	}

	t.Run("same input detects the same signals", func(t *testing.T) {
		again := d.Detect(databaseID, snap, nil)
		require.Len(t, again, len(signals))
		for i := range signals {
			assert.Equal(t, signals[i].Type, again[i].Type)
			assert.Equal(t, signals[i].Severity, again[i].Severity)
			assert.Equal(t, signals[i].Description, again[i].Description)
		}
	})
}
