package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsteward/pgsteward/internal/models"
)

func largeCandidate(table string, columns ...models.ColumnStat) models.PartitionCandidate {
	return models.PartitionCandidate{
		Table:       table,
		SizeBytes:   200 * 1024 * 1024,
		RowEstimate: 5_000_000,
		Columns:     columns,
	}
}

var (
	createdAtCol = models.ColumnStat{Name: "created_at", DataType: "timestamp with time zone", NDistinct: -1}
	statusCol    = models.ColumnStat{Name: "status", DataType: "character varying", NDistinct: 5}
	customerCol  = models.ColumnStat{Name: "customer_id", DataType: "bigint", NDistinct: 100_000}
)

// TestPartitionAdvisor_RangeRecommendation tests the classic case: a large
// table with an insertion timestamp gets a monthly range plan.
func TestPartitionAdvisor_RangeRecommendation(t *testing.T) {
	a := NewPartitionAdvisor(testLogger())

	recs := a.Advise([]models.PartitionCandidate{
		largeCandidate("orders",
			models.ColumnStat{Name: "id", DataType: "bigint", NDistinct: -1},
			createdAtCol,
		),
	}, nil)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "orders", rec.Table)
	assert.Equal(t, "created_at", rec.PartitionKey)
	assert.Equal(t, models.PartitionRange, rec.Type)
	assert.Equal(t, "monthly", rec.Interval)
	assert.Equal(t, 24, rec.EstimatedPartitions)
	assert.InDelta(t, 0.95, rec.Confidence, 1e-9)
	require.NotEmpty(t, rec.SQLCommands)
	assert.Contains(t, rec.SQLCommands[0], "PARTITION BY RANGE (created_at)")
	assert.NotEmpty(t, rec.Benefits)
	assert.NotEmpty(t, rec.Risks)
	assert.NotEmpty(t, rec.MigrationSteps)
}

// TestPartitionAdvisor_CandidateGates tests the size, row and
// already-partitioned gates.
func TestPartitionAdvisor_CandidateGates(t *testing.T) {
	a := NewPartitionAdvisor(testLogger())

	tests := []struct {
		name      string
		candidate models.PartitionCandidate
		wantRec   bool
	}{
		{
			name: "small tables are skipped",
			candidate: models.PartitionCandidate{
				Table: "orders", SizeBytes: 10 * 1024 * 1024, RowEstimate: 5_000_000,
				Columns: []models.ColumnStat{createdAtCol},
			},
		},
		{
			name: "low row estimates are skipped",
			candidate: models.PartitionCandidate{
				Table: "orders", SizeBytes: 200 * 1024 * 1024, RowEstimate: 50_000,
				Columns: []models.ColumnStat{createdAtCol},
			},
		},
		{
			name: "missing row statistics do not disqualify",
			candidate: models.PartitionCandidate{
				Table: "orders", SizeBytes: 200 * 1024 * 1024, RowEstimate: 0,
				Columns: []models.ColumnStat{createdAtCol},
			},
			wantRec: true,
		},
		{
			name: "already partitioned tables are skipped",
			candidate: models.PartitionCandidate{
				Table: "orders", SizeBytes: 200 * 1024 * 1024, RowEstimate: 5_000_000,
				Partitioned: true,
				Columns:     []models.ColumnStat{createdAtCol},
			},
		},
		{
			name: "tables with no scorable column are skipped",
			candidate: largeCandidate("blobs",
				models.ColumnStat{Name: "payload", DataType: "bytea", NDistinct: -1},
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := a.Advise([]models.PartitionCandidate{tt.candidate}, nil)
			if tt.wantRec {
				assert.Len(t, recs, 1)
			} else {
				assert.Empty(t, recs)
			}
		})
	}
}

// TestPartitionAdvisor_QueryCrossValidation tests how sampled query text
// moves confidence up, down and past the emit threshold.
func TestPartitionAdvisor_QueryCrossValidation(t *testing.T) {
	a := NewPartitionAdvisor(testLogger())
	candidates := []models.PartitionCandidate{largeCandidate("orders", createdAtCol)}

	t.Run("queries filtering on the key raise confidence", func(t *testing.T) {
		recs := a.Advise(candidates, map[string][]string{
			"orders": {"SELECT * FROM orders WHERE created_at > '2024-01-01'"},
		})
		require.Len(t, recs, 1)
		assert.InDelta(t, 1.0, recs[0].Confidence, 1e-9)
	})

	t.Run("queries ignoring the key lower confidence", func(t *testing.T) {
		recs := a.Advise(candidates, map[string][]string{
			"orders": {"SELECT * FROM orders WHERE customer_id = 42"},
		})
		require.Len(t, recs, 1)
		assert.InDelta(t, 0.65, recs[0].Confidence, 1e-9)
	})

	t.Run("no samples leave confidence unadjusted", func(t *testing.T) {
		recs := a.Advise(candidates, nil)
		require.Len(t, recs, 1)
		assert.InDelta(t, 0.95, recs[0].Confidence, 1e-9)
	})

	t.Run("penalty below the emit threshold drops the table", func(t *testing.T) {
		weak := []models.PartitionCandidate{largeCandidate("tickets",
			models.ColumnStat{Name: "priority", DataType: "integer", NDistinct: 5},
		)}
		recs := a.Advise(weak, map[string][]string{
			"tickets": {"SELECT * FROM tickets WHERE assignee_id = 7"},
		})
		assert.Empty(t, recs)
	})
}

// TestPartitionAdvisor_ListRecommendation tests low-cardinality list plans.
func TestPartitionAdvisor_ListRecommendation(t *testing.T) {
	a := NewPartitionAdvisor(testLogger())

	recs := a.Advise([]models.PartitionCandidate{largeCandidate("shipments", statusCol)}, nil)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, models.PartitionList, rec.Type)
	assert.Equal(t, "status", rec.PartitionKey)
	assert.Equal(t, 5, rec.EstimatedPartitions)
	assert.InDelta(t, 0.8, rec.Confidence, 1e-9)
	require.NotEmpty(t, rec.SQLCommands)
	assert.Contains(t, rec.SQLCommands[0], "PARTITION BY LIST (status)")
}

// TestPartitionAdvisor_HashRecommendation tests that a foreign-key column
// only clears the emit threshold when sampled queries actually filter on it.
func TestPartitionAdvisor_HashRecommendation(t *testing.T) {
	a := NewPartitionAdvisor(testLogger())
	candidates := []models.PartitionCandidate{largeCandidate("line_items", customerCol)}

	t.Run("without supporting queries nothing is emitted", func(t *testing.T) {
		assert.Empty(t, a.Advise(candidates, nil))
	})

	t.Run("supporting queries push it over the threshold", func(t *testing.T) {
		recs := a.Advise(candidates, map[string][]string{
			"line_items": {"SELECT * FROM line_items WHERE customer_id = 9"},
		})
		require.Len(t, recs, 1)
		rec := recs[0]
		assert.Equal(t, models.PartitionHash, rec.Type)
		assert.Equal(t, "customer_id", rec.PartitionKey)
		assert.Equal(t, 8, rec.EstimatedPartitions)
		assert.InDelta(t, 0.5, rec.Confidence, 1e-9)
		require.NotEmpty(t, rec.SQLCommands)
		assert.Contains(t, rec.SQLCommands[1], "MODULUS 8")
	})
}

// TestPartitionAdvisor_ColumnSelection tests scoring details: the best column
// wins, and high null fractions are penalized.
func TestPartitionAdvisor_ColumnSelection(t *testing.T) {
	a := NewPartitionAdvisor(testLogger())

	t.Run("timestamp beats category column", func(t *testing.T) {
		recs := a.Advise([]models.PartitionCandidate{
			largeCandidate("orders", statusCol, createdAtCol),
		}, nil)
		require.Len(t, recs, 1)
		assert.Equal(t, "created_at", recs[0].PartitionKey)
		assert.Equal(t, models.PartitionRange, recs[0].Type)
	})

	t.Run("mostly null key is penalized", func(t *testing.T) {
		nullable := models.ColumnStat{
			Name: "created_at", DataType: "timestamp with time zone",
			NDistinct: -1, NullFrac: 0.4,
		}
		recs := a.Advise([]models.PartitionCandidate{largeCandidate("orders", nullable)}, nil)
		require.Len(t, recs, 1)
		assert.InDelta(t, 0.75, recs[0].Confidence, 1e-9)
	})

	t.Run("recommendations sort by confidence", func(t *testing.T) {
		recs := a.Advise([]models.PartitionCandidate{
			largeCandidate("audit", models.ColumnStat{Name: "updated_at", DataType: "timestamp without time zone", NDistinct: -1}),
			largeCandidate("orders", createdAtCol),
		}, nil)
		require.Len(t, recs, 2)
		assert.Equal(t, "orders", recs[0].Table)
		assert.Equal(t, "audit", recs[1].Table)

		// Range plans without a monthly interval make no partition-count claim.
		assert.Empty(t, recs[1].Interval)
		assert.Zero(t, recs[1].EstimatedPartitions)
	})
}
