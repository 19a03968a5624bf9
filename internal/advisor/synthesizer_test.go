package advisor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsteward/pgsteward/internal/models"
)

func ordersSchema() map[string]*models.TableSchema {
	return map[string]*models.TableSchema{
		"orders": {
			Table:      "orders",
			HasPrimary: true,
			Columns: []models.ColumnStat{
				{Name: "id", DataType: "bigint", NDistinct: -1},
				{Name: "customer_id", DataType: "bigint", NDistinct: 500},
				{Name: "status", DataType: "character varying", NDistinct: 4},
				{Name: "created_at", DataType: "timestamp with time zone", NDistinct: -1},
			},
			Indexes: []models.IndexDef{
				{Name: "orders_pkey", Table: "orders", Columns: []string{"id"}, Unique: true, Primary: true},
			},
		},
	}
}

func impactSignal(sample string) *models.Signal {
	return &models.Signal{
		ID:         uuid.New(),
		DatabaseID: uuid.New(),
		Type:       models.SignalHighImpactQuery,
		Severity:   models.SeverityMedium,
		Details:    map[string]any{"query_sample": sample},
		Status:     models.SignalStatusNew,
	}
}

// TestSynthesizer_TablesFor tests which schemas the synthesizer asks for.
func TestSynthesizer_TablesFor(t *testing.T) {
	s := NewSynthesizer(testLogger())

	tests := []struct {
		name   string
		signal *models.Signal
		want   []string
	}{
		{
			name:   "shaped signal uses the sampled query's tables",
			signal: impactSignal("SELECT * FROM orders JOIN customers ON orders.customer_id = customers.id WHERE status = 'open'"),
			want:   []string{"orders", "customers"},
		},
		{
			name: "unshaped signal falls back to its own table",
			signal: &models.Signal{
				Type:    models.SignalUnusedIndex,
				Table:   "orders",
				Details: map[string]any{"index_name": "idx_old"},
			},
			want: []string{"orders"},
		},
		{
			name:   "no sample and no table needs nothing",
			signal: &models.Signal{Type: models.SignalHighImpactQuery},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.TablesFor(tt.signal))
		})
	}
}

// TestSynthesizer_SingleColumnIndex tests index proposals for unindexed
// WHERE columns, including cardinality and coverage skips.
func TestSynthesizer_SingleColumnIndex(t *testing.T) {
	s := NewSynthesizer(testLogger())

	t.Run("unindexed filter column gets an index proposal", func(t *testing.T) {
		signal := impactSignal("SELECT * FROM orders WHERE customer_id = 42")
		proposals := s.Synthesize(signal, ordersSchema())

		require.Len(t, proposals, 1)
		p := proposals[0]
		assert.Equal(t, models.ProposalCreateIndex, p.Type)
		assert.Equal(t, "orders", p.Table)
		assert.Equal(t, "CREATE INDEX CONCURRENTLY idx_orders_customer_id ON orders(customer_id)", p.SQLCommand)
		assert.Equal(t, 0.8, p.Confidence)
		assert.Equal(t, models.ProposalStatusPending, p.Status)
		assert.Equal(t, signal.DatabaseID, p.DatabaseID)
		require.NotNil(t, p.SignalID)
		assert.Equal(t, signal.ID, *p.SignalID)
	})

	t.Run("already indexed column is skipped", func(t *testing.T) {
		schemas := ordersSchema()
		schemas["orders"].Indexes = append(schemas["orders"].Indexes, models.IndexDef{
			Name: "idx_orders_customer_id", Table: "orders", Columns: []string{"customer_id"},
		})

		proposals := s.Synthesize(impactSignal("SELECT * FROM orders WHERE customer_id = 42"), schemas)
		assert.Empty(t, proposals)
	})

	t.Run("low cardinality column is skipped", func(t *testing.T) {
		proposals := s.Synthesize(impactSignal("SELECT * FROM orders WHERE status = 'open'"), ordersSchema())
		assert.Empty(t, proposals)
	})

	t.Run("column without statistics is not skipped", func(t *testing.T) {
		schemas := ordersSchema()
		schemas["orders"].Columns = append(schemas["orders"].Columns,
			models.ColumnStat{Name: "region", DataType: "text", NDistinct: 0})

		proposals := s.Synthesize(impactSignal("SELECT * FROM orders WHERE region = 'eu'"), schemas)
		require.Len(t, proposals, 1)
		assert.Contains(t, proposals[0].SQLCommand, "idx_orders_region")
	})

	t.Run("unknown table produces nothing", func(t *testing.T) {
		proposals := s.Synthesize(impactSignal("SELECT * FROM missing WHERE user_id = 1"), ordersSchema())
		assert.Empty(t, proposals)
	})
}

// TestSynthesizer_CompositeIndex tests multi-column index proposals and their
// cardinality-based column ordering.
func TestSynthesizer_CompositeIndex(t *testing.T) {
	s := NewSynthesizer(testLogger())
	sample := "SELECT * FROM orders WHERE status = 'open' AND customer_id = 42"

	t.Run("two filter columns produce a composite proposal", func(t *testing.T) {
		proposals := s.Synthesize(impactSignal(sample), ordersSchema())

		var composite *models.Proposal
		for _, p := range proposals {
			if p.Type == models.ProposalCreateIndex && p.Confidence == 0.85 {
				composite = p
			}
		}
		require.NotNil(t, composite, "expected a composite index proposal")

		// The more selective column must lead regardless of query order.
		assert.Equal(t, "CREATE INDEX CONCURRENTLY idx_orders_customer_id_status ON orders(customer_id, status)",
			composite.SQLCommand)
	})

	t.Run("existing leading index suppresses the composite", func(t *testing.T) {
		schemas := ordersSchema()
		schemas["orders"].Indexes = append(schemas["orders"].Indexes, models.IndexDef{
			Name: "idx_orders_cust_status", Table: "orders", Columns: []string{"customer_id", "status"},
		})

		proposals := s.Synthesize(impactSignal(sample), schemas)
		for _, p := range proposals {
			assert.NotEqual(t, 0.85, p.Confidence, "composite proposal should be suppressed")
		}
	})

	t.Run("single filter column produces no composite", func(t *testing.T) {
		proposals := s.Synthesize(impactSignal("SELECT * FROM orders WHERE customer_id = 42"), ordersSchema())
		require.Len(t, proposals, 1)
		assert.NotContains(t, proposals[0].SQLCommand, ",")
	})
}

// TestSynthesizer_AnalyzeTable tests the statistics-refresh proposal for
// seq-scan signals.
func TestSynthesizer_AnalyzeTable(t *testing.T) {
	s := NewSynthesizer(testLogger())

	signal := &models.Signal{
		ID:         uuid.New(),
		DatabaseID: uuid.New(),
		Type:       models.SignalHighSequentialScans,
		Table:      "orders",
		Details:    map[string]any{"seq_ratio": 0.9},
	}

	proposals := s.Synthesize(signal, ordersSchema())
	require.Len(t, proposals, 1)
	assert.Equal(t, models.ProposalAnalyzeTable, proposals[0].Type)
	assert.Equal(t, "ANALYZE orders", proposals[0].SQLCommand)
	assert.Equal(t, 0.6, proposals[0].Confidence)
}

// TestSynthesizer_DropUnusedIndex tests drop proposals and the primary-key
// protections around them.
func TestSynthesizer_DropUnusedIndex(t *testing.T) {
	s := NewSynthesizer(testLogger())

	unusedSignal := func(index string, details map[string]any) *models.Signal {
		d := map[string]any{
			"index_name": index,
			"table_name": "orders",
			"size_bytes": float64(5 * 1024 * 1024),
		}
		for k, v := range details {
			d[k] = v
		}
		return &models.Signal{
			ID:         uuid.New(),
			DatabaseID: uuid.New(),
			Type:       models.SignalUnusedIndex,
			Table:      "orders",
			Details:    d,
		}
	}

	t.Run("unused secondary index gets a drop proposal", func(t *testing.T) {
		proposals := s.Synthesize(unusedSignal("idx_orders_legacy", nil), ordersSchema())

		require.Len(t, proposals, 1)
		p := proposals[0]
		assert.Equal(t, models.ProposalDropIndex, p.Type)
		assert.Equal(t, "DROP INDEX CONCURRENTLY IF EXISTS idx_orders_legacy", p.SQLCommand)
		assert.Equal(t, 0.75, p.Confidence)
		assert.Contains(t, p.Justification, "5.0MB")
	})

	t.Run("signal-flagged primary index is never dropped", func(t *testing.T) {
		proposals := s.Synthesize(unusedSignal("idx_custom", map[string]any{"is_primary": true}), ordersSchema())
		assert.Empty(t, proposals)
	})

	t.Run("schema-flagged primary index is never dropped", func(t *testing.T) {
		proposals := s.Synthesize(unusedSignal("orders_pkey", map[string]any{}), ordersSchema())
		assert.Empty(t, proposals)
	})

	t.Run("pkey-named index is never dropped even without schema", func(t *testing.T) {
		proposals := s.Synthesize(unusedSignal("invoices_pkey", nil), map[string]*models.TableSchema{})
		assert.Empty(t, proposals)
	})

	t.Run("missing index name produces nothing", func(t *testing.T) {
		signal := &models.Signal{Type: models.SignalUnusedIndex, Table: "orders"}
		assert.Empty(t, s.Synthesize(signal, ordersSchema()))
	})
}
