package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseQueryShape tests lexical extraction of tables and filter columns.
func TestParseQueryShape(t *testing.T) {
	tests := []struct {
		name       string
		sample     string
		wantTables []string
		wantWhere  []string
		wantJoin   []string
		wantOrder  []string
		wantGroup  []string
	}{
		{
			name:       "simple filter",
			sample:     "SELECT * FROM orders WHERE customer_id = 42",
			wantTables: []string{"orders"},
			wantWhere:  []string{"customer_id"},
		},
		{
			name:       "join with on clause",
			sample:     "SELECT o.id FROM orders o JOIN customers c ON o.customer_id = c.id WHERE status = 'open'",
			wantTables: []string{"orders", "customers"},
			wantWhere:  []string{"status"},
			wantJoin:   []string{"customer_id"},
		},
		{
			name:       "multiple conditions",
			sample:     "SELECT * FROM orders WHERE status = 'open' AND created_at > '2024-01-01' AND total >= 100",
			wantTables: []string{"orders"},
			wantWhere:  []string{"status", "created_at", "total"},
		},
		{
			name:       "group by columns",
			sample:     "SELECT status, count(*) FROM orders GROUP BY status, region",
			wantTables: []string{"orders"},
			wantGroup:  []string{"status", "region"},
		},
		{
			name:       "order by columns",
			sample:     "SELECT * FROM orders ORDER BY created_at, id",
			wantTables: []string{"orders"},
			wantOrder:  []string{"created_at", "id"},
		},
		{
			name:       "repeated columns dedupe",
			sample:     "SELECT * FROM orders WHERE customer_id = 1 AND customer_id > 5",
			wantTables: []string{"orders"},
			wantWhere:  []string{"customer_id"},
		},
		{
			name:   "empty sample yields empty shape",
			sample: "",
		},
		{
			name:       "no filters",
			sample:     "SELECT * FROM orders",
			wantTables: []string{"orders"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape := ParseQueryShape(tt.sample)
			assert.Equal(t, tt.wantTables, shape.Tables)
			assert.Equal(t, tt.wantWhere, shape.WhereColumns)
			assert.Equal(t, tt.wantJoin, shape.JoinColumns)
			assert.Equal(t, tt.wantOrder, shape.OrderColumns)
			assert.Equal(t, tt.wantGroup, shape.GroupColumns)
		})
	}
}
