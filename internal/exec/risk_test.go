package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgsteward/pgsteward/internal/models"
)

// TestClassify tests the risk verdict for each command category.
func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		wantValid bool
		wantLevel models.RiskLevel
	}{
		{
			name:      "concurrent index creation is safe",
			command:   "CREATE INDEX CONCURRENTLY idx_orders_status ON orders(status)",
			wantValid: true,
			wantLevel: models.RiskLow,
		},
		{
			name:      "analyze is safe",
			command:   "ANALYZE orders",
			wantValid: true,
			wantLevel: models.RiskLow,
		},
		{
			name:      "vacuum analyze is safe",
			command:   "VACUUM ANALYZE orders",
			wantValid: true,
			wantLevel: models.RiskLow,
		},
		{
			name:      "concurrent reindex is medium",
			command:   "REINDEX INDEX CONCURRENTLY idx_orders_status",
			wantValid: true,
			wantLevel: models.RiskMedium,
		},
		{
			name:      "concurrent index drop is medium",
			command:   "DROP INDEX CONCURRENTLY IF EXISTS idx_orders_legacy",
			wantValid: true,
			wantLevel: models.RiskMedium,
		},
		{
			name:      "blocking index drop is refused",
			command:   "DROP INDEX idx_orders_legacy",
			wantValid: false,
			wantLevel: models.RiskHigh,
		},
		{
			name:      "drop table is refused",
			command:   "DROP TABLE orders",
			wantValid: false,
			wantLevel: models.RiskHigh,
		},
		{
			name:      "truncate is refused",
			command:   "TRUNCATE orders",
			wantValid: false,
			wantLevel: models.RiskHigh,
		},
		{
			name:      "alter table is refused",
			command:   "ALTER TABLE orders ADD COLUMN note text",
			wantValid: false,
			wantLevel: models.RiskHigh,
		},
		{
			name:      "matching is case insensitive",
			command:   "create index concurrently idx_t_c on t(c)",
			wantValid: true,
			wantLevel: models.RiskLow,
		},
		{
			name:      "unrecognized command is unknown but allowed",
			command:   "SELECT pg_stat_reset()",
			wantValid: true,
			wantLevel: models.RiskUnknown,
		},
		{
			name: "embedded dangerous keyword trips the refusal",
			// Substring matching, not parsing. Refusing a harmless command is
			// the direction this layer is allowed to be wrong in.
			command:   "ANALYZE orders -- then drop table orders_old",
			wantValid: false,
			wantLevel: models.RiskHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.command)
			assert.Equal(t, tt.wantValid, c.Valid)
			assert.Equal(t, tt.wantLevel, c.Level)
			assert.NotEmpty(t, c.Reason)
		})
	}
}

// TestClassify_RefusalNamesTheCommand tests that refusals explain which
// pattern matched.
func TestClassify_RefusalNamesTheCommand(t *testing.T) {
	c := Classify("DROP TABLE orders")
	assert.False(t, c.Valid)
	assert.Contains(t, c.Reason, "DROP TABLE")
	assert.Contains(t, c.Reason, "CONCURRENTLY")
}

// TestCanAutoExecute tests the autonomy gate truth table.
func TestCanAutoExecute(t *testing.T) {
	low := models.RiskClassification{Valid: true, Level: models.RiskLow}
	medium := models.RiskClassification{Valid: true, Level: models.RiskMedium}
	unknown := models.RiskClassification{Valid: true, Level: models.RiskUnknown}
	invalid := models.RiskClassification{Valid: false, Level: models.RiskHigh}

	tests := []struct {
		name   string
		level  models.AutonomyLevel
		class  models.RiskClassification
		expect bool
	}{
		{"observation never executes", models.AutonomyObservation, low, false},
		{"assisted never executes", models.AutonomyAssisted, low, false},
		{"trust executes low risk", models.AutonomyTrust, low, true},
		{"trust refuses medium risk", models.AutonomyTrust, medium, false},
		{"trust refuses unknown risk", models.AutonomyTrust, unknown, false},
		{"trust refuses invalid", models.AutonomyTrust, invalid, false},
		{"autonomous executes low risk", models.AutonomyAutonomous, low, true},
		{"autonomous executes medium risk", models.AutonomyAutonomous, medium, true},
		{"autonomous executes unknown risk", models.AutonomyAutonomous, unknown, true},
		{"autonomous still refuses invalid", models.AutonomyAutonomous, invalid, false},
		{"unrecognized level never executes", models.AutonomyLevel("yolo"), low, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, CanAutoExecute(tt.class, tt.level))
		})
	}
}
