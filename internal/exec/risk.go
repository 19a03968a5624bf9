// Package exec is the safety layer between generated SQL and a monitored
// database. Commands are classified by risk, gated by the database's
// autonomy level, and every execution attempt lands in the audit trail.
package exec

import (
	"fmt"
	"strings"

	"github.com/pgsteward/pgsteward/internal/models"
)

// Command categories, matched case-insensitively over the full text.
// Classification is substring containment, not parsing: a string literal
// embedding a dangerous keyword trips the classifier. That errs on the side
// of refusing, which is the acceptable direction for this layer.
var (
	// Safe commands never take exclusive locks (or use CONCURRENTLY modes).
	safeCommands = []string{
		"CREATE INDEX CONCURRENTLY",
		"ANALYZE",
		"VACUUM ANALYZE",
		"VACUUM",
	}

	// Caution commands can lock briefly but are generally recoverable.
	cautionCommands = []string{
		"REINDEX",
		"REINDEX CONCURRENTLY",
		"DROP INDEX CONCURRENTLY",
	}

	// High-risk commands block or destroy data when run without CONCURRENTLY.
	highRiskCommands = []string{
		"DROP INDEX",
		"DROP TABLE",
		"TRUNCATE",
		"ALTER TABLE",
	}
)

// Classify renders a pure risk verdict over a command string. It consults
// nothing but the text itself.
func Classify(command string) models.RiskClassification {
	upper := strings.ToUpper(strings.TrimSpace(command))

	for _, dangerous := range highRiskCommands {
		if strings.Contains(upper, dangerous) && !strings.Contains(upper, "CONCURRENTLY") {
			return models.RiskClassification{
				Valid:  false,
				Level:  models.RiskHigh,
				Reason: fmt.Sprintf("command contains %s without CONCURRENTLY", dangerous),
			}
		}
	}

	for _, safe := range safeCommands {
		if strings.HasPrefix(upper, safe) {
			return models.RiskClassification{
				Valid:  true,
				Level:  models.RiskLow,
				Reason: "safe command for automatic execution",
			}
		}
	}

	for _, caution := range cautionCommands {
		if strings.Contains(upper, caution) {
			return models.RiskClassification{
				Valid:  true,
				Level:  models.RiskMedium,
				Reason: "medium risk, executed but monitored",
			}
		}
	}

	return models.RiskClassification{
		Valid:  true,
		Level:  models.RiskUnknown,
		Reason: "command not in known categories",
	}
}
