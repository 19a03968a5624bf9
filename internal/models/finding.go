package models

// FindingType identifies a schema-level anomaly.
type FindingType string

const (
	FindingDuplicateIndex      FindingType = "duplicate_index"
	FindingMissingPrimaryKey   FindingType = "missing_primary_key"
	FindingUnindexedForeignKey FindingType = "unindexed_foreign_key"
)

// SchemaFinding is an advisory schema-review observation. Findings are
// returned per run, never persisted and never executed.
type SchemaFinding struct {
	Type        FindingType    `json:"finding_type"`
	Severity    Severity       `json:"severity"`
	Table       string         `json:"table"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
}
