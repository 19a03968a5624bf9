package advisor

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pgsteward/pgsteward/internal/models"
)

// SchemaReviewer inspects collected table schemas for structural anomalies.
// Findings are advisory output for the review endpoint: nothing here is
// persisted and nothing is ever executed.
type SchemaReviewer struct {
	logger *slog.Logger
}

// NewSchemaReviewer creates a new schema reviewer.
func NewSchemaReviewer(logger *slog.Logger) *SchemaReviewer {
	return &SchemaReviewer{
		logger: logger.With("component", "schema_reviewer"),
	}
}

// Review walks every table schema and returns findings ordered by severity.
// Output is deterministic: tables are visited in name order.
func (r *SchemaReviewer) Review(schemas map[string]*models.TableSchema) []models.SchemaFinding {
	tables := make([]string, 0, len(schemas))
	for name := range schemas {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	var findings []models.SchemaFinding
	for _, name := range tables {
		schema := schemas[name]
		findings = append(findings, duplicateIndexFindings(schema)...)
		if f, ok := missingPrimaryKeyFinding(schema); ok {
			findings = append(findings, f)
		}
		findings = append(findings, unindexedForeignKeyFindings(schema)...)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() < findings[j].Severity.Rank()
	})

	r.logger.Info("schema review complete", "tables", len(schemas), "findings", len(findings))
	return findings
}

// duplicateIndexFindings flags pairs of indexes with identical column lists.
// Either of the pair could be dropped; which one is a human decision.
func duplicateIndexFindings(schema *models.TableSchema) []models.SchemaFinding {
	var findings []models.SchemaFinding
	for i, a := range schema.Indexes {
		for _, b := range schema.Indexes[i+1:] {
			if !sameColumns(a.Columns, b.Columns) {
				continue
			}
			findings = append(findings, models.SchemaFinding{
				Type:     models.FindingDuplicateIndex,
				Severity: models.SeverityLow,
				Table:    schema.Table,
				Description: fmt.Sprintf("indexes %q and %q cover the same columns (%s)",
					a.Name, b.Name, strings.Join(a.Columns, ", ")),
				Details: map[string]any{
					"indexes": []string{a.Name, b.Name},
					"columns": a.Columns,
				},
			})
		}
	}
	return findings
}

func missingPrimaryKeyFinding(schema *models.TableSchema) (models.SchemaFinding, bool) {
	if schema.HasPrimary {
		return models.SchemaFinding{}, false
	}
	return models.SchemaFinding{
		Type:        models.FindingMissingPrimaryKey,
		Severity:    models.SeverityHigh,
		Table:       schema.Table,
		Description: fmt.Sprintf("table %q has no primary key", schema.Table),
	}, true
}

// unindexedForeignKeyFindings flags foreign keys whose referencing columns
// are not the leading columns of any index. Lookups and cascaded deletes on
// such keys fall back to sequential scans.
func unindexedForeignKeyFindings(schema *models.TableSchema) []models.SchemaFinding {
	var findings []models.SchemaFinding
	for _, fk := range schema.ForeignKeys {
		if len(fk.Columns) == 0 || hasIndexWithPrefix(schema.Indexes, fk.Columns) {
			continue
		}
		findings = append(findings, models.SchemaFinding{
			Type:     models.FindingUnindexedForeignKey,
			Severity: models.SeverityMedium,
			Table:    schema.Table,
			Description: fmt.Sprintf("foreign key %q (%s → %s) has no covering index",
				fk.Name, strings.Join(fk.Columns, ", "), fk.RefTable),
			Details: map[string]any{
				"constraint": fk.Name,
				"columns":    fk.Columns,
				"ref_table":  fk.RefTable,
			},
		})
	}
	return findings
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
