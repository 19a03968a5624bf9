package advisor

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/models"
)

const (
	singleIndexConfidence    = 0.8
	compositeIndexConfidence = 0.85
	analyzeConfidence        = 0.6
	dropIndexConfidence      = 0.75

	compositeMaxColumns = 3

	// Distinct-value estimates in (-1, 10) mark boolean-like columns that
	// an index rarely helps. 0 means no statistics and is never skipped.
	lowCardinalityCeiling = 10
)

// signal types that carry a query sample worth shape analysis
var shapedSignals = map[models.SignalType]bool{
	models.SignalHighImpactQuery:     true,
	models.SignalQueryDegradation:    true,
	models.SignalHighSequentialScans: true,
}

// Synthesizer turns one signal into zero or more concrete proposals.
type Synthesizer struct {
	logger *slog.Logger
}

// NewSynthesizer creates a new proposal synthesizer.
func NewSynthesizer(logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		logger: logger.With("component", "synthesizer"),
	}
}

// TablesFor returns the tables whose schemas the synthesizer needs for a
// signal: the tables referenced by the sampled query when one exists,
// otherwise the signal's own table.
func (s *Synthesizer) TablesFor(signal *models.Signal) []string {
	shape := shapeForSignal(signal)
	if len(shape.Tables) > 0 {
		return shape.Tables
	}
	if signal.Table != "" {
		return []string{signal.Table}
	}
	return nil
}

// Synthesize runs every strategy against the signal and returns pending
// proposals. schemas holds the affected tables' columns and indexes, keyed
// by table name; missing entries simply produce no index proposals.
func (s *Synthesizer) Synthesize(signal *models.Signal, schemas map[string]*models.TableSchema) []*models.Proposal {
	shape := shapeForSignal(signal)

	var proposals []*models.Proposal
	proposals = append(proposals, s.singleColumnIndexes(shape, schemas)...)
	proposals = append(proposals, s.compositeIndexes(shape, schemas)...)
	proposals = append(proposals, s.analyzeTable(signal)...)
	proposals = append(proposals, s.dropUnusedIndex(signal, schemas)...)

	now := time.Now().UTC()
	for _, p := range proposals {
		signalID := signal.ID
		p.ID = uuid.New()
		p.DatabaseID = signal.DatabaseID
		p.SignalID = &signalID
		p.Status = models.ProposalStatusPending
		p.CreatedAt = now
	}

	return proposals
}

func shapeForSignal(signal *models.Signal) QueryShape {
	if !shapedSignals[signal.Type] {
		return QueryShape{}
	}
	return ParseQueryShape(detailString(signal, "query_sample"))
}

// singleColumnIndexes proposes an index for each WHERE column that exists in
// a referenced table and is not covered by any existing index.
func (s *Synthesizer) singleColumnIndexes(shape QueryShape, schemas map[string]*models.TableSchema) []*models.Proposal {
	if len(shape.WhereColumns) == 0 {
		return nil
	}

	var proposals []*models.Proposal
	for _, table := range shape.Tables {
		schema := schemas[table]
		if schema == nil {
			continue
		}
		indexed := indexedColumns(schema)

		for _, whereCol := range shape.WhereColumns {
			col := findColumn(schema, whereCol)
			if col == nil || indexed[whereCol] {
				continue
			}
			if col.NDistinct != 0 && col.NDistinct > -1 && col.NDistinct < lowCardinalityCeiling {
				continue
			}

			proposals = append(proposals, &models.Proposal{
				Type:       models.ProposalCreateIndex,
				Table:      table,
				SQLCommand: fmt.Sprintf("CREATE INDEX CONCURRENTLY idx_%s_%s ON %s(%s)", table, whereCol, table, whereCol),
				Justification: fmt.Sprintf("Column '%s' is used in WHERE clause but has no index. "+
					"Creating an index will allow PostgreSQL to quickly locate matching rows "+
					"instead of scanning the entire table.", whereCol),
				EstimatedImpact: "read improvement: high, write overhead: low, space overhead: low",
				Confidence:      singleIndexConfidence,
			})
		}
	}
	return proposals
}

// compositeIndexes proposes a multi-column index when a query filters on two
// or more columns of the same table and no existing index leads with those
// columns.
func (s *Synthesizer) compositeIndexes(shape QueryShape, schemas map[string]*models.TableSchema) []*models.Proposal {
	if len(shape.WhereColumns) < 2 {
		return nil
	}

	var proposals []*models.Proposal
	for _, table := range shape.Tables {
		schema := schemas[table]
		if schema == nil {
			continue
		}

		var relevant []string
		for _, whereCol := range shape.WhereColumns {
			if findColumn(schema, whereCol) != nil {
				relevant = append(relevant, whereCol)
			}
		}
		if len(relevant) < 2 {
			continue
		}

		if hasIndexWithPrefix(schema.Indexes, relevant[:2]) {
			continue
		}

		ordered := relevant
		if len(ordered) > compositeMaxColumns {
			ordered = ordered[:compositeMaxColumns]
		}
		ordered = orderByCardinality(schema, ordered)

		proposals = append(proposals, &models.Proposal{
			Type:  models.ProposalCreateIndex,
			Table: table,
			SQLCommand: fmt.Sprintf("CREATE INDEX CONCURRENTLY idx_%s_%s ON %s(%s)",
				table, strings.Join(ordered[:2], "_"), table, strings.Join(ordered, ", ")),
			Justification: fmt.Sprintf("Query filters on multiple columns (%s). "+
				"A composite index can satisfy the entire WHERE clause in a single index scan, "+
				"which is more efficient than using multiple single-column indexes.", strings.Join(ordered, ", ")),
			EstimatedImpact: "read improvement: very high, write overhead: medium, space overhead: medium",
			Confidence:      compositeIndexConfidence,
		})
	}
	return proposals
}

// analyzeTable proposes refreshing planner statistics for tables flagged with
// heavy sequential scanning.
func (s *Synthesizer) analyzeTable(signal *models.Signal) []*models.Proposal {
	if signal.Type != models.SignalHighSequentialScans || signal.Table == "" {
		return nil
	}

	return []*models.Proposal{{
		Type:       models.ProposalAnalyzeTable,
		Table:      signal.Table,
		SQLCommand: fmt.Sprintf("ANALYZE %s", signal.Table),
		Justification: fmt.Sprintf("Table '%s' has high sequential scan ratio. "+
			"Running ANALYZE updates table statistics, which may help the query planner "+
			"choose better execution plans including index usage.", signal.Table),
		EstimatedImpact: "read improvement: medium, write overhead: none, space overhead: none",
		Confidence:      analyzeConfidence,
	}}
}

// dropUnusedIndex proposes removing an index that never serves scans.
// Primary key indexes are never proposed for removal, whether flagged in the
// schema, flagged on the signal, or merely named like one.
func (s *Synthesizer) dropUnusedIndex(signal *models.Signal, schemas map[string]*models.TableSchema) []*models.Proposal {
	if signal.Type != models.SignalUnusedIndex {
		return nil
	}

	indexName := detailString(signal, "index_name")
	if indexName == "" {
		return nil
	}

	table := detailString(signal, "table_name")
	if table == "" {
		table = signal.Table
	}

	if s.isPrimaryIndex(signal, schemas, table, indexName) {
		s.logger.Info("skipping primary key index", "index", indexName, "table", table)
		return nil
	}

	sizeBytes := detailNumber(signal, "size_bytes")
	if table == "" {
		table = "unknown"
	}

	return []*models.Proposal{{
		Type:       models.ProposalDropIndex,
		Table:      table,
		SQLCommand: fmt.Sprintf("DROP INDEX CONCURRENTLY IF EXISTS %s", indexName),
		Justification: fmt.Sprintf("Index '%s' has never been used (0 scans) but consumes "+
			"%.1fMB of storage and slows down write operations. "+
			"Dropping it will improve INSERT/UPDATE/DELETE performance on this table.",
			indexName, sizeBytes/1024/1024),
		EstimatedImpact: fmt.Sprintf("read improvement: none, write improvement: medium, space savings: %.0f bytes", sizeBytes),
		Confidence:      dropIndexConfidence,
	}}
}

func (s *Synthesizer) isPrimaryIndex(signal *models.Signal, schemas map[string]*models.TableSchema, table, indexName string) bool {
	if flagged, ok := signal.Details["is_primary"].(bool); ok && flagged {
		return true
	}
	if schema := schemas[table]; schema != nil {
		for _, idx := range schema.Indexes {
			if idx.Name == indexName && idx.Primary {
				return true
			}
		}
	}
	lower := strings.ToLower(indexName)
	return strings.HasSuffix(lower, "_pkey") || strings.Contains(lower, "primary")
}

// indexedColumns returns every column that participates in any index on the
// table, at any position.
func indexedColumns(schema *models.TableSchema) map[string]bool {
	covered := make(map[string]bool)
	for _, idx := range schema.Indexes {
		for _, col := range idx.Columns {
			covered[col] = true
		}
	}
	return covered
}

func findColumn(schema *models.TableSchema, name string) *models.ColumnStat {
	for i := range schema.Columns {
		if schema.Columns[i].Name == name {
			return &schema.Columns[i]
		}
	}
	return nil
}

// hasIndexWithPrefix reports whether any index leads with exactly the given
// columns, in any order among the leading positions.
func hasIndexWithPrefix(indexes []models.IndexDef, cols []string) bool {
	for _, idx := range indexes {
		if len(idx.Columns) < len(cols) {
			continue
		}
		prefix := idx.Columns[:len(cols)]
		all := true
		for _, c := range cols {
			if !containsColumn(prefix, c) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

// orderByCardinality sorts columns by descending absolute distinct-value
// estimate so the most selective column leads the index. The sort is stable:
// columns without statistics keep their query order.
func orderByCardinality(schema *models.TableSchema, cols []string) []string {
	ordered := make([]string, len(cols))
	copy(ordered, cols)
	sort.SliceStable(ordered, func(i, j int) bool {
		return absDistinct(schema, ordered[i]) > absDistinct(schema, ordered[j])
	})
	return ordered
}

func absDistinct(schema *models.TableSchema, col string) float64 {
	c := findColumn(schema, col)
	if c == nil {
		return 0
	}
	if c.NDistinct < 0 {
		return -c.NDistinct
	}
	return c.NDistinct
}

func detailString(signal *models.Signal, key string) string {
	if signal.Details == nil {
		return ""
	}
	v, _ := signal.Details[key].(string)
	return v
}

// detailNumber tolerates both in-memory details (typed integers from the
// detector) and details decoded from JSON (always float64).
func detailNumber(signal *models.Signal, key string) float64 {
	switch v := signal.Details[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
