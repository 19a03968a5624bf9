package advisor

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pgsteward/pgsteward/internal/models"
)

// Partitioning thresholds and scores. A table only qualifies once it is
// both large on disk and, when the planner has row statistics, large by
// row count. Column scores reflect how well each column type works as a
// partition key in practice.
const (
	PartitionMinSizeBytes = 50 * 1024 * 1024
	PartitionMinRows      = 100_000

	scoreTimestamp      = 80
	scoreInsertionName  = 15
	scoreUpdateName     = 5
	scoreLowCardinality = 60
	scoreCategoryName   = 20
	scoreForeignKeyID   = 30
	penaltyHighNulls    = 20

	listCardinalityMin = 2
	listCardinalityMax = 20
	highNullFraction   = 0.3

	// Cross-validation against sampled query text.
	confidenceQueryBonus   = 0.2
	confidenceQueryPenalty = 0.3
	confidenceFloor        = 0.3
	confidenceMinEmit      = 0.5

	rangeMonthlyPartitions = 24
	hashPartitions         = 8
)

var (
	insertionNames = []string{"created", "inserted", "logged", "timestamp"}
	updateNames    = []string{"updated", "modified"}
	categoryNames  = []string{"status", "type", "state", "category", "region"}
)

// PartitionAdvisor scores large tables for partitioning and produces
// advisory migration plans. It is strictly read-only: recommendations carry
// example DDL but nothing here can reach an executor.
type PartitionAdvisor struct {
	logger *slog.Logger
}

// NewPartitionAdvisor creates a new partition advisor.
func NewPartitionAdvisor(logger *slog.Logger) *PartitionAdvisor {
	return &PartitionAdvisor{
		logger: logger.With("component", "partition_advisor"),
	}
}

// scoredColumn is one column's suitability as a partition key.
type scoredColumn struct {
	name     string
	score    int
	ptype    models.PartitionType
	interval string
	distinct float64
}

// Advise converts partition candidates and their sampled queries into
// ranked recommendations. samplesByTable maps table name to raw query text
// sampled from the target; missing entries simply skip cross-validation for
// that table.
func (a *PartitionAdvisor) Advise(candidates []models.PartitionCandidate, samplesByTable map[string][]string) []models.PartitionRecommendation {
	var recs []models.PartitionRecommendation

	for _, cand := range candidates {
		if cand.Partitioned {
			continue
		}
		if cand.SizeBytes < PartitionMinSizeBytes {
			continue
		}
		// Row statistics can be absent right after a restore; only enforce
		// the row threshold when the planner actually has an estimate.
		if cand.RowEstimate > 0 && cand.RowEstimate < PartitionMinRows {
			continue
		}

		best, ok := bestPartitionColumn(cand.Columns)
		if !ok {
			continue
		}

		confidence := float64(best.score) / 100
		if confidence > 1.0 {
			confidence = 1.0
		}

		samples := samplesByTable[cand.Table]
		using := queriesFiltering(samples, best.name)
		if len(samples) > 0 && using > 0 {
			confidence = min(confidence+confidenceQueryBonus, 1.0)
		} else if len(samples) > 0 && using == 0 {
			confidence = max(confidence-confidenceQueryPenalty, confidenceFloor)
		}

		if confidence < confidenceMinEmit {
			a.logger.Debug("partition candidate below confidence threshold",
				"table", cand.Table, "column", best.name, "confidence", confidence)
			continue
		}

		rec := buildPartitionPlan(cand.Table, best)
		rec.Confidence = confidence
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Confidence > recs[j].Confidence
	})

	a.logger.Info("partition analysis complete",
		"candidates", len(candidates), "recommendations", len(recs))
	return recs
}

// bestPartitionColumn scores every column and returns the highest scorer.
func bestPartitionColumn(columns []models.ColumnStat) (scoredColumn, bool) {
	var scored []scoredColumn
	for _, col := range columns {
		if sc, ok := scorePartitionColumn(col); ok {
			scored = append(scored, sc)
		}
	}
	if len(scored) == 0 {
		return scoredColumn{}, false
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored[0], true
}

// scorePartitionColumn rates one column as a partition key. Columns that
// fit no scheme, or whose penalties push them to zero, are dropped.
func scorePartitionColumn(col models.ColumnStat) (scoredColumn, bool) {
	name := strings.ToLower(col.Name)
	dataType := strings.ToLower(col.DataType)

	sc := scoredColumn{name: col.Name, distinct: col.NDistinct}

	switch {
	case strings.Contains(dataType, "timestamp") || strings.Contains(dataType, "date"):
		// Temporal columns are the classic range-partitioning key.
		sc.score = scoreTimestamp
		sc.ptype = models.PartitionRange
		if containsAny(name, insertionNames) {
			sc.score += scoreInsertionName
			sc.interval = "monthly"
		} else if containsAny(name, updateNames) {
			sc.score += scoreUpdateName
		}

	case col.NDistinct >= listCardinalityMin && col.NDistinct <= listCardinalityMax:
		sc.score = scoreLowCardinality
		sc.ptype = models.PartitionList
		if containsAny(name, categoryNames) {
			sc.score += scoreCategoryName
		}

	case strings.Contains(dataType, "integer") || strings.Contains(dataType, "bigint"):
		// Foreign-key shaped columns spread evenly under hash partitioning.
		if strings.HasSuffix(name, "_id") && name != "id" {
			sc.score = scoreForeignKeyID
			sc.ptype = models.PartitionHash
		}
	}

	if col.NullFrac > highNullFraction {
		sc.score -= penaltyHighNulls
	}

	if sc.score <= 0 || sc.ptype == "" {
		return scoredColumn{}, false
	}
	return sc, true
}

// queriesFiltering counts sampled queries whose WHERE clause references the
// column. Shapes are extracted from lowercased text, so compare lowercased.
func queriesFiltering(samples []string, column string) int {
	count := 0
	lower := strings.ToLower(column)
	for _, sample := range samples {
		shape := ParseQueryShape(sample)
		if containsColumn(shape.WhereColumns, lower) {
			count++
		}
	}
	return count
}

// buildPartitionPlan produces the advisory migration plan for one table and
// its chosen key. Everything returned is documentation: the example DDL is
// never executed by this system.
func buildPartitionPlan(table string, col scoredColumn) models.PartitionRecommendation {
	rec := models.PartitionRecommendation{
		Table:        table,
		PartitionKey: col.name,
		Type:         col.ptype,
		Interval:     col.interval,
	}

	switch col.ptype {
	case models.PartitionRange:
		if col.interval == "monthly" {
			rec.EstimatedPartitions = rangeMonthlyPartitions
		}
		rec.Benefits = []string{
			"Partition pruning removes whole partitions from date-filtered scans",
			"Date-range queries only touch the partitions they need",
			"Old data can be archived by detaching partitions",
			"VACUUM and other maintenance runs per partition",
		}
		rec.Risks = []string{
			"Existing data must be migrated into the partitioned table",
			"Queries without a date filter scan every partition",
			"Future partitions must be created ahead of inserts (automation required)",
			"Foreign keys referencing this table need adjustment",
		}
		rec.MigrationSteps = []string{
			"Take a full backup of the table",
			"Create a partitioned table with the same schema",
			"Create partitions covering the existing data range",
			"Copy data with INSERT ... SELECT in batches",
			"Verify row counts and data integrity",
			"Swap table names in a single transaction",
			"Recreate foreign keys against the new table",
			"Automate creation of future partitions",
		}
		rec.SQLCommands = []string{
			fmt.Sprintf("CREATE TABLE %s_partitioned (LIKE %s INCLUDING ALL) PARTITION BY RANGE (%s);", table, table, col.name),
			fmt.Sprintf("CREATE TABLE %s_y2024m01 PARTITION OF %s_partitioned FOR VALUES FROM ('2024-01-01') TO ('2024-02-01');", table, table),
			fmt.Sprintf("INSERT INTO %s_partitioned SELECT * FROM %s;", table, table),
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s_old;", table, table),
			fmt.Sprintf("ALTER TABLE %s_partitioned RENAME TO %s;", table, table),
		}

	case models.PartitionList:
		rec.EstimatedPartitions = int(col.distinct)
		rec.Benefits = []string{
			fmt.Sprintf("Partition pruning for queries filtering on %q", col.name),
			"Each partition holds one logical subset of the data",
			"Maintenance can run per category",
		}
		rec.Risks = []string{
			"New values require new partitions",
			"Skewed value distribution gives uneven partition sizes",
		}
		rec.MigrationSteps = []string{
			"Enumerate the current distinct values",
			"Create a partitioned table with the same schema",
			"Create one partition per value",
			"Create a DEFAULT partition for future values",
			"Copy data and swap table names",
		}
		rec.SQLCommands = []string{
			fmt.Sprintf("CREATE TABLE %s_partitioned (LIKE %s INCLUDING ALL) PARTITION BY LIST (%s);", table, table, col.name),
			fmt.Sprintf("CREATE TABLE %s_value1 PARTITION OF %s_partitioned FOR VALUES IN ('value1');", table, table),
			fmt.Sprintf("CREATE TABLE %s_default PARTITION OF %s_partitioned DEFAULT;", table, table),
		}

	case models.PartitionHash:
		rec.EstimatedPartitions = hashPartitions
		rec.Benefits = []string{
			"Uniform data distribution across partitions",
			"Works for tables with uniform access patterns",
			"Full-table scans parallelize across partitions",
		}
		rec.Risks = []string{
			"No useful partition pruning for range filters",
			"Only pays off when access is uniform",
			"Partition count is fixed once chosen",
		}
		rec.MigrationSteps = []string{
			"Create a partitioned table with the same schema",
			fmt.Sprintf("Create %d hash partitions", hashPartitions),
			"Copy data and swap table names",
		}
		rec.SQLCommands = []string{
			fmt.Sprintf("CREATE TABLE %s_partitioned (LIKE %s INCLUDING ALL) PARTITION BY HASH (%s);", table, table, col.name),
			fmt.Sprintf("CREATE TABLE %s_p0 PARTITION OF %s_partitioned FOR VALUES WITH (MODULUS %d, REMAINDER 0);", table, table, hashPartitions),
		}
	}

	return rec
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
