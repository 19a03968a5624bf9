package models

import "time"

// MetricSnapshot is one capture of the monitored database's runtime counters.
// Snapshots are immutable once captured; trend detection reads the previous
// snapshot without modifying it.
type MetricSnapshot struct {
	QueryMetrics []QueryMetric `json:"query_metrics"`
	TableMetrics []TableMetric `json:"table_metrics"`
	IndexMetrics []IndexMetric `json:"index_metrics"`
	CapturedAt   time.Time     `json:"captured_at"`
}

// QueryMetric holds per-query-shape statistics. Fingerprint groups executions
// of the same shape regardless of literal values.
type QueryMetric struct {
	Fingerprint      string   `json:"fingerprint"`
	SampleText       string   `json:"sample_text"`
	Calls            int64    `json:"calls"`
	TotalTimeMs      float64  `json:"total_time_ms"`
	MeanTimeMs       float64  `json:"mean_time_ms"`
	Rows             int64    `json:"rows"`
	ReferencedTables []string `json:"referenced_tables,omitempty"`
}

// ImpactScore weighs how much total latency a query shape contributes.
func (q QueryMetric) ImpactScore() float64 {
	return float64(q.Calls) * q.MeanTimeMs
}

// TableMetric holds per-table statistics from the monitored database.
type TableMetric struct {
	Table     string `json:"table"`
	RowCount  int64  `json:"row_count"`
	DeadRows  int64  `json:"dead_rows"`
	SeqScan   int64  `json:"seq_scan"`
	IdxScan   int64  `json:"idx_scan"`
	SizeBytes int64  `json:"size_bytes"`
	Inserts   int64  `json:"inserts"`
	Updates   int64  `json:"updates"`
	Deletes   int64  `json:"deletes"`
}

// IndexMetric holds per-index usage statistics.
type IndexMetric struct {
	Index      string `json:"index"`
	Table      string `json:"table"`
	IdxScan    int64  `json:"idx_scan"`
	SizeBytes  int64  `json:"size_bytes"`
	LiveTuples int64  `json:"live_tuples"`
	DeadTuples int64  `json:"dead_tuples"`
	Unique     bool   `json:"unique"`
	Primary    bool   `json:"primary"`
}

// IndexDef describes an existing index for proposal deduplication.
type IndexDef struct {
	Name    string   `json:"name"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	Primary bool     `json:"primary"`
}

// ColumnStat describes one column's planner statistics.
// NDistinct follows the pg_stats convention: positive values are absolute
// distinct counts, negative values are fractions of the row count.
type ColumnStat struct {
	Name      string  `json:"name"`
	DataType  string  `json:"data_type"`
	Nullable  bool    `json:"nullable"`
	NullFrac  float64 `json:"null_frac"`
	NDistinct float64 `json:"n_distinct"`
}

// ForeignKey describes a foreign-key constraint on the monitored database.
type ForeignKey struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	Columns    []string `json:"columns"`
	RefTable   string   `json:"ref_table"`
	RefColumns []string `json:"ref_columns"`
}

// TableSchema is the schema collaborator's view of one table.
type TableSchema struct {
	Table       string       `json:"table"`
	HasPrimary  bool         `json:"has_primary"`
	Columns     []ColumnStat `json:"columns"`
	Indexes     []IndexDef   `json:"indexes"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// PartitionCandidate is a large table eligible for partitioning analysis.
type PartitionCandidate struct {
	Table       string       `json:"table"`
	SizeBytes   int64        `json:"size_bytes"`
	RowEstimate int64        `json:"row_estimate"`
	Partitioned bool         `json:"partitioned"`
	Columns     []ColumnStat `json:"columns"`
}
