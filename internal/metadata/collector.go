// Package metadata reads runtime statistics and schema details from monitored
// databases. Every query runs on the target's read pool; nothing in this
// package modifies the monitored database.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/target"
)

// Collector captures metric snapshots and schema information from a target.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metadata collector.
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger.With("component", "collector"),
	}
}

// CollectSnapshot captures query, table and index statistics in one pass.
// Query metrics are empty when pg_stat_statements is not installed on the
// target; table and index statistics are always available.
func (c *Collector) CollectSnapshot(ctx context.Context, t *target.Target) (*models.MetricSnapshot, error) {
	queryMetrics, err := c.collectQueryMetrics(ctx, t)
	if err != nil {
		return nil, err
	}

	tableMetrics, err := c.collectTableMetrics(ctx, t)
	if err != nil {
		return nil, err
	}

	indexMetrics, err := c.collectIndexMetrics(ctx, t)
	if err != nil {
		return nil, err
	}

	return &models.MetricSnapshot{
		QueryMetrics: queryMetrics,
		TableMetrics: tableMetrics,
		IndexMetrics: indexMetrics,
		CapturedAt:   time.Now().UTC(),
	}, nil
}

func (c *Collector) statementsAvailable(ctx context.Context, t *target.Target) (bool, error) {
	var available bool
	err := t.Read.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_extension WHERE extname = 'pg_stat_statements'
		)
	`).Scan(&available)
	if err != nil {
		return false, fmt.Errorf("failed to check pg_stat_statements: %w", err)
	}
	return available, nil
}

func (c *Collector) collectQueryMetrics(ctx context.Context, t *target.Target) ([]models.QueryMetric, error) {
	available, err := c.statementsAvailable(ctx, t)
	if err != nil {
		return nil, err
	}
	if !available {
		c.logger.Warn("pg_stat_statements not available, skipping query metrics", "database_id", t.DatabaseID)
		return make([]models.QueryMetric, 0), nil
	}

	query := `
		SELECT
			COALESCE(query, ''),
			calls,
			total_exec_time,
			mean_exec_time,
			rows
		FROM pg_stat_statements
		WHERE dbid = (SELECT oid FROM pg_database WHERE datname = current_database())
		AND query NOT LIKE '%pg_stat%'
		AND query NOT LIKE '%pg_catalog%'
		AND calls > 0
		ORDER BY total_exec_time DESC
		LIMIT 200
	`

	rows, err := t.Read.Query(ctx, query)
	if err != nil {
		c.logger.Error("failed to collect query metrics", "error", err, "database_id", t.DatabaseID)
		return nil, fmt.Errorf("failed to collect query metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]models.QueryMetric, 0)
	for rows.Next() {
		var (
			text        string
			calls, nRow int64
			total, mean float64
		)
		if err := rows.Scan(&text, &calls, &total, &mean, &nRow); err != nil {
			c.logger.Error("failed to scan query metric", "error", err)
			continue
		}

		sample := text
		if len(sample) > 500 {
			sample = sample[:500]
		}

		metrics = append(metrics, models.QueryMetric{
			Fingerprint:      Fingerprint(text),
			SampleText:       sample,
			Calls:            calls,
			TotalTimeMs:      total,
			MeanTimeMs:       mean,
			Rows:             nRow,
			ReferencedTables: TablesReferenced(text),
		})
	}

	return metrics, rows.Err()
}

func (c *Collector) collectTableMetrics(ctx context.Context, t *target.Target) ([]models.TableMetric, error) {
	query := `
		SELECT
			relname,
			COALESCE(n_live_tup, 0),
			COALESCE(n_dead_tup, 0),
			COALESCE(seq_scan, 0),
			COALESCE(idx_scan, 0),
			COALESCE(n_tup_ins, 0),
			COALESCE(n_tup_upd, 0),
			COALESCE(n_tup_del, 0),
			pg_total_relation_size(relid)
		FROM pg_stat_user_tables
		WHERE schemaname = 'public'
		ORDER BY n_live_tup DESC
	`

	rows, err := t.Read.Query(ctx, query)
	if err != nil {
		c.logger.Error("failed to collect table metrics", "error", err, "database_id", t.DatabaseID)
		return nil, fmt.Errorf("failed to collect table metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]models.TableMetric, 0)
	for rows.Next() {
		var m models.TableMetric
		err := rows.Scan(
			&m.Table, &m.RowCount, &m.DeadRows, &m.SeqScan, &m.IdxScan,
			&m.Inserts, &m.Updates, &m.Deletes, &m.SizeBytes,
		)
		if err != nil {
			c.logger.Error("failed to scan table metric", "error", err)
			continue
		}
		metrics = append(metrics, m)
	}

	return metrics, rows.Err()
}

func (c *Collector) collectIndexMetrics(ctx context.Context, t *target.Target) ([]models.IndexMetric, error) {
	// Live and dead tuple counts come from the owning table; per-index bloat
	// is estimated from them downstream.
	query := `
		SELECT
			sui.indexrelname,
			sui.relname,
			COALESCE(sui.idx_scan, 0),
			pg_relation_size(sui.indexrelid),
			COALESCE(tab.n_live_tup, 0),
			COALESCE(tab.n_dead_tup, 0),
			ix.indisunique,
			ix.indisprimary
		FROM pg_stat_user_indexes sui
		JOIN pg_index ix ON ix.indexrelid = sui.indexrelid
		LEFT JOIN pg_stat_user_tables tab ON tab.relid = sui.relid
		WHERE sui.schemaname = 'public'
		ORDER BY sui.idx_scan DESC
	`

	rows, err := t.Read.Query(ctx, query)
	if err != nil {
		c.logger.Error("failed to collect index metrics", "error", err, "database_id", t.DatabaseID)
		return nil, fmt.Errorf("failed to collect index metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]models.IndexMetric, 0)
	for rows.Next() {
		var m models.IndexMetric
		err := rows.Scan(
			&m.Index, &m.Table, &m.IdxScan, &m.SizeBytes,
			&m.LiveTuples, &m.DeadTuples, &m.Unique, &m.Primary,
		)
		if err != nil {
			c.logger.Error("failed to scan index metric", "error", err)
			continue
		}
		metrics = append(metrics, m)
	}

	return metrics, rows.Err()
}

// TableSchemas returns column statistics, index definitions and foreign keys
// for the named tables, keyed by table name. An empty tables slice returns
// every table in the public schema.
func (c *Collector) TableSchemas(ctx context.Context, t *target.Target, tables []string) (map[string]*models.TableSchema, error) {
	schemas := make(map[string]*models.TableSchema)

	if err := c.loadColumns(ctx, t, tables, schemas); err != nil {
		return nil, err
	}
	if err := c.loadIndexes(ctx, t, tables, schemas); err != nil {
		return nil, err
	}
	if err := c.loadForeignKeys(ctx, t, tables, schemas); err != nil {
		return nil, err
	}

	return schemas, nil
}

func tableSchemaFor(schemas map[string]*models.TableSchema, table string) *models.TableSchema {
	ts, ok := schemas[table]
	if !ok {
		ts = &models.TableSchema{Table: table}
		schemas[table] = ts
	}
	return ts
}

func (c *Collector) loadColumns(ctx context.Context, t *target.Target, tables []string, schemas map[string]*models.TableSchema) error {
	filter := ""
	args := []any{}
	if len(tables) > 0 {
		filter = "AND c.table_name = ANY($1)"
		args = append(args, tables)
	}

	query := fmt.Sprintf(`
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			COALESCE(s.n_distinct, 0),
			COALESCE(s.null_frac, 0)
		FROM information_schema.columns c
		LEFT JOIN pg_stats s ON s.schemaname = c.table_schema
			AND s.tablename = c.table_name
			AND s.attname = c.column_name
		WHERE c.table_schema = 'public'
		%s
		ORDER BY c.table_name, c.ordinal_position
	`, filter)

	rows, err := t.Read.Query(ctx, query, args...)
	if err != nil {
		c.logger.Error("failed to load columns", "error", err, "database_id", t.DatabaseID)
		return fmt.Errorf("failed to load columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			table string
			col   models.ColumnStat
		)
		if err := rows.Scan(&table, &col.Name, &col.DataType, &col.Nullable, &col.NDistinct, &col.NullFrac); err != nil {
			c.logger.Error("failed to scan column", "error", err)
			continue
		}
		ts := tableSchemaFor(schemas, table)
		ts.Columns = append(ts.Columns, col)
	}

	return rows.Err()
}

func (c *Collector) loadIndexes(ctx context.Context, t *target.Target, tables []string, schemas map[string]*models.TableSchema) error {
	filter := ""
	args := []any{}
	if len(tables) > 0 {
		filter = "AND t.relname = ANY($1)"
		args = append(args, tables)
	}

	query := fmt.Sprintf(`
		SELECT
			i.relname,
			t.relname,
			array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)),
			ix.indisunique,
			ix.indisprimary
		FROM pg_index ix
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = 'public'
		%s
		GROUP BY i.relname, t.relname, ix.indisunique, ix.indisprimary
		ORDER BY t.relname, i.relname
	`, filter)

	rows, err := t.Read.Query(ctx, query, args...)
	if err != nil {
		c.logger.Error("failed to load indexes", "error", err, "database_id", t.DatabaseID)
		return fmt.Errorf("failed to load indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx models.IndexDef
		if err := rows.Scan(&idx.Name, &idx.Table, &idx.Columns, &idx.Unique, &idx.Primary); err != nil {
			c.logger.Error("failed to scan index", "error", err)
			continue
		}
		ts := tableSchemaFor(schemas, idx.Table)
		ts.Indexes = append(ts.Indexes, idx)
		if idx.Primary {
			ts.HasPrimary = true
		}
	}

	return rows.Err()
}

func (c *Collector) loadForeignKeys(ctx context.Context, t *target.Target, tables []string, schemas map[string]*models.TableSchema) error {
	filter := ""
	args := []any{}
	if len(tables) > 0 {
		filter = "AND tc.table_name = ANY($1)"
		args = append(args, tables)
	}

	query := fmt.Sprintf(`
		SELECT
			tc.constraint_name,
			tc.table_name,
			kcu.column_name,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = 'public'
		%s
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position
	`, filter)

	rows, err := t.Read.Query(ctx, query, args...)
	if err != nil {
		c.logger.Error("failed to load foreign keys", "error", err, "database_id", t.DatabaseID)
		return fmt.Errorf("failed to load foreign keys: %w", err)
	}
	defer rows.Close()

	// Multi-column constraints arrive as one row per column pair; fold them
	// back into a single ForeignKey per constraint name.
	byConstraint := make(map[string]*models.ForeignKey)
	var order []string
	for rows.Next() {
		var name, table, column, refTable, refColumn string
		if err := rows.Scan(&name, &table, &column, &refTable, &refColumn); err != nil {
			c.logger.Error("failed to scan foreign key", "error", err)
			continue
		}

		fk, ok := byConstraint[name]
		if !ok {
			fk = &models.ForeignKey{Name: name, Table: table, RefTable: refTable}
			byConstraint[name] = fk
			order = append(order, name)
		}
		if !containsString(fk.Columns, column) {
			fk.Columns = append(fk.Columns, column)
		}
		if !containsString(fk.RefColumns, refColumn) {
			fk.RefColumns = append(fk.RefColumns, refColumn)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range order {
		fk := byConstraint[name]
		ts := tableSchemaFor(schemas, fk.Table)
		ts.ForeignKeys = append(ts.ForeignKeys, *fk)
	}

	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PartitionCandidates returns tables in the public schema larger than
// minSizeBytes, largest first, with their column statistics attached.
// Already-partitioned tables are included and flagged so the advisor can
// skip them explicitly.
func (c *Collector) PartitionCandidates(ctx context.Context, t *target.Target, minSizeBytes int64) ([]models.PartitionCandidate, error) {
	query := `
		SELECT
			t.relname,
			pg_total_relation_size(t.oid),
			COALESCE(s.n_live_tup, 0),
			EXISTS (SELECT 1 FROM pg_partitioned_table p WHERE p.partrelid = t.oid)
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		LEFT JOIN pg_stat_user_tables s ON s.relid = t.oid
		WHERE n.nspname = 'public'
		AND t.relkind IN ('r', 'p')
		AND pg_total_relation_size(t.oid) > $1
		ORDER BY pg_total_relation_size(t.oid) DESC
		LIMIT 20
	`

	rows, err := t.Read.Query(ctx, query, minSizeBytes)
	if err != nil {
		c.logger.Error("failed to find partition candidates", "error", err, "database_id", t.DatabaseID)
		return nil, fmt.Errorf("failed to find partition candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]models.PartitionCandidate, 0)
	for rows.Next() {
		var cand models.PartitionCandidate
		if err := rows.Scan(&cand.Table, &cand.SizeBytes, &cand.RowEstimate, &cand.Partitioned); err != nil {
			c.logger.Error("failed to scan partition candidate", "error", err)
			continue
		}
		candidates = append(candidates, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range candidates {
		columns, err := c.tableColumnStats(ctx, t, candidates[i].Table)
		if err != nil {
			return nil, err
		}
		candidates[i].Columns = columns
	}

	return candidates, nil
}

func (c *Collector) tableColumnStats(ctx context.Context, t *target.Target, table string) ([]models.ColumnStat, error) {
	query := `
		SELECT
			a.attname,
			pg_catalog.format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			COALESCE(s.n_distinct, 0),
			COALESCE(s.null_frac, 0)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_stats s ON s.schemaname = n.nspname
			AND s.tablename = c.relname
			AND s.attname = a.attname
		WHERE n.nspname = 'public'
		AND c.relname = $1
		AND a.attnum > 0
		AND NOT a.attisdropped
		ORDER BY a.attnum
	`

	rows, err := t.Read.Query(ctx, query, table)
	if err != nil {
		c.logger.Error("failed to load column stats", "error", err, "table", table)
		return nil, fmt.Errorf("failed to load column stats for %s: %w", table, err)
	}
	defer rows.Close()

	columns := make([]models.ColumnStat, 0)
	for rows.Next() {
		var col models.ColumnStat
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.NDistinct, &col.NullFrac); err != nil {
			c.logger.Error("failed to scan column stats", "error", err)
			continue
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// ListTables returns the names of every user table in the public schema,
// sorted for deterministic iteration.
func (c *Collector) ListTables(ctx context.Context, t *target.Target) ([]string, error) {
	query := `
		SELECT relname
		FROM pg_stat_user_tables
		WHERE schemaname = 'public'
		ORDER BY relname
	`

	rows, err := t.Read.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// SampleQueries returns up to ten frequently executed statements that mention
// the table, ordered by total execution time. Returns nil when
// pg_stat_statements is not installed, which callers treat as "no sample
// available" rather than "no matching queries".
func (c *Collector) SampleQueries(ctx context.Context, t *target.Target, table string) ([]string, error) {
	available, err := c.statementsAvailable(ctx, t)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, nil
	}

	query := `
		SELECT COALESCE(query, '')
		FROM pg_stat_statements
		WHERE query ILIKE $1
		AND calls > 10
		ORDER BY total_exec_time DESC
		LIMIT 10
	`

	rows, err := t.Read.Query(ctx, query, "%"+table+"%")
	if err != nil {
		c.logger.Error("failed to sample queries", "error", err, "table", table)
		return nil, fmt.Errorf("failed to sample queries for %s: %w", table, err)
	}
	defer rows.Close()

	queries := make([]string, 0)
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			c.logger.Error("failed to scan sampled query", "error", err)
			continue
		}
		queries = append(queries, q)
	}

	return queries, rows.Err()
}
