package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsteward/pgsteward/internal/models"
)

// TestSchemaReviewer_Review tests each finding rule and the severity ordering
// of the combined report.
func TestSchemaReviewer_Review(t *testing.T) {
	r := NewSchemaReviewer(testLogger())

	t.Run("duplicate index pair is reported once", func(t *testing.T) {
		findings := r.Review(map[string]*models.TableSchema{
			"orders": {
				Table:      "orders",
				HasPrimary: true,
				Indexes: []models.IndexDef{
					{Name: "idx_a", Columns: []string{"customer_id", "status"}},
					{Name: "idx_b", Columns: []string{"customer_id", "status"}},
					{Name: "idx_c", Columns: []string{"status", "customer_id"}},
				},
			},
		})

		require.Len(t, findings, 1)
		f := findings[0]
		assert.Equal(t, models.FindingDuplicateIndex, f.Type)
		assert.Equal(t, models.SeverityLow, f.Severity)
		assert.Equal(t, "orders", f.Table)
		assert.Equal(t, []string{"idx_a", "idx_b"}, f.Details["indexes"])
	})

	t.Run("missing primary key is high severity", func(t *testing.T) {
		findings := r.Review(map[string]*models.TableSchema{
			"audit_log": {Table: "audit_log", HasPrimary: false},
		})

		require.Len(t, findings, 1)
		assert.Equal(t, models.FindingMissingPrimaryKey, findings[0].Type)
		assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	})

	t.Run("unindexed foreign key is medium severity", func(t *testing.T) {
		findings := r.Review(map[string]*models.TableSchema{
			"order_items": {
				Table:      "order_items",
				HasPrimary: true,
				ForeignKeys: []models.ForeignKey{
					{Name: "fk_order", Table: "order_items", Columns: []string{"order_id"}, RefTable: "orders"},
				},
			},
		})

		require.Len(t, findings, 1)
		assert.Equal(t, models.FindingUnindexedForeignKey, findings[0].Type)
		assert.Equal(t, models.SeverityMedium, findings[0].Severity)
		assert.Contains(t, findings[0].Description, "fk_order")
	})

	t.Run("covered foreign key is fine", func(t *testing.T) {
		findings := r.Review(map[string]*models.TableSchema{
			"order_items": {
				Table:      "order_items",
				HasPrimary: true,
				Indexes: []models.IndexDef{
					{Name: "idx_items_order", Columns: []string{"order_id", "created_at"}},
				},
				ForeignKeys: []models.ForeignKey{
					{Name: "fk_order", Table: "order_items", Columns: []string{"order_id"}, RefTable: "orders"},
				},
			},
		})
		assert.Empty(t, findings)
	})

	t.Run("findings sort by severity across tables", func(t *testing.T) {
		findings := r.Review(map[string]*models.TableSchema{
			"a_dup": {
				Table:      "a_dup",
				HasPrimary: true,
				Indexes: []models.IndexDef{
					{Name: "idx_x", Columns: []string{"v"}},
					{Name: "idx_y", Columns: []string{"v"}},
				},
			},
			"b_no_pk": {Table: "b_no_pk"},
			"c_fk": {
				Table:      "c_fk",
				HasPrimary: true,
				ForeignKeys: []models.ForeignKey{
					{Name: "fk_ref", Columns: []string{"ref_id"}, RefTable: "refs"},
				},
			},
		})

		require.Len(t, findings, 3)
		assert.Equal(t, models.SeverityHigh, findings[0].Severity)
		assert.Equal(t, models.SeverityMedium, findings[1].Severity)
		assert.Equal(t, models.SeverityLow, findings[2].Severity)
	})

	t.Run("healthy schema yields no findings", func(t *testing.T) {
		assert.Empty(t, r.Review(map[string]*models.TableSchema{
			"orders": {
				Table:      "orders",
				HasPrimary: true,
				Indexes: []models.IndexDef{
					{Name: "orders_pkey", Columns: []string{"id"}, Primary: true},
				},
			},
		}))
	})
}
