package record_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/domain"
)

func TestRecordList_DepartmentScopeUsesAssets(t *testing.T) {
	repo := NewMaintenanceRepo()

	q, err := repo.ApplyListFilter(repo.Select(), domain.ListFilter{DepartmentIDs: []string{"d1"}})
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM rec_maintenance WHERE deletion_mark = $1 AND asset_id IN (SELECT id FROM cat_assets WHERE department_id IN ($2))")
	assert.Equal(t, []any{false, "d1"}, args)
}

func TestRecordList_SearchesNumberAndDescription(t *testing.T) {
	repo := NewMaintenanceRepo()

	q, err := repo.ApplyListFilter(repo.Select(), domain.ListFilter{Search: "MNT-2026"})
	require.NoError(t, err)
	sql, _, err := q.ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "(number ILIKE $2 OR description ILIKE $3 OR vendor ILIKE $4 OR notes ILIKE $5)")
}

func TestAssignmentColumns(t *testing.T) {
	cols := NewAssignmentRepo().Columns()
	for _, c := range []string{"id", "number", "date", "asset_id", "user_id", "department_id", "expected_return", "returned_at", "status"} {
		assert.Contains(t, cols, c)
	}
}
