package dashboard_repo

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/domain/dashboard"
)

func TestLiveAssets(t *testing.T) {
	sql, args, err := liveAssets("a", dashboard.Scope{}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(a.deletion_mark = ?)", sql)
	assert.Equal(t, []any{false}, args)

	sql, args, err = liveAssets("a", dashboard.Scope{Departments: []string{"d1", "d2"}}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(a.deletion_mark = ? AND a.department_id IN (?,?))", sql)
	assert.Equal(t, []any{false, "d1", "d2"}, args)
}

func TestScopedRecords(t *testing.T) {
	q := squirrel.Select("COUNT(*)").From("rec_assignments g").
		Where(scopedRecords("g", dashboard.Scope{Departments: []string{"d1"}})).
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COUNT(*) FROM rec_assignments g WHERE (g.deletion_mark = $1 AND g.asset_id IN (SELECT id FROM cat_assets WHERE department_id IN ($2)))",
		sql)
	assert.Equal(t, []any{false, "d1"}, args)
}
