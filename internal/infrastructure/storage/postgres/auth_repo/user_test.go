package auth_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/domain/auth"
)

func TestListQuery(t *testing.T) {
	active := true
	sql, args, err := listQuery(psql.Select("COUNT(*)").From("users u"), auth.UserFilter{
		Search:       "ann",
		IsActive:     &active,
		DepartmentID: "d1",
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT COUNT(*) FROM users u WHERE u.deletion_mark = $1"+
			" AND (u.email ILIKE $2 OR u.first_name ILIKE $3 OR u.last_name ILIKE $4)"+
			" AND u.is_active = $5"+
			" AND EXISTS (SELECT 1 FROM user_departments ud WHERE ud.user_id = u.id AND ud.department_id = $6)",
		sql)
	assert.Equal(t, []any{false, "%ann%", "%ann%", "%ann%", true, "d1"}, args)
}

func TestListQuery_NoFilter(t *testing.T) {
	sql, args, err := listQuery(psql.Select("u.id").From("users u"), auth.UserFilter{}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT u.id FROM users u WHERE u.deletion_mark = $1", sql)
	assert.Equal(t, []any{false}, args)
}
