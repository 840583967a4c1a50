package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/apperror"
	"setflow/internal/domain"
	"setflow/internal/domain/filter"
)

type row struct{}

func newTestRepo() *BaseCatalogRepo[*row] {
	return NewBaseCatalogRepo[*row]("test_table", "test",
		[]string{"id", "name", "code", "col1", "department_id", "deletion_mark"},
		func() *row { return &row{} }).
		WithDepartmentColumn("department_id")
}

func TestApplyAdvancedFilters_Operators(t *testing.T) {
	repo := newTestRepo()
	base := repo.Builder().Select("id").From("test_table")

	tests := []struct {
		name     string
		item     filter.Item
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "gte",
			item:     filter.Item{Field: "col1", Operator: filter.GreaterOrEqual, Value: 10},
			wantSQL:  "SELECT id FROM test_table WHERE col1 >= $1",
			wantArgs: []any{10},
		},
		{
			name:     "lte",
			item:     filter.Item{Field: "col1", Operator: filter.LessOrEqual, Value: 5},
			wantSQL:  "SELECT id FROM test_table WHERE col1 <= $1",
			wantArgs: []any{5},
		},
		{
			name:     "in from csv",
			item:     filter.Item{Field: "code", Operator: filter.InList, Value: "a,b"},
			wantSQL:  "SELECT id FROM test_table WHERE code IN ($1,$2)",
			wantArgs: []any{"a", "b"},
		},
		{
			name:     "contains",
			item:     filter.Item{Field: "name", Operator: filter.Contains, Value: "dell"},
			wantSQL:  "SELECT id FROM test_table WHERE name ILIKE $1",
			wantArgs: []any{"%dell%"},
		},
		{
			name:    "null",
			item:    filter.Item{Field: "col1", Operator: filter.IsNull},
			wantSQL: "SELECT id FROM test_table WHERE col1 IS NULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := repo.applyAdvancedFilters(base, []filter.Item{tt.item})
			require.NoError(t, err)

			sql, args, err := q.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestApplyAdvancedFilters_RejectsUnknownColumn(t *testing.T) {
	repo := newTestRepo()
	_, err := repo.applyAdvancedFilters(repo.baseSelect(), []filter.Item{
		{Field: "password_hash", Operator: filter.Equal, Value: "x"},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestApplyListFilter_SearchAndDepartments(t *testing.T) {
	repo := newTestRepo()
	q, err := repo.ApplyListFilter(repo.Builder().Select("id").From("test_table"), domain.ListFilter{
		Search:        "lap",
		DepartmentIDs: []string{"d1"},
	})
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM test_table WHERE deletion_mark = $1 AND (name ILIKE $2 OR code ILIKE $3) AND department_id IN ($4)",
		sql)
	assert.Equal(t, []any{false, "%lap%", "%lap%", "d1"}, args)
}

func TestApplyListFilter_EmptyDepartmentsMatchNothing(t *testing.T) {
	repo := newTestRepo()
	q, err := repo.ApplyListFilter(repo.Builder().Select("id").From("test_table"), domain.ListFilter{
		IncludeDeleted: true,
		DepartmentIDs:  []string{},
	})
	require.NoError(t, err)

	sql, _, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM test_table WHERE (1=0)", sql)
}

func TestApplyListFilter_RootParent(t *testing.T) {
	repo := newTestRepo()
	root := ""
	q, err := repo.ApplyListFilter(repo.Builder().Select("id").From("test_table"), domain.ListFilter{
		IncludeDeleted: true,
		ParentID:       &root,
	})
	require.NoError(t, err)

	sql, _, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM test_table WHERE parent_id IS NULL", sql)
}

func TestParseOrderBy(t *testing.T) {
	repo := newTestRepo()

	got, err := repo.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "name ASC", got)

	got, err = repo.parseOrderBy("-code")
	require.NoError(t, err)
	assert.Equal(t, "code DESC", got)

	got, err = repo.parseOrderBy("+col1")
	require.NoError(t, err)
	assert.Equal(t, "col1 ASC", got)

	_, err = repo.parseOrderBy("name; DROP TABLE x")
	assert.True(t, apperror.IsValidation(err))
}

func TestUniqueField(t *testing.T) {
	assert.Equal(t, "serial_number", uniqueField("cat_assets_serial_number_key"))
	assert.Equal(t, "code", uniqueField("cat_categories_code_live_idx"))
	assert.Equal(t, "code", uniqueField("something_else"))
}
