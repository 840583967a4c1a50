package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"setflow/internal/core/id"
	"setflow/internal/domain/catalogs/department"
	"setflow/internal/infrastructure/storage/postgres"
)

const departmentTable = "cat_departments"

// DepartmentRepo implements department.Repository.
type DepartmentRepo struct {
	*BaseCatalogRepo[*department.Department]
}

func NewDepartmentRepo() *DepartmentRepo {
	return &DepartmentRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*department.Department](
			departmentTable,
			"department",
			postgres.ExtractDBColumns[department.Department](),
			func() *department.Department { return &department.Department{} },
		).WithSearch("name", "code", "location"),
	}
}

func (r *DepartmentRepo) CountAssets(ctx context.Context, departmentID id.ID) (int64, error) {
	q := r.Builder().
		Select("id").
		From(assetTable).
		Where(squirrel.Eq{"department_id": departmentID, "deletion_mark": false})
	return r.Count(ctx, q)
}

var _ department.Repository = (*DepartmentRepo)(nil)
