// Package record_repo provides PostgreSQL implementations for record
// repositories. Records share the catalog repository's storage code and add
// number lookup; they default to newest first.
package record_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"setflow/internal/infrastructure/storage/postgres/catalog_repo"
)

// assetTable is joined for department scoping.
const assetTable = "cat_assets"

// BaseRecordRepo provides common operations for record entities.
type BaseRecordRepo[T any] struct {
	*catalog_repo.BaseCatalogRepo[T]
}

func NewBaseRecordRepo[T any](tableName, entityName string, selectCols []string, newFn func() T) *BaseRecordRepo[T] {
	return &BaseRecordRepo[T]{
		BaseCatalogRepo: catalog_repo.NewBaseCatalogRepo(tableName, entityName, selectCols, newFn).
			WithSearch("number", "notes").
			WithDefaultOrder("date DESC").
			WithDepartmentScope(assetDepartments),
	}
}

// assetDepartments keeps records whose asset belongs to one of ids.
func assetDepartments(ids []string) squirrel.Sqlizer {
	sub := squirrel.Select("id").From(assetTable).Where(squirrel.Eq{"department_id": ids})
	return squirrel.Expr("asset_id IN (?)", sub)
}

// GetByNumber retrieves a record by its number.
func (r *BaseRecordRepo[T]) GetByNumber(ctx context.Context, number string) (T, error) {
	q := r.Select().
		Where(squirrel.Eq{"number": number}).
		Limit(1)
	return r.FindOne(ctx, q, number)
}
