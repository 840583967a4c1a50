package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"setflow/internal/core/id"
	"setflow/internal/domain/catalogs/category"
	"setflow/internal/infrastructure/storage/postgres"
)

const categoryTable = "cat_categories"

// CategoryRepo implements category.Repository.
type CategoryRepo struct {
	*BaseCatalogRepo[*category.Category]
}

func NewCategoryRepo() *CategoryRepo {
	return &CategoryRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*category.Category](
			categoryTable,
			"category",
			postgres.ExtractDBColumns[category.Category](),
			func() *category.Category { return &category.Category{} },
		).WithSearch("name", "code", "description"),
	}
}

func (r *CategoryRepo) Groups(ctx context.Context) ([]*category.Category, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"is_folder": true, "deletion_mark": false}).
		OrderBy("name")
	return r.FindMany(ctx, q)
}

func (r *CategoryRepo) CountAssets(ctx context.Context, categoryID id.ID) (int64, error) {
	q := r.Builder().
		Select("id").
		From(assetTable).
		Where(squirrel.Eq{"category_id": categoryID, "deletion_mark": false})
	return r.Count(ctx, q)
}

var _ category.Repository = (*CategoryRepo)(nil)
