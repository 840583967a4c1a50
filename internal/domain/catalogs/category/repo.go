package category

import (
	"context"

	"setflow/internal/core/id"
	"setflow/internal/domain"
)

type Repository interface {
	domain.CatalogRepository[*Category]

	GetForUpdate(ctx context.Context, id id.ID) (*Category, error)

	// Groups lists live folder categories.
	Groups(ctx context.Context) ([]*Category, error)

	// CountAssets counts live assets of the category.
	CountAssets(ctx context.Context, categoryID id.ID) (int64, error)
}
