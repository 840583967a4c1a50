package department

import (
	"context"

	"setflow/internal/core/id"
	"setflow/internal/domain"
)

type Repository interface {
	domain.CatalogRepository[*Department]

	// CountAssets counts live assets held by the department.
	CountAssets(ctx context.Context, departmentID id.ID) (int64, error)
}
