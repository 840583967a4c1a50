package asset

import (
	"context"

	"setflow/internal/core/id"
	"setflow/internal/domain"
)

type Repository interface {
	domain.CatalogRepository[*Asset]

	GetForUpdate(ctx context.Context, id id.ID) (*Asset, error)

	// UpdateStatus changes status, holder and department in one statement
	// and bumps the version.
	UpdateStatus(ctx context.Context, id id.ID, status Status, assignedTo, departmentID *string) error
}
