package assignment

import (
	"context"

	"setflow/internal/domain"
)

type Repository interface {
	domain.RecordRepository[*Assignment]

	// ActiveFor returns the live active assignment of the asset or a
	// not-found error.
	ActiveFor(ctx context.Context, assetID string) (*Assignment, error)
}
