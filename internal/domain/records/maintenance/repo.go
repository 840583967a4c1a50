package maintenance

import (
	"context"
	"time"

	"setflow/internal/domain"
)

type Repository interface {
	domain.RecordRepository[*Maintenance]

	// Overdue lists live scheduled jobs dated before asOf's day.
	Overdue(ctx context.Context, asOf time.Time, departmentIDs []string) ([]*Maintenance, error)
	// InProgress lists live in-progress jobs on the asset.
	InProgress(ctx context.Context, assetID string) ([]*Maintenance, error)
}
