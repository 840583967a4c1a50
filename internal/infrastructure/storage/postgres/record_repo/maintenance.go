package record_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"setflow/internal/domain/records/maintenance"
	"setflow/internal/infrastructure/storage/postgres"
)

const maintenanceTable = "rec_maintenance"

// MaintenanceRepo implements maintenance.Repository.
type MaintenanceRepo struct {
	*BaseRecordRepo[*maintenance.Maintenance]
}

func NewMaintenanceRepo() *MaintenanceRepo {
	base := NewBaseRecordRepo(
		maintenanceTable,
		"maintenance",
		postgres.ExtractDBColumns[maintenance.Maintenance](),
		func() *maintenance.Maintenance { return &maintenance.Maintenance{} },
	)
	base.WithSearch("number", "description", "vendor", "notes")
	return &MaintenanceRepo{BaseRecordRepo: base}
}

func (r *MaintenanceRepo) Overdue(ctx context.Context, asOf time.Time, departmentIDs []string) ([]*maintenance.Maintenance, error) {
	y, m, d := asOf.Date()
	q := r.Select().
		Where(squirrel.Eq{"status": maintenance.StatusScheduled, "deletion_mark": false}).
		Where(squirrel.Lt{"date": time.Date(y, m, d, 0, 0, 0, 0, asOf.Location())}).
		OrderBy("date", "number")
	if departmentIDs != nil {
		q = q.Where(assetDepartments(departmentIDs))
	}
	return r.FindMany(ctx, q)
}

func (r *MaintenanceRepo) InProgress(ctx context.Context, assetID string) ([]*maintenance.Maintenance, error) {
	q := r.Select().
		Where(squirrel.Eq{
			"asset_id":      assetID,
			"status":        maintenance.StatusInProgress,
			"deletion_mark": false,
		}).
		Suffix("FOR UPDATE")
	return r.FindMany(ctx, q)
}

var _ maintenance.Repository = (*MaintenanceRepo)(nil)
