package record_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"setflow/internal/domain/records/assignment"
	"setflow/internal/infrastructure/storage/postgres"
)

const assignmentTable = "rec_assignments"

// AssignmentRepo implements assignment.Repository.
type AssignmentRepo struct {
	*BaseRecordRepo[*assignment.Assignment]
}

func NewAssignmentRepo() *AssignmentRepo {
	return &AssignmentRepo{
		BaseRecordRepo: NewBaseRecordRepo(
			assignmentTable,
			"assignment",
			postgres.ExtractDBColumns[assignment.Assignment](),
			func() *assignment.Assignment { return &assignment.Assignment{} },
		),
	}
}

// ActiveFor relies on the partial unique index over active rows.
func (r *AssignmentRepo) ActiveFor(ctx context.Context, assetID string) (*assignment.Assignment, error) {
	q := r.Select().
		Where(squirrel.Eq{
			"asset_id":      assetID,
			"status":        assignment.StatusActive,
			"deletion_mark": false,
		}).
		Limit(1)
	return r.FindOne(ctx, q, assetID)
}

var _ assignment.Repository = (*AssignmentRepo)(nil)
