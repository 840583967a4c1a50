// Package records holds what maintenance jobs and assignments share: the
// asset operations they drive.
package records

import (
	"context"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain/catalogs/asset"
)

// Assets is the part of asset.Service that records use.
type Assets interface {
	GetByID(ctx context.Context, assetID id.ID) (*asset.Asset, error)
	ChangeStatus(ctx context.Context, assetID id.ID, to asset.Status, assignedTo, departmentID *string) (*asset.Asset, error)
}

// AssetID parses a record's asset reference.
func AssetID(s string) (id.ID, error) {
	v, err := id.Parse(s)
	if err != nil {
		return v, apperror.NewValidation("invalid asset id").WithDetail("field", "assetId")
	}
	return v, nil
}
