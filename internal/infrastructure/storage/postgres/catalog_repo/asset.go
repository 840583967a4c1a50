package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/infrastructure/storage/postgres"
)

const assetTable = "cat_assets"

// AssetRepo implements asset.Repository.
type AssetRepo struct {
	*BaseCatalogRepo[*asset.Asset]
}

func NewAssetRepo() *AssetRepo {
	return &AssetRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*asset.Asset](
			assetTable,
			"asset",
			postgres.ExtractDBColumns[asset.Asset](),
			func() *asset.Asset { return &asset.Asset{} },
		).
			WithSearch("name", "code", "serial_number", "manufacturer", "model").
			WithDepartmentColumn("department_id"),
	}
}

func (r *AssetRepo) UpdateStatus(ctx context.Context, assetID id.ID, status asset.Status, assignedTo, departmentID *string) error {
	sql, args, err := r.Builder().
		Update(assetTable).
		Set("status", status).
		Set("assigned_to", assignedTo).
		Set("department_id", departmentID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": assetID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update status: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update asset status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("asset", assetID.String())
	}
	return nil
}

var _ asset.Repository = (*AssetRepo)(nil)
