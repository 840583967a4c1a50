// Package recordstest wires a real asset service over in-memory storage for
// record service tests.
package recordstest

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"setflow/internal/core/id"
	"setflow/internal/core/numerator"
	"setflow/internal/domain"
	"setflow/internal/domain/assetform"
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/domaintest"
	"setflow/internal/domain/spectemplate"
)

type categories struct{}

func (categories) Template(context.Context, string) ([]spectemplate.Field, error) {
	return []spectemplate.Field{}, nil
}

func (categories) Depreciation(context.Context, string) (*depreciation.Settings, error) {
	return nil, nil
}

func (categories) Groups(context.Context) ([]assetform.Group, error) { return nil, nil }

type assetRepo struct {
	*domaintest.CatalogRepo[*asset.Asset]
}

func (r assetRepo) UpdateStatus(_ context.Context, assetID id.ID, status asset.Status, assignedTo, departmentID *string) error {
	return r.Mutate(assetID, func(a *asset.Asset) {
		a.Status, a.AssignedTo, a.DepartmentID = status, assignedTo, departmentID
	})
}

// Assets is an asset service plus direct access to its store.
type Assets struct {
	*asset.Service
	Store *domaintest.CatalogRepo[*asset.Asset]
}

func NewAssets() *Assets {
	store := domaintest.NewCatalogRepo(func() *asset.Asset { return &asset.Asset{} })
	store.Match = func(a *asset.Asset, f domain.ListFilter) bool {
		return f.DepartmentIDs == nil || slices.Contains(f.DepartmentIDs, a.DepartmentKey())
	}
	return &Assets{
		Service: asset.NewService(assetRepo{store}, categories{}, numerator.NewCounter(), nil, nil),
		Store:   store,
	}
}

// Add creates an available asset in departmentID ("" for none).
func (a *Assets) Add(t *testing.T, name, departmentID string) *asset.Asset {
	t.Helper()
	x := asset.NewAsset(name, id.New().String())
	if departmentID != "" {
		x.DepartmentID = &departmentID
	}
	require.NoError(t, a.Create(domaintest.Context(nil), x))
	return x
}

// Status reads the stored status of assetID.
func (a *Assets) Status(t *testing.T, assetID id.ID) *asset.Asset {
	t.Helper()
	x, err := a.Store.GetByID(context.Background(), assetID)
	require.NoError(t, err)
	return x
}
