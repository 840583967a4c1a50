package category

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/domaintest"
	"setflow/internal/domain/events"
	"setflow/internal/domain/spectemplate"
)

type memRepo struct {
	*domaintest.CatalogRepo[*Category]
	assets map[id.ID]int64
}

func (r *memRepo) Groups(context.Context) ([]*Category, error) {
	var out []*Category
	for _, c := range r.All() {
		if c.IsFolder {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) CountAssets(_ context.Context, categoryID id.ID) (int64, error) {
	return r.assets[categoryID], nil
}

func newService() (*Service, *memRepo, *events.Collector) {
	repo := &memRepo{
		CatalogRepo: domaintest.NewCatalogRepo(func() *Category { return &Category{} }),
		assets:      map[id.ID]int64{},
	}
	col := &events.Collector{}
	return NewService(repo, spectemplate.DefaultRegistry(), &domaintest.Recorder{}, col), repo, col
}

func TestService_CreateSeedsTemplateFromRegistry(t *testing.T) {
	svc, _, _ := newService()
	ctx := domaintest.Context(nil)

	c := NewCategory(" laptop ")
	require.NoError(t, svc.Create(ctx, c))

	assert.Equal(t, "LAPTOP", c.Code)
	require.Len(t, c.SpecFields, 7)
	assert.Equal(t, "cpu", c.SpecFields[0].ID)
	assert.Equal(t, "", c.SpecFields[0].Value)

	folder := NewCategory("Computers")
	folder.IsFolder = true
	require.NoError(t, svc.Create(ctx, folder))
	assert.Empty(t, folder.SpecFields)

	unknown := NewCategory("Coffee Machines")
	require.NoError(t, svc.Create(ctx, unknown))
	assert.Equal(t, "COFFEE-MACHINES", unknown.Code)
	assert.Empty(t, unknown.SpecFields)
}

func TestService_CreateValidatesDepreciation(t *testing.T) {
	svc, _, _ := newService()
	ctx := domaintest.Context(nil)

	c := NewCategory("Server")
	c.Depreciation.Settings = &depreciation.Settings{
		Method:            "sum-of-years",
		Years:             3,
		ResidualValueType: depreciation.ResidualFixed,
	}
	err := svc.Create(ctx, c)
	require.Error(t, err)
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "depreciation.method", ae.Details["field"])
}

func TestService_ApplyOpsSavesTemplate(t *testing.T) {
	svc, repo, col := newService()
	ctx := domaintest.Context(nil)

	c := NewCategory("Laptop")
	require.NoError(t, svc.Create(ctx, c))

	tpl, err := svc.ApplyOps(ctx, c.ID, []spectemplate.Op{
		{Op: "add"},
		{Op: "edit", Index: 7, Attr: spectemplate.AttrLabel, Value: "Battery Health"},
		{Op: "reorder", Index: 7, To: 0},
	})
	require.NoError(t, err)
	require.Len(t, tpl.Fields, 8)
	assert.Equal(t, "battery_health", tpl.Fields[0].ID)
	assert.Equal(t, c.ID.String(), tpl.CategoryID)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "battery_health", stored.SpecFields[0].ID)
	assert.Equal(t, 2, stored.Version)
	assert.Contains(t, col.Types(), events.TemplateSaved)
}

func TestService_ReplaceTemplateRejectsDuplicates(t *testing.T) {
	svc, repo, _ := newService()
	ctx := domaintest.Context(nil)

	c := NewCategory("Monitor")
	require.NoError(t, svc.Create(ctx, c))
	before, _ := repo.GetByID(ctx, c.ID)

	_, err := svc.ReplaceTemplate(ctx, c.ID, []spectemplate.Field{
		{ID: "size", Label: "Size", Type: spectemplate.TypeNumber},
		{ID: "size", Label: "Diagonal", Type: spectemplate.TypeNumber},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	after, _ := repo.GetByID(ctx, c.ID)
	assert.Equal(t, before.SpecFields, after.SpecFields)
	assert.Equal(t, before.Version, after.Version)
}

func TestService_ReplaceTemplateDerivesMissingIDs(t *testing.T) {
	svc, _, _ := newService()
	ctx := domaintest.Context(nil)

	c := NewCategory("Tablet")
	require.NoError(t, svc.Create(ctx, c))

	tpl, err := svc.ReplaceTemplate(ctx, c.ID, []spectemplate.Field{
		{ID: "screen", Label: "Screen", Type: spectemplate.TypeText},
		{Label: "Screen", Type: spectemplate.TypeText},
		{Label: "Has Cellular", Type: spectemplate.TypeCheckbox},
	})
	require.NoError(t, err)
	assert.Equal(t, "screen", tpl.Fields[0].ID)
	assert.Equal(t, "screen_2", tpl.Fields[1].ID)
	assert.Equal(t, "has_cellular", tpl.Fields[2].ID)
}

func TestService_DeleteRefusedWhileAssetsExist(t *testing.T) {
	svc, repo, _ := newService()
	ctx := domaintest.Context(nil)

	c := NewCategory("Printer")
	require.NoError(t, svc.Create(ctx, c))
	repo.assets[c.ID] = 3

	err := svc.Delete(ctx, c.ID)
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInUse, ae.Code)
	assert.False(t, repo.IsDeleted(c.ID))

	repo.assets[c.ID] = 0
	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.True(t, repo.IsDeleted(c.ID))
}

func TestSource(t *testing.T) {
	svc, _, _ := newService()
	ctx := domaintest.Context(nil)

	group := NewCategory("Hardware")
	group.IsFolder = true
	require.NoError(t, svc.Create(ctx, group))

	c := NewCategory("Desktop")
	c.Depreciation.Settings = &depreciation.Settings{
		Method: depreciation.StraightLine, Years: 4, ResidualValueType: depreciation.ResidualPercentage, ResidualValue: 10,
	}
	require.NoError(t, svc.Create(ctx, c))

	src := svc.Source()
	fields, err := src.Template(ctx, c.ID.String())
	require.NoError(t, err)
	assert.NotEmpty(t, fields)

	settings, err := src.Depreciation(ctx, c.ID.String())
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, 4, settings.Years)

	groups, err := src.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Hardware", groups[0].Name)

	_, err = src.Template(ctx, "not-a-uuid")
	assert.True(t, apperror.IsValidation(err))
	_, err = src.Template(ctx, id.New().String())
	assert.True(t, apperror.IsNotFound(err))
}
