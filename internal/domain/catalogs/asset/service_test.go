package asset

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/id"
	"setflow/internal/core/numerator"
	"setflow/internal/core/types"
	"setflow/internal/domain"
	"setflow/internal/domain/assetform"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/domaintest"
	"setflow/internal/domain/events"
	"setflow/internal/domain/spectemplate"
)

type fakeCategories struct {
	templates map[string][]spectemplate.Field
	settings  map[string]*depreciation.Settings
}

func (f *fakeCategories) Template(_ context.Context, categoryID string) ([]spectemplate.Field, error) {
	t, ok := f.templates[categoryID]
	if !ok {
		return nil, apperror.NewNotFound("category", categoryID)
	}
	return t, nil
}

func (f *fakeCategories) Depreciation(_ context.Context, categoryID string) (*depreciation.Settings, error) {
	return f.settings[categoryID], nil
}

func (f *fakeCategories) Groups(context.Context) ([]assetform.Group, error) { return nil, nil }

type memRepo struct {
	*domaintest.CatalogRepo[*Asset]
}

func (r memRepo) UpdateStatus(_ context.Context, assetID id.ID, status Status, assignedTo, departmentID *string) error {
	return r.Mutate(assetID, func(a *Asset) {
		a.Status, a.AssignedTo, a.DepartmentID = status, assignedTo, departmentID
	})
}

type fixture struct {
	svc      *Service
	repo     *domaintest.CatalogRepo[*Asset]
	audit    *domaintest.Recorder
	events   *events.Collector
	laptopID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	laptopID := id.New().String()
	cats := &fakeCategories{
		templates: map[string][]spectemplate.Field{
			laptopID: {
				{ID: "cpu", Label: "CPU", Type: spectemplate.TypeText, Required: true},
				{ID: "ram", Label: "RAM (GB)", Type: spectemplate.TypeNumber, Rule: "value >= 4"},
			},
		},
		settings: map[string]*depreciation.Settings{
			laptopID: {Method: depreciation.StraightLine, Years: 5, ResidualValueType: depreciation.ResidualFixed},
		},
	}
	repo := domaintest.NewCatalogRepo(func() *Asset { return &Asset{} })
	repo.Match = func(a *Asset, f domain.ListFilter) bool {
		return f.DepartmentIDs == nil || slices.Contains(f.DepartmentIDs, a.DepartmentKey())
	}
	rec := &domaintest.Recorder{}
	col := &events.Collector{}
	return &fixture{
		svc:      NewService(memRepo{repo}, cats, numerator.NewCounter(), rec, col),
		repo:     repo,
		audit:    rec,
		events:   col,
		laptopID: laptopID,
	}
}

func (f *fixture) laptop(name string) *Asset {
	a := NewAsset(name, f.laptopID)
	a.Specifications = map[string]any{"cpu": "i7", "ram": "16"}
	return a
}

func TestService_CreateGeneratesCodeAndTrails(t *testing.T) {
	f := newFixture(t)
	ctx := domaintest.Context(nil)

	a := f.laptop("ThinkPad T14")
	require.NoError(t, f.svc.Create(ctx, a))

	assert.Equal(t, "AST-00001", a.Code)
	assert.Equal(t, StatusAvailable, a.Status)
	assert.NotEmpty(t, a.CreatedBy)
	assert.Equal(t, []audit.Action{audit.ActionCreate}, f.audit.Actions())
	assert.Equal(t, []string{"asset.created"}, f.events.Types())

	b := f.laptop("ThinkPad X1")
	require.NoError(t, f.svc.Create(ctx, b))
	assert.Equal(t, "AST-00002", b.Code)
}

func TestService_CreateRejectsFailedSpecifications(t *testing.T) {
	f := newFixture(t)
	ctx := domaintest.Context(nil)

	a := NewAsset("Bad laptop", f.laptopID)
	a.Specifications = map[string]any{"ram": 2}

	err := f.svc.Create(ctx, a)
	require.Error(t, err)
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, ae.Code)
	assert.ElementsMatch(t, []string{"cpu", "ram"}, ae.Details["fields"])
	assert.Empty(t, f.repo.All())
	assert.Empty(t, f.events.Events)
}

func TestService_CreateValidatesCoreFields(t *testing.T) {
	f := newFixture(t)
	ctx := domaintest.Context(nil)

	err := f.svc.Create(ctx, NewAsset("", f.laptopID))
	assert.True(t, apperror.IsValidation(err))

	err = f.svc.Create(ctx, NewAsset("No category", ""))
	assert.True(t, apperror.IsValidation(err))

	a := f.laptop("Negative")
	a.PurchasePrice = types.MustMoney("-1")
	assert.True(t, apperror.IsValidation(f.svc.Create(ctx, a)))

	unknown := NewAsset("Orphan", id.New().String())
	err = f.svc.Create(ctx, unknown)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestService_UpdateKeepsStatusAndOldSpecs(t *testing.T) {
	f := newFixture(t)
	ctx := domaintest.Context(nil)

	a := f.laptop("Dell XPS")
	a.Specifications["legacy_field"] = "kept"
	require.NoError(t, f.svc.Create(ctx, a))

	stored, err := f.svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	stored.Notes = "new battery"
	require.NoError(t, f.svc.Update(ctx, stored))
	assert.Equal(t, 2, stored.Version)

	again, err := f.svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new battery", again.Notes)
	assert.Equal(t, "kept", again.Specifications["legacy_field"])

	again.Status = StatusRetired
	err = f.svc.Update(ctx, again)
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidTransition, ae.Code)
}

func TestService_UpdateDetectsStaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := domaintest.Context(nil)

	a := f.laptop("Mac mini")
	require.NoError(t, f.svc.Create(ctx, a))

	first, _ := f.svc.GetByID(ctx, a.ID)
	second, _ := f.svc.GetByID(ctx, a.ID)
	require.NoError(t, f.svc.Update(ctx, first))
	assert.True(t, apperror.IsConcurrentModification(f.svc.Update(ctx, second)))
}

func TestService_RetireAndDispose(t *testing.T) {
	f := newFixture(t)
	ctx := domaintest.Context(nil)

	a := f.laptop("Old laptop")
	require.NoError(t, f.svc.Create(ctx, a))

	retired, err := f.svc.Retire(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRetired, retired.Status)

	_, err = f.svc.Retire(ctx, a.ID)
	require.Error(t, err)

	disposed, err := f.svc.Dispose(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDisposed, disposed.Status)
	assert.Contains(t, f.events.Types(), events.AssetStatusChanged)
}

func TestService_RetireRefusesAssignedAsset(t *testing.T) {
	f := newFixture(t)
	ctx := domaintest.Context(nil)

	a := f.laptop("In use")
	require.NoError(t, f.svc.Create(ctx, a))
	holder := id.New().String()
	_, err := f.svc.ChangeStatus(ctx, a.ID, StatusAssigned, &holder, nil)
	require.NoError(t, err)

	_, err = f.svc.Retire(ctx, a.ID)
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAssetUnavailable, ae.Code)

	assert.Error(t, f.svc.Delete(ctx, a.ID))
}

func TestService_DepartmentScope(t *testing.T) {
	f := newFixture(t)
	admin := domaintest.Context(nil)

	d1, d2 := id.New().String(), id.New().String()
	mine := f.laptop("Mine")
	mine.DepartmentID = &d1
	theirs := f.laptop("Theirs")
	theirs.DepartmentID = &d2
	require.NoError(t, f.svc.Create(admin, mine))
	require.NoError(t, f.svc.Create(admin, theirs))

	user := domaintest.Context(&appctx.UserContext{UserID: id.New().String(), DepartmentIDs: []string{d1}})

	res, err := f.svc.List(user, domain.DefaultListFilter())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Mine", res.Items[0].Name)

	_, err = f.svc.GetByID(user, theirs.ID)
	assert.True(t, apperror.IsNotFound(err))

	all, err := f.svc.List(admin, domain.DefaultListFilter())
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	stray := f.laptop("Stray")
	stray.DepartmentID = &d2
	err = f.svc.Create(user, stray)
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, ae.Code)
}

func TestService_Depreciation(t *testing.T) {
	f := newFixture(t)
	ctx := domaintest.Context(nil)

	a := f.laptop("Depreciating")
	purchased := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.PurchaseDate = &purchased
	a.PurchasePrice = types.MustMoney("1000")
	require.NoError(t, f.svc.Create(ctx, a))

	sum, err := f.svc.Depreciation(ctx, a.ID, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "800", sum.BookValue.String())
	assert.Len(t, sum.Schedule, 5)

	undated := f.laptop("No date")
	require.NoError(t, f.svc.Create(ctx, undated))
	_, err = f.svc.Depreciation(ctx, undated.ID, time.Time{})
	assert.True(t, apperror.IsValidation(err))
}

func TestFromPayload(t *testing.T) {
	p := assetform.Payload{
		Fields: map[string]any{
			"name":          "Printer",
			"categoryId":    "c1",
			"purchaseDate":  "2024-03-15",
			"purchasePrice": "199.99",
			"departmentId":  "",
			"serialNumber":  "SN-1",
		},
		Specifications:       map[string]any{"ppm": "30"},
		CustomSpecifications: map[string]any{"color": "blue"},
		ImageURL:             "/uploads/x.png",
	}

	a, err := FromPayload(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "Printer", a.Name)
	assert.Equal(t, "c1", a.CategoryID)
	require.NotNil(t, a.PurchaseDate)
	assert.True(t, a.PurchaseDate.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "199.99", a.PurchasePrice.String())
	assert.Nil(t, a.DepartmentID)
	require.NotNil(t, a.SerialNumber)
	assert.Equal(t, "SN-1", *a.SerialNumber)
	assert.Equal(t, "30", a.Specifications["ppm"])
	assert.Equal(t, "blue", a.CustomSpecifications["color"])
	assert.Equal(t, "/uploads/x.png", a.ImageURL)
	assert.Equal(t, StatusAvailable, a.Status)

	p.Fields["purchaseDate"] = "2024-13-45"
	_, err = FromPayload(p, nil)
	assert.True(t, apperror.IsValidation(err))
}
