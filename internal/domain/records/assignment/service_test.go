package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/id"
	"setflow/internal/core/numerator"
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/domain/domaintest"
	"setflow/internal/domain/events"
	"setflow/internal/domain/records/recordstest"
)

type memRepo struct {
	*domaintest.RecordRepo[*Assignment]
}

func (r memRepo) ActiveFor(_ context.Context, assetID string) (*Assignment, error) {
	for _, a := range r.All() {
		if !a.DeletionMark && a.AssetID == assetID && a.Status == StatusActive {
			return a, nil
		}
	}
	return nil, apperror.NewNotFound("assignment", assetID)
}

type fixture struct {
	svc    *Service
	assets *recordstest.Assets
	audit  *domaintest.Recorder
	events *events.Collector
}

func newFixture() *fixture {
	assets := recordstest.NewAssets()
	rec := &domaintest.Recorder{}
	col := &events.Collector{}
	repo := memRepo{domaintest.NewRecordRepo(func() *Assignment { return &Assignment{} })}
	return &fixture{
		svc:    NewService(repo, assets, numerator.NewCounter(), rec, col),
		assets: assets,
		audit:  rec,
		events: col,
	}
}

func toUser(a *asset.Asset, userID string) *Assignment {
	x := New(a.ID.String(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	x.UserID = &userID
	return x
}

func TestAssignment_Validate(t *testing.T) {
	ctx := context.Background()
	assetID := id.New().String()

	a := New(assetID, time.Now())
	assert.True(t, apperror.IsValidation(a.Validate(ctx)), "holder required")

	bad := "nope"
	a.UserID = &bad
	assert.True(t, apperror.IsValidation(a.Validate(ctx)))

	dept := id.New().String()
	a.UserID = nil
	a.DepartmentID = &dept
	require.NoError(t, a.Validate(ctx))

	early := a.Date.AddDate(0, 0, -1)
	a.ExpectedReturn = &early
	assert.True(t, apperror.IsValidation(a.Validate(ctx)))
}

func TestService_AssignMarksAssetAssigned(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	dept := id.New().String()
	laptop := f.assets.Add(t, "Laptop", "")
	user := id.New().String()

	a := toUser(laptop, user)
	a.DepartmentID = &dept
	require.NoError(t, f.svc.Create(ctx, a))

	assert.Equal(t, "ASG-2026-00001", a.Number)
	assert.Equal(t, StatusActive, a.Status)
	stored := f.assets.Status(t, laptop.ID)
	assert.Equal(t, asset.StatusAssigned, stored.Status)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, user, *stored.AssignedTo)
	require.NotNil(t, stored.DepartmentID)
	assert.Equal(t, dept, *stored.DepartmentID)
	assert.Equal(t, []string{events.AssetAssigned}, f.events.Types())

	active, err := f.svc.HasActive(ctx, laptop.ID.String())
	require.NoError(t, err)
	assert.True(t, active)
}

func TestService_AssignRequiresAvailableAsset(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	laptop := f.assets.Add(t, "Laptop", "")

	require.NoError(t, f.svc.Create(ctx, toUser(laptop, id.New().String())))

	err := f.svc.Create(ctx, toUser(laptop, id.New().String()))
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAssetUnavailable, ae.Code)

	retired := f.assets.Add(t, "Retired", "")
	_, err = f.assets.Retire(ctx, retired.ID)
	require.NoError(t, err)
	ae, ok = apperror.AsAppError(f.svc.Create(ctx, toUser(retired, id.New().String())))
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAssetUnavailable, ae.Code)
}

func TestService_ReturnFreesAsset(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	laptop := f.assets.Add(t, "Laptop", "")
	a := toUser(laptop, id.New().String())
	require.NoError(t, f.svc.Create(ctx, a))

	when := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	returned, err := f.svc.Return(ctx, a.ID, ReturnInput{ReturnedAt: &when, Notes: "scratched lid"})
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.True(t, returned.ReturnedAt.Equal(when))
	assert.Equal(t, "scratched lid", returned.Notes)

	stored := f.assets.Status(t, laptop.ID)
	assert.Equal(t, asset.StatusAvailable, stored.Status)
	assert.Nil(t, stored.AssignedTo)
	assert.Contains(t, f.events.Types(), events.AssetReturned)

	_, err = f.svc.Return(ctx, a.ID, ReturnInput{})
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidTransition, ae.Code)

	require.NoError(t, f.svc.Create(ctx, toUser(laptop, id.New().String())), "asset can be handed out again")
}

func TestService_ReturnBeforeAssignmentDate(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	laptop := f.assets.Add(t, "Laptop", "")
	a := toUser(laptop, id.New().String())
	require.NoError(t, f.svc.Create(ctx, a))

	early := a.Date.AddDate(0, 0, -1)
	_, err := f.svc.Return(ctx, a.ID, ReturnInput{ReturnedAt: &early})
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, asset.StatusAssigned, f.assets.Status(t, laptop.ID).Status)
}

func TestService_ReturnDuringMaintenanceKeepsMaintenance(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	laptop := f.assets.Add(t, "Laptop", "")
	a := toUser(laptop, id.New().String())
	require.NoError(t, f.svc.Create(ctx, a))

	held := f.assets.Status(t, laptop.ID)
	_, err := f.assets.ChangeStatus(ctx, laptop.ID, asset.StatusMaintenance, held.AssignedTo, held.DepartmentID)
	require.NoError(t, err)

	_, err = f.svc.Return(ctx, a.ID, ReturnInput{})
	require.NoError(t, err)
	stored := f.assets.Status(t, laptop.ID)
	assert.Equal(t, asset.StatusMaintenance, stored.Status)
	assert.Nil(t, stored.AssignedTo)
}

func TestService_UpdateRefusesHolderChange(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	laptop := f.assets.Add(t, "Laptop", "")
	a := toUser(laptop, id.New().String())
	require.NoError(t, f.svc.Create(ctx, a))

	stored, err := f.svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	due := stored.Date.AddDate(0, 1, 0)
	stored.ExpectedReturn = &due
	require.NoError(t, f.svc.Update(ctx, stored))

	other := id.New().String()
	stored.UserID = &other
	ae, ok := apperror.AsAppError(f.svc.Update(ctx, stored))
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, ae.Code)
}

func TestService_DeleteNeedsReturn(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	laptop := f.assets.Add(t, "Laptop", "")
	a := toUser(laptop, id.New().String())
	require.NoError(t, f.svc.Create(ctx, a))

	assert.Error(t, f.svc.Delete(ctx, a.ID))
	_, err := f.svc.Return(ctx, a.ID, ReturnInput{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, a.ID))
}

func TestService_DepartmentScope(t *testing.T) {
	f := newFixture()
	mine, theirs := id.New().String(), id.New().String()
	laptop := f.assets.Add(t, "Laptop", mine)

	user := domaintest.Context(&appctx.UserContext{UserID: id.New().String(), DepartmentIDs: []string{mine}})
	a := toUser(laptop, id.New().String())
	a.DepartmentID = &theirs
	ae, ok := apperror.AsAppError(f.svc.Create(user, a))
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, ae.Code)

	a = toUser(laptop, id.New().String())
	require.NoError(t, f.svc.Create(user, a))

	outsider := domaintest.Context(&appctx.UserContext{UserID: id.New().String(), DepartmentIDs: []string{theirs}})
	_, err := f.svc.GetByID(outsider, a.ID)
	assert.True(t, apperror.IsNotFound(err))
}
