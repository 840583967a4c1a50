package maintenance

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
	"setflow/internal/core/types"
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/domain/domaintest"
	"setflow/internal/domain/events"
	"setflow/internal/domain/records/recordstest"
)

type memRepo struct {
	*domaintest.RecordRepo[*Maintenance]
}

func (r memRepo) Overdue(_ context.Context, asOf time.Time, _ []string) ([]*Maintenance, error) {
	var out []*Maintenance
	for _, m := range r.All() {
		if !m.DeletionMark && m.Overdue(asOf) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memRepo) InProgress(_ context.Context, assetID string) ([]*Maintenance, error) {
	var out []*Maintenance
	for _, m := range r.All() {
		if !m.DeletionMark && m.AssetID == assetID && m.Status == StatusInProgress {
			out = append(out, m)
		}
	}
	return out, nil
}

type handedOut map[string]bool

func (h handedOut) HasActive(_ context.Context, assetID string) (bool, error) {
	return h[assetID], nil
}

type fixture struct {
	svc      *Service
	assets   *recordstest.Assets
	assigned handedOut
	events   *events.Collector
}

func newFixture() *fixture {
	assets := recordstest.NewAssets()
	assigned := handedOut{}
	col := &events.Collector{}
	repo := memRepo{domaintest.NewRecordRepo(func() *Maintenance { return &Maintenance{} })}
	return &fixture{
		svc:      NewService(repo, assets, assigned, numerator.NewCounter(), &domaintest.Recorder{}, col),
		assets:   assets,
		assigned: assigned,
		events:   col,
	}
}

func (f *fixture) schedule(t *testing.T, a *asset.Asset, date time.Time) *Maintenance {
	t.Helper()
	m := New(a.ID.String(), TypeRepair, date)
	m.Description = "replace fan"
	require.NoError(t, f.svc.Create(domaintest.Context(nil), m))
	return m
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusScheduled.CanMoveTo(StatusInProgress))
	assert.True(t, StatusScheduled.CanMoveTo(StatusCancelled))
	assert.True(t, StatusInProgress.CanMoveTo(StatusCompleted))
	assert.False(t, StatusScheduled.CanMoveTo(StatusCompleted))
	assert.False(t, StatusCompleted.CanMoveTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanMoveTo(StatusInProgress))
}

func TestService_CreateNumbersByYear(t *testing.T) {
	f := newFixture()
	a := f.assets.Add(t, "Printer", "")

	m := f.schedule(t, a, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "MNT-2026-00001", m.Number)
	assert.Equal(t, StatusScheduled, m.Status)
	assert.Equal(t, []string{events.MaintenanceCreated}, f.events.Types())

	next := f.schedule(t, a, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "MNT-2026-00002", next.Number)
}

func TestService_CreateValidates(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	a := f.assets.Add(t, "Scanner", "")

	m := New(a.ID.String(), "polish", time.Now())
	m.Description = "x"
	assert.True(t, apperror.IsValidation(f.svc.Create(ctx, m)))

	m = New(a.ID.String(), TypeCleaning, time.Now())
	assert.True(t, apperror.IsValidation(f.svc.Create(ctx, m)))

	m = New(a.ID.String(), TypeCleaning, time.Now())
	m.Description = "dust"
	m.Cost = types.MustMoney("-5")
	assert.True(t, apperror.IsValidation(f.svc.Create(ctx, m)))

	m = New(id.New().String(), TypeCleaning, time.Now())
	m.Description = "dust"
	assert.True(t, apperror.IsNotFound(f.svc.Create(ctx, m)))
}

func TestService_CreateRejectsRetiredAsset(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	a := f.assets.Add(t, "Old", "")
	_, err := f.assets.Retire(ctx, a.ID)
	require.NoError(t, err)

	m := New(a.ID.String(), TypeInspection, time.Now())
	m.Description = "check"
	ae, ok := apperror.AsAppError(f.svc.Create(ctx, m))
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAssetUnavailable, ae.Code)
}

func TestService_StartAndCompleteAvailableAsset(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	a := f.assets.Add(t, "Laptop", "")
	m := f.schedule(t, a, time.Now())

	started, err := f.svc.Start(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)
	assert.Equal(t, asset.StatusMaintenance, f.assets.Status(t, a.ID).Status)

	cost := types.MustMoney("120.50")
	done, err := f.svc.Complete(ctx, m.ID, CompleteInput{Cost: &cost, Notes: "fan replaced"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "120.5", done.Cost.String())
	assert.Equal(t, "fan replaced", done.Notes)
	assert.Equal(t, asset.StatusAvailable, f.assets.Status(t, a.ID).Status)

	_, err = f.svc.Cancel(ctx, m.ID)
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidTransition, ae.Code)
}

func TestService_CompleteReturnsAssignedAssetToHolder(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	a := f.assets.Add(t, "Phone", "")
	holder := id.New().String()
	_, err := f.assets.ChangeStatus(ctx, a.ID, asset.StatusAssigned, &holder, nil)
	require.NoError(t, err)
	f.assigned[a.ID.String()] = true

	m := f.schedule(t, a, time.Now())
	_, err = f.svc.Start(ctx, m.ID)
	require.NoError(t, err)
	inShop := f.assets.Status(t, a.ID)
	assert.Equal(t, asset.StatusMaintenance, inShop.Status)
	require.NotNil(t, inShop.AssignedTo)

	_, err = f.svc.Cancel(ctx, m.ID)
	require.NoError(t, err)
	back := f.assets.Status(t, a.ID)
	assert.Equal(t, asset.StatusAssigned, back.Status)
	require.NotNil(t, back.AssignedTo)
	assert.Equal(t, holder, *back.AssignedTo)
}

func TestService_CancelScheduledLeavesAsset(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	a := f.assets.Add(t, "Monitor", "")
	m := f.schedule(t, a, time.Now())

	cancelled, err := f.svc.Cancel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, asset.StatusAvailable, f.assets.Status(t, a.ID).Status)
}

func TestService_OverlappingJobsKeepAssetInMaintenance(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	a := f.assets.Add(t, "Server", "")
	first := f.schedule(t, a, time.Now())
	second := f.schedule(t, a, time.Now())

	_, err := f.svc.Start(ctx, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, second.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, first.ID, CompleteInput{})
	require.NoError(t, err)
	assert.Equal(t, asset.StatusMaintenance, f.assets.Status(t, a.ID).Status)

	_, err = f.svc.Complete(ctx, second.ID, CompleteInput{})
	require.NoError(t, err)
	assert.Equal(t, asset.StatusAvailable, f.assets.Status(t, a.ID).Status)
}

func TestService_UpdateAndDelete(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	a := f.assets.Add(t, "Router", "")
	m := f.schedule(t, a, time.Now())

	stored, err := f.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	stored.Vendor = "Acme Repairs"
	require.NoError(t, f.svc.Update(ctx, stored))

	stored.Status = StatusCompleted
	ae, ok := apperror.AsAppError(f.svc.Update(ctx, stored))
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidTransition, ae.Code)

	_, err = f.svc.Start(ctx, m.ID)
	require.NoError(t, err)
	assert.Error(t, f.svc.Delete(ctx, m.ID))

	_, err = f.svc.Complete(ctx, m.ID, CompleteInput{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, m.ID))

	_, err = f.svc.Start(ctx, m.ID)
	assert.Error(t, err)
}

func TestService_Overdue(t *testing.T) {
	f := newFixture()
	ctx := domaintest.Context(nil)
	a := f.assets.Add(t, "Projector", "")

	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	late := f.schedule(t, a, now.AddDate(0, 0, -3))
	f.schedule(t, a, now)
	f.schedule(t, a, now.AddDate(0, 0, 2))

	items, err := f.svc.Overdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, late.ID, items[0].ID)
}

func TestService_HidesJobsOutsideScope(t *testing.T) {
	f := newFixture()
	dept := id.New().String()
	a := f.assets.Add(t, "Secret", dept)
	m := f.schedule(t, a, time.Now())

	other := domaintest.Context(&appctx.UserContext{UserID: id.New().String(), DepartmentIDs: []string{id.New().String()}})
	_, err := f.svc.GetByID(other, m.ID)
	assert.True(t, apperror.IsNotFound(err))

	member := domaintest.Context(&appctx.UserContext{UserID: id.New().String(), DepartmentIDs: []string{dept}})
	got, err := f.svc.GetByID(member, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Number, got.Number)
}
