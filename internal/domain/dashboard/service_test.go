package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/types"
	"setflow/internal/domain/depreciation"
)

type fakeRepo struct {
	scopes   []Scope
	from, to time.Time
	limit    int
	assets   []Depreciable
}

func (f *fakeRepo) seen(s Scope) { f.scopes = append(f.scopes, s) }

func (f *fakeRepo) AssetsByStatus(_ context.Context, s Scope) ([]StatusCount, error) {
	f.seen(s)
	return []StatusCount{
		{Status: "available", Count: 3, Value: types.MustMoney("3000")},
		{Status: "assigned", Count: 2, Value: types.MustMoney("1500.50")},
	}, nil
}

func (f *fakeRepo) Depreciable(_ context.Context, s Scope) ([]Depreciable, error) {
	f.seen(s)
	return f.assets, nil
}

func (f *fakeRepo) OpenMaintenance(_ context.Context, s Scope) (int64, error) {
	f.seen(s)
	return 4, nil
}

func (f *fakeRepo) MaintenanceCost(_ context.Context, s Scope, from, to time.Time) ([]MonthCost, error) {
	f.seen(s)
	f.from, f.to = from, to
	return []MonthCost{{Cost: types.MustMoney("100")}, {Cost: types.MustMoney("25.75")}}, nil
}

func (f *fakeRepo) ActiveAssignments(_ context.Context, s Scope) (int64, error) {
	f.seen(s)
	return 2, nil
}

func (f *fakeRepo) AssetsByCategory(_ context.Context, s Scope) ([]GroupCount, error) {
	f.seen(s)
	return nil, nil
}

func (f *fakeRepo) AssetsByDepartment(_ context.Context, s Scope) ([]GroupCount, error) {
	f.seen(s)
	return nil, nil
}

func (f *fakeRepo) RecentActivity(_ context.Context, s Scope, limit int) ([]Activity, error) {
	f.seen(s)
	f.limit = limit
	return nil, nil
}

func admin() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u1", IsAdmin: true})
}

func fixedNow(svc *Service, at time.Time) { svc.now = func() time.Time { return at } }

func TestSummary(t *testing.T) {
	purchased := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{assets: []Depreciable{
		{
			PurchasePrice: types.MustMoney("1000"),
			PurchaseDate:  &purchased,
			Settings: depreciation.Column{Settings: &depreciation.Settings{
				Method: depreciation.StraightLine, Years: 5, ResidualValueType: depreciation.ResidualFixed,
			}},
		},
		{PurchasePrice: types.MustMoney("250")},
	}}
	svc := NewService(repo)
	fixedNow(svc, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	sum, err := svc.Summary(admin())
	require.NoError(t, err)

	assert.Equal(t, int64(5), sum.AssetCount)
	assert.Equal(t, map[string]int64{"available": 3, "assigned": 2}, sum.ByStatus)
	assert.Equal(t, "4500.5", sum.TotalPurchaseValue.String())
	assert.Equal(t, "1050", sum.TotalBookValue.String())
	assert.Equal(t, int64(4), sum.OpenMaintenance)
	assert.Equal(t, "125.75", sum.MaintenanceCostYear.String())
	assert.Equal(t, int64(2), sum.ActiveAssignments)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), repo.from)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), repo.to)
	for _, s := range repo.scopes {
		assert.Nil(t, s.Departments)
	}
}

func TestScopedToDepartments(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u2", DepartmentIDs: []string{"d1"}})

	_, err := svc.AssetsByCategory(ctx)
	require.NoError(t, err)
	require.Len(t, repo.scopes, 1)
	assert.Equal(t, []string{"d1"}, repo.scopes[0].Departments)
}

func TestMaintenanceCostDefaults(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	fixedNow(svc, time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC))

	_, err := svc.MaintenanceCost(admin(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), repo.from)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), repo.to)

	_, err = svc.MaintenanceCost(admin(), repo.to, repo.from)
	assert.True(t, apperror.IsValidation(err))
}

func TestRecentActivityLimit(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	_, _ = svc.RecentActivity(admin(), 0)
	assert.Equal(t, defaultActivityLimit, repo.limit)
	_, _ = svc.RecentActivity(admin(), 1000)
	assert.Equal(t, maxActivityLimit, repo.limit)
	_, _ = svc.RecentActivity(admin(), 7)
	assert.Equal(t, 7, repo.limit)
}
