package dashboard

import (
	"context"
	"time"

	"setflow/internal/core/types"
)

type Repository interface {
	AssetsByStatus(ctx context.Context, s Scope) ([]StatusCount, error)
	Depreciable(ctx context.Context, s Scope) ([]Depreciable, error)
	OpenMaintenance(ctx context.Context, s Scope) (int64, error)
	// MaintenanceCost groups completed jobs by month of completion in [from, to).
	MaintenanceCost(ctx context.Context, s Scope, from, to time.Time) ([]MonthCost, error)
	ActiveAssignments(ctx context.Context, s Scope) (int64, error)
	AssetsByCategory(ctx context.Context, s Scope) ([]GroupCount, error)
	AssetsByDepartment(ctx context.Context, s Scope) ([]GroupCount, error)
	RecentActivity(ctx context.Context, s Scope, limit int) ([]Activity, error)
}

func sumCost(months []MonthCost) types.Money {
	var total types.Money
	for _, m := range months {
		total = total.Add(m.Cost)
	}
	return total
}
