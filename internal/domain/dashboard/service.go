package dashboard

import (
	"context"
	"fmt"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/security"
	"setflow/internal/core/types"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// Service provides dashboard figures scoped to the caller's departments.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func scopeOf(ctx context.Context) Scope {
	s := security.GetScope(ctx)
	if s.SeesAllAssets() {
		return Scope{}
	}
	return Scope{Departments: s.FilterDepartments(nil)}
}

// Summary computes the headline totals. Book value covers assets whose
// category has depreciation settings and that have a purchase date; the
// rest count at purchase price.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	scope := scopeOf(ctx)
	now := s.now().UTC()

	statuses, err := s.repo.AssetsByStatus(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("assets by status: %w", err)
	}
	out := &Summary{ByStatus: make(map[string]int64, len(statuses)), AsOf: now}
	for _, st := range statuses {
		out.ByStatus[st.Status] = st.Count
		out.AssetCount += st.Count
		out.TotalPurchaseValue = out.TotalPurchaseValue.Add(st.Value)
	}

	assets, err := s.repo.Depreciable(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("depreciable assets: %w", err)
	}
	out.TotalBookValue = bookValue(assets, now)

	if out.OpenMaintenance, err = s.repo.OpenMaintenance(ctx, scope); err != nil {
		return nil, fmt.Errorf("open maintenance: %w", err)
	}

	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	months, err := s.repo.MaintenanceCost(ctx, scope, yearStart, yearStart.AddDate(1, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("maintenance cost: %w", err)
	}
	out.MaintenanceCostYear = sumCost(months)

	if out.ActiveAssignments, err = s.repo.ActiveAssignments(ctx, scope); err != nil {
		return nil, fmt.Errorf("active assignments: %w", err)
	}
	return out, nil
}

func bookValue(assets []Depreciable, asOf time.Time) types.Money {
	var total types.Money
	for _, a := range assets {
		if a.Settings.Settings == nil || a.PurchaseDate == nil {
			total = total.Add(a.PurchasePrice)
			continue
		}
		total = total.Add(a.Settings.BookValue(a.PurchasePrice, *a.PurchaseDate, asOf))
	}
	return types.RoundMoney(total)
}

func (s *Service) AssetsByCategory(ctx context.Context) ([]GroupCount, error) {
	return s.repo.AssetsByCategory(ctx, scopeOf(ctx))
}

func (s *Service) AssetsByDepartment(ctx context.Context) ([]GroupCount, error) {
	return s.repo.AssetsByDepartment(ctx, scopeOf(ctx))
}

// MaintenanceCost returns monthly cost of completed jobs. Zero bounds
// default to the last twelve months.
func (s *Service) MaintenanceCost(ctx context.Context, from, to time.Time) ([]MonthCost, error) {
	now := s.now().UTC()
	if to.IsZero() {
		to = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}
	if !from.Before(to) {
		return nil, apperror.NewValidation("from must be before to").WithDetail("field", "from")
	}
	return s.repo.MaintenanceCost(ctx, scopeOf(ctx), from, to)
}

func (s *Service) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}
	return s.repo.RecentActivity(ctx, scopeOf(ctx), limit)
}
