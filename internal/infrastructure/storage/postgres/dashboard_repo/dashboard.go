// Package dashboard_repo implements dashboard.Repository with GROUP BY
// queries over the asset and record tables.
package dashboard_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"setflow/internal/domain/dashboard"
	"setflow/internal/infrastructure/storage/postgres"
)

const (
	assetTable       = "cat_assets"
	categoryTable    = "cat_categories"
	departmentTable  = "cat_departments"
	maintenanceTable = "rec_maintenance"
	assignmentTable  = "rec_assignments"
)

// DashboardRepo implements dashboard.Repository.
type DashboardRepo struct {
	builder squirrel.StatementBuilderType
}

func NewDashboardRepo() *DashboardRepo {
	return &DashboardRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// liveAssets is the base predicate: live assets, narrowed to the scope.
func liveAssets(alias string, s dashboard.Scope) squirrel.Sqlizer {
	cond := squirrel.And{squirrel.Eq{alias + ".deletion_mark": false}}
	if s.Departments != nil {
		cond = append(cond, squirrel.Eq{alias + ".department_id": s.Departments})
	}
	return cond
}

// scopedRecords keeps live records whose asset is in scope.
func scopedRecords(alias string, s dashboard.Scope) squirrel.Sqlizer {
	cond := squirrel.And{squirrel.Eq{alias + ".deletion_mark": false}}
	if s.Departments != nil {
		sub := squirrel.Select("id").From(assetTable).Where(squirrel.Eq{"department_id": s.Departments})
		cond = append(cond, squirrel.Expr(alias+".asset_id IN (?)", sub))
	}
	return cond
}

func (r *DashboardRepo) selectAll(ctx context.Context, dst any, q squirrel.SelectBuilder, what string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", what, err)
	}
	if err := pgxscan.Select(ctx, postgres.QuerierFrom(ctx), dst, sql, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func (r *DashboardRepo) count(ctx context.Context, q squirrel.SelectBuilder, what string) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", what, err)
	}
	var n int64
	if err := postgres.QuerierFrom(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return n, nil
}

func (r *DashboardRepo) AssetsByStatus(ctx context.Context, s dashboard.Scope) ([]dashboard.StatusCount, error) {
	q := r.builder.
		Select("a.status", "COUNT(*) AS count", "COALESCE(SUM(a.purchase_price), 0) AS value").
		From(assetTable + " a").
		Where(liveAssets("a", s)).
		GroupBy("a.status").
		OrderBy("a.status")
	var out []dashboard.StatusCount
	return out, r.selectAll(ctx, &out, q, "assets by status")
}

func (r *DashboardRepo) Depreciable(ctx context.Context, s dashboard.Scope) ([]dashboard.Depreciable, error) {
	q := r.builder.
		Select("a.purchase_price", "a.purchase_date", "c.depreciation").
		From(assetTable + " a").
		LeftJoin(categoryTable + " c ON c.id = a.category_id").
		Where(liveAssets("a", s)).
		Where(squirrel.NotEq{"a.status": "disposed"})
	var out []dashboard.Depreciable
	return out, r.selectAll(ctx, &out, q, "depreciable assets")
}

func (r *DashboardRepo) OpenMaintenance(ctx context.Context, s dashboard.Scope) (int64, error) {
	q := r.builder.
		Select("COUNT(*)").
		From(maintenanceTable + " m").
		Where(scopedRecords("m", s)).
		Where(squirrel.Eq{"m.status": []string{"scheduled", "in_progress"}})
	return r.count(ctx, q, "open maintenance")
}

func (r *DashboardRepo) MaintenanceCost(ctx context.Context, s dashboard.Scope, from, to time.Time) ([]dashboard.MonthCost, error) {
	q := r.builder.
		Select(
			"date_trunc('month', m.completed_at) AS month",
			"COUNT(*) AS jobs",
			"COALESCE(SUM(m.cost), 0) AS cost",
		).
		From(maintenanceTable + " m").
		Where(scopedRecords("m", s)).
		Where(squirrel.Eq{"m.status": "completed"}).
		Where(squirrel.GtOrEq{"m.completed_at": from}).
		Where(squirrel.Lt{"m.completed_at": to}).
		GroupBy("month").
		OrderBy("month")
	var out []dashboard.MonthCost
	return out, r.selectAll(ctx, &out, q, "maintenance cost")
}

func (r *DashboardRepo) ActiveAssignments(ctx context.Context, s dashboard.Scope) (int64, error) {
	q := r.builder.
		Select("COUNT(*)").
		From(assignmentTable + " g").
		Where(scopedRecords("g", s)).
		Where(squirrel.Eq{"g.status": "active"})
	return r.count(ctx, q, "active assignments")
}

func (r *DashboardRepo) AssetsByCategory(ctx context.Context, s dashboard.Scope) ([]dashboard.GroupCount, error) {
	return r.groupBy(ctx, s, categoryTable, "category_id", "assets by category")
}

func (r *DashboardRepo) AssetsByDepartment(ctx context.Context, s dashboard.Scope) ([]dashboard.GroupCount, error) {
	return r.groupBy(ctx, s, departmentTable, "department_id", "assets by department")
}

func (r *DashboardRepo) groupBy(ctx context.Context, s dashboard.Scope, table, col, what string) ([]dashboard.GroupCount, error) {
	q := r.builder.
		Select(
			"g.id::text AS id",
			"COALESCE(g.name, '') AS name",
			"COUNT(*) AS count",
			"COALESCE(SUM(a.purchase_price), 0) AS value",
		).
		From(assetTable+" a").
		LeftJoin(fmt.Sprintf("%s g ON g.id = a.%s", table, col)).
		Where(liveAssets("a", s)).
		GroupBy("g.id", "g.name").
		OrderBy("count DESC", "name")
	var out []dashboard.GroupCount
	return out, r.selectAll(ctx, &out, q, what)
}

func (r *DashboardRepo) RecentActivity(ctx context.Context, s dashboard.Scope, limit int) ([]dashboard.Activity, error) {
	feed := func(kind, table string) squirrel.SelectBuilder {
		return squirrel.
			Select(
				"'"+kind+"' AS kind", "r.id::text AS id", "r.number", "r.date", "r.status",
				"r.asset_id::text AS asset_id", "COALESCE(a.name, '') AS asset_name", "r.updated_at",
			).
			From(table + " r").
			LeftJoin(assetTable + " a ON a.id = r.asset_id").
			Where(scopedRecords("r", s))
	}
	union := feed("maintenance", maintenanceTable).
		Suffix("UNION ALL").
		SuffixExpr(feed("assignment", assignmentTable))

	sql, args, err := r.builder.
		Select("*").
		FromSelect(union, "feed").
		OrderBy("updated_at DESC", "number DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent activity: %w", err)
	}

	var out []dashboard.Activity
	if err := pgxscan.Select(ctx, postgres.QuerierFrom(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return out, nil
}

var _ dashboard.Repository = (*DashboardRepo)(nil)
