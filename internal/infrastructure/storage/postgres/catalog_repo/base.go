// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
// Each tenant has its own database, so queries carry no tenant predicate; the
// querier comes from the request context.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain"
	"setflow/internal/domain/filter"
	"setflow/internal/infrastructure/storage/postgres"
)

// stamper is implemented by every entity embedding entity.BaseEntity.
type stamper interface {
	Stamp(version int, updatedAt time.Time)
}

// BaseCatalogRepo provides common CRUD operations for catalog entities.
// Embed this in specific catalog repositories.
type BaseCatalogRepo[T any] struct {
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T

	// searchCols are matched by ListFilter.Search with ILIKE.
	searchCols []string
	// deptScope turns ListFilter.DepartmentIDs into a predicate; nil disables it.
	deptScope func(ids []string) squirrel.Sqlizer
	// defaultOrder applies when ListFilter.OrderBy is empty.
	defaultOrder string
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](
	tableName string,
	entityName string,
	selectCols []string,
	newFn func() T,
) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		tableName:    tableName,
		entityName:   entityName,
		selectCols:   selectCols,
		newFn:        newFn,
		searchCols:   []string{"name", "code"},
		defaultOrder: "name ASC",
	}
}

// WithSearch replaces the columns the free-text search looks at.
func (r *BaseCatalogRepo[T]) WithSearch(cols ...string) *BaseCatalogRepo[T] {
	r.searchCols = cols
	return r
}

// WithDepartmentColumn enables department scoping on col.
func (r *BaseCatalogRepo[T]) WithDepartmentColumn(col string) *BaseCatalogRepo[T] {
	return r.WithDepartmentScope(func(ids []string) squirrel.Sqlizer {
		return squirrel.Eq{col: ids}
	})
}

// WithDepartmentScope enables department scoping through a custom predicate,
// e.g. a subquery on a referenced table.
func (r *BaseCatalogRepo[T]) WithDepartmentScope(fn func(ids []string) squirrel.Sqlizer) *BaseCatalogRepo[T] {
	r.deptScope = fn
	return r
}

// WithDefaultOrder sets the ORDER BY used when the filter names none.
func (r *BaseCatalogRepo[T]) WithDefaultOrder(order string) *BaseCatalogRepo[T] {
	r.defaultOrder = order
	return r
}

func (r *BaseCatalogRepo[T]) querier(ctx context.Context) postgres.Querier {
	return postgres.QuerierFrom(ctx)
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseCatalogRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseCatalogRepo[T]) Table() string { return r.tableName }

func (r *BaseCatalogRepo[T]) Columns() []string { return r.selectCols }

// Select starts a SELECT of every column.
func (r *BaseCatalogRepo[T]) Select() squirrel.SelectBuilder { return r.baseSelect() }

// columnsOf keeps only the table's columns of a StructToMap result.
func (r *BaseCatalogRepo[T]) columnsOf(data map[string]any, skip ...string) map[string]any {
	out := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if slices.Contains(skip, col) {
			continue
		}
		if val, ok := data[col]; ok {
			out[col] = val
		}
	}
	return out
}

// Create inserts a new entity using its "db" tags.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %T", entity)
	}

	sql, args, err := r.Builder().
		Insert(r.tableName).
		SetMap(r.columnsOf(data)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return r.writeErr(err, data)
	}
	return nil
}

// Update modifies an existing entity with optimistic locking. On success the
// entity carries the new version.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %T", entity)
	}
	entityID, ok := data["id"]
	if !ok {
		return fmt.Errorf("%T has no id column", entity)
	}
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("%T has no int version column", entity)
	}

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(r.columnsOf(data, "id", "version", "created_at", "updated_at", "created_by")).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": entityID, "version": version}).
		Suffix("RETURNING version, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	var (
		newVersion int
		updatedAt  time.Time
	)
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&newVersion, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewConcurrentModification(r.entityName, fmt.Sprint(entityID))
	}
	if err != nil {
		return r.writeErr(err, data)
	}
	if s, ok := any(entity).(stamper); ok {
		s.Stamp(newVersion, updatedAt)
	}
	return nil
}

// writeErr turns constraint violations into client errors.
func (r *BaseCatalogRepo[T]) writeErr(err error, data map[string]any) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			field := uniqueField(pgErr.ConstraintName)
			return apperror.NewDuplicate(r.entityName, field, fmt.Sprint(data[field])).WithCause(err)
		case "23503":
			return apperror.NewValidation("referenced record does not exist").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return fmt.Errorf("write %s: %w", r.tableName, err)
}

// uniqueField guesses the column from a "<table>_<column>_key" style name.
func uniqueField(constraint string) string {
	for _, col := range []string{"serial_number", "asset_id", "code", "email", "username", "number"} {
		if strings.Contains(constraint, col) {
			return col
		}
	}
	return "code"
}

// baseSelect creates a SELECT builder.
func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// GetByID retrieves entity by ID, including marked-for-deletion rows.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.FindOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}).Limit(1), entityID.String())
}

// GetByCode retrieves a live entity by code.
func (r *BaseCatalogRepo[T]) GetByCode(ctx context.Context, code string) (T, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"code": code, "deletion_mark": false}).
		Limit(1)
	return r.FindOne(ctx, q, code)
}

// GetForUpdate retrieves entity by ID with row lock.
func (r *BaseCatalogRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": entityID}).
		Suffix("FOR UPDATE")
	return r.FindOne(ctx, q, entityID.String())
}

// FindOne executes a SELECT query and returns a single entity.
func (r *BaseCatalogRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	entity := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, key)
		}
		return entity, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	return entity, nil
}

// FindMany executes a SELECT query and scans every row.
func (r *BaseCatalogRepo[T]) FindMany(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []T
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.tableName, err)
	}
	return items, nil
}

// Count runs SELECT COUNT(*) over q.
func (r *BaseCatalogRepo[T]) Count(ctx context.Context, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.tableName, err)
	}
	return n, nil
}

// ApplyListFilter adds the WHERE clauses of f to q.
func (r *BaseCatalogRepo[T]) ApplyListFilter(q squirrel.SelectBuilder, f domain.ListFilter) (squirrel.SelectBuilder, error) {
	if !f.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if s := strings.TrimSpace(f.Search); s != "" && len(r.searchCols) > 0 {
		pattern := "%" + s + "%"
		or := make(squirrel.Or, 0, len(r.searchCols))
		for _, col := range r.searchCols {
			or = append(or, squirrel.ILike{col: pattern})
		}
		q = q.Where(or)
	}

	if len(f.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": f.IDs})
	}

	if f.ParentID != nil {
		if *f.ParentID == "" {
			q = q.Where(squirrel.Eq{"parent_id": nil})
		} else {
			q = q.Where(squirrel.Eq{"parent_id": *f.ParentID})
		}
	}

	if f.IsFolder != nil {
		q = q.Where(squirrel.Eq{"is_folder": *f.IsFolder})
	}

	if r.deptScope != nil && f.DepartmentIDs != nil {
		q = q.Where(r.deptScope(f.DepartmentIDs))
	}

	return r.applyAdvancedFilters(q, f.Filters)
}

// List retrieves entities with filtering and pagination.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	q, err := r.ApplyListFilter(r.baseSelect(), f)
	if err != nil {
		return result, err
	}

	if result.TotalCount, err = r.Count(ctx, q); err != nil {
		return result, err
	}

	orderBy, err := r.parseOrderBy(f.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "id")

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	items, err := r.FindMany(ctx, q)
	if err != nil {
		return result, err
	}
	result.Items = items
	if result.Items == nil {
		result.Items = []T{}
	}
	return result, nil
}

// applyAdvancedFilters applies client filters to q. Columns are checked
// against the table's own columns.
func (r *BaseCatalogRepo[T]) applyAdvancedFilters(q squirrel.SelectBuilder, filters []filter.Item) (squirrel.SelectBuilder, error) {
	for _, item := range filters {
		if !slices.Contains(r.selectCols, item.Field) {
			return q, apperror.NewValidation("invalid filter column").WithDetail("field", item.Field)
		}

		switch item.Operator {
		case filter.Equal:
			q = q.Where(squirrel.Eq{item.Field: item.Value})
		case filter.NotEqual:
			q = q.Where(squirrel.NotEq{item.Field: item.Value})
		case filter.LessOrEqual:
			q = q.Where(squirrel.LtOrEq{item.Field: item.Value})
		case filter.GreaterOrEqual:
			q = q.Where(squirrel.GtOrEq{item.Field: item.Value})
		case filter.InList:
			q = q.Where(squirrel.Eq{item.Field: filter.Values(item.Value)})
		case filter.NotInList:
			q = q.Where(squirrel.NotEq{item.Field: filter.Values(item.Value)})
		case filter.IsNull:
			q = q.Where(squirrel.Eq{item.Field: nil})
		case filter.IsNotNull:
			q = q.Where(squirrel.NotEq{item.Field: nil})
		case filter.Contains:
			q = q.Where(squirrel.ILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		case filter.NotContains:
			q = q.Where(squirrel.NotILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		case filter.InHierarchy:
			q = q.Where(squirrel.Expr(item.Field+" IN ("+r.subtreeSQL()+")", item.Value))
		case filter.NotInHierarchy:
			q = q.Where(squirrel.Expr(item.Field+" NOT IN ("+r.subtreeSQL()+")", item.Value))
		default:
			return q, apperror.NewValidation("unknown filter operator").WithDetail("operator", string(item.Operator))
		}
	}

	return q, nil
}

// subtreeSQL selects a node and all its descendants.
func (r *BaseCatalogRepo[T]) subtreeSQL() string {
	return fmt.Sprintf(`WITH RECURSIVE hierarchy AS (
SELECT id FROM %[1]s WHERE id = ?
UNION ALL
SELECT t.id FROM %[1]s t JOIN hierarchy h ON t.parent_id = h.id
) SELECT id FROM hierarchy`, r.tableName)
}

func (r *BaseCatalogRepo[T]) exists(ctx context.Context, where squirrel.Sqlizer) (bool, error) {
	sql, args, err := r.Builder().
		Select("1").
		From(r.tableName).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", r.tableName, err)
	}
	return true, nil
}

// Exists checks if entity exists.
func (r *BaseCatalogRepo[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"id": entityID})
}

// ExistsByCode checks if a live entity with given code exists.
func (r *BaseCatalogRepo[T]) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"code": code, "deletion_mark": false})
}

// SetDeletionMark sets or clears the deletion mark (soft delete).
func (r *BaseCatalogRepo[T]) SetDeletionMark(ctx context.Context, entityID id.ID, marked bool) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("deletion_mark", marked).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set deletion mark: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set deletion mark %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

// GetTree retrieves the live subtree under rootID (or every root) using a
// recursive CTE, ordered by depth then name.
func (r *BaseCatalogRepo[T]) GetTree(ctx context.Context, rootID *id.ID) ([]T, error) {
	rootCond, args := "parent_id IS NULL", []any{}
	if rootID != nil {
		rootCond, args = "parent_id = $1", []any{rootID.String()}
	}

	sql := fmt.Sprintf(`
		WITH RECURSIVE tree AS (
			SELECT *, 0 AS level FROM %[1]s
			WHERE %[2]s AND deletion_mark = false
			UNION ALL
			SELECT c.*, t.level + 1 FROM %[1]s c
			INNER JOIN tree t ON c.parent_id = t.id
			WHERE c.deletion_mark = false
		)
		SELECT %[3]s FROM tree
		ORDER BY level, name`, r.tableName, rootCond, strings.Join(r.selectCols, ", "))

	var items []T
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	return items, nil
}

// GetPath retrieves path from root to entity.
func (r *BaseCatalogRepo[T]) GetPath(ctx context.Context, entityID id.ID) ([]T, error) {
	sql := fmt.Sprintf(`
		WITH RECURSIVE path AS (
			SELECT *, 0 AS level FROM %[1]s WHERE id = $1
			UNION ALL
			SELECT c.*, p.level + 1 FROM %[1]s c
			INNER JOIN path p ON c.id = p.parent_id
		)
		SELECT %[2]s FROM path
		ORDER BY level DESC`, r.tableName, strings.Join(r.selectCols, ", "))

	var items []T
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, entityID); err != nil {
		return nil, fmt.Errorf("get path: %w", err)
	}
	return items, nil
}

// parseOrderBy accepts "field", "+field" or "-field" for a known column.
func (r *BaseCatalogRepo[T]) parseOrderBy(orderBy string) (string, error) {
	if orderBy == "" {
		return r.defaultOrder, nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" || !slices.Contains(r.selectCols, field) {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}
