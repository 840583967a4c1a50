// Package auth_repo stores users, roles and refresh tokens in the tenant
// database. The querier comes from the tenant's TxManager in ctx.
package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain/auth"
	"setflow/internal/infrastructure/storage/postgres"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var userColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name",
	"is_active", "is_admin", "last_login_at", "failed_login_attempts", "locked_until",
	"deletion_mark", "version", "created_at", "updated_at",
}

type UserRepo struct{}

func NewUserRepo() *UserRepo { return &UserRepo{} }

var _ auth.UserRepository = (*UserRepo)(nil)

func exec(ctx context.Context, b squirrel.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build query: %w", err)
	}
	return postgres.QuerierFrom(ctx).Exec(ctx, sql, args...)
}

func get(ctx context.Context, dst any, b squirrel.Sqlizer) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, postgres.QuerierFrom(ctx), dst, sql, args...)
}

func selectAll(ctx context.Context, dst any, b squirrel.Sqlizer) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Select(ctx, postgres.QuerierFrom(ctx), dst, sql, args...)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *UserRepo) Create(ctx context.Context, u *auth.User) error {
	_, err := exec(ctx, psql.Insert("users").SetMap(map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"is_active":     u.IsActive,
		"is_admin":      u.IsAdmin,
		"version":       u.Version,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}))
	if isUniqueViolation(err) {
		return apperror.NewDuplicate("user", "email", u.Email).WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) one(ctx context.Context, where squirrel.Sqlizer, key string) (*auth.User, error) {
	var u auth.User
	err := get(ctx, &u, psql.Select(userColumns...).From("users").
		Where(where).Where(squirrel.Eq{"deletion_mark": false}).Limit(1))
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.one(ctx, squirrel.Eq{"id": userID}, userID.String())
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.one(ctx, squirrel.Eq{"email": email}, email)
}

func (r *UserRepo) Update(ctx context.Context, u *auth.User) error {
	sql, args, err := psql.Update("users").SetMap(map[string]any{
		"password_hash":         u.PasswordHash,
		"first_name":            u.FirstName,
		"last_name":             u.LastName,
		"is_active":             u.IsActive,
		"is_admin":              u.IsAdmin,
		"last_login_at":         u.LastLoginAt,
		"failed_login_attempts": u.FailedLoginAttempts,
		"locked_until":          u.LockedUntil,
		"version":               squirrel.Expr("version + 1"),
		"updated_at":            squirrel.Expr("now()"),
	}).
		Where(squirrel.Eq{"id": u.ID, "version": u.Version, "deletion_mark": false}).
		Suffix("RETURNING version, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	err = postgres.QuerierFrom(ctx).QueryRow(ctx, sql, args...).Scan(&u.Version, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewConcurrentModification("user", u.ID.String())
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, userID id.ID) error {
	tag, err := exec(ctx, psql.Update("users").
		Set("deletion_mark", true).
		Set("is_active", false).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": userID, "deletion_mark": false}))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("user", userID.String())
	}
	return nil
}

// listQuery applies filter to q.
func listQuery(q squirrel.SelectBuilder, filter auth.UserFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"u.deletion_mark": false})
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"u.email": pattern},
			squirrel.ILike{"u.first_name": pattern},
			squirrel.ILike{"u.last_name": pattern},
		})
	}
	if filter.IsActive != nil {
		q = q.Where(squirrel.Eq{"u.is_active": *filter.IsActive})
	}
	if filter.RoleCode != "" {
		q = q.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = u.id AND r.code = ?)",
			filter.RoleCode))
	}
	if filter.DepartmentID != "" {
		q = q.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM user_departments ud WHERE ud.user_id = u.id AND ud.department_id = ?)",
			filter.DepartmentID))
	}
	return q
}

func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) ([]auth.User, int, error) {
	var total int
	if err := get(ctx, &total, listQuery(psql.Select("COUNT(*)").From("users u"), filter)); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	cols := make([]string, len(userColumns))
	for i, c := range userColumns {
		cols[i] = "u." + c
	}
	q := listQuery(psql.Select(cols...).From("users u"), filter).OrderBy("u.email ASC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	var users []auth.User
	if err := selectAll(ctx, &users, q); err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	return users, total, nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := get(ctx, &exists, psql.Select().
		Column(squirrel.Expr("EXISTS (?)",
			psql.Select("1").From("users").Where(squirrel.Eq{"email": email, "deletion_mark": false}))))
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepo) LoadRoles(ctx context.Context, userID id.ID) ([]auth.Role, error) {
	var roles []auth.Role
	err := selectAll(ctx, &roles, psql.
		Select("r.id", "r.code", "r.name", "r.description", "r.is_system", "r.created_at").
		From("roles r").
		Join("user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.code"))
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	return roles, nil
}

func (r *UserRepo) LoadPermissions(ctx context.Context, userID id.ID) ([]string, error) {
	var codes []string
	err := selectAll(ctx, &codes, psql.
		Select("DISTINCT p.code").
		From("permissions p").
		Join("role_permissions rp ON rp.permission_id = p.id").
		Join("user_roles ur ON ur.role_id = rp.role_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("p.code"))
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	return codes, nil
}

func (r *UserRepo) LoadDepartments(ctx context.Context, userID id.ID) ([]string, error) {
	var ids []string
	err := selectAll(ctx, &ids, psql.
		Select("department_id::text").
		From("user_departments").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("department_id"))
	if err != nil {
		return nil, fmt.Errorf("load departments: %w", err)
	}
	return ids, nil
}

// SetDepartments replaces the membership rows in one batch round-trip;
// callers run it inside their transaction.
func (r *UserRepo) SetDepartments(ctx context.Context, userID id.ID, departmentIDs []string) error {
	builders := []squirrel.Sqlizer{psql.Delete("user_departments").Where(squirrel.Eq{"user_id": userID})}
	for _, d := range departmentIDs {
		builders = append(builders, psql.Insert("user_departments").
			Columns("user_id", "department_id").
			Values(userID, d).
			Suffix("ON CONFLICT DO NOTHING"))
	}

	stmts := make([]postgres.Statement, 0, len(builders))
	for _, b := range builders {
		sql, args, err := b.ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		stmts = append(stmts, postgres.Statement{SQL: sql, Args: args})
	}

	if err := postgres.ExecBatch(ctx, stmts); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperror.NewValidation("department does not exist").WithDetail("field", "departmentIds")
		}
		return fmt.Errorf("set departments: %w", err)
	}
	return nil
}

func (r *UserRepo) AssignRole(ctx context.Context, userID, roleID id.ID, grantedBy *id.ID) error {
	_, err := exec(ctx, psql.Insert("user_roles").
		Columns("user_id", "role_id", "granted_by").
		Values(userID, roleID, grantedBy).
		Suffix("ON CONFLICT (user_id, role_id) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (r *UserRepo) RevokeRole(ctx context.Context, userID, roleID id.ID) error {
	if _, err := exec(ctx, psql.Delete("user_roles").Where(squirrel.Eq{"user_id": userID, "role_id": roleID})); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}
