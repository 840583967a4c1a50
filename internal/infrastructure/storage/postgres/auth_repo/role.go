package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain/auth"
)

var roleColumns = []string{"id", "code", "name", "description", "is_system", "created_at"}

type RoleRepo struct{}

func NewRoleRepo() *RoleRepo { return &RoleRepo{} }

var _ auth.RoleRepository = (*RoleRepo)(nil)

func (r *RoleRepo) Create(ctx context.Context, role *auth.Role) error {
	_, err := exec(ctx, psql.Insert("roles").
		Columns(roleColumns...).
		Values(role.ID, role.Code, role.Name, role.Description, role.IsSystem, role.CreatedAt))
	if isUniqueViolation(err) {
		return apperror.NewDuplicate("role", "code", role.Code).WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (r *RoleRepo) GetByCode(ctx context.Context, code string) (*auth.Role, error) {
	var role auth.Role
	err := get(ctx, &role, psql.Select(roleColumns...).From("roles").Where(squirrel.Eq{"code": code}))
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("role", code)
	}
	if err != nil {
		return nil, fmt.Errorf("query role: %w", err)
	}
	return &role, nil
}

func (r *RoleRepo) List(ctx context.Context) ([]auth.Role, error) {
	var roles []auth.Role
	if err := selectAll(ctx, &roles, psql.Select(roleColumns...).From("roles").OrderBy("code")); err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	return roles, nil
}

func (r *RoleRepo) LoadPermissions(ctx context.Context, roleID id.ID) ([]auth.Permission, error) {
	var perms []auth.Permission
	err := selectAll(ctx, &perms, psql.
		Select("p.id", "p.code", "p.name", "p.description", "p.resource", "p.action").
		From("permissions p").
		Join("role_permissions rp ON rp.permission_id = p.id").
		Where(squirrel.Eq{"rp.role_id": roleID}).
		OrderBy("p.code"))
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	return perms, nil
}

func (r *RoleRepo) AssignPermission(ctx context.Context, roleID, permissionID id.ID) error {
	_, err := exec(ctx, psql.Insert("role_permissions").
		Columns("role_id", "permission_id").
		Values(roleID, permissionID).
		Suffix("ON CONFLICT (role_id, permission_id) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("assign permission: %w", err)
	}
	return nil
}
