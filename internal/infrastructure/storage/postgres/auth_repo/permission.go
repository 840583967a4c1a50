package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"setflow/internal/core/apperror"
	"setflow/internal/domain/auth"
)

var permissionColumns = []string{"id", "code", "name", "description", "resource", "action"}

type PermissionRepo struct{}

func NewPermissionRepo() *PermissionRepo { return &PermissionRepo{} }

var _ auth.PermissionRepository = (*PermissionRepo)(nil)

func (r *PermissionRepo) GetByCode(ctx context.Context, code string) (*auth.Permission, error) {
	var p auth.Permission
	err := get(ctx, &p, psql.Select(permissionColumns...).From("permissions").Where(squirrel.Eq{"code": code}))
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("permission", code)
	}
	if err != nil {
		return nil, fmt.Errorf("query permission: %w", err)
	}
	return &p, nil
}

func (r *PermissionRepo) List(ctx context.Context) ([]auth.Permission, error) {
	var perms []auth.Permission
	err := selectAll(ctx, &perms, psql.Select(permissionColumns...).From("permissions").OrderBy("resource", "action"))
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	return perms, nil
}

// Upsert leaves an existing row untouched and loads it into p.
func (r *PermissionRepo) Upsert(ctx context.Context, p *auth.Permission) error {
	err := get(ctx, p, psql.Insert("permissions").
		Columns(permissionColumns...).
		Values(p.ID, p.Code, p.Name, p.Description, p.Resource, p.Action).
		Suffix("ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code RETURNING id, code, name, description, resource, action"))
	if err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}
	return nil
}
