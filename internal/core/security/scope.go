// Package security decides what the current principal may see and do.
package security

import (
	"context"
	"slices"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
)

// Roles shipped with every tenant.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

// PermAllAssets lifts the department filter on asset queries.
const PermAllAssets = "catalog:asset:all"

// AccessScope is the authorization view of one request.
type AccessScope struct {
	TenantID      string
	UserID        string
	IsAdmin       bool
	DepartmentIDs []string
	Permissions   []string
}

// NewAccessScope derives the scope from the principal in ctx.
// Anonymous requests get an empty scope that can see nothing.
func NewAccessScope(ctx context.Context) *AccessScope {
	u := appctx.GetUser(ctx)
	if u == nil {
		return &AccessScope{}
	}
	return &AccessScope{
		TenantID:      u.TenantID,
		UserID:        u.UserID,
		IsAdmin:       u.IsAdmin,
		DepartmentIDs: u.DepartmentIDs,
		Permissions:   u.Permissions,
	}
}

func (s *AccessScope) HasPermission(perm string) bool {
	return s.IsAdmin || slices.Contains(s.Permissions, perm)
}

// Require returns a forbidden error when perm is missing.
func (s *AccessScope) Require(perm string) error {
	if s.HasPermission(perm) {
		return nil
	}
	return apperror.NewForbidden("permission "+perm+" required").WithDetail("permission", perm)
}

// SeesAllAssets reports whether asset lists are left unfiltered.
func (s *AccessScope) SeesAllAssets() bool {
	return s.HasPermission(PermAllAssets)
}

func (s *AccessScope) CanAccessDepartment(departmentID string) bool {
	return s.SeesAllAssets() || slices.Contains(s.DepartmentIDs, departmentID)
}

// FilterDepartments narrows requested to what the scope allows.
// An empty request means "everything I may see"; nil means unrestricted.
func (s *AccessScope) FilterDepartments(requested []string) []string {
	if s.SeesAllAssets() {
		return requested
	}
	if len(requested) == 0 {
		return append([]string{}, s.DepartmentIDs...)
	}
	out := make([]string, 0, len(requested))
	for _, d := range requested {
		if slices.Contains(s.DepartmentIDs, d) {
			out = append(out, d)
		}
	}
	return out
}

type scopeKey struct{}

func WithScope(ctx context.Context, s *AccessScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// GetScope returns the scope stored by middleware, or derives one from ctx.
func GetScope(ctx context.Context) *AccessScope {
	if s, ok := ctx.Value(scopeKey{}).(*AccessScope); ok && s != nil {
		return s
	}
	return NewAccessScope(ctx)
}
