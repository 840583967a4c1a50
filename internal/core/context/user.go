// Package context carries request-scoped identity and tracing values.
package context

import (
	"context"
	"slices"
)

// UserContext is the authenticated principal of a request.
type UserContext struct {
	UserID        string
	TenantID      string
	Email         string
	Roles         []string
	Permissions   []string
	DepartmentIDs []string // departments whose assets the user may see
	IsAdmin       bool
	SessionID     string
}

type userKey struct{}

// WithUser stores the principal in ctx.
func WithUser(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// GetUser returns the principal or nil for anonymous requests.
func GetUser(ctx context.Context) *UserContext {
	u, _ := ctx.Value(userKey{}).(*UserContext)
	return u
}

func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

func GetTenantID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.TenantID
	}
	return ""
}

// HasRole reports whether the principal has role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	return u != nil && slices.Contains(u.Roles, role)
}

// HasPermission reports whether the principal holds perm. Admins hold everything.
func HasPermission(ctx context.Context, perm string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return u.IsAdmin || slices.Contains(u.Permissions, perm)
}

// CanSeeDepartment reports whether the principal may read assets of departmentID.
func CanSeeDepartment(ctx context.Context, departmentID string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return u.IsAdmin || slices.Contains(u.DepartmentIDs, departmentID)
}
