package auth

import (
	"context"

	"setflow/internal/core/id"
)

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID id.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Update fails with a concurrent-modification error on a stale version.
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, userID id.ID) error
	List(ctx context.Context, filter UserFilter) ([]User, int, error)
	Exists(ctx context.Context, email string) (bool, error)

	LoadRoles(ctx context.Context, userID id.ID) ([]Role, error)
	// LoadPermissions flattens the permissions of every role of the user.
	LoadPermissions(ctx context.Context, userID id.ID) ([]string, error)
	LoadDepartments(ctx context.Context, userID id.ID) ([]string, error)
	// SetDepartments replaces the user's department membership.
	SetDepartments(ctx context.Context, userID id.ID, departmentIDs []string) error
	AssignRole(ctx context.Context, userID, roleID id.ID, grantedBy *id.ID) error
	RevokeRole(ctx context.Context, userID, roleID id.ID) error
}

type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByCode(ctx context.Context, code string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	LoadPermissions(ctx context.Context, roleID id.ID) ([]Permission, error)
	AssignPermission(ctx context.Context, roleID, permissionID id.ID) error
}

type PermissionRepository interface {
	GetByCode(ctx context.Context, code string) (*Permission, error)
	List(ctx context.Context) ([]Permission, error)
	// Upsert inserts p or returns the stored row with the same code.
	Upsert(ctx context.Context, p *Permission) error
}

type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error
	RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error
	CleanupExpiredTokens(ctx context.Context) (int, error)
}
