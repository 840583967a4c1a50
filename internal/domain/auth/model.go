package auth

import (
	"context"
	"net/mail"
	"slices"
	"strings"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/core/security"
)

// User is a person who signs in to one tenant.
type User struct {
	ID                  id.ID      `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FirstName           string     `db:"first_name" json:"firstName,omitempty"`
	LastName            string     `db:"last_name" json:"lastName,omitempty"`
	IsActive            bool       `db:"is_active" json:"isActive"`
	IsAdmin             bool       `db:"is_admin" json:"isAdmin"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	DeletionMark        bool       `db:"deletion_mark" json:"-"`
	Version             int        `db:"version" json:"version"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`

	Roles         []Role   `db:"-" json:"roles,omitempty"`
	Permissions   []string `db:"-" json:"permissions,omitempty"`
	DepartmentIDs []string `db:"-" json:"departmentIds"`
}

func NewUser(email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           id.New(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		IsActive:     true,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) Validate(ctx context.Context) error {
	if u.Email == "" {
		return apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return apperror.NewValidation("email is invalid").WithDetail("field", "email")
	}
	for _, d := range u.DepartmentIDs {
		if _, err := id.Parse(d); err != nil {
			return apperror.NewValidation("invalid department id").WithDetail("field", "departmentIds")
		}
	}
	return nil
}

func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

func (u *User) CanLogin(now time.Time) error {
	if !u.IsActive {
		return apperror.NewForbidden("account is disabled")
	}
	if u.IsLocked(now) {
		return apperror.NewForbidden("account is temporarily locked")
	}
	return nil
}

// RecordFailedLogin locks the account after maxAttempts failures in a row.
func (u *User) RecordFailedLogin(now time.Time, maxAttempts int, lockDuration time.Duration) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		until := now.Add(lockDuration)
		u.LockedUntil = &until
	}
}

func (u *User) RecordSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}

func (u *User) RoleCodes() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = r.Code
	}
	return out
}

func (u *User) HasRole(code string) bool {
	return slices.Contains(u.RoleCodes(), code)
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

type Role struct {
	ID          id.ID     `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	IsSystem    bool      `db:"is_system" json:"isSystem"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`

	Permissions []Permission `db:"-" json:"permissions,omitempty"`
}

func NewRole(code, name string) *Role {
	return &Role{ID: id.New(), Code: code, Name: name, CreatedAt: time.Now().UTC()}
}

// Permission codes look like "catalog:asset:update".
type Permission struct {
	ID          id.ID  `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	Resource    string `db:"resource" json:"resource"`
	Action      string `db:"action" json:"action"`
}

// NewPermission splits code at its last colon into resource and action.
func NewPermission(code string) Permission {
	resource, action := code, ""
	if i := strings.LastIndexByte(code, ':'); i > 0 {
		resource, action = code[:i], code[i+1:]
	}
	return Permission{ID: id.New(), Code: code, Name: code, Resource: resource, Action: action}
}

// RefreshToken is stored by hash only.
type RefreshToken struct {
	ID            id.ID      `db:"id"`
	UserID        id.ID      `db:"user_id"`
	TokenHash     string     `db:"token_hash"`
	ExpiresAt     time.Time  `db:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokedReason string     `db:"revoked_reason"`
	UserAgent     string     `db:"user_agent"`
	IPAddress     string     `db:"ip_address"`
}

func (t *RefreshToken) IsValid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserRequest is what an admin submits for a new user.
type CreateUserRequest struct {
	Email         string   `json:"email"`
	Password      string   `json:"password"`
	FirstName     string   `json:"firstName,omitempty"`
	LastName      string   `json:"lastName,omitempty"`
	IsAdmin       bool     `json:"isAdmin"`
	Roles         []string `json:"roles,omitempty"`
	DepartmentIDs []string `json:"departmentIds,omitempty"`
}

// UpdateUserRequest changes only the fields that are set.
type UpdateUserRequest struct {
	FirstName     *string   `json:"firstName,omitempty"`
	LastName      *string   `json:"lastName,omitempty"`
	IsActive      *bool     `json:"isActive,omitempty"`
	IsAdmin       *bool     `json:"isAdmin,omitempty"`
	Password      *string   `json:"password,omitempty"`
	DepartmentIDs *[]string `json:"departmentIds,omitempty"`
	Version       int       `json:"version"`
}

type UserFilter struct {
	Search       string
	IsActive     *bool
	RoleCode     string
	DepartmentID string
	Limit        int
	Offset       int
}

// Resources that carry catalog:<entity>:<action> permissions.
var (
	CatalogEntities = []string{"asset", "category", "department"}
	RecordEntities  = []string{"maintenance", "assignment"}
	CRUDActions     = []string{"read", "create", "update", "delete"}
)

const (
	PermDashboardRead = "dashboard:read"
	PermUsersManage   = "users:manage"
	PermUploadsCreate = "uploads:create"
)

// AllPermissions lists every permission code the system checks.
func AllPermissions() []string {
	var out []string
	for _, group := range [][]string{CatalogEntities, RecordEntities} {
		for _, e := range group {
			prefix := "catalog:"
			if slices.Contains(RecordEntities, e) {
				prefix = "record:"
			}
			for _, a := range CRUDActions {
				out = append(out, prefix+e+":"+a)
			}
		}
	}
	return append(out, security.PermAllAssets, PermDashboardRead, PermUsersManage, PermUploadsCreate)
}

// DefaultRoles maps the shipped roles to their permissions. Admins bypass
// permission checks, so their list only documents intent.
func DefaultRoles() map[string][]string {
	var read, write []string
	for _, p := range AllPermissions() {
		switch {
		case strings.HasSuffix(p, ":read"):
			read = append(read, p)
			write = append(write, p)
		case p == PermUsersManage:
		default:
			write = append(write, p)
		}
	}
	return map[string][]string{
		security.RoleAdmin:   AllPermissions(),
		security.RoleManager: write,
		security.RoleViewer:  read,
	}
}
