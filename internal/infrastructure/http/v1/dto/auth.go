package dto

import (
	"time"

	"setflow/internal/domain/auth"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{Email: r.Email, Password: r.Password}
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// SetRolesRequest replaces the role set of a user.
type SetRolesRequest struct {
	Roles []string `json:"roles"`
}

type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

func FromTokenPair(tp *auth.TokenPair) *TokenResponse {
	return &TokenResponse{
		AccessToken:  tp.AccessToken,
		RefreshToken: tp.RefreshToken,
		ExpiresAt:    tp.ExpiresAt,
		TokenType:    tp.TokenType,
	}
}

type UserResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName,omitempty"`
	LastName      string     `json:"lastName,omitempty"`
	FullName      string     `json:"fullName"`
	IsActive      bool       `json:"isActive"`
	IsAdmin       bool       `json:"isAdmin"`
	Roles         []string   `json:"roles"`
	Permissions   []string   `json:"permissions,omitempty"`
	DepartmentIDs []string   `json:"departmentIds"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func FromUser(u *auth.User) *UserResponse {
	depts := u.DepartmentIDs
	if depts == nil {
		depts = []string{}
	}
	return &UserResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		FullName:      u.FullName(),
		IsActive:      u.IsActive,
		IsAdmin:       u.IsAdmin,
		Roles:         u.RoleCodes(),
		Permissions:   u.Permissions,
		DepartmentIDs: depts,
		LastLoginAt:   u.LastLoginAt,
		Version:       u.Version,
		CreatedAt:     u.CreatedAt,
	}
}

type LoginResponse struct {
	Tokens *TokenResponse `json:"tokens"`
	User   *UserResponse  `json:"user"`
}

// MeResponse describes the caller as the access token sees them.
type MeResponse struct {
	UserID        string   `json:"userId"`
	TenantID      string   `json:"tenantId"`
	Email         string   `json:"email"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"permissions"`
	DepartmentIDs []string `json:"departmentIds"`
	IsAdmin       bool     `json:"isAdmin"`
}
