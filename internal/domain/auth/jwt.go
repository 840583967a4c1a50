// Package auth provides authentication, users and roles.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "setflow/internal/core/context"
)

type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "setflow",
		AccessTokenTTL: 15 * time.Minute,
	}
}

// Claims carries the principal so requests need no user lookup.
type Claims struct {
	jwt.RegisteredClaims
	UserID        string   `json:"uid"`
	TenantID      string   `json:"tid"`
	Email         string   `json:"email"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"perms,omitempty"`
	DepartmentIDs []string `json:"depts,omitempty"`
	IsAdmin       bool     `json:"adm,omitempty"`
}

type JWTService struct {
	config JWTConfig
	now    func() time.Time
}

func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config, now: time.Now}
}

// GenerateAccessToken signs an HS256 token for u.
func (s *JWTService) GenerateAccessToken(u *appctx.UserContext) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   u.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:        u.UserID,
		TenantID:      u.TenantID,
		Email:         u.Email,
		Roles:         u.Roles,
		Permissions:   u.Permissions,
		DepartmentIDs: u.DepartmentIDs,
		IsAdmin:       u.IsAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, expiry and issuer.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &appctx.UserContext{
		UserID:        claims.UserID,
		TenantID:      claims.TenantID,
		Email:         claims.Email,
		Roles:         claims.Roles,
		Permissions:   claims.Permissions,
		DepartmentIDs: claims.DepartmentIDs,
		IsAdmin:       claims.IsAdmin,
	}, nil
}
