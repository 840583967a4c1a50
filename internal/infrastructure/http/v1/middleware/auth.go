package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/tenant"
)

// JWTValidator is implemented by auth.JWTService.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth requires a valid bearer token issued for the tenant resolved by
// TenantDB and stores the principal in the request context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		user, err := validator.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		resolved := tenant.GetTenantID(c.Request.Context())
		if resolved != "" && user.TenantID != "" && resolved != user.TenantID {
			_ = c.Error(apperror.NewForbidden("tenant mismatch").
				WithDetail("header_tenant_id", resolved).
				WithDetail("token_tenant_id", user.TenantID))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Set("user_id", user.UserID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
