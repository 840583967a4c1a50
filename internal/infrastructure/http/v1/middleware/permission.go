package middleware

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
)

// RequirePermission aborts with 403 unless the caller holds permission.
// Admins hold every permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetUser(ctx) == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}
		if !appctx.HasPermission(ctx, permission) {
			_ = c.Error(apperror.NewForbidden("insufficient permissions").
				WithDetail("required_permission", permission))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAnyPermission passes when the caller holds one of permissions.
func RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetUser(ctx) == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}
		for _, p := range permissions {
			if appctx.HasPermission(ctx, p) {
				c.Next()
				return
			}
		}
		_ = c.Error(apperror.NewForbidden("insufficient permissions").
			WithDetail("required_permissions", permissions))
		c.Abort()
	}
}
