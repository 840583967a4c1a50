package middleware

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/core/security"
)

// AccessScope stores the caller's security scope in the request context.
// It runs after Auth; services read it with security.GetScope.
func AccessScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		c.Request = c.Request.WithContext(security.WithScope(ctx, security.NewAccessScope(ctx)))
		c.Next()
	}
}
