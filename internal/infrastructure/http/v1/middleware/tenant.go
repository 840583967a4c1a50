package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"setflow/internal/core/apperror"
	"setflow/internal/core/tenant"
	"setflow/internal/infrastructure/storage/postgres"
	"setflow/pkg/logger"
)

// TenantHeader selects the tenant database of a request.
const TenantHeader = "X-Tenant-ID"

// TenantPools is implemented by tenant.Manager.
type TenantPools interface {
	GetPool(ctx context.Context, tenantID string) (*tenant.ManagedPool, error)
}

// TenantDB resolves X-Tenant-ID to the tenant's pool and puts the pool, a
// transaction manager and the tenant into the request context. It must run
// before anything touches the database.
func TenantDB(pools TenantPools) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			_ = c.Error(apperror.NewValidation("tenant is required").WithDetail("header", TenantHeader))
			c.Abort()
			return
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			_ = c.Error(apperror.NewValidation("invalid tenant id").
				WithDetail("header", TenantHeader).
				WithDetail("value", raw))
			c.Abort()
			return
		}
		tenantID := parsed.String()

		mp, err := pools.GetPool(ctx, tenantID)
		if err != nil {
			logger.Warn(ctx, "tenant pool error", "tenant_id", tenantID, "error", err)
			_ = c.Error(tenantError(tenantID, err))
			c.Abort()
			return
		}
		release := mp.Acquire()
		defer release()

		txm := postgres.NewTxManagerFromRawPool(mp.Pool())
		ctx = tenant.WithPool(ctx, mp.Pool())
		ctx = tenant.WithTxManager(ctx, txm)
		ctx = tenant.WithTenant(ctx, mp.Tenant())
		c.Request = c.Request.WithContext(ctx)
		c.Set("tenant_id", tenantID)

		c.Next()
	}
}

func tenantError(tenantID string, err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return apperror.NewNotFound("tenant", tenantID)
	case errors.Is(err, tenant.ErrTenantNotActive):
		return apperror.NewForbidden("tenant is not active").WithDetail("tenant_id", tenantID)
	case errors.Is(err, tenant.ErrMaxPoolLimit):
		appErr := apperror.NewInternal(err)
		appErr.HTTPStatus = http.StatusServiceUnavailable
		appErr.Message = "service temporarily unavailable"
		return appErr.WithDetail("tenant_id", tenantID)
	}
	return apperror.NewInternal(err).WithDetail("tenant_id", tenantID)
}
