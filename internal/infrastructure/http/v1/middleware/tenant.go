package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/tenant"
	"produceledger/pkg/logger"
)

// TenantHeader is the HTTP header for tenant identification.
const TenantHeader = "X-Tenant-ID"

// TenantBinder resolves a tenant and returns ctx carrying its pool, TxManager
// and settings. release must be called once the request is done.
type TenantBinder func(ctx context.Context, tenantID string) (context.Context, func(), error)

// TenantDB resolves the tenant from X-Tenant-ID and binds its database to the
// request context. It must run before anything touches the database.
func TenantDB(bind TenantBinder) gin.HandlerFunc {
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
			_ = c.Error(
				apperror.NewValidation("invalid tenant id").
					WithDetail("header", TenantHeader).
					WithDetail("value", raw),
			)
			c.Abort()
			return
		}
		tenantID := parsed.String()

		bound, release, err := bind(ctx, tenantID)
		if err != nil {
			logger.Warn(ctx, "tenant pool error", "tenant_id", tenantID, "error", err)
			_ = c.Error(tenantError(tenantID, err))
			c.Abort()
			return
		}
		defer release()

		c.Request = c.Request.WithContext(bound)
		c.Set("tenant_id", tenantID)

		c.Next()
	}
}

func tenantError(tenantID string, err error) *apperror.AppError {
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
	default:
		return apperror.NewInternal(err).WithDetail("tenant_id", tenantID)
	}
}

// RequireFeature rejects requests to a module the tenant has switched off.
func RequireFeature(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tenant.SettingsFromContext(c.Request.Context()).FeatureEnabled(name) {
			_ = c.Error(apperror.NewFeatureDisabled(name))
			c.Abort()
			return
		}
		c.Next()
	}
}
