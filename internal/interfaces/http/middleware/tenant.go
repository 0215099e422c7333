package middleware

import (
	"net/http"
	"strings"

	"github.com/academy/backend/internal/infrastructure/logger"
	"github.com/academy/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tenant context keys
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// SubdomainEnabled resolves "<tenant-uuid>.<BaseDomain>" hosts when no header is sent
	SubdomainEnabled bool
	BaseDomain       string
	// SkipPaths are paths that don't require tenant context (e.g., health check)
	SkipPaths []string
	// Required rejects requests that carry no tenant
	Required bool
	Logger   *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready"},
		Required:  true,
	}
}

// Tenant resolves the academy a request acts for. Every ledger operation is
// tenant-scoped, so by default a request without a valid tenant UUID is
// rejected with 401 before it reaches a handler.
func Tenant(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		raw := strings.TrimSpace(c.GetHeader(TenantHeaderKey))
		method := "header"
		if raw == "" && cfg.SubdomainEnabled && cfg.BaseDomain != "" {
			raw = extractTenantFromSubdomain(c.Request.Host, cfg.BaseDomain)
			method = "subdomain"
		}

		if raw == "" {
			if cfg.Required {
				abortTenant(c, dto.ErrCodeTenantRequired, "Tenant identification required")
				return
			}
			c.Next()
			return
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			abortTenant(c, dto.ErrCodeUnauthorized, "Invalid tenant ID format")
			return
		}

		c.Set(TenantIDKey, tenantID.String())
		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID.String())
		c.Request = c.Request.WithContext(ctx)

		log.Debug("tenant identified",
			zap.String("tenant_id", tenantID.String()),
			zap.String("method", method),
		)
		c.Next()
	}
}

// extractTenantFromSubdomain returns the first label of host below baseDomain,
// e.g. "abc.academy.app" with "academy.app" gives "abc".
func extractTenantFromSubdomain(host, baseDomain string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.HasSuffix(host, "."+baseDomain) {
		return ""
	}
	sub := strings.TrimSuffix(host, "."+baseDomain)
	if sub == "" || sub == "www" {
		return ""
	}
	return strings.Split(sub, ".")[0]
}

func abortTenant(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetTenantID returns the tenant ID stored by Tenant, or "".
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantUUID returns the tenant ID stored by Tenant, or uuid.Nil.
func GetTenantUUID(c *gin.Context) uuid.UUID {
	id, err := uuid.Parse(GetTenantID(c))
	if err != nil {
		return uuid.Nil
	}
	return id
}
