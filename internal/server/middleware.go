package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
)

// TenantRequired resolves the caller's tenant from the X-Tenant-ID header and
// stores it in the request context. Every service call downstream reads the
// tenant from context only; a request without a resolvable tenant never
// reaches a handler.
func (s *Server) TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Tenant-ID"))

		var tenantID snowflake.ID
		if raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("tenant", "invalid_tenant", "invalid tenant"))
				return
			}
			tenantID = parsed
		} else if s.cfg.DefaultTenantID != 0 {
			tenantID = snowflake.ID(s.cfg.DefaultTenantID)
		} else {
			AbortWithError(c, newValidationError("tenant", "invalid_tenant", "missing X-Tenant-ID header"))
			return
		}

		ctx := tenantctx.WithTenantID(c.Request.Context(), int64(tenantID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
