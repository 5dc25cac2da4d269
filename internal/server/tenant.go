package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
)

// GetTenantSummary serves the tenant-wide rollup. The path tenant must match
// the tenant resolved from the request context; a mismatch is a cross-tenant
// probe and is rejected, never silently re-scoped.
func (s *Server) GetTenantSummary(c *gin.Context) {
	pathTenant, err := snowflake.ParseString(strings.TrimSpace(c.Param("tenant_id")))
	if err != nil || pathTenant == 0 {
		AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "invalid tenant"))
		return
	}

	ctxTenant, ok := tenantctx.TenantIDFromContext(c.Request.Context())
	if !ok || ctxTenant != pathTenant {
		AbortWithError(c, ErrForbidden)
		return
	}

	resp, err := s.reportSvc.TenantSummary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
