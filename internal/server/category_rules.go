package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
)

func (s *Server) ListCategoryRules(c *gin.Context) {
	rules, err := s.categorySvc.ListRules(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"rules": rules}})
}

// RecalculateCategories runs a full recalculation synchronously. The nightly
// scheduler runs the same operation; this endpoint exists for operators who
// changed the ruleset and want the new tiers now.
func (s *Server) RecalculateCategories(c *gin.Context) {
	summary, err := s.categorySvc.Recalculate(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context()); ok {
		s.reportSvc.InvalidateTenant(tenantID)
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
