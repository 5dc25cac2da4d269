package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/duekeeper/internal/export"
	reportdomain "github.com/smallbiznis/duekeeper/internal/report/domain"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
)

func (s *Server) ListDebtors(c *gin.Context) {
	var query reportdomain.DebtorsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reportSvc.Debtors(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFollowUpStats(c *gin.Context) {
	resp, err := s.reportSvc.FollowUpStats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExportDebtors(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context()); ok {
		result, err := s.exportLimiter.Allow(c.Request.Context(), tenantID)
		if err == nil && !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	req := reportdomain.DebtorsRequest{
		Search:   strings.TrimSpace(c.Query("search")),
		Category: strings.TrimSpace(c.Query("category")),
		Bucket:   strings.TrimSpace(c.Query("bucket")),
	}

	file, err := s.exportSvc.Debtors(c.Request.Context(), req, format)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
