package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"github.com/smallbiznis/duekeeper/pkg/db/pagination"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
)

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name     string `form:"name"`
		Search   string `form:"search"`
		Category string `form:"category"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Name:      strings.TrimSpace(query.Name),
		Search:    strings.TrimSpace(query.Search),
		Category:  strings.TrimSpace(query.Category),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type scheduleFollowUpRequest struct {
	FollowUpAt     *time.Time `json:"follow_up_at"`
	NextFollowUpAt *time.Time `json:"next_follow_up_at"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes"`
}

func (s *Server) ScheduleFollowUp(c *gin.Context) {
	customerID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || customerID == 0 {
		AbortWithError(c, customerdomain.ErrInvalidID)
		return
	}

	var req scheduleFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	domainReq := ledgerdomain.ScheduleFollowUpRequest{
		CustomerID:     customerID,
		NextFollowUpAt: req.NextFollowUpAt,
		Status:         strings.TrimSpace(req.Status),
		Notes:          strings.TrimSpace(req.Notes),
	}
	if req.FollowUpAt != nil {
		domainReq.FollowUpAt = *req.FollowUpAt
	}

	resp, err := s.ledgerSvc.ScheduleFollowUp(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The new follow-up moves the customer between buckets, so the cached
	// follow-up stats and tenant summary are stale until recomputed.
	if tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context()); ok {
		s.reportSvc.InvalidateTenant(tenantID)
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
