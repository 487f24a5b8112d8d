package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
	"github.com/smallbiznis/rentflow/pkg/db/pagination"
)

func (s *Server) ListAuditEntries(c *gin.Context) {
	var query struct {
		pagination.Pagination
		EntityKind string `form:"entity_kind"`
		EntityID   string `form:"entity_id"`
		Action     string `form:"action"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListRequest{
		Pagination: query.Pagination,
		EntityKind: strings.TrimSpace(query.EntityKind),
		EntityID:   strings.TrimSpace(query.EntityID),
		Action:     strings.TrimSpace(query.Action),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Entries, "page_info": resp.PageInfo})
}

// GetCalendar defaults to the current month when month or year is omitted.
func (s *Server) GetCalendar(c *gin.Context) {
	now := s.clock.Now()
	month, err := parseOptionalInt(c.Query("month"))
	if err != nil {
		AbortWithError(c, invalidField("invalid_month", "month must be a number"))
		return
	}
	year, err := parseOptionalInt(c.Query("year"))
	if err != nil {
		AbortWithError(c, invalidField("invalid_year", "year must be a number"))
		return
	}
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}

	projection, err := s.calendar.Project(c.Request.Context(), month, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"year":  projection.Year,
		"month": int(projection.Month),
		"days":  projection.Days(),
	}})
}

func (s *Server) GetDashboard(c *gin.Context) {
	stats, err := s.dashboard.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) ListPendingReminders(c *gin.Context) {
	pending, err := s.reminders.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pending})
}
