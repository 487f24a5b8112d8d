package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	lifecycledomain "github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	"github.com/smallbiznis/rentflow/internal/receipt"
)

type createLeaseRequest struct {
	PropertyID string  `json:"property_id"`
	TenantID   string  `json:"tenant_id"`
	StartDate  string  `json:"start_date"`
	EndDate    *string `json:"end_date"`
	RentAmount *int64  `json:"rent_amount"`
	Charges    *int64  `json:"charges"`
	Deposit    int64   `json:"deposit"`
	PaymentDay int     `json:"payment_day"`
	Notes      string  `json:"notes"`
}

type endDateRequest struct {
	EndDate string `json:"end_date"`
}

type declareVacancyRequest struct {
	PropertyID string `json:"property_id"`
	StartDate  string `json:"start_date"`
	Reason     string `json:"reason"`
}

type recordPaymentRequest struct {
	LeaseID     string `json:"lease_id"`
	Amount      int64  `json:"amount"`
	PaymentDate string `json:"payment_date"`
	PeriodMonth int    `json:"period_month"`
	PeriodYear  int    `json:"period_year"`
	Method      string `json:"method"`
	Notes       string `json:"notes"`
}

var (
	errInvalidStartDate   = invalidField("invalid_start_date", "start_date must be YYYY-MM-DD")
	errInvalidEndDate     = invalidField("invalid_end_date", "end_date must be YYYY-MM-DD")
	errInvalidPaymentDate = invalidField("invalid_payment_date", "payment_date must be YYYY-MM-DD")
)

func (s *Server) CreateLease(c *gin.Context) {
	var req createLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, errInvalidStartDate)
		return
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		AbortWithError(c, errInvalidEndDate)
		return
	}

	resp, err := s.coordinator.CreateLease(c.Request.Context(), lifecycledomain.CreateLeaseRequest{
		PropertyID: req.PropertyID,
		TenantID:   req.TenantID,
		StartDate:  start,
		EndDate:    end,
		RentAmount: req.RentAmount,
		Charges:    req.Charges,
		Deposit:    req.Deposit,
		PaymentDay: req.PaymentDay,
		Notes:      req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListLeases(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, invalidField("invalid_active", "active must be true or false"))
		return
	}

	resp, err := s.coordinator.ListLeases(c.Request.Context(), lifecycledomain.ListLeasesRequest{
		Active:     active,
		PropertyID: c.Query("property_id"),
		TenantID:   c.Query("tenant_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLease(c *gin.Context) {
	resp, err := s.coordinator.GetLease(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TerminateLease(c *gin.Context) {
	var req endDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		AbortWithError(c, errInvalidEndDate)
		return
	}

	resp, err := s.coordinator.TerminateLease(c.Request.Context(), lifecycledomain.TerminateLeaseRequest{
		LeaseID: strings.TrimSpace(c.Param("id")),
		EndDate: end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeclareVacancy(c *gin.Context) {
	var req declareVacancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, errInvalidStartDate)
		return
	}

	resp, err := s.coordinator.DeclareVacancy(c.Request.Context(), lifecycledomain.DeclareVacancyRequest{
		PropertyID: req.PropertyID,
		StartDate:  start,
		Reason:     req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListVacancies(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, invalidField("invalid_active", "active must be true or false"))
		return
	}

	resp, err := s.coordinator.ListVacancies(c.Request.Context(), lifecycledomain.ListVacanciesRequest{
		Active:     active,
		PropertyID: c.Query("property_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EndVacancy(c *gin.Context) {
	var req endDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		AbortWithError(c, errInvalidEndDate)
		return
	}

	resp, err := s.coordinator.EndVacancy(c.Request.Context(), lifecycledomain.EndVacancyRequest{
		VacancyID: strings.TrimSpace(c.Param("id")),
		EndDate:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	in := lifecycledomain.RecordPaymentRequest{
		LeaseID:     req.LeaseID,
		Amount:      req.Amount,
		PeriodMonth: req.PeriodMonth,
		PeriodYear:  req.PeriodYear,
		Method:      req.Method,
		Notes:       req.Notes,
	}
	if strings.TrimSpace(req.PaymentDate) != "" {
		paid, err := parseDate(req.PaymentDate)
		if err != nil {
			AbortWithError(c, errInvalidPaymentDate)
			return
		}
		in.PaymentDate = paid
	}

	resp, err := s.coordinator.RecordPayment(c.Request.Context(), in)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	year, err := parseOptionalInt(c.Query("year"))
	if err != nil {
		AbortWithError(c, invalidField("invalid_year", "year must be a number"))
		return
	}

	resp, err := s.coordinator.ListPayments(c.Request.Context(), lifecycledomain.ListPaymentsRequest{
		LeaseID: c.Query("lease_id"),
		Year:    year,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayment(c *gin.Context) {
	resp, err := s.coordinator.GetPayment(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePayment(c *gin.Context) {
	if err := s.coordinator.DeletePayment(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetPaymentReceipt(c *gin.Context) {
	doc, err := s.receipts.Render(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, receipt.ContentType, doc.Body)
}

func (s *Server) ExportPayments(c *gin.Context) {
	year, err := parseOptionalInt(c.Query("year"))
	if err != nil {
		AbortWithError(c, invalidField("invalid_year", "year must be a number"))
		return
	}

	doc, err := s.receipts.ExportPayments(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, receipt.LedgerContentType, doc.Body)
}
