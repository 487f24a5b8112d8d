package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/rentflow/internal/notification/domain"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"go.uber.org/zap"
)

type updateSettingsRequest struct {
	LatePaymentEnabled  *bool   `json:"late_payment_enabled"`
	LatePaymentDays     *int    `json:"late_payment_days"`
	LeaseEndingEnabled  *bool   `json:"lease_ending_enabled"`
	LeaseEndingDays     *int    `json:"lease_ending_days"`
	VacancyAlertEnabled *bool   `json:"vacancy_alert_enabled"`
	VacancyAlertDays    *int    `json:"vacancy_alert_days"`
	EmailReminders      *bool   `json:"email_reminders"`
	ReminderFrequency   *string `json:"reminder_frequency"`
}

func (s *Server) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := s.notificationSvc.List(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	unread, err := s.notificationSvc.UnreadCount(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "unread_count": unread})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	if err := s.notificationSvc.MarkRead(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := s.notificationSvc.MarkAllRead(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated": updated}})
}

func (s *Server) GetNotificationSettings(c *gin.Context) {
	resp, err := s.notificationSvc.GetSettings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// UpdateNotificationSettings runs an immediate pass when a rule is switched
// back on so alerts it missed while disabled show up without waiting for the
// scheduler.
func (s *Server) UpdateNotificationSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	resp, err := s.notificationSvc.UpdateSettings(ctx, notificationdomain.UpdateSettingsRequest{
		LatePaymentEnabled:  req.LatePaymentEnabled,
		LatePaymentDays:     req.LatePaymentDays,
		LeaseEndingEnabled:  req.LeaseEndingEnabled,
		LeaseEndingDays:     req.LeaseEndingDays,
		VacancyAlertEnabled: req.VacancyAlertEnabled,
		VacancyAlertDays:    req.VacancyAlertDays,
		EmailReminders:      req.EmailReminders,
		ReminderFrequency:   req.ReminderFrequency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if len(resp.Reenabled) > 0 {
		if _, err := s.alertEngine.Evaluate(ctx, resp.Settings.OrgID, s.clock.Now()); err != nil {
			s.log.Warn("alert pass after re-enabling rules failed",
				zap.String("org_id", resp.Settings.OrgID.String()),
				zap.Error(err),
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Settings})
}

// EvaluateAlerts runs the alert pass for the caller synchronously.
func (s *Server) EvaluateAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, notificationdomain.ErrInvalidOrganization)
		return
	}

	report, err := s.alertEngine.Evaluate(ctx, orgID, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
