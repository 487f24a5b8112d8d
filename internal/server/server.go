package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rentflow/internal/alert"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
	"github.com/smallbiznis/rentflow/internal/calendar"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/smallbiznis/rentflow/internal/dashboard"
	lifecycledomain "github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	notificationdomain "github.com/smallbiznis/rentflow/internal/notification/domain"
	"github.com/smallbiznis/rentflow/internal/observability"
	obslogger "github.com/smallbiznis/rentflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rentflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rentflow/internal/observability/tracing"
	propertydomain "github.com/smallbiznis/rentflow/internal/property/domain"
	"github.com/smallbiznis/rentflow/internal/ratelimit"
	"github.com/smallbiznis/rentflow/internal/receipt"
	"github.com/smallbiznis/rentflow/internal/reminder"
	tenantdomain "github.com/smallbiznis/rentflow/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	log             *zap.Logger
	clock           clock.Clock
	propertySvc     propertydomain.Service
	tenantSvc       tenantdomain.Service
	coordinator     lifecycledomain.Coordinator
	notificationSvc notificationdomain.Service
	auditSvc        auditdomain.Service
	alertEngine     *alert.Engine
	calendar        *calendar.Projector
	dashboard       *dashboard.Service
	reminders       *reminder.Service
	receipts        *receipt.Service
	evaluateLimiter *ratelimit.EvaluateLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Log             *zap.Logger
	Clock           clock.Clock
	PropertySvc     propertydomain.Service
	TenantSvc       tenantdomain.Service
	Coordinator     lifecycledomain.Coordinator
	NotificationSvc notificationdomain.Service
	AuditSvc        auditdomain.Service
	AlertEngine     *alert.Engine
	Calendar        *calendar.Projector
	Dashboard       *dashboard.Service
	Reminders       *reminder.Service
	Receipts        *receipt.Service
	EvaluateLimiter *ratelimit.EvaluateLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		log:             p.Log.Named("http"),
		clock:           p.Clock,
		propertySvc:     p.PropertySvc,
		tenantSvc:       p.TenantSvc,
		coordinator:     p.Coordinator,
		notificationSvc: p.NotificationSvc,
		auditSvc:        p.AuditSvc,
		alertEngine:     p.AlertEngine,
		calendar:        p.Calendar,
		dashboard:       p.Dashboard,
		reminders:       p.Reminders,
		receipts:        p.Receipts,
		evaluateLimiter: p.EvaluateLimiter,
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", OwnerContext())

	// -------- Properties --------
	api.GET("/properties", s.ListProperties)
	api.POST("/properties", s.CreateProperty)
	api.GET("/properties/:id", s.GetProperty)
	api.PUT("/properties/:id", s.UpdateProperty)
	api.DELETE("/properties/:id", s.DeleteProperty)

	// -------- Tenants --------
	api.GET("/tenants", s.ListTenants)
	api.POST("/tenants", s.CreateTenant)
	api.GET("/tenants/:id", s.GetTenant)
	api.PUT("/tenants/:id", s.UpdateTenant)
	api.DELETE("/tenants/:id", s.DeleteTenant)

	// -------- Leases & vacancies --------
	api.GET("/leases", s.ListLeases)
	api.POST("/leases", s.CreateLease)
	api.GET("/leases/:id", s.GetLease)
	api.POST("/leases/:id/terminate", s.TerminateLease)
	api.GET("/vacancies", s.ListVacancies)
	api.POST("/vacancies", s.DeclareVacancy)
	api.POST("/vacancies/:id/end", s.EndVacancy)

	// -------- Payments --------
	api.GET("/payments", s.ListPayments)
	api.POST("/payments", s.RecordPayment)
	api.GET("/payments/:id", s.GetPayment)
	api.DELETE("/payments/:id", s.DeletePayment)
	api.GET("/payments/:id/receipt", s.GetPaymentReceipt)
	api.GET("/export/payments/excel", s.ExportPayments)

	// -------- Notifications --------
	api.GET("/notifications", s.ListNotifications)
	api.POST("/notifications/read-all", s.MarkAllNotificationsRead)
	api.POST("/notifications/evaluate", s.EvaluateRateLimit(), s.EvaluateAlerts)
	api.GET("/notifications/settings", s.GetNotificationSettings)
	api.PUT("/notifications/settings", s.UpdateNotificationSettings)
	api.POST("/notifications/:id/read", s.MarkNotificationRead)

	api.GET("/audit-entries", s.ListAuditEntries)
	api.GET("/calendar", s.GetCalendar)
	api.GET("/dashboard", s.GetDashboard)
	api.GET("/reminders/pending", s.ListPendingReminders)
}
