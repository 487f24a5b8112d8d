// Package dashboard aggregates the owner's portfolio figures for the home page.
package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/smallbiznis/rentflow/internal/clock"
	lifecycledomain "github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	notificationdomain "github.com/smallbiznis/rentflow/internal/notification/domain"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	propertydomain "github.com/smallbiznis/rentflow/internal/property/domain"
	tenantdomain "github.com/smallbiznis/rentflow/internal/tenant/domain"
	"github.com/smallbiznis/rentflow/pkg/apperr"
	pkgdb "github.com/smallbiznis/rentflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const chartPeriods = 6

var ErrInvalidOrganization = apperr.Validation("invalid_organization", "organization is required")

type RevenuePoint struct {
	Period string `json:"period"`
	Amount int64  `json:"amount"`
}

type Stats struct {
	TotalProperties     int            `json:"total_properties"`
	OccupiedProperties  int            `json:"occupied_properties"`
	VacantProperties    int            `json:"vacant_properties"`
	TotalTenants        int            `json:"total_tenants"`
	ActiveLeases        int            `json:"active_leases"`
	MonthlyExpected     int64          `json:"monthly_expected"`
	CollectedThisMonth  int64          `json:"collected_this_month"`
	PendingAmount       int64          `json:"pending_amount"`
	ActiveVacancies     int            `json:"active_vacancies"`
	OccupancyRate       float64        `json:"occupancy_rate"`
	RevenueChart        []RevenuePoint `json:"revenue_chart"`
	UnreadNotifications int64          `json:"unread_notifications"`
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Properties    propertydomain.Repository
	Tenants       tenantdomain.Repository
	Leases        lifecycledomain.Repository
	Notifications notificationdomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	properties    propertydomain.Repository
	tenants       tenantdomain.Repository
	leases        lifecycledomain.Repository
	notifications notificationdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("dashboard.service"),
		clock:         p.Clock,
		properties:    p.Properties,
		tenants:       p.Tenants,
		leases:        p.Leases,
		notifications: p.Notifications,
	}
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return Stats{}, ErrInvalidOrganization
	}
	now := s.clock.Now().UTC()

	properties, err := s.properties.List(ctx, s.db, orgID, propertydomain.ListFilter{})
	if err != nil {
		return Stats{}, pkgdb.Classify(err)
	}
	tenants, err := s.tenants.List(ctx, s.db, orgID, tenantdomain.ListFilter{})
	if err != nil {
		return Stats{}, pkgdb.Classify(err)
	}
	active := true
	leases, err := s.leases.ListLeases(ctx, s.db, orgID, lifecycledomain.LeaseFilter{Active: &active})
	if err != nil {
		return Stats{}, pkgdb.Classify(err)
	}
	vacancies, err := s.leases.ListVacancies(ctx, s.db, orgID, lifecycledomain.VacancyFilter{Active: &active})
	if err != nil {
		return Stats{}, pkgdb.Classify(err)
	}
	thisMonth, err := s.leases.ListPayments(ctx, s.db, orgID, lifecycledomain.PaymentFilter{Year: now.Year(), Month: int(now.Month())})
	if err != nil {
		return Stats{}, pkgdb.Classify(err)
	}
	unread, err := s.notifications.CountUnread(ctx, s.db, orgID)
	if err != nil {
		return Stats{}, pkgdb.Classify(err)
	}
	chart, err := s.revenue(ctx, orgID.Int64())
	if err != nil {
		return Stats{}, pkgdb.Classify(err)
	}

	stats := Stats{
		TotalProperties:     len(properties),
		TotalTenants:        len(tenants),
		ActiveLeases:        len(leases),
		ActiveVacancies:     len(vacancies),
		RevenueChart:        chart,
		UnreadNotifications: unread,
	}
	for _, p := range properties {
		if p.IsOccupied {
			stats.OccupiedProperties++
		}
	}
	stats.VacantProperties = stats.TotalProperties - stats.OccupiedProperties
	if stats.TotalProperties > 0 {
		rate := float64(stats.OccupiedProperties) / float64(stats.TotalProperties) * 100
		stats.OccupancyRate = math.Round(rate*10) / 10
	}

	paid := make(map[int64]bool, len(thisMonth))
	for _, p := range thisMonth {
		stats.CollectedThisMonth += p.Amount
		paid[p.LeaseID.Int64()] = true
	}
	for _, l := range leases {
		stats.MonthlyExpected += l.AmountDue()
		if !paid[l.ID.Int64()] {
			stats.PendingAmount += l.AmountDue()
		}
	}
	return stats, nil
}

// revenue sums payments for the most recent periods that have any, oldest first.
func (s *Service) revenue(ctx context.Context, orgID int64) ([]RevenuePoint, error) {
	var rows []struct {
		PeriodYear  int
		PeriodMonth int
		Total       int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT period_year, period_month, SUM(amount) AS total
		 FROM payments
		 WHERE org_id = ?
		 GROUP BY period_year, period_month
		 ORDER BY period_year DESC, period_month DESC
		 LIMIT ?`,
		orgID, chartPeriods,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	points := make([]RevenuePoint, len(rows))
	for i, row := range rows {
		period := lifecycledomain.Period{Year: row.PeriodYear, Month: time.Month(row.PeriodMonth)}
		points[len(rows)-1-i] = RevenuePoint{Period: period.String(), Amount: row.Total}
	}
	return points, nil
}
