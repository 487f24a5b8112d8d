// Package reminder finds unpaid rent for the current month and hands due
// reminders to the email dispatcher through the event publisher.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/smallbiznis/rentflow/internal/events"
	lifecycledomain "github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	notificationdomain "github.com/smallbiznis/rentflow/internal/notification/domain"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	tenantdomain "github.com/smallbiznis/rentflow/internal/tenant/domain"
	"github.com/smallbiznis/rentflow/pkg/apperr"
	"github.com/smallbiznis/rentflow/pkg/datex"
	pkgdb "github.com/smallbiznis/rentflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidOrganization = apperr.Validation("invalid_organization", "organization is required")

// Pending is one active lease with no payment recorded for the current period.
type Pending struct {
	LeaseID      snowflake.ID `json:"lease_id"`
	PropertyID   snowflake.ID `json:"property_id"`
	PropertyName string       `json:"property_name"`
	TenantID     snowflake.ID `json:"tenant_id"`
	TenantName   string       `json:"tenant_name"`
	TenantEmail  string       `json:"tenant_email,omitempty"`
	Period       string       `json:"period"`
	DueDate      string       `json:"due_date"`
	AmountDue    int64        `json:"amount_due"`
}

// Result summarizes one dispatch pass.
type Result struct {
	Owners    int
	Published int
	Skipped   int
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Config    config.Config
	Leases    lifecycledomain.Repository
	Tenants   tenantdomain.Repository
	Settings  notificationdomain.Repository
	Publisher events.Publisher
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	hour      int
	leases    lifecycledomain.Repository
	tenants   tenantdomain.Repository
	settings  notificationdomain.Repository
	publisher events.Publisher
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reminder.service"),
		clock:     p.Clock,
		hour:      p.Config.Scheduler.ReminderHour,
		leases:    p.Leases,
		tenants:   p.Tenants,
		settings:  p.Settings,
		publisher: p.Publisher,
	}
}

// List returns the pending rent of the owner in ctx as of the clock's now.
func (s *Service) List(ctx context.Context) ([]Pending, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, ErrInvalidOrganization
	}
	return s.Pending(ctx, orgID, s.clock.Now())
}

func (s *Service) Pending(ctx context.Context, orgID snowflake.ID, now time.Time) ([]Pending, error) {
	period := lifecycledomain.Period{Year: now.Year(), Month: now.Month()}

	active := true
	leases, err := s.leases.ListLeases(ctx, s.db, orgID, lifecycledomain.LeaseFilter{Active: &active})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	payments, err := s.leases.ListPayments(ctx, s.db, orgID, lifecycledomain.PaymentFilter{Year: period.Year, Month: int(period.Month)})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	paid := make(map[snowflake.ID]struct{}, len(payments))
	for _, p := range payments {
		paid[p.LeaseID] = struct{}{}
	}

	out := make([]Pending, 0, len(leases))
	for _, l := range leases {
		if _, ok := paid[l.ID]; ok {
			continue
		}
		item := Pending{
			LeaseID:      l.ID,
			PropertyID:   l.PropertyID,
			PropertyName: l.PropertyName,
			TenantID:     l.TenantID,
			TenantName:   l.TenantName,
			Period:       period.String(),
			DueDate:      datex.Format(l.DueDate(period.Year, period.Month)),
			AmountDue:    l.AmountDue(),
		}
		tenant, err := s.tenants.FindByID(ctx, s.db, orgID, l.TenantID)
		if err != nil {
			return nil, pkgdb.Classify(err)
		}
		if tenant != nil {
			item.TenantEmail = tenant.Email
		}
		out = append(out, item)
	}
	return out, nil
}

// Due reports whether an owner's reminder frequency falls on now's day and
// the day has not been handled yet.
func Due(settings *notificationdomain.Settings, now time.Time) bool {
	if settings == nil || !settings.EmailReminders {
		return false
	}
	today := datex.Day(now)
	if settings.LastReminderOn != nil && datex.Day(*settings.LastReminderOn).Equal(today) {
		return false
	}
	switch settings.ReminderFrequency {
	case notificationdomain.FrequencyDaily:
		return true
	case notificationdomain.FrequencyWeekly:
		return today.Weekday() == time.Monday
	case notificationdomain.FrequencyMonthly:
		return today.Day() == 1
	}
	return false
}

// Dispatch publishes one reminder.due event per pending lease for every
// owner whose reminders are due, then stamps the day. Before the configured
// hour it does nothing. A failing owner is left unstamped so the next pass
// retries it.
func (s *Service) Dispatch(ctx context.Context, now time.Time) (Result, error) {
	var result Result
	if now.Hour() < s.hour {
		return result, nil
	}

	owners, err := s.settings.ListReminderSettings(ctx, s.db)
	if err != nil {
		return result, pkgdb.Classify(err)
	}

	var errs []error
	for _, settings := range owners {
		if !Due(settings, now) {
			result.Skipped++
			continue
		}
		published, err := s.dispatchOwner(ctx, settings.OrgID, now)
		result.Published += published
		if err != nil {
			s.log.Warn("reminder dispatch failed", zap.String("org_id", settings.OrgID.String()), zap.Error(err))
			errs = append(errs, fmt.Errorf("org %s: %w", settings.OrgID, err))
			continue
		}
		result.Owners++
	}
	return result, errors.Join(errs...)
}

// eventID names one reminder for a lease, period and day. An owner left
// unstamped by a failed pass republishes under the same IDs.
func eventID(item Pending, now time.Time) string {
	return "reminder:" + item.LeaseID.String() + ":" + item.Period + ":" + datex.Format(datex.Day(now))
}

func (s *Service) dispatchOwner(ctx context.Context, orgID snowflake.ID, now time.Time) (int, error) {
	pending, err := s.Pending(ctx, orgID, now)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, item := range pending {
		event := events.NewWithID(eventID(item, now), events.TypeReminderDue, orgID.String(), now, item)
		if err := s.publisher.Publish(ctx, event); err != nil {
			return published, err
		}
		published++
	}
	if err := s.settings.StampReminder(ctx, s.db, orgID, datex.Day(now)); err != nil {
		return published, pkgdb.Classify(err)
	}
	s.log.Info("reminders dispatched", zap.String("org_id", orgID.String()), zap.Int("count", published))
	return published, nil
}
