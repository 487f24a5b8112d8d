// Package calendar projects rent due dates, payments, lease ends and
// vacancy starts onto the days of one month.
package calendar

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"github.com/smallbiznis/rentflow/pkg/apperr"
	"github.com/smallbiznis/rentflow/pkg/datex"
	pkgdb "github.com/smallbiznis/rentflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EventType string

const (
	EventPaymentDue  EventType = "payment_due"
	EventPaymentDone EventType = "payment_done"
	EventLeaseEnd    EventType = "lease_end"
	EventVacancy     EventType = "vacancy"
)

var (
	ErrInvalidOrganization = apperr.Validation("invalid_organization", "organization is required")
	ErrInvalidMonth        = apperr.Validation("invalid_month", "month must be between 1 and 12")
	ErrInvalidYear         = apperr.Validation("invalid_year", "year is out of range")
)

type Event struct {
	ID           string       `json:"id"`
	Type         EventType    `json:"type"`
	Date         time.Time    `json:"date"`
	Title        string       `json:"title"`
	Amount       int64        `json:"amount,omitempty"`
	IsPaid       bool         `json:"is_paid,omitempty"`
	LeaseID      snowflake.ID `json:"lease_id,omitempty"`
	PropertyID   snowflake.ID `json:"property_id"`
	PropertyName string       `json:"property_name"`
	TenantName   string       `json:"tenant_name,omitempty"`
}

// Day is every event falling on one date, in projection order.
type Day struct {
	Date   time.Time `json:"date"`
	Events []Event   `json:"events"`
}

// Projection is a read-only snapshot of one month. Events can be ranged any
// number of times.
type Projection struct {
	Year  int
	Month time.Month

	leases    []*domain.LeaseView
	payments  []*domain.PaymentView
	vacancies []*domain.VacancyView
	paid      map[snowflake.ID]bool
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Projector struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewProjector(p Params) *Projector {
	return &Projector{db: p.DB, log: p.Log.Named("calendar.projector"), repo: p.Repo}
}

// Project loads the owner's leases, the payments for (month, year) and the
// vacancies once.
func (p *Projector) Project(ctx context.Context, month, year int) (*Projection, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, ErrInvalidOrganization
	}
	if month < 1 || month > 12 {
		return nil, ErrInvalidMonth
	}
	if year < 1900 || year > 9999 {
		return nil, ErrInvalidYear
	}

	leases, err := p.repo.ListLeases(ctx, p.db, orgID, domain.LeaseFilter{})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	payments, err := p.repo.ListPayments(ctx, p.db, orgID, domain.PaymentFilter{Year: year, Month: month})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	vacancies, err := p.repo.ListVacancies(ctx, p.db, orgID, domain.VacancyFilter{})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	return newProjection(year, time.Month(month), leases, payments, vacancies), nil
}

func newProjection(year int, month time.Month, leases []*domain.LeaseView, payments []*domain.PaymentView, vacancies []*domain.VacancyView) *Projection {
	proj := &Projection{
		Year:      year,
		Month:     month,
		leases:    leases,
		payments:  payments,
		vacancies: vacancies,
		paid:      make(map[snowflake.ID]bool, len(payments)),
	}
	for _, pay := range payments {
		if pay.PeriodYear == year && time.Month(pay.PeriodMonth) == month {
			proj.paid[pay.LeaseID] = true
		}
	}
	return proj
}

// Events yields payment_due, payment_done, lease_end and vacancy events in
// that order.
func (p *Projection) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, l := range p.leases {
			if !l.Covers(p.Year, p.Month) {
				continue
			}
			ev := Event{
				ID:           fmt.Sprintf("payment-%s-%d-%d", l.ID, int(p.Month), p.Year),
				Type:         EventPaymentDue,
				Date:         l.DueDate(p.Year, p.Month),
				Title:        "Rent due: " + l.TenantName,
				Amount:       l.AmountDue(),
				IsPaid:       p.paid[l.ID],
				LeaseID:      l.ID,
				PropertyID:   l.PropertyID,
				PropertyName: l.PropertyName,
				TenantName:   l.TenantName,
			}
			if !yield(ev) {
				return
			}
		}
		for _, pay := range p.payments {
			if pay.PeriodYear != p.Year || time.Month(pay.PeriodMonth) != p.Month {
				continue
			}
			ev := Event{
				ID:           fmt.Sprintf("paid-%s", pay.ID),
				Type:         EventPaymentDone,
				Date:         datex.Day(pay.PaymentDate),
				Title:        "Rent received: " + pay.TenantName,
				Amount:       pay.Amount,
				IsPaid:       true,
				LeaseID:      pay.LeaseID,
				PropertyID:   pay.PropertyID,
				PropertyName: pay.PropertyName,
				TenantName:   pay.TenantName,
			}
			if !yield(ev) {
				return
			}
		}
		for _, l := range p.leases {
			if l.EndDate == nil || !datex.SameMonth(*l.EndDate, p.Year, p.Month) {
				continue
			}
			ev := Event{
				ID:           fmt.Sprintf("lease-end-%s", l.ID),
				Type:         EventLeaseEnd,
				Date:         datex.Day(*l.EndDate),
				Title:        "Lease ends: " + l.TenantName,
				LeaseID:      l.ID,
				PropertyID:   l.PropertyID,
				PropertyName: l.PropertyName,
				TenantName:   l.TenantName,
			}
			if !yield(ev) {
				return
			}
		}
		for _, v := range p.vacancies {
			if !datex.SameMonth(v.StartDate, p.Year, p.Month) {
				continue
			}
			ev := Event{
				ID:           fmt.Sprintf("vacancy-%s", v.ID),
				Type:         EventVacancy,
				Date:         datex.Day(v.StartDate),
				Title:        "Vacant: " + v.PropertyName,
				PropertyID:   v.PropertyID,
				PropertyName: v.PropertyName,
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Days groups events by date in ascending order. Events sharing a date are
// all kept.
func (p *Projection) Days() []Day {
	byDate := map[time.Time]*Day{}
	for ev := range p.Events() {
		d, ok := byDate[ev.Date]
		if !ok {
			d = &Day{Date: ev.Date}
			byDate[ev.Date] = d
		}
		d.Events = append(d.Events, ev)
	}
	days := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, *d)
	}
	slices.SortFunc(days, func(a, b Day) int { return a.Date.Compare(b.Date) })
	return days
}
