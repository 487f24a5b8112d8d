// Package alert derives late payment, lease ending and vacancy alerts from
// lifecycle state. A pass is idempotent: re-running it without a state change
// creates nothing.
package alert

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/events"
	lifecycledomain "github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	notificationdomain "github.com/smallbiznis/rentflow/internal/notification/domain"
	"github.com/smallbiznis/rentflow/internal/observability/metrics"
	"github.com/smallbiznis/rentflow/pkg/apperr"
	"github.com/smallbiznis/rentflow/pkg/datex"
	pkgdb "github.com/smallbiznis/rentflow/pkg/db"
	"github.com/smallbiznis/rentflow/pkg/relation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Leases        lifecycledomain.Repository
	Notifications notificationdomain.Repository
	Settings      notificationdomain.Service
	Publisher     events.Publisher
	Metrics       *metrics.Metrics `optional:"true"`
}

type Engine struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	leases        lifecycledomain.Repository
	notifications notificationdomain.Repository
	settings      notificationdomain.Service
	publisher     events.Publisher
	metrics       *metrics.Metrics
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:            p.DB,
		log:           p.Log.Named("alert.engine"),
		genID:         p.GenID,
		leases:        p.Leases,
		notifications: p.Notifications,
		settings:      p.Settings,
		publisher:     p.Publisher,
		metrics:       p.Metrics,
	}
}

// pass holds the state loaded once at the start of an owner's evaluation.
type pass struct {
	orgID     snowflake.ID
	now       time.Time
	today     time.Time
	settings  notificationdomain.Settings
	leases    map[snowflake.ID]*lifecycledomain.LeaseView
	ordered   []*lifecycledomain.LeaseView
	vacancies map[snowflake.ID]*lifecycledomain.VacancyView
	report    *Report
}

// EvaluateAll runs a pass for every owner with active lifecycle state or
// unread alerts. One owner failing does not stop the others.
func (e *Engine) EvaluateAll(ctx context.Context, now time.Time) (Report, error) {
	started := time.Now()
	defer func() { e.metrics.ObserveEvaluation(ctx, time.Since(started)) }()

	orgIDs, err := e.owners(ctx)
	if err != nil {
		return Report{}, pkgdb.Classify(err)
	}

	report := newReport()
	var errs []error
	for _, orgID := range orgIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		r, err := e.evaluate(ctx, orgID, now)
		report.merge(r)
		if err != nil {
			report.fail(orgID, "", relation.Ref{}, err)
			errs = append(errs, fmt.Errorf("org %s: %w", orgID, err))
		}
	}
	return report, errors.Join(errs...)
}

// Evaluate runs one pass for a single owner.
func (e *Engine) Evaluate(ctx context.Context, orgID snowflake.ID, now time.Time) (Report, error) {
	started := time.Now()
	defer func() { e.metrics.ObserveEvaluation(ctx, time.Since(started)) }()
	return e.evaluate(ctx, orgID, now)
}

func (e *Engine) evaluate(ctx context.Context, orgID snowflake.ID, now time.Time) (Report, error) {
	report := newReport()
	settings, err := e.settings.SettingsFor(ctx, orgID)
	if err != nil {
		return report, err
	}

	active := true
	leases, err := e.leases.ListLeases(ctx, e.db, orgID, lifecycledomain.LeaseFilter{Active: &active})
	if err != nil {
		return report, pkgdb.Classify(err)
	}
	vacancies, err := e.leases.ListVacancies(ctx, e.db, orgID, lifecycledomain.VacancyFilter{Active: &active})
	if err != nil {
		return report, pkgdb.Classify(err)
	}

	p := &pass{
		orgID:     orgID,
		now:       now.UTC(),
		today:     datex.Day(now),
		settings:  settings,
		leases:    make(map[snowflake.ID]*lifecycledomain.LeaseView, len(leases)),
		ordered:   leases,
		vacancies: make(map[snowflake.ID]*lifecycledomain.VacancyView, len(vacancies)),
		report:    &report,
	}
	for _, l := range leases {
		p.leases[l.ID] = l
	}
	for _, v := range vacancies {
		p.vacancies[v.PropertyID] = v
	}
	report.Owners = 1

	for _, t := range notificationdomain.Types {
		rule := settings.Rule(t)
		if !rule.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch t {
		case notificationdomain.TypeLatePayment:
			e.latePayment(ctx, p, rule)
		case notificationdomain.TypeLeaseEnding:
			e.leaseEnding(ctx, p, rule)
		case notificationdomain.TypeVacancyAlert:
			e.vacancyAlert(ctx, p, rule)
		}
	}

	if len(report.Failures) > 0 {
		e.log.Warn("alert pass finished with subject failures",
			zap.String("org_id", orgID.String()),
			zap.Int("failures", len(report.Failures)),
		)
	}
	return report, nil
}

func (e *Engine) latePayment(ctx context.Context, p *pass, rule notificationdomain.Rule) {
	t := notificationdomain.TypeLatePayment
	e.retire(ctx, p, t, func(n *notificationdomain.Notification) (bool, error) {
		lease, ok := p.leases[n.SubjectID]
		if !ok {
			return true, nil
		}
		period, ok := parsePeriod(n.MetadataString("period"))
		if !ok {
			var owed bool
			period, _, owed = owedPeriod(&lease.Lease, p.today)
			if !owed {
				return true, nil
			}
		}
		paid, err := e.leases.FindPaymentByPeriod(ctx, e.db, lease.ID, period)
		if err != nil {
			return false, err
		}
		return paid != nil, nil
	})

	for _, lease := range p.ordered {
		subject := relation.Lease(lease.ID)
		e.guard(ctx, p, t, subject, func() error {
			period, due, ok := owedPeriod(&lease.Lease, p.today)
			if !ok {
				return nil
			}
			daysLate := datex.DaysBetween(due, p.today)
			if daysLate < rule.ThresholdDays {
				return nil
			}
			paid, err := e.leases.FindPaymentByPeriod(ctx, e.db, lease.ID, period)
			if err != nil {
				return err
			}
			if paid != nil {
				return nil
			}
			return e.ensure(ctx, p, &notificationdomain.Notification{
				Type:        t,
				SubjectKind: relation.KindLease,
				SubjectID:   lease.ID,
				Title:       "Late payment",
				Message: fmt.Sprintf("Rent for %s (%s) due %s is %d days late",
					lease.PropertyName, lease.TenantName, datex.Format(due), daysLate),
				Metadata: datatypes.JSONMap{
					"period":        period.String(),
					"due_date":      datex.Format(due),
					"days_late":     daysLate,
					"amount_due":    lease.AmountDue(),
					"property_id":   lease.PropertyID.String(),
					"property_name": lease.PropertyName,
					"tenant_name":   lease.TenantName,
				},
			})
		})
	}
}

func (e *Engine) leaseEnding(ctx context.Context, p *pass, rule notificationdomain.Rule) {
	t := notificationdomain.TypeLeaseEnding
	inWindow := func(lease *lifecycledomain.LeaseView) (int, bool) {
		if lease.EndDate == nil {
			return 0, false
		}
		days := datex.DaysBetween(p.today, *lease.EndDate)
		return days, days >= 0 && days <= rule.ThresholdDays
	}

	e.retire(ctx, p, t, func(n *notificationdomain.Notification) (bool, error) {
		lease, ok := p.leases[n.SubjectID]
		if !ok {
			return true, nil
		}
		_, within := inWindow(lease)
		return !within, nil
	})

	for _, lease := range p.ordered {
		days, within := inWindow(lease)
		if !within {
			continue
		}
		e.guard(ctx, p, t, relation.Lease(lease.ID), func() error {
			return e.ensure(ctx, p, &notificationdomain.Notification{
				Type:        t,
				SubjectKind: relation.KindLease,
				SubjectID:   lease.ID,
				Title:       "Lease ending soon",
				Message: fmt.Sprintf("The lease of %s at %s ends on %s (%d days)",
					lease.TenantName, lease.PropertyName, datex.Format(*lease.EndDate), days),
				Metadata: datatypes.JSONMap{
					"end_date":      datex.Format(*lease.EndDate),
					"days_left":     days,
					"property_id":   lease.PropertyID.String(),
					"property_name": lease.PropertyName,
					"tenant_name":   lease.TenantName,
				},
			})
		})
	}
}

func (e *Engine) vacancyAlert(ctx context.Context, p *pass, rule notificationdomain.Rule) {
	t := notificationdomain.TypeVacancyAlert
	e.retire(ctx, p, t, func(n *notificationdomain.Notification) (bool, error) {
		vacancy, ok := p.vacancies[n.SubjectID]
		if !ok {
			return true, nil
		}
		return vacancy.Days(p.today) < rule.ThresholdDays, nil
	})

	for _, vacancy := range sortedVacancies(p.vacancies) {
		days := vacancy.Days(p.today)
		if days < rule.ThresholdDays {
			continue
		}
		e.guard(ctx, p, t, relation.Property(vacancy.PropertyID), func() error {
			return e.ensure(ctx, p, &notificationdomain.Notification{
				Type:        t,
				SubjectKind: relation.KindProperty,
				SubjectID:   vacancy.PropertyID,
				Title:       "Prolonged vacancy",
				Message:     fmt.Sprintf("%s has been vacant for %d days", vacancy.PropertyName, days),
				Metadata: datatypes.JSONMap{
					"vacancy_id":    vacancy.ID.String(),
					"start_date":    datex.Format(vacancy.StartDate),
					"days_vacant":   days,
					"property_name": vacancy.PropertyName,
				},
			})
		})
	}
}

// retire resolves every unread alert of type t whose condition no longer
// holds. It runs before creation so a cured alert frees its slot in the
// same pass.
func (e *Engine) retire(ctx context.Context, p *pass, t notificationdomain.Type, cleared func(*notificationdomain.Notification) (bool, error)) {
	unread, err := e.notifications.ListUnreadByType(ctx, e.db, p.orgID, t)
	if err != nil {
		e.subjectFailed(ctx, p, t, relation.Ref{}, pkgdb.Classify(err))
		return
	}
	stats := p.report.stats(t)
	for _, n := range unread {
		e.guard(ctx, p, t, n.Subject(), func() error {
			done, err := cleared(n)
			if err != nil || !done {
				return err
			}
			if err := e.notifications.Retire(ctx, e.db, n.ID, p.now); err != nil {
				return err
			}
			stats.Retired++
			e.metrics.RecordAlertRetired(ctx, string(t))
			return nil
		})
	}
}

// ensure inserts n unless an unread alert of the same type and subject
// exists. A concurrent insert losing the unique index race counts as existing.
func (e *Engine) ensure(ctx context.Context, p *pass, n *notificationdomain.Notification) error {
	stats := p.report.stats(n.Type)
	existing, err := e.notifications.FindUnread(ctx, e.db, p.orgID, n.Type, n.SubjectID)
	if err != nil {
		return err
	}
	if existing != nil {
		stats.Unchanged++
		return nil
	}

	n.ID = e.genID.Generate()
	n.OrgID = p.orgID
	n.CreatedAt = p.now
	if err := e.notifications.Insert(ctx, e.db, n); err != nil {
		if errors.Is(pkgdb.Classify(err), apperr.ErrDuplicate) {
			stats.Unchanged++
			return nil
		}
		return err
	}
	stats.Created++
	e.metrics.RecordAlertCreated(ctx, string(n.Type))
	e.publish(ctx, p, n)
	return nil
}

func (e *Engine) publish(ctx context.Context, p *pass, n *notificationdomain.Notification) {
	event := events.New(events.TypeNotificationCreated, p.orgID.String(), p.now, map[string]any{
		"notification_id": n.ID.String(),
		"type":            string(n.Type),
		"subject":         n.Subject().String(),
		"title":           n.Title,
		"message":         n.Message,
	})
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warn("failed to publish notification event",
			zap.String("notification_id", n.ID.String()),
			zap.Error(err),
		)
	}
}

func (e *Engine) guard(ctx context.Context, p *pass, t notificationdomain.Type, subject relation.Ref, fn func() error) {
	if err := fn(); err != nil {
		e.subjectFailed(ctx, p, t, subject, pkgdb.Classify(err))
	}
}

func (e *Engine) subjectFailed(ctx context.Context, p *pass, t notificationdomain.Type, subject relation.Ref, err error) {
	e.log.Warn("alert subject evaluation failed",
		zap.String("org_id", p.orgID.String()),
		zap.String("type", string(t)),
		zap.String("subject", subject.String()),
		zap.Error(err),
	)
	e.metrics.RecordAlertSubjectFailure(ctx, string(t), string(apperr.KindOf(err)))
	p.report.fail(p.orgID, t, subject, err)
}

func (e *Engine) owners(ctx context.Context) ([]snowflake.ID, error) {
	active, err := e.leases.ListActiveOrgIDs(ctx, e.db)
	if err != nil {
		return nil, err
	}
	unread, err := e.notifications.ListOrgIDsWithUnread(ctx, e.db)
	if err != nil {
		return nil, err
	}
	ids := append(active, unread...)
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func sortedVacancies(m map[snowflake.ID]*lifecycledomain.VacancyView) []*lifecycledomain.VacancyView {
	out := make([]*lifecycledomain.VacancyView, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *lifecycledomain.VacancyView) int {
		return a.StartDate.Compare(b.StartDate)
	})
	return out
}
