package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	"github.com/smallbiznis/rentflow/internal/lock"
	"github.com/smallbiznis/rentflow/internal/observability/metrics"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	propertydomain "github.com/smallbiznis/rentflow/internal/property/domain"
	tenantdomain "github.com/smallbiznis/rentflow/internal/tenant/domain"
	"github.com/smallbiznis/rentflow/pkg/apperr"
	"github.com/smallbiznis/rentflow/pkg/datex"
	pkgdb "github.com/smallbiznis/rentflow/pkg/db"
	"github.com/smallbiznis/rentflow/pkg/relation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateLease    = "create_lease"
	opTerminateLease = "terminate_lease"
	opDeclareVacancy = "declare_vacancy"
	opEndVacancy     = "end_vacancy"
	opRecordPayment  = "record_payment"
	opDeletePayment  = "delete_payment"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	PropertyRepo propertydomain.Repository
	TenantRepo   tenantdomain.Repository
	Audit        auditdomain.Recorder
	Locker       lock.Locker
	Metrics      *metrics.Metrics `optional:"true"`
}

type Coordinator struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	properties propertydomain.Repository
	tenants    tenantdomain.Repository
	audit      auditdomain.Recorder
	locker     lock.Locker
	metrics    *metrics.Metrics
}

func New(p Params) domain.Coordinator {
	return &Coordinator{
		db:         p.DB,
		log:        p.Log.Named("lifecycle.coordinator"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		properties: p.PropertyRepo,
		tenants:    p.TenantRepo,
		audit:      p.Audit,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}
}

func (c *Coordinator) CreateLease(ctx context.Context, req domain.CreateLeaseRequest) (lease domain.Lease, err error) {
	defer func() { c.observe(ctx, opCreateLease, err) }()

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Lease{}, domain.ErrInvalidOrganization
	}
	propertyID, err := parseID(req.PropertyID)
	if err != nil {
		return domain.Lease{}, err
	}
	tenantID, err := parseID(req.TenantID)
	if err != nil {
		return domain.Lease{}, err
	}
	if err := validateLeaseTerms(req); err != nil {
		return domain.Lease{}, err
	}

	release, err := c.locker.Acquire(ctx,
		lock.Key(relation.KindProperty, propertyID),
		lock.Key(relation.KindTenant, tenantID),
	)
	if err != nil {
		return domain.Lease{}, pkgdb.Classify(err)
	}
	defer release()

	now := c.clock.Now().UTC()
	var (
		label  string
		closed bool
	)
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := c.properties.FindByIDForUpdate(ctx, tx, orgID, propertyID)
		if err != nil {
			return err
		}
		if property == nil {
			return domain.ErrPropertyNotFound
		}
		if property.IsOccupied {
			return domain.ErrPropertyOccupied
		}
		tenant, err := c.tenants.FindByIDForUpdate(ctx, tx, orgID, tenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return domain.ErrTenantNotFound
		}
		if tenant.Housed() {
			return domain.ErrTenantHoused
		}

		start := datex.Day(req.StartDate)
		vacancy, err := c.repo.FindActiveVacancyForUpdate(ctx, tx, propertyID)
		if err != nil {
			return err
		}

		lease = domain.Lease{
			ID:         c.genID.Generate(),
			OrgID:      orgID,
			PropertyID: propertyID,
			TenantID:   tenantID,
			StartDate:  start,
			EndDate:    dayPtr(req.EndDate),
			RentAmount: valueOr(req.RentAmount, property.RentAmount),
			Charges:    valueOr(req.Charges, property.Charges),
			Deposit:    req.Deposit,
			PaymentDay: paymentDay(req.PaymentDay),
			Notes:      strings.TrimSpace(req.Notes),
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := c.repo.InsertLease(ctx, tx, &lease); err != nil {
			return err
		}
		if err := c.properties.SetOccupancy(ctx, tx, propertyID, &tenantID, now); err != nil {
			return err
		}
		if err := c.tenants.SetCurrentProperty(ctx, tx, tenantID, &propertyID, now); err != nil {
			return err
		}
		if vacancy != nil {
			// a vacancy never closes before it opened
			closedOn := start
			if vs := datex.Day(vacancy.StartDate); closedOn.Before(vs) {
				closedOn = vs
			}
			vacancy.EndDate = &closedOn
			vacancy.IsActive = false
			vacancy.UpdatedAt = now
			if err := c.repo.UpdateVacancy(ctx, tx, vacancy); err != nil {
				return err
			}
			closed = true
		}
		label = property.Name + " / " + tenant.FullName()
		return nil
	})
	if err != nil {
		return domain.Lease{}, classify(err, domain.ErrPropertyOccupied)
	}

	c.log.Debug("lease created",
		zap.String("lease_id", lease.ID.String()),
		zap.String("property_id", propertyID.String()),
		zap.Bool("vacancy_closed", closed),
	)
	c.record(ctx, relation.Lease(lease.ID), label, auditdomain.ActionCreate, nil, lease.Snapshot())
	return lease, nil
}

func (c *Coordinator) TerminateLease(ctx context.Context, req domain.TerminateLeaseRequest) (lease domain.Lease, err error) {
	defer func() { c.observe(ctx, opTerminateLease, err) }()

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Lease{}, domain.ErrInvalidOrganization
	}
	leaseID, err := parseID(req.LeaseID)
	if err != nil {
		return domain.Lease{}, err
	}
	if req.EndDate.IsZero() {
		return domain.Lease{}, domain.ErrInvalidDate
	}

	current, err := c.repo.FindLease(ctx, c.db, orgID, leaseID)
	if err != nil {
		return domain.Lease{}, pkgdb.Classify(err)
	}
	if current == nil {
		return domain.Lease{}, domain.ErrLeaseNotFound
	}

	release, err := c.locker.Acquire(ctx,
		lock.Key(relation.KindProperty, current.PropertyID),
		lock.Key(relation.KindTenant, current.TenantID),
	)
	if err != nil {
		return domain.Lease{}, pkgdb.Classify(err)
	}
	defer release()

	now := c.clock.Now().UTC()
	end := datex.Day(req.EndDate)
	var before domain.Lease
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := c.repo.FindLeaseForUpdate(ctx, tx, orgID, leaseID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrLeaseNotFound
		}
		if !found.IsActive {
			return domain.ErrLeaseNotActive
		}
		if end.Before(datex.Day(found.StartDate)) {
			return domain.ErrInvalidDateRange
		}

		before = *found
		lease = *found
		lease.IsActive = false
		lease.EndDate = &end
		lease.UpdatedAt = now
		if err := c.repo.UpdateLease(ctx, tx, &lease); err != nil {
			return err
		}
		if err := c.properties.SetOccupancy(ctx, tx, lease.PropertyID, nil, now); err != nil {
			return err
		}
		if err := c.tenants.SetCurrentProperty(ctx, tx, lease.TenantID, nil, now); err != nil {
			return err
		}
		return c.repo.InsertVacancy(ctx, tx, &domain.Vacancy{
			ID:         c.genID.Generate(),
			OrgID:      orgID,
			PropertyID: lease.PropertyID,
			StartDate:  end,
			Reason:     domain.TerminationReason,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		return domain.Lease{}, classify(err, domain.ErrVacancyActive)
	}

	c.record(ctx, relation.Lease(lease.ID), c.leaseLabel(ctx, orgID, lease.ID), auditdomain.ActionUpdate, before.Snapshot(), lease.Snapshot())
	return lease, nil
}

func (c *Coordinator) DeclareVacancy(ctx context.Context, req domain.DeclareVacancyRequest) (vacancy domain.Vacancy, err error) {
	defer func() { c.observe(ctx, opDeclareVacancy, err) }()

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Vacancy{}, domain.ErrInvalidOrganization
	}
	propertyID, err := parseID(req.PropertyID)
	if err != nil {
		return domain.Vacancy{}, err
	}
	if req.StartDate.IsZero() {
		return domain.Vacancy{}, domain.ErrInvalidDate
	}

	release, err := c.locker.Acquire(ctx, lock.Key(relation.KindProperty, propertyID))
	if err != nil {
		return domain.Vacancy{}, pkgdb.Classify(err)
	}
	defer release()

	now := c.clock.Now().UTC()
	var label string
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := c.properties.FindByIDForUpdate(ctx, tx, orgID, propertyID)
		if err != nil {
			return err
		}
		if property == nil {
			return domain.ErrPropertyNotFound
		}
		if property.IsOccupied {
			return domain.ErrPropertyOccupied
		}
		active, err := c.repo.FindActiveVacancyForUpdate(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		if active != nil {
			return domain.ErrVacancyActive
		}

		vacancy = domain.Vacancy{
			ID:         c.genID.Generate(),
			OrgID:      orgID,
			PropertyID: propertyID,
			StartDate:  datex.Day(req.StartDate),
			Reason:     strings.TrimSpace(req.Reason),
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		label = property.Name
		return c.repo.InsertVacancy(ctx, tx, &vacancy)
	})
	if err != nil {
		return domain.Vacancy{}, classify(err, domain.ErrVacancyActive)
	}

	c.record(ctx, relation.Vacancy(vacancy.ID), label, auditdomain.ActionCreate, nil, vacancy.Snapshot())
	return vacancy, nil
}

func (c *Coordinator) EndVacancy(ctx context.Context, req domain.EndVacancyRequest) (vacancy domain.Vacancy, err error) {
	defer func() { c.observe(ctx, opEndVacancy, err) }()

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Vacancy{}, domain.ErrInvalidOrganization
	}
	vacancyID, err := parseID(req.VacancyID)
	if err != nil {
		return domain.Vacancy{}, err
	}
	if req.EndDate.IsZero() {
		return domain.Vacancy{}, domain.ErrInvalidDate
	}

	current, err := c.repo.FindVacancy(ctx, c.db, orgID, vacancyID)
	if err != nil {
		return domain.Vacancy{}, pkgdb.Classify(err)
	}
	if current == nil {
		return domain.Vacancy{}, domain.ErrVacancyNotFound
	}

	release, err := c.locker.Acquire(ctx, lock.Key(relation.KindProperty, current.PropertyID))
	if err != nil {
		return domain.Vacancy{}, pkgdb.Classify(err)
	}
	defer release()

	now := c.clock.Now().UTC()
	end := datex.Day(req.EndDate)
	var before domain.Vacancy
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := c.repo.FindVacancyForUpdate(ctx, tx, orgID, vacancyID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrVacancyNotFound
		}
		if !found.IsActive {
			return domain.ErrVacancyNotActive
		}
		if end.Before(datex.Day(found.StartDate)) {
			return domain.ErrInvalidDateRange
		}
		before = *found
		vacancy = *found
		vacancy.IsActive = false
		vacancy.EndDate = &end
		vacancy.UpdatedAt = now
		return c.repo.UpdateVacancy(ctx, tx, &vacancy)
	})
	if err != nil {
		return domain.Vacancy{}, pkgdb.Classify(err)
	}

	c.record(ctx, relation.Vacancy(vacancy.ID), c.propertyLabel(ctx, orgID, vacancy.PropertyID), auditdomain.ActionUpdate, before.Snapshot(), vacancy.Snapshot())
	return vacancy, nil
}

func (c *Coordinator) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (payment domain.Payment, err error) {
	defer func() { c.observe(ctx, opRecordPayment, err) }()

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Payment{}, domain.ErrInvalidOrganization
	}
	leaseID, err := parseID(req.LeaseID)
	if err != nil {
		return domain.Payment{}, err
	}
	period := domain.Period{Year: req.PeriodYear, Month: time.Month(req.PeriodMonth)}
	if !period.Valid() {
		return domain.Payment{}, domain.ErrInvalidPeriod
	}
	if req.Amount <= 0 {
		return domain.Payment{}, domain.ErrInvalidPaymentAmount
	}
	method := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Method)))
	if method == "" {
		method = domain.MethodBankTransfer
	}
	if !method.Valid() {
		return domain.Payment{}, domain.ErrInvalidMethod
	}

	release, err := c.locker.Acquire(ctx, lock.Key(relation.KindLease, leaseID))
	if err != nil {
		return domain.Payment{}, pkgdb.Classify(err)
	}
	defer release()

	now := c.clock.Now().UTC()
	paidOn := req.PaymentDate
	if paidOn.IsZero() {
		paidOn = now
	}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lease, err := c.repo.FindLeaseForUpdate(ctx, tx, orgID, leaseID)
		if err != nil {
			return err
		}
		if lease == nil {
			return domain.ErrLeaseNotFound
		}
		existing, err := c.repo.FindPaymentByPeriod(ctx, tx, leaseID, period)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrPeriodAlreadyPaid
		}
		payment = domain.Payment{
			ID:          c.genID.Generate(),
			OrgID:       orgID,
			LeaseID:     leaseID,
			Amount:      req.Amount,
			PaymentDate: datex.Day(paidOn),
			PeriodMonth: int(period.Month),
			PeriodYear:  period.Year,
			Method:      method,
			Notes:       strings.TrimSpace(req.Notes),
			CreatedAt:   now,
		}
		return c.repo.InsertPayment(ctx, tx, &payment)
	})
	if err != nil {
		return domain.Payment{}, classify(err, domain.ErrPeriodAlreadyPaid)
	}

	c.record(ctx, relation.Payment(payment.ID), c.leaseLabel(ctx, orgID, leaseID)+" "+period.String(), auditdomain.ActionCreate, nil, payment.Snapshot())
	return payment, nil
}

func (c *Coordinator) DeletePayment(ctx context.Context, rawID string) (err error) {
	defer func() { c.observe(ctx, opDeletePayment, err) }()

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidOrganization
	}
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	var deleted *domain.PaymentView
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := c.repo.FindPayment(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrPaymentNotFound
		}
		deleted = found
		return c.repo.DeletePayment(ctx, tx, orgID, id)
	})
	if err != nil {
		return pkgdb.Classify(err)
	}

	label := deleted.PropertyName + " / " + deleted.TenantName + " " + deleted.Period().String()
	c.record(ctx, relation.Payment(id), label, auditdomain.ActionDelete, deleted.Snapshot(), nil)
	return nil
}

func (c *Coordinator) GetLease(ctx context.Context, rawID string) (domain.LeaseView, error) {
	orgID, id, err := scope(ctx, rawID)
	if err != nil {
		return domain.LeaseView{}, err
	}
	v, err := c.repo.FindLeaseView(ctx, c.db, orgID, id)
	if err != nil {
		return domain.LeaseView{}, pkgdb.Classify(err)
	}
	if v == nil {
		return domain.LeaseView{}, domain.ErrLeaseNotFound
	}
	return *v, nil
}

func (c *Coordinator) ListLeases(ctx context.Context, req domain.ListLeasesRequest) ([]domain.LeaseView, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	filter := domain.LeaseFilter{Active: req.Active}
	var err error
	if filter.PropertyID, err = optionalID(req.PropertyID); err != nil {
		return nil, err
	}
	if filter.TenantID, err = optionalID(req.TenantID); err != nil {
		return nil, err
	}
	items, err := c.repo.ListLeases(ctx, c.db, orgID, filter)
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	return deref(items), nil
}

func (c *Coordinator) ListVacancies(ctx context.Context, req domain.ListVacanciesRequest) ([]domain.VacancyView, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	propertyID, err := optionalID(req.PropertyID)
	if err != nil {
		return nil, err
	}
	items, err := c.repo.ListVacancies(ctx, c.db, orgID, domain.VacancyFilter{Active: req.Active, PropertyID: propertyID})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	return deref(items), nil
}

func (c *Coordinator) GetPayment(ctx context.Context, rawID string) (domain.PaymentView, error) {
	orgID, id, err := scope(ctx, rawID)
	if err != nil {
		return domain.PaymentView{}, err
	}
	v, err := c.repo.FindPayment(ctx, c.db, orgID, id)
	if err != nil {
		return domain.PaymentView{}, pkgdb.Classify(err)
	}
	if v == nil {
		return domain.PaymentView{}, domain.ErrPaymentNotFound
	}
	return *v, nil
}

func (c *Coordinator) ListPayments(ctx context.Context, req domain.ListPaymentsRequest) ([]domain.PaymentView, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	leaseID, err := optionalID(req.LeaseID)
	if err != nil {
		return nil, err
	}
	items, err := c.repo.ListPayments(ctx, c.db, orgID, domain.PaymentFilter{LeaseID: leaseID, Year: req.Year})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	return deref(items), nil
}

func (c *Coordinator) record(ctx context.Context, subject relation.Ref, name string, action auditdomain.Action, before, after auditdomain.Snapshot) {
	orgID, _ := orgcontext.OrgIDFromContext(ctx)
	// Failures are logged and counted by the recorder; the transition stands.
	_ = c.audit.Record(ctx, auditdomain.Record{
		OrgID:   orgID,
		Subject: subject,
		Name:    name,
		Action:  action,
		Before:  before,
		After:   after,
	})
}

func (c *Coordinator) leaseLabel(ctx context.Context, orgID, leaseID snowflake.ID) string {
	v, err := c.repo.FindLeaseView(ctx, c.db, orgID, leaseID)
	if err != nil || v == nil {
		return leaseID.String()
	}
	return v.Label()
}

func (c *Coordinator) propertyLabel(ctx context.Context, orgID, propertyID snowflake.ID) string {
	p, err := c.properties.FindByID(ctx, c.db, orgID, propertyID)
	if err != nil || p == nil {
		return propertyID.String()
	}
	return p.Name
}

func (c *Coordinator) observe(ctx context.Context, operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if apperr.KindOf(err) == apperr.KindInternal || apperr.IsRetryable(err) {
			c.log.Warn("lifecycle transition failed", zap.String("operation", operation), zap.Error(err))
		}
	}
	c.metrics.RecordLifecycle(ctx, operation, outcome)
}

// classify maps store errors and turns a unique-index violation into the
// conflict the index guards.
func classify(err error, onDuplicate *apperr.Error) error {
	err = pkgdb.Classify(err)
	if errors.Is(err, apperr.ErrDuplicate) {
		return onDuplicate.Wrap(err)
	}
	return err
}

func validateLeaseTerms(req domain.CreateLeaseRequest) error {
	if req.StartDate.IsZero() {
		return domain.ErrInvalidDate
	}
	if req.EndDate != nil && datex.Day(*req.EndDate).Before(datex.Day(req.StartDate)) {
		return domain.ErrInvalidDateRange
	}
	if req.PaymentDay < 0 || req.PaymentDay > 31 {
		return domain.ErrInvalidPaymentDay
	}
	if req.Deposit < 0 || (req.RentAmount != nil && *req.RentAmount < 0) || (req.Charges != nil && *req.Charges < 0) {
		return domain.ErrInvalidAmount
	}
	return nil
}

func scope(ctx context.Context, rawID string) (snowflake.ID, snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, 0, domain.ErrInvalidOrganization
	}
	id, err := parseID(rawID)
	if err != nil {
		return 0, 0, err
	}
	return orgID, id, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func optionalID(raw string) (snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return parseID(raw)
}

func paymentDay(day int) int {
	if day == 0 {
		return 1
	}
	return day
}

func valueOr(v *int64, fallback int64) int64 {
	if v == nil {
		return fallback
	}
	return *v
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := datex.Day(*t)
	return &d
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out
}
