package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/smallbiznis/rentflow/internal/events"
	eventsmock "github.com/smallbiznis/rentflow/internal/events/mock"
	lifecycledomain "github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	lifecyclerepo "github.com/smallbiznis/rentflow/internal/lifecycle/repository"
	notificationdomain "github.com/smallbiznis/rentflow/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/rentflow/internal/notification/repository"
	notificationservice "github.com/smallbiznis/rentflow/internal/notification/service"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	propertydomain "github.com/smallbiznis/rentflow/internal/property/domain"
	propertyrepo "github.com/smallbiznis/rentflow/internal/property/repository"
	tenantdomain "github.com/smallbiznis/rentflow/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/rentflow/internal/tenant/repository"
	"github.com/smallbiznis/rentflow/internal/testutil"
	"github.com/smallbiznis/rentflow/pkg/datex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const orgID = snowflake.ID(1)

type fixture struct {
	db            *gorm.DB
	node          *snowflake.Node
	ctx           context.Context
	leases        lifecycledomain.Repository
	notifications notificationdomain.Repository
	settings      notificationdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	notifications := notificationrepo.Provide()
	return &fixture{
		db:            db,
		node:          node,
		ctx:           orgcontext.WithOrgID(context.Background(), orgID),
		leases:        lifecyclerepo.Provide(),
		notifications: notifications,
		settings: notificationservice.New(notificationservice.Params{
			DB:       db,
			Log:      zap.NewNop(),
			Clock:    clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			Repo:     notifications,
			Defaults: config.NewStaticAlertDefaults(config.DefaultAlertDefaults()),
		}),
	}
}

func (f *fixture) engine(publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.NewNoop(zap.NewNop())
	}
	return NewEngine(Params{
		DB:            f.db,
		Log:           zap.NewNop(),
		GenID:         f.node,
		Leases:        f.leases,
		Notifications: f.notifications,
		Settings:      f.settings,
		Publisher:     publisher,
	})
}

func (f *fixture) lease(t *testing.T, start string, end *string, paymentDay int) lifecycledomain.Lease {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := propertydomain.Property{ID: f.node.Generate(), OrgID: orgID, Name: "Rue Verte 12", PropertyType: propertydomain.TypeApartment, IsOccupied: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, propertyrepo.Provide().Insert(f.ctx, f.db, &p))
	tn := tenantdomain.Tenant{ID: f.node.Generate(), OrgID: orgID, FirstName: "Ana", LastName: "Lima", CurrentPropertyID: &p.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, tenantrepo.Provide().Insert(f.ctx, f.db, &tn))

	l := lifecycledomain.Lease{
		ID:         f.node.Generate(),
		OrgID:      orgID,
		PropertyID: p.ID,
		TenantID:   tn.ID,
		StartDate:  date(start),
		RentAmount: 80000,
		Charges:    5000,
		PaymentDay: paymentDay,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if end != nil {
		d := date(*end)
		l.EndDate = &d
	}
	require.NoError(t, f.leases.InsertLease(f.ctx, f.db, &l))
	return l
}

func (f *fixture) pay(t *testing.T, lease lifecycledomain.Lease, year int, month time.Month) {
	t.Helper()
	require.NoError(t, f.leases.InsertPayment(f.ctx, f.db, &lifecycledomain.Payment{
		ID:          f.node.Generate(),
		OrgID:       orgID,
		LeaseID:     lease.ID,
		Amount:      lease.AmountDue(),
		PaymentDate: datex.Date(year, month, 3),
		PeriodMonth: int(month),
		PeriodYear:  year,
		Method:      lifecycledomain.MethodBankTransfer,
		CreatedAt:   time.Now(),
	}))
}

func (f *fixture) rows(t *testing.T) []*notificationdomain.Notification {
	t.Helper()
	items, err := f.notifications.List(f.ctx, f.db, orgID, 100)
	require.NoError(t, err)
	return items
}

func date(s string) time.Time {
	d, err := datex.Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func at(s string) time.Time {
	return date(s).Add(10 * time.Hour)
}

func TestLatePaymentRaisedOnceAndRetiredWhenPaid(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	publisher := eventsmock.NewMockPublisher(ctrl)
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.AssignableToTypeOf(events.Event{})).
		DoAndReturn(func(_ context.Context, ev events.Event) error {
			assert.Equal(t, events.TypeNotificationCreated, ev.Type)
			assert.Equal(t, orgID.String(), ev.OrgID)
			return nil
		}).
		Times(1)
	engine := f.engine(publisher)

	lease := f.lease(t, "2024-01-01", nil, 5)
	f.pay(t, lease, 2024, time.January)

	report, err := engine.Evaluate(f.ctx, orgID, at("2024-02-11"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeLatePayment].Created)

	report, err = engine.Evaluate(f.ctx, orgID, at("2024-02-12"))
	require.NoError(t, err)
	assert.Zero(t, report.Created())
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeLatePayment].Unchanged)

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, notificationdomain.TypeLatePayment, rows[0].Type)
	assert.Equal(t, lease.ID, rows[0].SubjectID)
	assert.Equal(t, "2024-02", rows[0].MetadataString("period"))
	assert.False(t, rows[0].IsRead)

	f.pay(t, lease, 2024, time.February)
	report, err = engine.Evaluate(f.ctx, orgID, at("2024-02-13"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeLatePayment].Retired)

	rows = f.rows(t)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsRead)
	assert.NotNil(t, rows[0].ResolvedAt)
}

func TestLatePaymentRespectsThresholdAndLeaseStart(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.lease(t, "2024-02-10", nil, 5)

	report, err := engine.Evaluate(f.ctx, orgID, at("2024-03-08"))
	require.NoError(t, err)
	assert.Zero(t, report.Created(), "March rent is 3 days late and February was due before the lease began")

	report, err = engine.Evaluate(f.ctx, orgID, at("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeLatePayment].Created)
}

func TestLeaseEndingWindow(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	end := "2024-03-15"
	lease := f.lease(t, "2023-03-16", &end, 1)
	f.pay(t, lease, 2024, time.January)

	report, err := engine.Evaluate(f.ctx, orgID, at("2024-01-01"))
	require.NoError(t, err)
	assert.Zero(t, report.Rules[notificationdomain.TypeLeaseEnding].Created)

	report, err = engine.Evaluate(f.ctx, orgID, at("2024-01-20"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeLeaseEnding].Created)

	lease.IsActive = false
	lease.UpdatedAt = time.Now()
	require.NoError(t, f.leases.UpdateLease(f.ctx, f.db, &lease))

	report, err = engine.Evaluate(f.ctx, orgID, at("2024-01-21"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeLeaseEnding].Retired)
}

func TestVacancyAlertFollowsActiveVacancy(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := propertydomain.Property{ID: f.node.Generate(), OrgID: orgID, Name: "Loft", PropertyType: propertydomain.TypeApartment, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, propertyrepo.Provide().Insert(f.ctx, f.db, &p))
	v := lifecycledomain.Vacancy{ID: f.node.Generate(), OrgID: orgID, PropertyID: p.ID, StartDate: date("2024-01-01"), IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.leases.InsertVacancy(f.ctx, f.db, &v))

	report, err := engine.Evaluate(f.ctx, orgID, at("2024-01-20"))
	require.NoError(t, err)
	assert.Zero(t, report.Created())

	report, err = engine.Evaluate(f.ctx, orgID, at("2024-02-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeVacancyAlert].Created)
	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, p.ID, rows[0].SubjectID)

	end := date("2024-02-06")
	v.EndDate = &end
	v.IsActive = false
	require.NoError(t, f.leases.UpdateVacancy(f.ctx, f.db, &v))

	report, err = engine.Evaluate(f.ctx, orgID, at("2024-02-07"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeVacancyAlert].Retired)
}

func TestDisabledRuleKeepsExistingAlerts(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	lease := f.lease(t, "2024-01-01", nil, 5)

	_, err := engine.Evaluate(f.ctx, orgID, at("2024-01-20"))
	require.NoError(t, err)
	require.Len(t, f.rows(t), 1)

	off := false
	_, err = f.settings.UpdateSettings(f.ctx, notificationdomain.UpdateSettingsRequest{LatePaymentEnabled: &off})
	require.NoError(t, err)
	f.pay(t, lease, 2024, time.January)

	report, err := engine.Evaluate(f.ctx, orgID, at("2024-01-21"))
	require.NoError(t, err)
	assert.Zero(t, report.Retired())
	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsRead)
}

type flakyNotifications struct {
	notificationdomain.Repository
	failFor snowflake.ID
}

func (r *flakyNotifications) Insert(ctx context.Context, db *gorm.DB, n *notificationdomain.Notification) error {
	if n.SubjectID == r.failFor {
		return errors.New("disk full")
	}
	return r.Repository.Insert(ctx, db, n)
}

func TestSubjectFailureDoesNotAbortPass(t *testing.T) {
	f := newFixture(t)
	broken := f.lease(t, "2024-01-01", nil, 1)
	healthy := f.lease(t, "2024-01-01", nil, 1)
	f.notifications = &flakyNotifications{Repository: f.notifications, failFor: broken.ID}
	engine := f.engine(nil)

	report, err := engine.Evaluate(f.ctx, orgID, at("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rules[notificationdomain.TypeLatePayment].Created)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "lease:"+broken.ID.String(), report.Failures[0].Subject)

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, healthy.ID, rows[0].SubjectID)
}

func TestEvaluateAllVisitsEveryOwner(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.lease(t, "2024-01-01", nil, 1)

	first, err := engine.EvaluateAll(context.Background(), at("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Owners)
	assert.Equal(t, 1, first.Created())

	second, err := engine.EvaluateAll(context.Background(), at("2024-01-15"))
	require.NoError(t, err)
	assert.Zero(t, second.Created())
	assert.Len(t, f.rows(t), 1)
}
