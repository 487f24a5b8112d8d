package reminder

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
	db       *gorm.DB
	node     *snowflake.Node
	leases   lifecycledomain.Repository
	settings notificationdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	return &fixture{
		db:       testutil.NewDB(t),
		node:     node,
		leases:   lifecyclerepo.Provide(),
		settings: notificationrepo.Provide(),
	}
}

func (f *fixture) service(publisher events.Publisher) *Service {
	var cfg config.Config
	cfg.Scheduler.ReminderHour = 9
	return NewService(Params{
		DB:        f.db,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)),
		Config:    cfg,
		Leases:    f.leases,
		Tenants:   tenantrepo.Provide(),
		Settings:  f.settings,
		Publisher: publisher,
	})
}

func (f *fixture) lease(t *testing.T, name, email string) lifecycledomain.Lease {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := propertydomain.Property{ID: f.node.Generate(), OrgID: orgID, Name: name, PropertyType: propertydomain.TypeHouse, IsOccupied: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, propertyrepo.Provide().Insert(ctx, f.db, &p))
	tn := tenantdomain.Tenant{ID: f.node.Generate(), OrgID: orgID, FirstName: "Ana", LastName: name, Email: email, CurrentPropertyID: &p.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, tenantrepo.Provide().Insert(ctx, f.db, &tn))
	l := lifecycledomain.Lease{
		ID: f.node.Generate(), OrgID: orgID, PropertyID: p.ID, TenantID: tn.ID, StartDate: datex.Date(2023, 9, 1),
		RentAmount: 90000, Charges: 6000, PaymentDay: 31, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.leases.InsertLease(ctx, f.db, &l))
	return l
}

func (f *fixture) enableReminders(t *testing.T, frequency notificationdomain.Frequency, last *time.Time) {
	t.Helper()
	s := notificationdomain.Settings{
		OrgID:             orgID,
		EmailReminders:    true,
		ReminderFrequency: frequency,
		LastReminderOn:    last,
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, f.settings.InsertSettings(context.Background(), f.db, &s))
}

func TestPendingExcludesPaidLeases(t *testing.T) {
	f := newFixture(t)
	paid := f.lease(t, "Paid", "paid@example.com")
	open := f.lease(t, "Open", "open@example.com")
	require.NoError(t, f.leases.InsertPayment(context.Background(), f.db, &lifecycledomain.Payment{
		ID: f.node.Generate(), OrgID: orgID, LeaseID: paid.ID, Amount: 96000, PaymentDate: datex.Date(2024, 2, 1),
		PeriodMonth: 2, PeriodYear: 2024, Method: lifecycledomain.MethodCash, CreatedAt: time.Now(),
	}))

	pending, err := f.service(events.NewNoop(zap.NewNop())).Pending(context.Background(), orgID, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, open.ID, pending[0].LeaseID)
	assert.Equal(t, int64(96000), pending[0].AmountDue)
	assert.Equal(t, "open@example.com", pending[0].TenantEmail)
	assert.Equal(t, "2024-02", pending[0].Period)
	assert.Equal(t, "2024-02-29", pending[0].DueDate)
}

func TestDue(t *testing.T) {
	monday := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sameDay := datex.Day(monday)

	tests := []struct {
		name     string
		settings *notificationdomain.Settings
		now      time.Time
		want     bool
	}{
		{"nil settings", nil, monday, false},
		{"reminders off", &notificationdomain.Settings{ReminderFrequency: notificationdomain.FrequencyDaily}, monday, false},
		{"daily", &notificationdomain.Settings{EmailReminders: true, ReminderFrequency: notificationdomain.FrequencyDaily}, first, true},
		{"weekly on monday", &notificationdomain.Settings{EmailReminders: true, ReminderFrequency: notificationdomain.FrequencyWeekly}, monday, true},
		{"weekly on friday", &notificationdomain.Settings{EmailReminders: true, ReminderFrequency: notificationdomain.FrequencyWeekly}, first, false},
		{"monthly on the first", &notificationdomain.Settings{EmailReminders: true, ReminderFrequency: notificationdomain.FrequencyMonthly}, first, true},
		{"monthly mid month", &notificationdomain.Settings{EmailReminders: true, ReminderFrequency: notificationdomain.FrequencyMonthly}, monday, false},
		{"already sent today", &notificationdomain.Settings{EmailReminders: true, ReminderFrequency: notificationdomain.FrequencyDaily, LastReminderOn: &sameDay}, monday, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Due(tt.settings, tt.now))
		})
	}
}

func TestDispatchPublishesOncePerDay(t *testing.T) {
	f := newFixture(t)
	f.lease(t, "Open", "open@example.com")
	f.enableReminders(t, notificationdomain.FrequencyDaily, nil)

	ctrl := gomock.NewController(t)
	publisher := eventsmock.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e events.Event) error {
		assert.Equal(t, events.TypeReminderDue, e.Type)
		assert.Equal(t, orgID.String(), e.OrgID)
		return nil
	}).Times(1)
	svc := f.service(publisher)

	early, err := svc.Dispatch(context.Background(), time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, early.Published)

	result, err := svc.Dispatch(context.Background(), time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Owners)
	assert.Equal(t, 1, result.Published)

	again, err := svc.Dispatch(context.Background(), time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, again.Published)
	assert.Equal(t, 1, again.Skipped)

	stored, err := f.settings.FindSettings(context.Background(), f.db, orgID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastReminderOn)
	assert.Equal(t, "2024-03-15", datex.Format(*stored.LastReminderOn))
}

func TestDispatchLeavesOwnerUnstampedOnPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.lease(t, "Open", "")
	f.enableReminders(t, notificationdomain.FrequencyDaily, nil)

	ctrl := gomock.NewController(t)
	publisher := eventsmock.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	_, err := f.service(publisher).Dispatch(context.Background(), time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	require.Error(t, err)

	stored, err := f.settings.FindSettings(context.Background(), f.db, orgID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastReminderOn)
}

func TestDispatchRepublishesUnderSameIDs(t *testing.T) {
	f := newFixture(t)
	f.lease(t, "First", "")
	f.lease(t, "Second", "")
	f.enableReminders(t, notificationdomain.FrequencyDaily, nil)

	var ids []string
	calls := 0
	ctrl := gomock.NewController(t)
	publisher := eventsmock.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e events.Event) error {
		calls++
		if calls == 2 {
			return errors.New("broker down")
		}
		ids = append(ids, e.ID)
		return nil
	}).Times(4)
	svc := f.service(publisher)

	_, err := svc.Dispatch(context.Background(), time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	require.Error(t, err)
	require.Len(t, ids, 1)

	result, err := svc.Dispatch(context.Background(), time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Published)
	require.Len(t, ids, 3)
	assert.Contains(t, ids[1:], ids[0])
	assert.NotEqual(t, ids[1], ids[2])
	assert.Regexp(t, `^reminder:\d+:2024-03:2024-03-15$`, ids[0])
}
