package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/rentflow/internal/alert"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/smallbiznis/rentflow/internal/events"
	lifecycledomain "github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	lifecyclerepo "github.com/smallbiznis/rentflow/internal/lifecycle/repository"
	"github.com/smallbiznis/rentflow/internal/lock"
	notificationdomain "github.com/smallbiznis/rentflow/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/rentflow/internal/notification/repository"
	notificationservice "github.com/smallbiznis/rentflow/internal/notification/service"
	obsmetrics "github.com/smallbiznis/rentflow/internal/observability/metrics"
	propertydomain "github.com/smallbiznis/rentflow/internal/property/domain"
	propertyrepo "github.com/smallbiznis/rentflow/internal/property/repository"
	"github.com/smallbiznis/rentflow/internal/reminder"
	tenantdomain "github.com/smallbiznis/rentflow/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/rentflow/internal/tenant/repository"
	"github.com/smallbiznis/rentflow/internal/testutil"
	"github.com/smallbiznis/rentflow/pkg/datex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "rentflow",
		Environment: "test",
	})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{})}
	err = s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "rentflow",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "rentflow_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "rentflow",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "rentflow_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestIsJobEnabled(t *testing.T) {
	all := &Scheduler{}
	assert.True(t, all.isJobEnabled(JobAlertEvaluation))
	assert.True(t, all.isJobEnabled(JobRentReminders))

	alertsOnly := &Scheduler{cfg: Config{EnabledJobs: []string{"ALERT_EVALUATION"}}}
	assert.True(t, alertsOnly.isJobEnabled(JobAlertEvaluation))
	assert.False(t, alertsOnly.isJobEnabled(JobRentReminders))
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, e.Type)
	return nil
}

func TestRunOnceRaisesAlertsAndDispatchesReminders(t *testing.T) {
	restore := swapPrometheusRegistry(prometheus.NewRegistry())
	defer restore()

	db := testutil.NewDB(t)
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	ctx := context.Background()
	const orgID = snowflake.ID(1)
	seeded := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	p := propertydomain.Property{ID: node.Generate(), OrgID: orgID, Name: "Rue Verte 12", PropertyType: propertydomain.TypeApartment, IsOccupied: true, CreatedAt: seeded, UpdatedAt: seeded}
	require.NoError(t, propertyrepo.Provide().Insert(ctx, db, &p))
	tn := tenantdomain.Tenant{ID: node.Generate(), OrgID: orgID, FirstName: "Ana", LastName: "Lima", Email: "ana@example.com", CurrentPropertyID: &p.ID, CreatedAt: seeded, UpdatedAt: seeded}
	require.NoError(t, tenantrepo.Provide().Insert(ctx, db, &tn))
	leases := lifecyclerepo.Provide()
	require.NoError(t, leases.InsertLease(ctx, db, &lifecycledomain.Lease{
		ID: node.Generate(), OrgID: orgID, PropertyID: p.ID, TenantID: tn.ID, StartDate: datex.Date(2024, 1, 1),
		RentAmount: 80000, Charges: 5000, PaymentDay: 1, IsActive: true, CreatedAt: seeded, UpdatedAt: seeded,
	}))

	notifications := notificationrepo.Provide()
	require.NoError(t, notifications.InsertSettings(ctx, db, &notificationdomain.Settings{
		OrgID:              orgID,
		LatePaymentEnabled: true,
		LatePaymentDays:    5,
		EmailReminders:     true,
		ReminderFrequency:  notificationdomain.FrequencyDaily,
		UpdatedAt:          seeded,
	}))

	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	publisher := &recordingPublisher{}
	var cfg config.Config
	cfg.Scheduler.ReminderHour = 9

	engine := alert.NewEngine(alert.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Leases:        leases,
		Notifications: notifications,
		Settings: notificationservice.New(notificationservice.Params{
			DB: db, Log: zap.NewNop(), Clock: fake, Repo: notifications,
			Defaults: config.NewStaticAlertDefaults(config.DefaultAlertDefaults()),
		}),
		Publisher: publisher,
	})
	reminders := reminder.NewService(reminder.Params{
		DB: db, Log: zap.NewNop(), Clock: fake, Config: cfg, Leases: leases,
		Tenants: tenantrepo.Provide(), Settings: notifications, Publisher: publisher,
	})
	s, err := New(Params{Log: zap.NewNop(), GenID: node, Clock: fake, Engine: engine, Reminders: reminders, Locker: lock.NewLocal()})
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(ctx))
	require.NoError(t, s.RunOnce(ctx))

	unread, err := notifications.CountUnread(ctx, db, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
	assert.ElementsMatch(t, []string{events.TypeNotificationCreated, events.TypeReminderDue}, publisher.types)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	obsmetrics.ResetSchedulerMetricsForTest()
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
