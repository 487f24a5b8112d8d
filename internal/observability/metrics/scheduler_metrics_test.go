package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/rentflow/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "store_unavailable", err: apperr.Unavailable(errors.New("conn reset")), want: SchedulerJobReasonStoreUnavailable},
		{name: "conflict", err: fmt.Errorf("x: %w", apperr.Conflict("vacancy_not_active", "")), want: SchedulerJobReasonConflict},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "rentflow", Environment: "test"})

	m.AddBatchProcessed("alert_evaluation", "owners", 3)
	m.AddBatchProcessed("alert_evaluation", "owners", 0)
	m.IncJobError("alert_evaluation", &pgconn.PgError{Code: "40001"})
	m.ObserveRunLoopLag(-time.Second)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.batchProcessed.WithLabelValues("alert_evaluation", "owners")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("alert_evaluation", SchedulerJobReasonSerializationFailure)))

	families, err := registry.Gather()
	require.NoError(t, err)
	var lag *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "rentflow_scheduler_runloop_lag_seconds" {
			lag = f
		}
	}
	require.NotNil(t, lag)
	h := lag.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.Equal(t, float64(0), h.GetSampleSum())
	for _, l := range lag.GetMetric()[0].GetLabel() {
		if l.GetName() == "env" {
			assert.Equal(t, "test", l.GetValue())
		}
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	assert.True(t, IsSchedulerErrorRetryable(apperr.Unavailable(errors.New("down"))))
	assert.True(t, IsSchedulerErrorRetryable(&pgconn.PgError{Code: "55P03"}))
	assert.False(t, IsSchedulerErrorRetryable(apperr.Validation("invalid_dates", "")))
	assert.False(t, IsSchedulerErrorRetryable(nil))
}
