package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/alert"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/lock"
	obsmetrics "github.com/smallbiznis/rentflow/internal/observability/metrics"
	"github.com/smallbiznis/rentflow/internal/reminder"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Engine    *alert.Engine
	Reminders *reminder.Service
	Locker    lock.Locker
	Config    Config `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	engine    *alert.Engine
	reminders *reminder.Service
	locker    lock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Engine == nil || p.Reminders == nil || p.Locker == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		engine:    p.Engine,
		reminders: p.Reminders,
		locker:    p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startRun(ctx, name)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	run.finish(err)
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		run.log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobAlertEvaluation, s.AlertEvaluationJob},
		{JobRentReminders, s.RentRemindersJob},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty means every job runs in this process
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// AlertEvaluationJob runs the alert pass for every owner. Failed subjects are
// logged and counted as deferred; they are retried on the next tick.
func (s *Scheduler) AlertEvaluationJob(ctx context.Context) error {
	release, err := s.acquire(ctx, JobAlertEvaluation, obsmetrics.LockResourceOwnerAlerts)
	if err != nil {
		return err
	}
	defer release()

	run := s.runOf(ctx, JobAlertEvaluation)
	report, err := s.engine.EvaluateAll(ctx, s.clock.Now())
	run.add(report.Owners)

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(JobAlertEvaluation, obsmetrics.LockResourceOwnerAlerts, report.Owners)
	for _, failure := range report.Failures {
		schedMetrics.IncBatchDeferred(JobAlertEvaluation, obsmetrics.SchedulerBatchDeferredReasonSubjectFailed)
		run.fail("scheduler.alert.subject_failed", failure.OrgID, errors.New(failure.Error),
			zap.String("type", string(failure.Type)),
			zap.String("subject", failure.Subject),
		)
	}
	run.log.Info("scheduler.alert.pass",
		zap.Int("owners", report.Owners),
		zap.Int("created", report.Created()),
		zap.Int("retired", report.Retired()),
	)
	return err
}

// RentRemindersJob hands due reminders to the email dispatcher.
func (s *Scheduler) RentRemindersJob(ctx context.Context) error {
	release, err := s.acquire(ctx, JobRentReminders, obsmetrics.LockResourceOwnerReminders)
	if err != nil {
		return err
	}
	defer release()

	run := s.runOf(ctx, JobRentReminders)
	result, err := s.reminders.Dispatch(ctx, s.clock.Now())
	run.add(result.Owners)
	obsmetrics.Scheduler().AddBatchProcessed(JobRentReminders, obsmetrics.LockResourceOwnerReminders, result.Published)
	if result.Owners > 0 || result.Published > 0 {
		run.log.Info("scheduler.reminders.dispatched",
			zap.Int("owners", result.Owners),
			zap.Int("published", result.Published),
		)
	}
	return err
}

// acquire serializes a job across replicas sharing the locker.
func (s *Scheduler) acquire(ctx context.Context, job, resource string) (func(), error) {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, "rentflow:lock:scheduler:"+job)
	obsmetrics.Scheduler().ObserveLockWait(resource, time.Since(start))
	if err != nil {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockBusy)
		return nil, err
	}
	return release, nil
}
