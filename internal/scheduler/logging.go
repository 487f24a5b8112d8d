package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/rentflow/internal/observability/context"
	obslogger "github.com/smallbiznis/rentflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rentflow/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tallies one execution of a job for its closing log line.
type jobRun struct {
	job       string
	id        string
	startedAt time.Time
	processed int
	failures  int
	log       *zap.Logger
}

type jobRunKey struct{}

func (s *Scheduler) startRun(ctx context.Context, job string) (context.Context, *jobRun) {
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	run := &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		startedAt: time.Now(),
	}
	run.log = obslogger.WithContext(ctx, s.log).With(
		zap.String("job", job),
		zap.String("run_id", run.id),
	)
	run.log.Info("scheduler.job.start")
	return context.WithValue(ctx, jobRunKey{}, run), run
}

// runOf returns the run carried by ctx, or a detached one so jobs can be
// called directly.
func (s *Scheduler) runOf(ctx context.Context, job string) *jobRun {
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return &jobRun{job: job, startedAt: time.Now(), log: s.log.With(zap.String("job", job))}
}

func (r *jobRun) add(n int) {
	if n > 0 {
		r.processed += n
	}
}

// fail logs a failure that did not stop the job.
func (r *jobRun) fail(msg string, orgID snowflake.ID, err error, fields ...zap.Field) {
	r.failures++
	base := []zap.Field{
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}
	if orgID != 0 {
		base = append(base, zap.String("org_id", orgID.String()))
	}
	r.log.Warn(msg, append(base, fields...)...)
}

func (r *jobRun) finish(err error) {
	if err != nil && r.failures == 0 {
		r.failures = 1
	}
	fields := []zap.Field{
		zap.Duration("elapsed", time.Since(r.startedAt)),
		zap.Int("processed", r.processed),
		zap.Int("failures", r.failures),
	}
	if r.failures > 0 {
		r.log.Warn("scheduler.job.finish", fields...)
		return
	}
	r.log.Info("scheduler.job.finish", fields...)
}
