package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/audit/domain"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/observability/metrics"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RecorderParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Recorder struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.Metrics
}

func NewRecorder(p RecorderParams) domain.Recorder {
	return &Recorder{
		db:      p.DB,
		log:     p.Log.Named("audit.recorder"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Record writes one entry outside any caller transaction. Failures are logged
// and counted here and also returned.
func (r *Recorder) Record(ctx context.Context, rec domain.Record) error {
	if !rec.Subject.Valid() || !rec.Action.Valid() {
		return domain.ErrInvalidSubject
	}

	orgID := rec.OrgID
	if orgID == 0 {
		orgID, _ = orgcontext.OrgIDFromContext(ctx)
	}

	entry := domain.Entry{
		ID:         r.genID.Generate(),
		OrgID:      orgID,
		EntityKind: rec.Subject.Kind,
		EntityID:   rec.Subject.ID,
		EntityName: rec.Name,
		Action:     rec.Action,
		ActorID:    orgcontext.ActorIDFromContext(ctx),
		CreatedAt:  r.clock.Now().UTC(),
	}
	if rec.Action == domain.ActionUpdate {
		entry.Changes = domain.Diff(rec.Before, rec.After).JSONMap()
	}

	if err := r.repo.Insert(ctx, r.db, &entry); err != nil {
		r.log.Warn("failed to write audit log",
			zap.String("entity", rec.Subject.String()),
			zap.String("action", string(rec.Action)),
			zap.Error(err),
		)
		r.metrics.RecordAuditFailure(ctx, string(rec.Subject.Kind)+"."+string(rec.Action))
		return fmt.Errorf("audit %s %s: %w", rec.Action, rec.Subject, err)
	}
	return nil
}
