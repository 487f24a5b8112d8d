package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/lock"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"github.com/smallbiznis/rentflow/internal/tenant/domain"
	pkgdb "github.com/smallbiznis/rentflow/pkg/db"
	"github.com/smallbiznis/rentflow/pkg/relation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fieldValidator = validator.New()

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Audit  auditdomain.Recorder
	Locker lock.Locker
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   domain.Repository
	audit  auditdomain.Recorder
	locker lock.Locker
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("tenant.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		audit:  p.Audit,
		locker: p.Locker,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Tenant, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Tenant{}, domain.ErrInvalidOrganization
	}

	now := s.clock.Now().UTC()
	t := domain.Tenant{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validate(&t); err != nil {
		return domain.Tenant{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &t); err != nil {
		return domain.Tenant{}, pkgdb.Classify(err)
	}

	s.record(ctx, &t, auditdomain.ActionCreate, nil, t.Snapshot())
	return t, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Tenant, error) {
	orgID, id, err := s.scope(ctx, rawID)
	if err != nil {
		return domain.Tenant{}, err
	}
	t, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Tenant{}, pkgdb.Classify(err)
	}
	if t == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return *t, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Tenant, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	items, err := s.repo.List(ctx, s.db, orgID, domain.ListFilter{Housed: req.Housed})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	out := make([]domain.Tenant, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.Tenant, error) {
	orgID, id, err := s.scope(ctx, req.ID)
	if err != nil {
		return domain.Tenant{}, err
	}

	var before, after domain.Tenant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		before = *current
		after = *current
		applyUpdate(&after, req)
		if err := validate(&after); err != nil {
			return err
		}
		after.UpdatedAt = s.clock.Now().UTC()
		return s.repo.Update(ctx, tx, &after)
	})
	if err != nil {
		return domain.Tenant{}, pkgdb.Classify(err)
	}

	s.record(ctx, &after, auditdomain.ActionUpdate, before.Snapshot(), after.Snapshot())
	return after, nil
}

// Delete refuses tenants that are currently housed. Payments and past leases
// of an unhoused tenant go with it.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	orgID, id, err := s.scope(ctx, rawID)
	if err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, lock.Key(relation.KindTenant, id))
	if err != nil {
		return pkgdb.Classify(err)
	}
	defer release()

	var deleted domain.Tenant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.Housed() {
			return domain.ErrHoused
		}
		leases, err := s.repo.CountLeases(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if leases > 0 {
			return domain.ErrHasLeases
		}
		deleted = *current
		return s.repo.Delete(ctx, tx, orgID, id)
	})
	if err != nil {
		return pkgdb.Classify(err)
	}

	s.record(ctx, &deleted, auditdomain.ActionDelete, deleted.Snapshot(), nil)
	return nil
}

func (s *Service) scope(ctx context.Context, rawID string) (snowflake.ID, snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, 0, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return 0, 0, domain.ErrInvalidID
	}
	return orgID, id, nil
}

func (s *Service) record(ctx context.Context, t *domain.Tenant, action auditdomain.Action, before, after auditdomain.Snapshot) {
	_ = s.audit.Record(ctx, auditdomain.Record{
		OrgID:   t.OrgID,
		Subject: relation.Tenant(t.ID),
		Name:    t.FullName(),
		Action:  action,
		Before:  before,
		After:   after,
	})
}

func applyUpdate(t *domain.Tenant, req domain.UpdateRequest) {
	if req.FirstName != nil {
		t.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		t.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		t.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		t.Phone = strings.TrimSpace(*req.Phone)
	}
}

func validate(t *domain.Tenant) error {
	if t.FirstName == "" || t.LastName == "" {
		return domain.ErrInvalidName
	}
	if t.Email != "" {
		if err := fieldValidator.Var(t.Email, "email"); err != nil {
			return domain.ErrInvalidEmail
		}
	}
	return nil
}
