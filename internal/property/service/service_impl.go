package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/lock"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"github.com/smallbiznis/rentflow/internal/property/domain"
	pkgdb "github.com/smallbiznis/rentflow/pkg/db"
	"github.com/smallbiznis/rentflow/pkg/relation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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
		log:    p.Log.Named("property.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		audit:  p.Audit,
		locker: p.Locker,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Property, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Property{}, domain.ErrInvalidOrganization
	}

	propertyType := domain.PropertyType(strings.ToLower(strings.TrimSpace(req.PropertyType)))
	if propertyType == "" {
		propertyType = domain.TypeApartment
	}

	now := s.clock.Now().UTC()
	p := domain.Property{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		Name:         strings.TrimSpace(req.Name),
		Address:      strings.TrimSpace(req.Address),
		City:         strings.TrimSpace(req.City),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		PropertyType: propertyType,
		Surface:      req.Surface,
		Rooms:        req.Rooms,
		RentAmount:   req.RentAmount,
		Charges:      req.Charges,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := validate(&p); err != nil {
		return domain.Property{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &p); err != nil {
		return domain.Property{}, pkgdb.Classify(err)
	}

	s.record(ctx, &p, auditdomain.ActionCreate, nil, p.Snapshot())
	return p, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Property, error) {
	orgID, id, err := s.scope(ctx, rawID)
	if err != nil {
		return domain.Property{}, err
	}
	p, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Property{}, pkgdb.Classify(err)
	}
	if p == nil {
		return domain.Property{}, domain.ErrNotFound
	}
	return *p, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Property, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	items, err := s.repo.List(ctx, s.db, orgID, domain.ListFilter{Occupied: req.Occupied})
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	out := make([]domain.Property, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.Property, error) {
	orgID, id, err := s.scope(ctx, req.ID)
	if err != nil {
		return domain.Property{}, err
	}

	var before, after domain.Property
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
		return domain.Property{}, pkgdb.Classify(err)
	}

	s.record(ctx, &after, auditdomain.ActionUpdate, before.Snapshot(), after.Snapshot())
	return after, nil
}

// Delete refuses occupied properties. The property lock keeps a concurrent
// lease creation from slipping in between the check and the delete.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	orgID, id, err := s.scope(ctx, rawID)
	if err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, lock.Key(relation.KindProperty, id))
	if err != nil {
		return pkgdb.Classify(err)
	}
	defer release()

	var deleted domain.Property
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.IsOccupied {
			return domain.ErrOccupied
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

func (s *Service) record(ctx context.Context, p *domain.Property, action auditdomain.Action, before, after auditdomain.Snapshot) {
	// Recorder logs its own failures.
	_ = s.audit.Record(ctx, auditdomain.Record{
		OrgID:   p.OrgID,
		Subject: relation.Property(p.ID),
		Name:    p.Name,
		Action:  action,
		Before:  before,
		After:   after,
	})
}

func applyUpdate(p *domain.Property, req domain.UpdateRequest) {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		p.Address = strings.TrimSpace(*req.Address)
	}
	if req.City != nil {
		p.City = strings.TrimSpace(*req.City)
	}
	if req.PostalCode != nil {
		p.PostalCode = strings.TrimSpace(*req.PostalCode)
	}
	if req.PropertyType != nil {
		p.PropertyType = domain.PropertyType(strings.ToLower(strings.TrimSpace(*req.PropertyType)))
	}
	if req.Surface != nil {
		p.Surface = *req.Surface
	}
	if req.Rooms != nil {
		p.Rooms = *req.Rooms
	}
	if req.RentAmount != nil {
		p.RentAmount = *req.RentAmount
	}
	if req.Charges != nil {
		p.Charges = *req.Charges
	}
}

func validate(p *domain.Property) error {
	switch {
	case p.Name == "":
		return domain.ErrInvalidName
	case !p.PropertyType.Valid():
		return domain.ErrInvalidType
	case p.RentAmount < 0 || p.Charges < 0:
		return domain.ErrInvalidAmount
	case p.Surface < 0 || p.Rooms < 0:
		return domain.ErrInvalidSize
	}
	return nil
}
