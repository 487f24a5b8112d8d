package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/audit/domain"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"github.com/smallbiznis/rentflow/pkg/db/pagination"
	"github.com/smallbiznis/rentflow/pkg/relation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("audit.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListFilter{OrgID: orgID, Limit: req.Limit()}

	if raw := strings.TrimSpace(req.EntityKind); raw != "" {
		kind, err := relation.ParseKind(raw)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidEntityKind
		}
		filter.EntityKind = kind
	}
	if raw := strings.TrimSpace(req.EntityID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidEntityID
		}
		filter.EntityID = id
	}
	if raw := strings.TrimSpace(req.Action); raw != "" {
		action := domain.Action(strings.ToLower(raw))
		if !action.Valid() {
			return domain.ListResponse{}, domain.ErrInvalidAction
		}
		filter.Action = action
	}

	cursor, err := decodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	filter.Cursor = cursor

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, filter.Limit, func(item *domain.Entry) string {
		token, err := pagination.EncodeCursor(pagination.NewCursor(item.ID.String(), item.CreatedAt))
		if err != nil {
			return ""
		}
		return token
	})

	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		if item != nil {
			entries = append(entries, *item)
		}
	}
	return domain.ListResponse{PageInfo: *pageInfo, Entries: entries}, nil
}

func decodeCursor(token string) (*domain.Cursor, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return nil, domain.ErrInvalidPageToken
		}
		return nil, err
	}
	if decoded == nil {
		return nil, nil
	}
	createdAt, err := decoded.Time()
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(decoded.ID)
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.Cursor{ID: id, CreatedAt: createdAt}, nil
}
