package domain

import (
	"context"

	"github.com/smallbiznis/rentflow/pkg/apperr"
	"github.com/smallbiznis/rentflow/pkg/db/pagination"
)

type ListRequest struct {
	pagination.Pagination
	EntityKind string
	EntityID   string
	Action     string
}

type ListResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

// Recorder appends history entries. Callers log a failed write and carry on.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type Service interface {
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidOrganization = apperr.Validation("invalid_organization", "organization is required")
	ErrInvalidPageToken    = apperr.Validation("invalid_page_token", "page token is invalid")
	ErrInvalidEntityKind   = apperr.Validation("invalid_entity_type", "unknown entity type")
	ErrInvalidEntityID     = apperr.Validation("invalid_entity_id", "entity id is invalid")
	ErrInvalidAction       = apperr.Validation("invalid_action", "action must be create, update or delete")
	ErrInvalidSubject      = apperr.Validation("invalid_subject", "audit subject is required")
)
