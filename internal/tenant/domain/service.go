package domain

import (
	"context"

	"github.com/smallbiznis/rentflow/pkg/apperr"
)

type CreateRequest struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type UpdateRequest struct {
	ID        string
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

type ListRequest struct {
	Housed *bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context, req ListRequest) ([]Tenant, error)
	Update(ctx context.Context, req UpdateRequest) (Tenant, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidOrganization = apperr.Validation("invalid_organization", "organization is required")
	ErrInvalidID           = apperr.Validation("invalid_tenant_id", "tenant id is invalid")
	ErrInvalidName         = apperr.Validation("invalid_name", "first and last name are required")
	ErrInvalidEmail        = apperr.Validation("invalid_email", "email address is invalid")
	ErrNotFound            = apperr.NotFound("tenant_not_found", "tenant not found")
	ErrHoused              = apperr.Conflict("tenant_housed", "this tenant currently has an active lease")
	ErrHasLeases           = apperr.Conflict("tenant_has_leases", "this tenant has lease history and cannot be deleted")
)
