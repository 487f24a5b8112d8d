package domain

import (
	"context"

	"github.com/smallbiznis/rentflow/pkg/apperr"
)

type CreateRequest struct {
	Name         string
	Address      string
	City         string
	PostalCode   string
	PropertyType string
	Surface      float64
	Rooms        int
	RentAmount   int64
	Charges      int64
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	ID           string
	Name         *string
	Address      *string
	City         *string
	PostalCode   *string
	PropertyType *string
	Surface      *float64
	Rooms        *int
	RentAmount   *int64
	Charges      *int64
}

type ListRequest struct {
	Occupied *bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Property, error)
	Get(ctx context.Context, id string) (Property, error)
	List(ctx context.Context, req ListRequest) ([]Property, error)
	Update(ctx context.Context, req UpdateRequest) (Property, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidOrganization = apperr.Validation("invalid_organization", "organization is required")
	ErrInvalidID           = apperr.Validation("invalid_property_id", "property id is invalid")
	ErrInvalidName         = apperr.Validation("invalid_name", "property name is required")
	ErrInvalidType         = apperr.Validation("invalid_property_type", "property type is not supported")
	ErrInvalidAmount       = apperr.Validation("invalid_amount", "amounts must not be negative")
	ErrInvalidSize         = apperr.Validation("invalid_size", "surface and rooms must not be negative")
	ErrNotFound            = apperr.NotFound("property_not_found", "property not found")
	ErrOccupied            = apperr.Conflict("property_occupied", "this property is currently occupied")
	ErrHasLeases           = apperr.Conflict("property_has_leases", "this property has lease history and cannot be deleted")
)
