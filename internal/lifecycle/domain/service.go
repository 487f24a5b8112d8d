package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/rentflow/pkg/apperr"
)

// CreateLeaseRequest carries the lease terms. A nil RentAmount or Charges
// takes the property's current value.
type CreateLeaseRequest struct {
	PropertyID string
	TenantID   string
	StartDate  time.Time
	EndDate    *time.Time
	RentAmount *int64
	Charges    *int64
	Deposit    int64
	PaymentDay int
	Notes      string
}

type TerminateLeaseRequest struct {
	LeaseID string
	EndDate time.Time
}

type DeclareVacancyRequest struct {
	PropertyID string
	StartDate  time.Time
	Reason     string
}

type EndVacancyRequest struct {
	VacancyID string
	EndDate   time.Time
}

// RecordPaymentRequest settles (PeriodMonth, PeriodYear) of a lease. A zero
// PaymentDate means today.
type RecordPaymentRequest struct {
	LeaseID     string
	Amount      int64
	PaymentDate time.Time
	PeriodMonth int
	PeriodYear  int
	Method      string
	Notes       string
}

type ListLeasesRequest struct {
	Active     *bool
	PropertyID string
	TenantID   string
}

type ListVacanciesRequest struct {
	Active     *bool
	PropertyID string
}

type ListPaymentsRequest struct {
	LeaseID string
	Year    int
}

// Coordinator is the only writer of occupancy state. Every transition is
// applied atomically or not at all.
type Coordinator interface {
	CreateLease(ctx context.Context, req CreateLeaseRequest) (Lease, error)
	TerminateLease(ctx context.Context, req TerminateLeaseRequest) (Lease, error)
	DeclareVacancy(ctx context.Context, req DeclareVacancyRequest) (Vacancy, error)
	EndVacancy(ctx context.Context, req EndVacancyRequest) (Vacancy, error)
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (Payment, error)
	DeletePayment(ctx context.Context, id string) error

	GetLease(ctx context.Context, id string) (LeaseView, error)
	ListLeases(ctx context.Context, req ListLeasesRequest) ([]LeaseView, error)
	ListVacancies(ctx context.Context, req ListVacanciesRequest) ([]VacancyView, error)
	GetPayment(ctx context.Context, id string) (PaymentView, error)
	ListPayments(ctx context.Context, req ListPaymentsRequest) ([]PaymentView, error)
}

var (
	ErrInvalidOrganization  = apperr.Validation("invalid_organization", "organization is required")
	ErrInvalidID            = apperr.Validation("invalid_id", "identifier is invalid")
	ErrInvalidDate          = apperr.Validation("invalid_date", "date is required")
	ErrInvalidDateRange     = apperr.Validation("invalid_date_range", "end date must not be before start date")
	ErrInvalidPaymentDay    = apperr.Validation("invalid_payment_day", "payment day must be between 1 and 31")
	ErrInvalidAmount        = apperr.Validation("invalid_amount", "amounts must not be negative")
	ErrInvalidPaymentAmount = apperr.Validation("invalid_payment_amount", "payment amount must be positive")
	ErrInvalidPeriod        = apperr.Validation("invalid_period", "period month must be 1-12 with a valid year")
	ErrInvalidMethod        = apperr.Validation("invalid_payment_method", "payment method is not supported")

	ErrPropertyNotFound = apperr.NotFound("property_not_found", "property not found")
	ErrTenantNotFound   = apperr.NotFound("tenant_not_found", "tenant not found")
	ErrLeaseNotFound    = apperr.NotFound("lease_not_found", "lease not found")
	ErrVacancyNotFound  = apperr.NotFound("vacancy_not_found", "vacancy not found")
	ErrPaymentNotFound  = apperr.NotFound("payment_not_found", "payment not found")

	ErrPropertyOccupied  = apperr.Conflict("property_occupied", "this property is already occupied")
	ErrTenantHoused      = apperr.Conflict("tenant_housed", "this tenant already has an active lease")
	ErrLeaseNotActive    = apperr.Conflict("lease_not_active", "lease is not active")
	ErrVacancyActive     = apperr.Conflict("vacancy_active", "this property already has an active vacancy")
	ErrVacancyNotActive  = apperr.Conflict("vacancy_not_active", "vacancy is already closed")
	ErrPeriodAlreadyPaid = apperr.Conflict("period_already_paid", "this period is already paid")
)
