package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the store for leases, vacancies and payments. The ForUpdate
// lookups lock the row for the enclosing transaction.
type Repository interface {
	InsertLease(ctx context.Context, db *gorm.DB, l *Lease) error
	UpdateLease(ctx context.Context, db *gorm.DB, l *Lease) error
	FindLease(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Lease, error)
	FindLeaseForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Lease, error)
	FindLeaseView(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LeaseView, error)
	ListLeases(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter LeaseFilter) ([]*LeaseView, error)
	CountActiveLeases(ctx context.Context, db *gorm.DB, propertyID, tenantID snowflake.ID) (int64, error)

	InsertVacancy(ctx context.Context, db *gorm.DB, v *Vacancy) error
	UpdateVacancy(ctx context.Context, db *gorm.DB, v *Vacancy) error
	FindVacancy(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Vacancy, error)
	FindVacancyForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Vacancy, error)
	FindActiveVacancyForUpdate(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) (*Vacancy, error)
	ListVacancies(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter VacancyFilter) ([]*VacancyView, error)

	InsertPayment(ctx context.Context, db *gorm.DB, p *Payment) error
	DeletePayment(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	FindPayment(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PaymentView, error)
	FindPaymentByPeriod(ctx context.Context, db *gorm.DB, leaseID snowflake.ID, period Period) (*Payment, error)
	ListPayments(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter PaymentFilter) ([]*PaymentView, error)

	// ListActiveOrgIDs returns every owner with an active lease or vacancy.
	ListActiveOrgIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
}
