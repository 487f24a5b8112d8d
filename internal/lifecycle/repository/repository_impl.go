package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const (
	leaseColumns = `SELECT id, org_id, property_id, tenant_id, start_date, end_date, rent_amount, charges, deposit,
	payment_day, notes, is_active, created_at, updated_at FROM leases`

	leaseViewColumns = `SELECT l.id, l.org_id, l.property_id, l.tenant_id, l.start_date, l.end_date, l.rent_amount,
	l.charges, l.deposit, l.payment_day, l.notes, l.is_active, l.created_at, l.updated_at,
	p.name AS property_name, t.first_name || ' ' || t.last_name AS tenant_name
	FROM leases l
	JOIN properties p ON p.id = l.property_id
	JOIN tenants t ON t.id = l.tenant_id`

	vacancyColumns = `SELECT id, org_id, property_id, start_date, end_date, reason, is_active, created_at, updated_at
	FROM vacancies`

	paymentViewColumns = `SELECT pay.id, pay.org_id, pay.lease_id, pay.amount, pay.payment_date, pay.period_month,
	pay.period_year, pay.method, pay.notes, pay.created_at,
	l.property_id, p.name AS property_name, p.address AS property_address, p.city AS property_city,
	l.tenant_id, t.first_name || ' ' || t.last_name AS tenant_name,
	l.rent_amount AS lease_rent, l.charges AS lease_charges
	FROM payments pay
	JOIN leases l ON l.id = pay.lease_id
	JOIN properties p ON p.id = l.property_id
	JOIN tenants t ON t.id = l.tenant_id`
)

func (r *repo) InsertLease(ctx context.Context, db *gorm.DB, l *domain.Lease) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO leases (id, org_id, property_id, tenant_id, start_date, end_date, rent_amount, charges, deposit,
		 payment_day, notes, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID,
		l.OrgID,
		l.PropertyID,
		l.TenantID,
		l.StartDate,
		l.EndDate,
		l.RentAmount,
		l.Charges,
		l.Deposit,
		l.PaymentDay,
		l.Notes,
		l.IsActive,
		l.CreatedAt,
		l.UpdatedAt,
	).Error
}

func (r *repo) UpdateLease(ctx context.Context, db *gorm.DB, l *domain.Lease) error {
	return db.WithContext(ctx).Exec(
		`UPDATE leases SET end_date = ?, is_active = ?, notes = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		l.EndDate,
		l.IsActive,
		l.Notes,
		l.UpdatedAt,
		l.OrgID,
		l.ID,
	).Error
}

func (r *repo) FindLease(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Lease, error) {
	return r.findLease(ctx, db, leaseColumns+` WHERE org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) FindLeaseForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Lease, error) {
	return r.findLease(ctx, db, leaseColumns+` WHERE org_id = ? AND id = ? FOR UPDATE`, orgID, id)
}

func (r *repo) findLease(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Lease, error) {
	var l domain.Lease
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&l).Error; err != nil {
		return nil, err
	}
	if l.ID == 0 {
		return nil, nil
	}
	return &l, nil
}

func (r *repo) FindLeaseView(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.LeaseView, error) {
	var v domain.LeaseView
	err := db.WithContext(ctx).Raw(leaseViewColumns+` WHERE l.org_id = ? AND l.id = ?`, orgID, id).Scan(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repo) ListLeases(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.LeaseFilter) ([]*domain.LeaseView, error) {
	query := leaseViewColumns + ` WHERE l.org_id = ?`
	args := []any{orgID}
	if filter.Active != nil {
		query += ` AND l.is_active = ?`
		args = append(args, *filter.Active)
	}
	if filter.PropertyID != 0 {
		query += ` AND l.property_id = ?`
		args = append(args, filter.PropertyID)
	}
	if filter.TenantID != 0 {
		query += ` AND l.tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	query += ` ORDER BY l.start_date DESC, l.id DESC`

	var items []*domain.LeaseView
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountActiveLeases(ctx context.Context, db *gorm.DB, propertyID, tenantID snowflake.ID) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx).Model(&domain.Lease{}).Where("is_active = ?", true)
	if propertyID != 0 {
		stmt = stmt.Where("property_id = ?", propertyID)
	}
	if tenantID != 0 {
		stmt = stmt.Where("tenant_id = ?", tenantID)
	}
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) InsertVacancy(ctx context.Context, db *gorm.DB, v *domain.Vacancy) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO vacancies (id, org_id, property_id, start_date, end_date, reason, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID,
		v.OrgID,
		v.PropertyID,
		v.StartDate,
		v.EndDate,
		v.Reason,
		v.IsActive,
		v.CreatedAt,
		v.UpdatedAt,
	).Error
}

func (r *repo) UpdateVacancy(ctx context.Context, db *gorm.DB, v *domain.Vacancy) error {
	return db.WithContext(ctx).Exec(
		`UPDATE vacancies SET end_date = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		v.EndDate,
		v.IsActive,
		v.UpdatedAt,
		v.ID,
	).Error
}

func (r *repo) FindVacancy(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Vacancy, error) {
	return r.findVacancy(ctx, db, vacancyColumns+` WHERE org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) FindVacancyForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Vacancy, error) {
	return r.findVacancy(ctx, db, vacancyColumns+` WHERE org_id = ? AND id = ? FOR UPDATE`, orgID, id)
}

func (r *repo) FindActiveVacancyForUpdate(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) (*domain.Vacancy, error) {
	return r.findVacancy(ctx, db, vacancyColumns+` WHERE property_id = ? AND is_active = ? FOR UPDATE`, propertyID, true)
}

func (r *repo) findVacancy(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Vacancy, error) {
	var v domain.Vacancy
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&v).Error; err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repo) ListVacancies(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.VacancyFilter) ([]*domain.VacancyView, error) {
	query := `SELECT v.id, v.org_id, v.property_id, v.start_date, v.end_date, v.reason, v.is_active, v.created_at,
	v.updated_at, p.name AS property_name
	FROM vacancies v
	JOIN properties p ON p.id = v.property_id
	WHERE v.org_id = ?`
	args := []any{orgID}
	if filter.Active != nil {
		query += ` AND v.is_active = ?`
		args = append(args, *filter.Active)
	}
	if filter.PropertyID != 0 {
		query += ` AND v.property_id = ?`
		args = append(args, filter.PropertyID)
	}
	query += ` ORDER BY v.start_date DESC, v.id DESC`

	var items []*domain.VacancyView
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, org_id, lease_id, amount, payment_date, period_month, period_year, method, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.OrgID,
		p.LeaseID,
		p.Amount,
		p.PaymentDate,
		p.PeriodMonth,
		p.PeriodYear,
		string(p.Method),
		p.Notes,
		p.CreatedAt,
	).Error
}

func (r *repo) DeletePayment(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM payments WHERE org_id = ? AND id = ?`, orgID, id).Error
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.PaymentView, error) {
	var v domain.PaymentView
	err := db.WithContext(ctx).Raw(paymentViewColumns+` WHERE pay.org_id = ? AND pay.id = ?`, orgID, id).Scan(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repo) FindPaymentByPeriod(ctx context.Context, db *gorm.DB, leaseID snowflake.ID, period domain.Period) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, lease_id, amount, payment_date, period_month, period_year, method, notes, created_at
		 FROM payments WHERE lease_id = ? AND period_month = ? AND period_year = ?`,
		leaseID,
		int(period.Month),
		period.Year,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.PaymentFilter) ([]*domain.PaymentView, error) {
	query := paymentViewColumns + ` WHERE pay.org_id = ?`
	args := []any{orgID}
	if filter.LeaseID != 0 {
		query += ` AND pay.lease_id = ?`
		args = append(args, filter.LeaseID)
	}
	if filter.Year != 0 {
		query += ` AND pay.period_year = ?`
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		query += ` AND pay.period_month = ?`
		args = append(args, filter.Month)
	}
	query += ` ORDER BY pay.period_year DESC, pay.period_month DESC, pay.id DESC`

	var items []*domain.PaymentView
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActiveOrgIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var raw []int64
	err := db.WithContext(ctx).Raw(
		`SELECT org_id FROM leases WHERE is_active = ?
		 UNION
		 SELECT org_id FROM vacancies WHERE is_active = ?`,
		true,
		true,
	).Scan(&raw).Error
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, snowflake.ID(id))
	}
	return ids, nil
}
