package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, org_id, first_name, last_name, email, phone, current_property_id, created_at, updated_at
	FROM tenants`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *domain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenants (id, org_id, first_name, last_name, email, phone, current_property_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.OrgID,
		t.FirstName,
		t.LastName,
		t.Email,
		t.Phone,
		t.CurrentPropertyID,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, t *domain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tenants SET first_name = ?, last_name = ?, email = ?, phone = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		t.FirstName,
		t.LastName,
		t.Email,
		t.Phone,
		t.UpdatedAt,
		t.OrgID,
		t.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM tenants WHERE org_id = ? AND id = ?`, orgID, id).Error
}

func (r *repo) CountLeases(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM leases WHERE org_id = ? AND tenant_id = ?`, orgID, id).Scan(&count).Error
	return count, err
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Tenant, error) {
	return r.find(ctx, db, selectColumns+` WHERE org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Tenant, error) {
	return r.find(ctx, db, selectColumns+` WHERE org_id = ? AND id = ? FOR UPDATE`, orgID, id)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&t).Error; err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter) ([]*domain.Tenant, error) {
	var items []*domain.Tenant
	stmt := db.WithContext(ctx).Model(&domain.Tenant{}).Where("org_id = ?", orgID)
	if filter.Housed != nil {
		if *filter.Housed {
			stmt = stmt.Where("current_property_id IS NOT NULL")
		} else {
			stmt = stmt.Where("current_property_id IS NULL")
		}
	}
	if err := stmt.Order("last_name asc, first_name asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetCurrentProperty(ctx context.Context, db *gorm.DB, id snowflake.ID, propertyID *snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tenants SET current_property_id = ?, updated_at = ? WHERE id = ?`,
		propertyID,
		at,
		id,
	).Error
}
