package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/property/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, org_id, name, address, city, postal_code, property_type, surface, rooms,
	rent_amount, charges, is_occupied, current_tenant_id, created_at, updated_at
	FROM properties`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.Property) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO properties (id, org_id, name, address, city, postal_code, property_type, surface, rooms,
			rent_amount, charges, is_occupied, current_tenant_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.OrgID,
		p.Name,
		p.Address,
		p.City,
		p.PostalCode,
		p.PropertyType,
		p.Surface,
		p.Rooms,
		p.RentAmount,
		p.Charges,
		p.IsOccupied,
		p.CurrentTenantID,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, p *domain.Property) error {
	return db.WithContext(ctx).Exec(
		`UPDATE properties SET name = ?, address = ?, city = ?, postal_code = ?, property_type = ?,
			surface = ?, rooms = ?, rent_amount = ?, charges = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		p.Name,
		p.Address,
		p.City,
		p.PostalCode,
		p.PropertyType,
		p.Surface,
		p.Rooms,
		p.RentAmount,
		p.Charges,
		p.UpdatedAt,
		p.OrgID,
		p.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM properties WHERE org_id = ? AND id = ?`, orgID, id).Error
}

func (r *repo) CountLeases(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM leases WHERE org_id = ? AND property_id = ?`, orgID, id).Scan(&count).Error
	return count, err
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Property, error) {
	return r.find(ctx, db, selectColumns+` WHERE org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Property, error) {
	return r.find(ctx, db, selectColumns+` WHERE org_id = ? AND id = ? FOR UPDATE`, orgID, id)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Property, error) {
	var p domain.Property
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter) ([]*domain.Property, error) {
	var items []*domain.Property
	stmt := db.WithContext(ctx).Model(&domain.Property{}).Where("org_id = ?", orgID)
	if filter.Occupied != nil {
		stmt = stmt.Where("is_occupied = ?", *filter.Occupied)
	}
	if err := stmt.Order("name asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetOccupancy(ctx context.Context, db *gorm.DB, id snowflake.ID, tenantID *snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE properties SET is_occupied = ?, current_tenant_id = ?, updated_at = ? WHERE id = ?`,
		tenantID != nil,
		tenantID,
		at,
		id,
	).Error
}
