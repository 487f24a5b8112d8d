package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, p *Property) error
	Update(ctx context.Context, db *gorm.DB, p *Property) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	// CountLeases counts every lease ever signed on the property, active or not.
	CountLeases(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Property, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Property, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter) ([]*Property, error)
	// SetOccupancy writes the derived occupancy fields. tenantID is nil when vacant.
	SetOccupancy(ctx context.Context, db *gorm.DB, id snowflake.ID, tenantID *snowflake.ID, at time.Time) error
}
