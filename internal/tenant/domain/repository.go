package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, t *Tenant) error
	Update(ctx context.Context, db *gorm.DB, t *Tenant) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	CountLeases(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Tenant, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Tenant, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter) ([]*Tenant, error)
	SetCurrentProperty(ctx context.Context, db *gorm.DB, id snowflake.ID, propertyID *snowflake.ID, at time.Time) error
}
