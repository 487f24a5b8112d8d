package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	FindUnread(ctx context.Context, db *gorm.DB, orgID snowflake.ID, t Type, subjectID snowflake.ID) (*Notification, error)
	ListUnreadByType(ctx context.Context, db *gorm.DB, orgID snowflake.ID, t Type) ([]*Notification, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]*Notification, error)
	CountUnread(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
	MarkRead(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
	MarkAllRead(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
	// Retire marks an unread alert read because its condition cleared.
	Retire(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	ListOrgIDsWithUnread(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)

	FindSettings(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Settings, error)
	InsertSettings(ctx context.Context, db *gorm.DB, s *Settings) error
	UpdateSettings(ctx context.Context, db *gorm.DB, s *Settings) error
	ListReminderSettings(ctx context.Context, db *gorm.DB) ([]*Settings, error)
	StampReminder(ctx context.Context, db *gorm.DB, orgID snowflake.ID, on time.Time) error
}
