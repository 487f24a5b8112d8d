package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/notification/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const (
	notificationColumns = `SELECT id, org_id, type, subject_kind, subject_id, title, message, metadata, is_read,
	resolved_at, created_at FROM notifications`

	settingsColumns = `SELECT org_id, late_payment_enabled, late_payment_days, lease_ending_enabled, lease_ending_days,
	vacancy_alert_enabled, vacancy_alert_days, email_reminders, reminder_frequency, last_reminder_on, updated_at
	FROM notification_settings`
)

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.Metadata == nil {
		n.Metadata = datatypes.JSONMap{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, org_id, type, subject_kind, subject_id, title, message, metadata, is_read, resolved_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.OrgID,
		string(n.Type),
		string(n.SubjectKind),
		n.SubjectID,
		n.Title,
		n.Message,
		n.Metadata,
		n.IsRead,
		n.ResolvedAt,
		n.CreatedAt,
	).Error
}

func (r *repo) FindUnread(ctx context.Context, db *gorm.DB, orgID snowflake.ID, t domain.Type, subjectID snowflake.ID) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).Raw(
		notificationColumns+` WHERE org_id = ? AND type = ? AND subject_id = ? AND is_read = ?`,
		orgID, string(t), subjectID, false,
	).Scan(&n).Error
	if err != nil {
		return nil, err
	}
	if n.ID == 0 {
		return nil, nil
	}
	return &n, nil
}

func (r *repo) ListUnreadByType(ctx context.Context, db *gorm.DB, orgID snowflake.ID, t domain.Type) ([]*domain.Notification, error) {
	var items []*domain.Notification
	err := db.WithContext(ctx).Raw(
		notificationColumns+` WHERE org_id = ? AND type = ? AND is_read = ? ORDER BY id ASC`,
		orgID, string(t), false,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]*domain.Notification, error) {
	var items []*domain.Notification
	err := db.WithContext(ctx).Raw(
		notificationColumns+` WHERE org_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		orgID, limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountUnread(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("org_id = ? AND is_read = ?", orgID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ? WHERE org_id = ? AND id = ?`,
		true, orgID, id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkAllRead(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ? WHERE org_id = ? AND is_read = ?`,
		true, orgID, false,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Retire(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ?, resolved_at = ? WHERE id = ? AND is_read = ?`,
		true, at, id, false,
	).Error
}

func (r *repo) ListOrgIDsWithUnread(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var raw []int64
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT org_id FROM notifications WHERE is_read = ?`, false,
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

func (r *repo) FindSettings(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.Settings, error) {
	var s domain.Settings
	if err := db.WithContext(ctx).Raw(settingsColumns+` WHERE org_id = ?`, orgID).Scan(&s).Error; err != nil {
		return nil, err
	}
	if s.OrgID == 0 {
		return nil, nil
	}
	return &s, nil
}

// InsertSettings keeps the existing row when two first reads race.
func (r *repo) InsertSettings(ctx context.Context, db *gorm.DB, s *domain.Settings) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notification_settings (org_id, late_payment_enabled, late_payment_days, lease_ending_enabled,
		 lease_ending_days, vacancy_alert_enabled, vacancy_alert_days, email_reminders, reminder_frequency,
		 last_reminder_on, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id) DO NOTHING`,
		s.OrgID,
		s.LatePaymentEnabled,
		s.LatePaymentDays,
		s.LeaseEndingEnabled,
		s.LeaseEndingDays,
		s.VacancyAlertEnabled,
		s.VacancyAlertDays,
		s.EmailReminders,
		string(s.ReminderFrequency),
		s.LastReminderOn,
		s.UpdatedAt,
	).Error
}

func (r *repo) UpdateSettings(ctx context.Context, db *gorm.DB, s *domain.Settings) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notification_settings SET late_payment_enabled = ?, late_payment_days = ?, lease_ending_enabled = ?,
		 lease_ending_days = ?, vacancy_alert_enabled = ?, vacancy_alert_days = ?, email_reminders = ?,
		 reminder_frequency = ?, updated_at = ?
		 WHERE org_id = ?`,
		s.LatePaymentEnabled,
		s.LatePaymentDays,
		s.LeaseEndingEnabled,
		s.LeaseEndingDays,
		s.VacancyAlertEnabled,
		s.VacancyAlertDays,
		s.EmailReminders,
		string(s.ReminderFrequency),
		s.UpdatedAt,
		s.OrgID,
	).Error
}

func (r *repo) ListReminderSettings(ctx context.Context, db *gorm.DB) ([]*domain.Settings, error) {
	var items []*domain.Settings
	if err := db.WithContext(ctx).Raw(settingsColumns+` WHERE email_reminders = ? ORDER BY org_id`, true).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) StampReminder(ctx context.Context, db *gorm.DB, orgID snowflake.ID, on time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notification_settings SET last_reminder_on = ? WHERE org_id = ?`,
		on, orgID,
	).Error
}
