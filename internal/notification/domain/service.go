package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/pkg/apperr"
)

const ListLimit = 100

type UpdateSettingsRequest struct {
	LatePaymentEnabled  *bool
	LatePaymentDays     *int
	LeaseEndingEnabled  *bool
	LeaseEndingDays     *int
	VacancyAlertEnabled *bool
	VacancyAlertDays    *int
	EmailReminders      *bool
	ReminderFrequency   *string
}

type UpdateSettingsResponse struct {
	Settings Settings
	// Reenabled lists the rules switched from disabled to enabled.
	Reenabled []Type
}

type Service interface {
	List(ctx context.Context) ([]Notification, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (UpdateSettingsResponse, error)
	// SettingsFor reads an owner's settings, seeding defaults on first use.
	SettingsFor(ctx context.Context, orgID snowflake.ID) (Settings, error)
}

var (
	ErrInvalidOrganization = apperr.Validation("invalid_organization", "organization is required")
	ErrInvalidID           = apperr.Validation("invalid_notification_id", "notification id is invalid")
	ErrInvalidThreshold    = apperr.Validation("invalid_threshold", "threshold days must be between 0 and 365")
	ErrInvalidFrequency    = apperr.Validation("invalid_reminder_frequency", "reminder frequency must be daily, weekly or monthly")
	ErrNotFound            = apperr.NotFound("notification_not_found", "notification not found")
)
