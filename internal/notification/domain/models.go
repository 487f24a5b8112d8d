package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/pkg/relation"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeLatePayment  Type = "late_payment"
	TypeLeaseEnding  Type = "lease_ending"
	TypeVacancyAlert Type = "vacancy_alert"
)

// Types lists every alert type in evaluation order.
var Types = []Type{TypeLatePayment, TypeLeaseEnding, TypeVacancyAlert}

func (t Type) Valid() bool {
	switch t {
	case TypeLatePayment, TypeLeaseEnding, TypeVacancyAlert:
		return true
	}
	return false
}

// Notification is an alert raised by rule evaluation. At most one unread row
// exists per (org, type, subject). Rows are never deleted.
type Notification struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID      `gorm:"not null;index" json:"org_id"`
	Type        Type              `gorm:"not null" json:"type"`
	SubjectKind relation.Kind     `gorm:"not null" json:"subject_kind"`
	SubjectID   snowflake.ID      `gorm:"not null" json:"subject_id"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	IsRead      bool              `json:"is_read"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) Subject() relation.Ref {
	return relation.New(n.SubjectKind, n.SubjectID)
}

// MetadataString reads a string value from metadata.
func (n *Notification) MetadataString(key string) string {
	if n.Metadata == nil {
		return ""
	}
	s, _ := n.Metadata[key].(string)
	return s
}

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Settings is the per-owner singleton configuring the alert rules and
// reminder dispatch.
type Settings struct {
	OrgID               snowflake.ID `gorm:"primaryKey" json:"org_id"`
	LatePaymentEnabled  bool         `json:"late_payment_enabled"`
	LatePaymentDays     int          `json:"late_payment_days"`
	LeaseEndingEnabled  bool         `json:"lease_ending_enabled"`
	LeaseEndingDays     int          `json:"lease_ending_days"`
	VacancyAlertEnabled bool         `json:"vacancy_alert_enabled"`
	VacancyAlertDays    int          `json:"vacancy_alert_days"`
	EmailReminders      bool         `json:"email_reminders"`
	ReminderFrequency   Frequency    `json:"reminder_frequency"`
	LastReminderOn      *time.Time   `json:"last_reminder_on,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (Settings) TableName() string { return "notification_settings" }

// Rule is one (enabled, threshold_days) pair.
type Rule struct {
	Enabled       bool
	ThresholdDays int
}

func (s *Settings) Rule(t Type) Rule {
	switch t {
	case TypeLatePayment:
		return Rule{Enabled: s.LatePaymentEnabled, ThresholdDays: s.LatePaymentDays}
	case TypeLeaseEnding:
		return Rule{Enabled: s.LeaseEndingEnabled, ThresholdDays: s.LeaseEndingDays}
	case TypeVacancyAlert:
		return Rule{Enabled: s.VacancyAlertEnabled, ThresholdDays: s.VacancyAlertDays}
	}
	return Rule{}
}
