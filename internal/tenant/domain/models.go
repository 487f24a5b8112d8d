package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
)

// Tenant is a person renting a property. CurrentPropertyID is nil while unhoused
// and is maintained by lease transitions only.
type Tenant struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID  `gorm:"not null;index" json:"org_id"`
	FirstName         string        `json:"first_name"`
	LastName          string        `json:"last_name"`
	Email             string        `json:"email"`
	Phone             string        `json:"phone"`
	CurrentPropertyID *snowflake.ID `json:"current_property_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

func (t *Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

func (t *Tenant) Housed() bool {
	return t.CurrentPropertyID != nil && *t.CurrentPropertyID != 0
}

func (t *Tenant) Snapshot() auditdomain.Snapshot {
	return auditdomain.Snapshot{
		"first_name":          t.FirstName,
		"last_name":           t.LastName,
		"email":               t.Email,
		"phone":               t.Phone,
		"current_property_id": t.CurrentPropertyID,
	}
}

type ListFilter struct {
	Housed *bool
}
