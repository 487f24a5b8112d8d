package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
)

type PropertyType string

const (
	TypeApartment  PropertyType = "apartment"
	TypeHouse      PropertyType = "house"
	TypeStudio     PropertyType = "studio"
	TypeCommercial PropertyType = "commercial"
	TypeParking    PropertyType = "parking"
	TypeOther      PropertyType = "other"
)

func (t PropertyType) Valid() bool {
	switch t {
	case TypeApartment, TypeHouse, TypeStudio, TypeCommercial, TypeParking, TypeOther:
		return true
	}
	return false
}

// Property is a rentable unit. IsOccupied and CurrentTenantID are maintained
// by lease transitions only.
type Property struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID  `gorm:"not null;index" json:"org_id"`
	Name            string        `gorm:"not null" json:"name"`
	Address         string        `json:"address"`
	City            string        `json:"city"`
	PostalCode      string        `json:"postal_code"`
	PropertyType    PropertyType  `json:"property_type"`
	Surface         float64       `json:"surface"`
	Rooms           int           `json:"rooms"`
	RentAmount      int64         `json:"rent_amount"`
	Charges         int64         `json:"charges"`
	IsOccupied      bool          `json:"is_occupied"`
	CurrentTenantID *snowflake.ID `json:"current_tenant_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Property) TableName() string { return "properties" }

func (p *Property) Snapshot() auditdomain.Snapshot {
	return auditdomain.Snapshot{
		"name":              p.Name,
		"address":           p.Address,
		"city":              p.City,
		"postal_code":       p.PostalCode,
		"property_type":     string(p.PropertyType),
		"surface":           p.Surface,
		"rooms":             p.Rooms,
		"rent_amount":       p.RentAmount,
		"charges":           p.Charges,
		"is_occupied":       p.IsOccupied,
		"current_tenant_id": p.CurrentTenantID,
	}
}

type ListFilter struct {
	Occupied *bool
}
