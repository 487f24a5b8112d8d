package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
	"github.com/smallbiznis/rentflow/pkg/datex"
)

const TerminationReason = "lease terminated"

// Lease binds one tenant to one property. It is never deleted, only
// terminated.
type Lease struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	PropertyID snowflake.ID `gorm:"not null" json:"property_id"`
	TenantID   snowflake.ID `gorm:"not null" json:"tenant_id"`
	StartDate  time.Time    `json:"start_date"`
	EndDate    *time.Time   `json:"end_date,omitempty"`
	RentAmount int64        `json:"rent_amount"`
	Charges    int64        `json:"charges"`
	Deposit    int64        `json:"deposit"`
	PaymentDay int          `json:"payment_day"`
	Notes      string       `json:"notes"`
	IsActive   bool         `json:"is_active"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Lease) TableName() string { return "leases" }

// AmountDue is the monthly rent including charges.
func (l *Lease) AmountDue() int64 {
	return l.RentAmount + l.Charges
}

// DueDate is the day rent is due in (year, month), clipped to month end.
func (l *Lease) DueDate(year int, month time.Month) time.Time {
	return datex.ClipDay(year, month, l.PaymentDay)
}

// Covers reports whether the lease runs during any day of (year, month).
func (l *Lease) Covers(year int, month time.Month) bool {
	first, last := datex.MonthBounds(year, month)
	if datex.Day(l.StartDate).After(last) {
		return false
	}
	if l.EndDate != nil && datex.Day(*l.EndDate).Before(first) {
		return false
	}
	return true
}

func (l *Lease) Snapshot() auditdomain.Snapshot {
	return auditdomain.Snapshot{
		"property_id": l.PropertyID,
		"tenant_id":   l.TenantID,
		"start_date":  l.StartDate,
		"end_date":    l.EndDate,
		"rent_amount": l.RentAmount,
		"charges":     l.Charges,
		"deposit":     l.Deposit,
		"payment_day": l.PaymentDay,
		"notes":       l.Notes,
		"is_active":   l.IsActive,
	}
}

// LeaseView is a lease with the labels of the entities it binds.
type LeaseView struct {
	Lease
	PropertyName string `json:"property_name"`
	TenantName   string `json:"tenant_name"`
}

func (v *LeaseView) Label() string {
	return v.PropertyName + " / " + v.TenantName
}

// Vacancy is a window during which a property has no active lease.
type Vacancy struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	PropertyID snowflake.ID `gorm:"not null" json:"property_id"`
	StartDate  time.Time    `json:"start_date"`
	EndDate    *time.Time   `json:"end_date,omitempty"`
	Reason     string       `json:"reason"`
	IsActive   bool         `json:"is_active"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Vacancy) TableName() string { return "vacancies" }

// Days returns the length of the window as of now for an open vacancy.
func (v *Vacancy) Days(now time.Time) int {
	end := now
	if v.EndDate != nil {
		end = *v.EndDate
	}
	return datex.DaysBetween(v.StartDate, end)
}

func (v *Vacancy) Snapshot() auditdomain.Snapshot {
	return auditdomain.Snapshot{
		"property_id": v.PropertyID,
		"start_date":  v.StartDate,
		"end_date":    v.EndDate,
		"reason":      v.Reason,
		"is_active":   v.IsActive,
	}
}

type VacancyView struct {
	Vacancy
	PropertyName string `json:"property_name"`
}

type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodDirectDebit  PaymentMethod = "direct_debit"
	MethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCheck, MethodCash, MethodCard, MethodDirectDebit, MethodOther:
		return true
	}
	return false
}

// Payment settles one period of one lease.
type Payment struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	LeaseID     snowflake.ID  `gorm:"not null" json:"lease_id"`
	Amount      int64         `json:"amount"`
	PaymentDate time.Time     `json:"payment_date"`
	PeriodMonth int           `json:"period_month"`
	PeriodYear  int           `json:"period_year"`
	Method      PaymentMethod `json:"method"`
	Notes       string        `json:"notes"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) Period() Period {
	return Period{Year: p.PeriodYear, Month: time.Month(p.PeriodMonth)}
}

func (p *Payment) Snapshot() auditdomain.Snapshot {
	return auditdomain.Snapshot{
		"lease_id":     p.LeaseID,
		"amount":       p.Amount,
		"payment_date": p.PaymentDate,
		"period_month": p.PeriodMonth,
		"period_year":  p.PeriodYear,
		"method":       string(p.Method),
		"notes":        p.Notes,
	}
}

// PaymentView joins a payment with its lease, property and tenant labels.
type PaymentView struct {
	Payment
	PropertyID      snowflake.ID `json:"property_id"`
	PropertyName    string       `json:"property_name"`
	PropertyAddress string       `json:"property_address"`
	PropertyCity    string       `json:"property_city"`
	TenantID        snowflake.ID `json:"tenant_id"`
	TenantName      string       `json:"tenant_name"`
	LeaseRent       int64        `json:"lease_rent"`
	LeaseCharges    int64        `json:"lease_charges"`
}

// Period is one rent-due cycle.
type Period struct {
	Year  int
	Month time.Month
}

func (p Period) Valid() bool {
	return p.Month >= time.January && p.Month <= time.December && p.Year >= 1900 && p.Year <= 9999
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) Prev() Period {
	y, m := datex.PrevMonth(p.Year, p.Month)
	return Period{Year: y, Month: m}
}

type LeaseFilter struct {
	Active     *bool
	PropertyID snowflake.ID
	TenantID   snowflake.ID
}

type VacancyFilter struct {
	Active     *bool
	PropertyID snowflake.ID
}

type PaymentFilter struct {
	LeaseID snowflake.ID
	Year    int
	Month   int
}
