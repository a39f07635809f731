package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanTemplate is the catalog entry businesses subscribe to. Subscribing
// snapshots the template into PlanTerms; later edits or deletion of the
// template never reach existing subscriptions.
type PlanTemplate struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrgID string    `gorm:"size:50;not null;index" json:"-"`

	Name             string           `gorm:"size:100;not null" json:"name"`
	Role             BusinessRole     `gorm:"size:20;not null;index" json:"role"`
	Fee              decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"fee"`
	BillingFrequency BillingFrequency `gorm:"size:20;not null" json:"billing_frequency"`
	PaymentInterval  PaymentInterval  `gorm:"size:20;not null" json:"payment_interval"`
	PaymentType      PaymentType      `gorm:"size:10;not null" json:"payment_type"`
	CommissionRate   decimal.Decimal  `gorm:"type:numeric(6,4)" json:"commission_rate"`
	ProRataRate      decimal.Decimal  `gorm:"type:numeric(6,4)" json:"pro_rata_rate"`
	DurationMonths   int              `json:"duration_months"`
	Limits           datatypes.JSON   `gorm:"type:jsonb" json:"limits,omitempty"`

	Active bool `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PlanTemplate) TableName() string { return "plan_templates" }

// Snapshot copies the template's billing contract into a detached PlanTerms
// value for embedding on a subscription.
func (p *PlanTemplate) Snapshot() PlanTerms {
	limits := make(datatypes.JSON, len(p.Limits))
	copy(limits, p.Limits)
	return PlanTerms{
		PlanName:         p.Name,
		Role:             p.Role,
		Fee:              p.Fee,
		BillingFrequency: p.BillingFrequency,
		PaymentInterval:  p.PaymentInterval,
		PaymentType:      p.PaymentType,
		CommissionRate:   p.CommissionRate,
		ProRataRate:      p.ProRataRate,
		DurationMonths:   p.DurationMonths,
		Limits:           limits,
	}
}
