package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BusinessRole identifies which side of the marketplace a business operates on.
type BusinessRole string

const (
	RoleSeller       BusinessRole = "SELLER"
	RoleManufacturer BusinessRole = "MANUFACTURER"
	RoleJeweler      BusinessRole = "JEWELER"
	RoleInvestor     BusinessRole = "INVESTOR"
)

// BillingFrequency controls how often billing cycles are generated.
type BillingFrequency string

const (
	FrequencyMonthly BillingFrequency = "MONTHLY"
	FrequencyYearly  BillingFrequency = "YEARLY"
)

// PaymentInterval controls how often the customer actually pays. A plan can be
// invoiced monthly while the customer pays once a year.
type PaymentInterval string

const (
	IntervalMonthly PaymentInterval = "MONTHLY"
	IntervalYearly  PaymentInterval = "YEARLY"
)

// PaymentType defines whether the customer pays before or after the service
// period. Free trials never pay.
type PaymentType string

const (
	Prepaid   PaymentType = "PREPAID"
	Postpaid  PaymentType = "POSTPAID"
	FreeTrial PaymentType = "FREE_TRIAL"
)

// PlanTerms is the billing contract snapshot taken from a plan template at
// subscribe/update time. A subscription never reads live template state for
// billing math, so template edits and deletions cannot alter what an existing
// business is charged.
type PlanTerms struct {
	PlanName         string           `gorm:"size:100" json:"plan_name"`
	Role             BusinessRole     `gorm:"size:20" json:"role"`
	Fee              decimal.Decimal  `gorm:"type:numeric(12,2)" json:"fee"`
	BillingFrequency BillingFrequency `gorm:"size:20" json:"billing_frequency"`
	PaymentInterval  PaymentInterval  `gorm:"size:20" json:"payment_interval"`
	PaymentType      PaymentType      `gorm:"size:10" json:"payment_type"`
	CommissionRate   decimal.Decimal  `gorm:"type:numeric(6,4)" json:"commission_rate"`
	ProRataRate      decimal.Decimal  `gorm:"type:numeric(6,4)" json:"pro_rata_rate"`
	DurationMonths   int              `json:"duration_months"`
	// Role-specific usage limits copied from the template, e.g.
	// {"max_design_count": 50, "max_metal_weight_grams": 2000}.
	Limits datatypes.JSON `gorm:"type:jsonb" json:"limits,omitempty"`
}

// IsProRata reports whether the terms are billed on asset holdings instead of
// a fixed fee. Pro-rata subscriptions are handled exclusively by the annual
// pro-rata pass.
func (t PlanTerms) IsProRata() bool {
	return t.Role == RoleInvestor && t.ProRataRate.IsPositive()
}

// MonthlyInvoicedYearly reports whether the plan pays once per
// payment-interval year but generates monthly sub-invoices.
func (t PlanTerms) MonthlyInvoicedYearly() bool {
	return t.PaymentInterval == IntervalYearly && t.BillingFrequency == FrequencyMonthly
}
