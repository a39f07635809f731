package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BillingRecordStatus tracks whether the cycle's charge settled.
type BillingRecordStatus string

const (
	BillingPending  BillingRecordStatus = "PENDING"
	BillingPaid     BillingRecordStatus = "PAID"
	BillingFailed   BillingRecordStatus = "FAILED"
	BillingInvoiced BillingRecordStatus = "INVOICED"
)

// Line item labels on a billing record. A plan-type transition can put two
// lines on one record, e.g. a postpaid close-out plus the new prepaid period.
const (
	LinePlanCharge    = "plan-charge"
	LinePostpaidClose = "postpaid-close"
	LinePrepaidOpen   = "prepaid-open"
	LineProRata       = "pro-rata"
)

// BillingLine is one component of a billing record's total.
type BillingLine struct {
	Label    string          `json:"label"`
	PlanName string          `json:"plan_name"`
	Amount   decimal.Decimal `json:"amount"`
}

// BillingRecord is one billing cycle for a subscription. The unique index on
// (subscription_id, period_start) makes cycle creation idempotent: a second
// pass over the same period inserts nothing.
type BillingRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_billing_sub_period" json:"subscription_id"`
	BusinessID     uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`
	OrgID          string    `gorm:"size:50;not null;index" json:"-"`

	PeriodStart time.Time `gorm:"not null;uniqueIndex:idx_billing_sub_period" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null" json:"period_end"`

	// Amount is the tax-exclusive base; Total is what the gateway is asked
	// to collect. VAT is applied at the organization's registered rate when
	// the cycle opens.
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	TaxRate   decimal.Decimal `gorm:"type:numeric(6,4);not null;default:0" json:"tax_rate"`
	TaxAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax_amount"`
	Total     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total"`
	Currency  string          `gorm:"size:3;not null;default:'SAR'" json:"currency"`

	// Lines itemizes the base amount, JSON-encoded []BillingLine.
	Lines datatypes.JSON `gorm:"type:jsonb" json:"lines,omitempty"`

	Status BillingRecordStatus `gorm:"size:10;not null;default:'PENDING';index" json:"status"`

	// InvoiceOnly cycles document the amount owed without charging, e.g. the
	// monthly sub-invoices of a yearly-paid plan and free-trial periods.
	InvoiceOnly bool `gorm:"not null;default:false" json:"invoice_only"`

	TransactionID *string `gorm:"size:64;index" json:"transaction_id,omitempty"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Subscription Subscription `gorm:"foreignKey:SubscriptionID" json:"-"`
}

func (BillingRecord) TableName() string { return "billing_records" }

// DecodeLines returns the itemized lines, or nil when none were recorded.
func (r *BillingRecord) DecodeLines() ([]BillingLine, error) {
	if len(r.Lines) == 0 {
		return nil, nil
	}
	var lines []BillingLine
	if err := json.Unmarshal(r.Lines, &lines); err != nil {
		return nil, fmt.Errorf("decode billing lines: %w", err)
	}
	return lines, nil
}
