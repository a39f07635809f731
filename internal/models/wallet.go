package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a business's prepaid balance. Deposits are credited exactly
// once when their gateway transaction settles.
type Wallet struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"business_id"`
	OrgID      string    `gorm:"size:50;not null;index" json:"-"`

	Balance  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"balance"`
	Currency string          `gorm:"size:3;not null;default:'SAR'" json:"currency"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }
