package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetHolding is an investor's position in a physical asset. Pro-rata
// billing charges holdings by time held within the billing year.
type AssetHolding struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`
	OrgID      string    `gorm:"size:50;not null;index" json:"-"`

	AssetName string          `gorm:"size:100;not null" json:"asset_name"`
	Quantity  decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"quantity"`
	UnitCost  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_cost"`

	AcquiredAt time.Time `gorm:"not null" json:"acquired_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Sales []AssetSale `gorm:"foreignKey:HoldingID" json:"sales,omitempty"`
}

func (AssetHolding) TableName() string { return "asset_holdings" }

// AssetSale records a partial or full disposal of a holding. Sold quantity
// is charged pro-rata only for the days it was held within the year.
type AssetSale struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	HoldingID uuid.UUID `gorm:"type:uuid;not null;index" json:"holding_id"`

	Quantity decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"quantity"`
	SoldAt   time.Time       `gorm:"not null" json:"sold_at"`

	CreatedAt time.Time `json:"created_at"`
}

func (AssetSale) TableName() string { return "asset_sales" }

// RemainingQuantity is the unsold quantity as of a point in time.
func (h *AssetHolding) RemainingQuantity(asOf time.Time) decimal.Decimal {
	remaining := h.Quantity
	for _, sale := range h.Sales {
		if !sale.SoldAt.After(asOf) {
			remaining = remaining.Sub(sale.Quantity)
		}
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
