package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the engine's view of a gateway payment. Provider
// statuses are folded into these three values during reconciliation.
type TransactionStatus string

const (
	TxPending TransactionStatus = "PENDING"
	TxSuccess TransactionStatus = "SUCCESS"
	TxFailed  TransactionStatus = "FAILED"
)

// TransactionType distinguishes subscription charges from wallet top-ups.
type TransactionType string

const (
	TxPayment TransactionType = "PAYMENT"
	TxDeposit TransactionType = "DEPOSIT"
)

// Transaction mirrors one gateway order. The primary key is the gateway's
// order id, so status lookups and webhook notifications converge on the same
// row.
type Transaction struct {
	ID         string    `gorm:"size:64;primaryKey" json:"id"`
	OrgID      string    `gorm:"size:50;not null;index" json:"-"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`

	SubscriptionID *uuid.UUID `gorm:"type:uuid;index" json:"subscription_id,omitempty"`

	Type   TransactionType   `gorm:"size:10;not null;default:'PAYMENT'" json:"type"`
	Status TransactionStatus `gorm:"size:10;not null;default:'PENDING';index" json:"status"`

	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency string          `gorm:"size:3;not null;default:'SAR'" json:"currency"`

	// ProviderStatus keeps the gateway's last raw status string for audit.
	ProviderStatus string `gorm:"size:40" json:"provider_status"`

	RetryCount int `gorm:"not null;default:0" json:"retry_count"`

	// WalletCredited guards deposit settlement. Once set, reconciliation
	// never credits the wallet for this transaction again.
	WalletCredited bool `gorm:"not null;default:false" json:"wallet_credited"`

	SettledAt *time.Time `json:"settled_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

// IsTerminal reports whether the transaction has reached a final status.
func (t *Transaction) IsTerminal() bool {
	return t.Status != TxPending
}
