package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationOutcome labels what one reconciliation attempt observed.
type ReconciliationOutcome string

const (
	OutcomeSettled     ReconciliationOutcome = "SETTLED"
	OutcomeFailed      ReconciliationOutcome = "FAILED"
	OutcomeStillOpen   ReconciliationOutcome = "STILL_OPEN"
	OutcomeTimedOut    ReconciliationOutcome = "TIMED_OUT"
	OutcomeUnreachable ReconciliationOutcome = "UNREACHABLE"
)

// ReconciliationLog is an append-only audit row, one per reconciliation
// attempt against a transaction. Rows are never updated or deleted.
type ReconciliationLog struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TransactionID string    `gorm:"size:64;not null;index" json:"transaction_id"`
	OrgID         string    `gorm:"size:50;not null;index" json:"-"`

	Attempt        int                   `gorm:"not null" json:"attempt"`
	Outcome        ReconciliationOutcome `gorm:"size:15;not null" json:"outcome"`
	ProviderStatus string                `gorm:"size:40" json:"provider_status"`
	Detail         string                `gorm:"type:text" json:"detail"`

	CheckedAt time.Time `gorm:"not null;index" json:"checked_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (ReconciliationLog) TableName() string { return "reconciliation_logs" }
