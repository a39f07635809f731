package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mayank-tagline555/sooq-billing/internal/models"
)

// SubscriptionStore reads and writes subscription rows.
type SubscriptionStore interface {
	// DueForBilling returns billable fixed-fee subscriptions whose next
	// billing date has arrived. Pro-rata investor subscriptions are
	// excluded; the annual pass owns those.
	DueForBilling(ctx context.Context, orgID string, asOf time.Time) ([]models.Subscription, error)

	// ProRataSubscriptions returns billable investor subscriptions billed on
	// asset holdings.
	ProRataSubscriptions(ctx context.Context, orgID string) ([]models.Subscription, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error

	// ExpireElapsed flips billable subscriptions whose end date has passed
	// to EXPIRED and returns how many changed.
	ExpireElapsed(ctx context.Context, orgID string, asOf time.Time) (int64, error)
}

// BillingRecordStore persists billing cycles.
type BillingRecordStore interface {
	// CreateIfAbsent inserts the record unless one already exists for the
	// same subscription and period start. It reports whether a row was
	// actually inserted.
	CreateIfAbsent(ctx context.Context, rec *models.BillingRecord) (bool, error)

	// ForPeriod returns the record occupying a subscription's period slot,
	// or nil when the period has not been opened yet.
	ForPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.BillingRecord, error)

	Update(ctx context.Context, rec *models.BillingRecord) error
	MarkPaid(ctx context.Context, id uuid.UUID, transactionID string, paidAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	ForSubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.BillingRecord, error)

	// ByTransaction finds the cycle a gateway order was opened for, or nil
	// when the transaction is not tied to one.
	ByTransaction(ctx context.Context, transactionID string) (*models.BillingRecord, error)
}

// TransactionStore persists gateway transactions.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	Get(ctx context.Context, id string) (*models.Transaction, error)

	// GetForUpdate loads the row with an exclusive row lock. Valid only
	// inside Atomic.Transact.
	GetForUpdate(ctx context.Context, id string) (*models.Transaction, error)

	Update(ctx context.Context, tx *models.Transaction) error

	// OpenPending returns PENDING transactions created before the cutoff,
	// oldest first.
	OpenPending(ctx context.Context, orgID string, createdBefore time.Time, limit int) ([]models.Transaction, error)
}

// WalletStore manages prepaid balances.
type WalletStore interface {
	ForBusiness(ctx context.Context, businessID uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, businessID uuid.UUID, amount decimal.Decimal) error
}

// AssetStore reads investor holdings for pro-rata pricing.
type AssetStore interface {
	HoldingsForBusiness(ctx context.Context, businessID uuid.UUID) ([]models.AssetHolding, error)
}

// ReconciliationLogStore appends audit rows. There are no update or delete
// operations; the log is append-only.
type ReconciliationLogStore interface {
	Append(ctx context.Context, entry *models.ReconciliationLog) error
	CountForTransaction(ctx context.Context, transactionID string) (int64, error)
	ForTransaction(ctx context.Context, transactionID string) ([]models.ReconciliationLog, error)
}

// Stores bundles every store so a unit of work can touch several tables.
type Stores struct {
	Subscriptions SubscriptionStore
	Billing       BillingRecordStore
	Transactions  TransactionStore
	Wallets       WalletStore
	Assets        AssetStore
	ReconLogs     ReconciliationLogStore
}

// Atomic runs a function against Stores inside one database transaction.
// Any returned error rolls everything back.
type Atomic interface {
	Transact(ctx context.Context, fn func(Stores) error) error
}
