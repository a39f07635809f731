package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mayank-tagline555/sooq-billing/internal/models"
)

// DB wraps a gorm connection as the Stores + Atomic implementation used in
// production.
type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) *DB { return &DB{db: db} }

func (d *DB) Stores() Stores { return storesFor(d.db) }

// Transact runs fn in one database transaction; the Stores handed to fn are
// bound to that transaction, so GetForUpdate row locks hold until commit.
func (d *DB) Transact(ctx context.Context, fn func(Stores) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(storesFor(tx))
	})
}

func storesFor(db *gorm.DB) Stores {
	return Stores{
		Subscriptions: &subscriptionStore{db: db},
		Billing:       &billingRecordStore{db: db},
		Transactions:  &transactionStore{db: db},
		Wallets:       &walletStore{db: db},
		Assets:        &assetStore{db: db},
		ReconLogs:     &reconciliationLogStore{db: db},
	}
}

type subscriptionStore struct{ db *gorm.DB }

func (s *subscriptionStore) DueForBilling(ctx context.Context, orgID string, asOf time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Where("status IN ?", []models.SubscriptionStatus{models.StatusActive, models.StatusTrialing}).
		Where("next_billing_date IS NOT NULL AND next_billing_date <= ?", models.DateOnly(asOf)).
		Where("NOT (plan_role = ? AND plan_pro_rata_rate > 0)", models.RoleInvestor).
		Order("next_billing_date ASC").
		Find(&subs).Error
	return subs, err
}

func (s *subscriptionStore) ProRataSubscriptions(ctx context.Context, orgID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Where("status IN ?", []models.SubscriptionStatus{models.StatusActive, models.StatusTrialing}).
		Where("plan_role = ? AND plan_pro_rata_rate > 0", models.RoleInvestor).
		Find(&subs).Error
	return subs, err
}

func (s *subscriptionStore) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *subscriptionStore) Save(ctx context.Context, sub *models.Subscription) error {
	return s.db.WithContext(ctx).Save(sub).Error
}

func (s *subscriptionStore) ExpireElapsed(ctx context.Context, orgID string, asOf time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("org_id = ?", orgID).
		Where("status IN ?", []models.SubscriptionStatus{models.StatusActive, models.StatusTrialing}).
		Where("end_date IS NOT NULL AND end_date <= ?", models.DateOnly(asOf)).
		Update("status", models.StatusExpired)
	return res.RowsAffected, res.Error
}

type billingRecordStore struct{ db *gorm.DB }

func (s *billingRecordStore) CreateIfAbsent(ctx context.Context, rec *models.BillingRecord) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscription_id"}, {Name: "period_start"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *billingRecordStore) ForPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.BillingRecord, error) {
	var rec models.BillingRecord
	err := s.db.WithContext(ctx).
		First(&rec, "subscription_id = ? AND period_start = ?", subscriptionID, periodStart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *billingRecordStore) Update(ctx context.Context, rec *models.BillingRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *billingRecordStore) MarkPaid(ctx context.Context, id uuid.UUID, transactionID string, paidAt time.Time) error {
	return s.db.WithContext(ctx).Model(&models.BillingRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         models.BillingPaid,
			"transaction_id": transactionID,
			"paid_at":        paidAt,
		}).Error
}

func (s *billingRecordStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.BillingRecord{}).
		Where("id = ?", id).
		Update("status", models.BillingFailed).Error
}

func (s *billingRecordStore) ForSubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.BillingRecord, error) {
	var recs []models.BillingRecord
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("period_start DESC").
		Find(&recs).Error
	return recs, err
}

func (s *billingRecordStore) ByTransaction(ctx context.Context, transactionID string) (*models.BillingRecord, error) {
	var rec models.BillingRecord
	err := s.db.WithContext(ctx).First(&rec, "transaction_id = ?", transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

type transactionStore struct{ db *gorm.DB }

func (s *transactionStore) Create(ctx context.Context, tx *models.Transaction) error {
	return s.db.WithContext(ctx).Create(tx).Error
}

func (s *transactionStore) Get(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *transactionStore) GetForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tx, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *transactionStore) Update(ctx context.Context, tx *models.Transaction) error {
	return s.db.WithContext(ctx).Save(tx).Error
}

func (s *transactionStore) OpenPending(ctx context.Context, orgID string, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Where("status = ?", models.TxPending).
		Where("created_at < ?", createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

type walletStore struct{ db *gorm.DB }

func (s *walletStore) ForBusiness(ctx context.Context, businessID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	if err := s.db.WithContext(ctx).First(&w, "business_id = ?", businessID).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *walletStore) Credit(ctx context.Context, businessID uuid.UUID, amount decimal.Decimal) error {
	res := s.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("business_id = ?", businessID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type assetStore struct{ db *gorm.DB }

func (s *assetStore) HoldingsForBusiness(ctx context.Context, businessID uuid.UUID) ([]models.AssetHolding, error) {
	var holdings []models.AssetHolding
	err := s.db.WithContext(ctx).
		Preload("Sales").
		Where("business_id = ?", businessID).
		Find(&holdings).Error
	return holdings, err
}

type reconciliationLogStore struct{ db *gorm.DB }

func (s *reconciliationLogStore) Append(ctx context.Context, entry *models.ReconciliationLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *reconciliationLogStore) CountForTransaction(ctx context.Context, transactionID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ReconciliationLog{}).
		Where("transaction_id = ?", transactionID).
		Count(&n).Error
	return n, err
}

func (s *reconciliationLogStore) ForTransaction(ctx context.Context, transactionID string) ([]models.ReconciliationLog, error) {
	var entries []models.ReconciliationLog
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("checked_at ASC, attempt ASC").
		Find(&entries).Error
	return entries, err
}
