// Package storetest provides in-memory store implementations for service
// tests. They honor the same contracts as the database-backed stores,
// including idempotent billing-record creation, but hold everything in maps.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/store"
)

// Memory is an in-memory store.Atomic. Transact runs the function directly;
// there is no rollback, which is fine for tests asserting happy paths and
// per-item skips.
type Memory struct {
	mu sync.Mutex

	Subs     map[uuid.UUID]*models.Subscription
	Records  map[uuid.UUID]*models.BillingRecord
	Txs      map[string]*models.Transaction
	Wallets  map[uuid.UUID]*models.Wallet
	Holdings map[uuid.UUID][]models.AssetHolding
	Logs     []models.ReconciliationLog
}

func NewMemory() *Memory {
	return &Memory{
		Subs:     make(map[uuid.UUID]*models.Subscription),
		Records:  make(map[uuid.UUID]*models.BillingRecord),
		Txs:      make(map[string]*models.Transaction),
		Wallets:  make(map[uuid.UUID]*models.Wallet),
		Holdings: make(map[uuid.UUID][]models.AssetHolding),
	}
}

func (m *Memory) Stores() store.Stores {
	return store.Stores{
		Subscriptions: (*memSubscriptions)(m),
		Billing:       (*memBilling)(m),
		Transactions:  (*memTransactions)(m),
		Wallets:       (*memWallets)(m),
		Assets:        (*memAssets)(m),
		ReconLogs:     (*memReconLogs)(m),
	}
}

func (m *Memory) Transact(ctx context.Context, fn func(store.Stores) error) error {
	return fn(m.Stores())
}

// AddSubscription registers a copy and returns its id.
func (m *Memory) AddSubscription(sub models.Subscription) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	m.Subs[sub.ID] = &sub
	return sub.ID
}

func (m *Memory) AddTransaction(tx models.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Txs[tx.ID] = &tx
}

func (m *Memory) AddWallet(w models.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	m.Wallets[w.BusinessID] = &w
}

func (m *Memory) AddHolding(businessID uuid.UUID, h models.AssetHolding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	m.Holdings[businessID] = append(m.Holdings[businessID], h)
}

type memSubscriptions Memory

func (m *memSubscriptions) DueForBilling(_ context.Context, orgID string, asOf time.Time) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Subscription
	cutoff := models.DateOnly(asOf)
	for _, s := range m.Subs {
		if s.OrgID != orgID || !s.IsBillable() || s.NextBillingDate == nil {
			continue
		}
		if s.Terms.IsProRata() {
			continue
		}
		if !models.DateOnly(*s.NextBillingDate).After(cutoff) {
			due = append(due, *s)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextBillingDate.Before(*due[j].NextBillingDate) })
	return due, nil
}

func (m *memSubscriptions) ProRataSubscriptions(_ context.Context, orgID string) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []models.Subscription
	for _, s := range m.Subs {
		if s.OrgID == orgID && s.IsBillable() && s.Terms.IsProRata() {
			subs = append(subs, *s)
		}
	}
	return subs, nil
}

func (m *memSubscriptions) Get(_ context.Context, id uuid.UUID) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptions) Save(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.Subs[sub.ID] = &cp
	return nil
}

func (m *memSubscriptions) ExpireElapsed(_ context.Context, orgID string, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	cutoff := models.DateOnly(asOf)
	for _, s := range m.Subs {
		if s.OrgID != orgID || !s.IsBillable() || s.EndDate == nil {
			continue
		}
		if !models.DateOnly(*s.EndDate).After(cutoff) {
			s.Status = models.StatusExpired
			n++
		}
	}
	return n, nil
}

type memBilling Memory

func (m *memBilling) CreateIfAbsent(_ context.Context, rec *models.BillingRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Records {
		if existing.SubscriptionID == rec.SubscriptionID && existing.PeriodStart.Equal(rec.PeriodStart) {
			return false, nil
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	m.Records[rec.ID] = &cp
	return true, nil
}

func (m *memBilling) ForPeriod(_ context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Records {
		if r.SubscriptionID == subscriptionID && r.PeriodStart.Equal(periodStart) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBilling) Update(_ context.Context, rec *models.BillingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Records[rec.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *rec
	m.Records[rec.ID] = &cp
	return nil
}

func (m *memBilling) MarkPaid(_ context.Context, id uuid.UUID, transactionID string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = models.BillingPaid
	rec.TransactionID = &transactionID
	rec.PaidAt = &paidAt
	return nil
}

func (m *memBilling) MarkFailed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = models.BillingFailed
	return nil
}

func (m *memBilling) ForSubscription(_ context.Context, subscriptionID uuid.UUID) ([]models.BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []models.BillingRecord
	for _, r := range m.Records {
		if r.SubscriptionID == subscriptionID {
			recs = append(recs, *r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].PeriodStart.After(recs[j].PeriodStart) })
	return recs, nil
}

func (m *memBilling) ByTransaction(_ context.Context, transactionID string) (*models.BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Records {
		if r.TransactionID != nil && *r.TransactionID == transactionID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

type memTransactions Memory

func (m *memTransactions) Create(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	cp := *tx
	m.Txs[tx.ID] = &cp
	return nil
}

func (m *memTransactions) Get(_ context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.Txs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *memTransactions) GetForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return m.Get(ctx, id)
}

func (m *memTransactions) Update(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Txs[tx.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *tx
	m.Txs[tx.ID] = &cp
	return nil
}

func (m *memTransactions) OpenPending(_ context.Context, orgID string, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []models.Transaction
	for _, tx := range m.Txs {
		if tx.OrgID == orgID && tx.Status == models.TxPending && tx.CreatedAt.Before(createdBefore) {
			open = append(open, *tx)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.Before(open[j].CreatedAt) })
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

type memWallets Memory

func (m *memWallets) ForBusiness(_ context.Context, businessID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.Wallets[businessID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWallets) Credit(_ context.Context, businessID uuid.UUID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.Wallets[businessID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	w.Balance = w.Balance.Add(amount)
	return nil
}

type memAssets Memory

func (m *memAssets) HoldingsForBusiness(_ context.Context, businessID uuid.UUID) ([]models.AssetHolding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AssetHolding(nil), m.Holdings[businessID]...), nil
}

type memReconLogs Memory

func (m *memReconLogs) Append(_ context.Context, entry *models.ReconciliationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	m.Logs = append(m.Logs, *entry)
	return nil
}

func (m *memReconLogs) CountForTransaction(_ context.Context, transactionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.Logs {
		if e.TransactionID == transactionID {
			n++
		}
	}
	return n, nil
}

func (m *memReconLogs) ForTransaction(_ context.Context, transactionID string) ([]models.ReconciliationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []models.ReconciliationLog
	for _, e := range m.Logs {
		if e.TransactionID == transactionID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CheckedAt.Equal(entries[j].CheckedAt) {
			return entries[i].Attempt < entries[j].Attempt
		}
		return entries[i].CheckedAt.Before(entries[j].CheckedAt)
	})
	return entries, nil
}
