package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mayank-tagline555/sooq-billing/internal/billing"
	"github.com/mayank-tagline555/sooq-billing/internal/gateway"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
	"github.com/mayank-tagline555/sooq-billing/internal/store"
)

// BillingService runs the recurring fee pass: it finds subscriptions whose
// next billing date has arrived, applies staged plan changes, prices the
// cycle, and charges the gateway. Each subscription is processed in
// isolation so one failure never stalls the pass.
type BillingService struct {
	db       store.Atomic
	stores   store.Stores
	provider gateway.Provider
	registry *org.Registry
	logger   *slog.Logger

	now        func() time.Time
	newOrderID func() string
}

func NewBillingService(db store.Atomic, stores store.Stores, provider gateway.Provider, registry *org.Registry, logger *slog.Logger) *BillingService {
	return &BillingService{
		db:         db,
		stores:     stores,
		provider:   provider,
		registry:   registry,
		logger:     logger,
		now:        time.Now,
		newOrderID: func() string { return "ord-" + uuid.NewString() },
	}
}

// FeePassSummary reports what one pass did.
type FeePassSummary struct {
	Due         int  `json:"due"`
	Charged     int  `json:"charged"`
	InvoiceOnly int  `json:"invoice_only"`
	Pending     int  `json:"pending"`
	Skipped     int  `json:"skipped"`
	Cancelled   int  `json:"cancelled"`
	Failed      int  `json:"failed"`
	Expired     int  `json:"expired"`
	DryRun      bool `json:"dry_run"`
}

type billOutcome int

const (
	outcomeCharged billOutcome = iota
	outcomeInvoiceOnly
	outcomePending
	outcomeSkipped
	outcomeCancelled
)

// RunFeePass executes the billing pass for one organization as of now.
func (s *BillingService) RunFeePass(ctx context.Context, orgID string, dryRun bool) (FeePassSummary, error) {
	cfg := s.registry.Get(orgID)
	if cfg == nil {
		return FeePassSummary{}, &models.ValidationError{Field: "org_id", Message: "unknown organization"}
	}

	asOf := models.DateOnly(s.now())
	summary := FeePassSummary{DryRun: dryRun}

	due, err := s.stores.Subscriptions.DueForBilling(ctx, orgID, asOf)
	if err != nil {
		return summary, fmt.Errorf("query due subscriptions: %w", err)
	}
	summary.Due = len(due)

	for i := range due {
		sub := &due[i]
		outcome, err := s.billSubscription(ctx, cfg, sub, asOf, dryRun)
		if err != nil {
			summary.Failed++
			s.logger.Error("billing cycle failed",
				"org_id", orgID,
				"subscription_id", sub.ID.String(),
				"business_id", sub.BusinessID.String(),
				"error", err)
			sentry.CaptureException(err)
			continue
		}
		switch outcome {
		case outcomeCharged:
			summary.Charged++
		case outcomeInvoiceOnly:
			summary.InvoiceOnly++
		case outcomePending:
			summary.Pending++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeCancelled:
			summary.Cancelled++
		}
	}

	if !dryRun {
		expired, err := s.stores.Subscriptions.ExpireElapsed(ctx, orgID, asOf)
		if err != nil {
			s.logger.Error("expiry sweep failed", "org_id", orgID, "error", err)
			sentry.CaptureException(err)
		}
		summary.Expired = int(expired)
	}

	s.logger.Info("fee pass complete",
		"org_id", orgID,
		"due", summary.Due,
		"charged", summary.Charged,
		"invoice_only", summary.InvoiceOnly,
		"pending", summary.Pending,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"expired", summary.Expired,
		"dry_run", dryRun)
	return summary, nil
}

func (s *BillingService) billSubscription(ctx context.Context, cfg *org.OrgConfig, sub *models.Subscription, asOf time.Time, dryRun bool) (billOutcome, error) {
	// A prepaid or trialing subscription with auto-renew off simply stops:
	// the paid period is over and nothing further is owed.
	if !sub.AutoRenew && sub.Terms.PaymentType != models.Postpaid {
		if dryRun {
			return outcomeCancelled, nil
		}
		sub.Status = models.StatusCancelled
		if err := s.stores.Subscriptions.Save(ctx, sub); err != nil {
			return 0, fmt.Errorf("cancel at period end: %w", err)
		}
		return outcomeCancelled, nil
	}

	outgoing, changed, err := sub.ApplyPendingPlan(asOf)
	if err != nil {
		return 0, fmt.Errorf("apply pending plan: %w", err)
	}

	periodStart, periodEnd := s.billingWindow(sub, asOf)

	cycle, err := billing.Calculate(billing.Input{
		Outgoing:    outgoing,
		Current:     sub.Terms,
		Changed:     changed,
		CycleCount:  sub.PlanCycleCount,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		EndDate:     sub.EndDate,
	})
	if errors.Is(err, billing.ErrZeroCharge) {
		// Nothing payable this boundary. The cursor still advances so the
		// subscription is not revisited every pass.
		if dryRun {
			return outcomeSkipped, nil
		}
		sub.AdvanceBillingCursor(asOf)
		if err := s.stores.Subscriptions.Save(ctx, sub); err != nil {
			return 0, fmt.Errorf("advance cursor: %w", err)
		}
		return outcomeSkipped, nil
	}
	if err != nil {
		return 0, fmt.Errorf("price cycle: %w", err)
	}

	if dryRun {
		if cycle.InvoiceOnly {
			return outcomeInvoiceOnly, nil
		}
		return outcomeCharged, nil
	}

	rec, err := s.openCycle(ctx, cfg, sub, cycle, periodStart, periodEnd)
	if errors.Is(err, billing.ErrDuplicatePeriod) {
		// Another pass already opened and settled (or is settling) this
		// period.
		return outcomeSkipped, nil
	}
	if err != nil {
		return 0, err
	}

	if cycle.InvoiceOnly {
		return outcomeInvoiceOnly, nil
	}
	return s.chargeCycle(ctx, rec, sub, asOf)
}

// openCycle inserts the billing record (the idempotency gate) and, for
// chargeable cycles, the PENDING gateway transaction, in one database
// transaction. When a FAILED record already occupies the period slot the
// cycle is a retry: the record is repriced and reopened instead. Any other
// occupant means the period is handled and ErrDuplicatePeriod comes back.
func (s *BillingService) openCycle(ctx context.Context, cfg *org.OrgConfig, sub *models.Subscription, cycle billing.Cycle, periodStart, periodEnd time.Time) (*models.BillingRecord, error) {
	lines, err := encodeLines(cycle.Lines)
	if err != nil {
		return nil, err
	}

	taxAmount := cycle.Amount.Mul(cfg.VATRate).Round(2)
	rec := &models.BillingRecord{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		BusinessID:     sub.BusinessID,
		OrgID:          sub.OrgID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Amount:         cycle.Amount,
		TaxRate:        cfg.VATRate,
		TaxAmount:      taxAmount,
		Total:          cycle.Amount.Add(taxAmount),
		Currency:       cfg.Currency,
		Lines:          lines,
		Status:         models.BillingPending,
		InvoiceOnly:    cycle.InvoiceOnly,
	}
	if cycle.InvoiceOnly {
		rec.Status = models.BillingInvoiced
	}

	err = s.db.Transact(ctx, func(st store.Stores) error {
		created, err := st.Billing.CreateIfAbsent(ctx, rec)
		if err != nil {
			return fmt.Errorf("create billing record: %w", err)
		}
		if !created {
			existing, err := st.Billing.ForPeriod(ctx, sub.ID, periodStart)
			if err != nil {
				return fmt.Errorf("load billing record: %w", err)
			}
			if existing == nil || existing.Status != models.BillingFailed {
				return billing.ErrDuplicatePeriod
			}
			existing.PeriodEnd = rec.PeriodEnd
			existing.Amount = rec.Amount
			existing.TaxRate = rec.TaxRate
			existing.TaxAmount = rec.TaxAmount
			existing.Total = rec.Total
			existing.Lines = rec.Lines
			existing.Status = rec.Status
			existing.InvoiceOnly = rec.InvoiceOnly
			rec = existing
		}
		if cycle.InvoiceOnly {
			sub.AdvanceBillingCursor(rec.PeriodStart)
			if err := st.Subscriptions.Save(ctx, sub); err != nil {
				return fmt.Errorf("advance cursor: %w", err)
			}
			return st.Billing.Update(ctx, rec)
		}
		orderID := s.newOrderID()
		tx := &models.Transaction{
			ID:             orderID,
			OrgID:          sub.OrgID,
			BusinessID:     sub.BusinessID,
			SubscriptionID: &sub.ID,
			Type:           models.TxPayment,
			Status:         models.TxPending,
			Amount:         rec.Total,
			Currency:       cfg.Currency,
			CreatedAt:      s.now(),
		}
		if err := st.Transactions.Create(ctx, tx); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		rec.TransactionID = &orderID
		return st.Billing.Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// chargeCycle calls the gateway outside any database transaction and then
// records the result. A transient gateway failure leaves the transaction
// PENDING for the reconciliation poller.
func (s *BillingService) chargeCycle(ctx context.Context, rec *models.BillingRecord, sub *models.Subscription, asOf time.Time) (billOutcome, error) {
	orderID := *rec.TransactionID
	resp, err := s.provider.Charge(ctx, gateway.ChargeRequest{
		OrderID:     orderID,
		MerchantRef: sub.BusinessID.String(),
		Amount:      rec.Total,
		Currency:    rec.Currency,
		Description: fmt.Sprintf("subscription %s period %s", sub.ID, rec.PeriodStart.Format(time.DateOnly)),
	})

	var transient *billing.TransientGatewayError
	if errors.As(err, &transient) {
		s.logger.Warn("charge deferred to reconciliation",
			"subscription_id", sub.ID.String(),
			"transaction_id", orderID,
			"error", err)
		return outcomePending, nil
	}
	if err != nil {
		return 0, s.settleFailure(ctx, rec, sub, orderID, "", asOf, err)
	}

	status, mapErr := gateway.MapStatus(resp.Result, resp.PaymentStatus)
	if mapErr != nil {
		s.logger.Warn("unrecognized charge status, leaving pending",
			"transaction_id", orderID,
			"result", resp.Result,
			"payment_status", resp.PaymentStatus)
		return outcomePending, nil
	}

	switch status {
	case models.TxSuccess:
		return outcomeCharged, s.settleSuccess(ctx, rec, sub, orderID, resp.PaymentStatus, asOf)
	case models.TxFailed:
		return 0, s.settleFailure(ctx, rec, sub, orderID, resp.PaymentStatus, asOf, nil)
	default:
		if err := s.recordProviderStatus(ctx, orderID, resp.PaymentStatus); err != nil {
			return 0, err
		}
		return outcomePending, nil
	}
}

func (s *BillingService) settleSuccess(ctx context.Context, rec *models.BillingRecord, sub *models.Subscription, orderID, providerStatus string, asOf time.Time) error {
	return s.db.Transact(ctx, func(st store.Stores) error {
		tx, err := st.Transactions.GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if tx.Status != models.TxPending {
			return nil
		}
		now := s.now()
		tx.Status = models.TxSuccess
		tx.ProviderStatus = providerStatus
		tx.SettledAt = &now
		if err := st.Transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("settle transaction: %w", err)
		}
		if err := st.Billing.MarkPaid(ctx, rec.ID, orderID, now); err != nil {
			return fmt.Errorf("mark billing record paid: %w", err)
		}

		sub.AdvanceBillingCursor(asOf)
		sub.Status = models.StatusActive
		if !sub.AutoRenew {
			sub.Status = models.StatusCancelled
		}
		return st.Subscriptions.Save(ctx, sub)
	})
}

// settleFailure records a declined charge. The subscription keeps its retry
// allowance: it stays ACTIVE and due, so the next pass reopens the FAILED
// record and tries again, until the attempts run out and the cycle is
// abandoned as PAST_DUE.
func (s *BillingService) settleFailure(ctx context.Context, rec *models.BillingRecord, sub *models.Subscription, orderID, providerStatus string, asOf time.Time, cause error) error {
	var abandoned bool
	err := s.db.Transact(ctx, func(st store.Stores) error {
		tx, err := st.Transactions.GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if tx.Status == models.TxPending {
			tx.Status = models.TxFailed
			tx.ProviderStatus = providerStatus
			if err := st.Transactions.Update(ctx, tx); err != nil {
				return fmt.Errorf("fail transaction: %w", err)
			}
		}
		if err := st.Billing.MarkFailed(ctx, rec.ID); err != nil {
			return fmt.Errorf("mark billing record failed: %w", err)
		}
		abandoned = sub.RecordChargeFailure(asOf)
		return st.Subscriptions.Save(ctx, sub)
	})
	if err != nil {
		return err
	}
	if abandoned {
		s.logger.Warn("charge attempts exhausted, cycle abandoned",
			"subscription_id", sub.ID.String(),
			"transaction_id", orderID,
			"attempts", models.MaxChargeAttempts)
	}
	if cause != nil {
		return fmt.Errorf("charge rejected: %w", cause)
	}
	return fmt.Errorf("charge declined: provider status %s", providerStatus)
}

func (s *BillingService) recordProviderStatus(ctx context.Context, orderID, providerStatus string) error {
	tx, err := s.stores.Transactions.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	tx.ProviderStatus = providerStatus
	return s.stores.Transactions.Update(ctx, tx)
}

// billingWindow resolves the period a cycle covers. Prepaid plans charge the
// period ahead, postpaid plans the period just ended.
func (s *BillingService) billingWindow(sub *models.Subscription, asOf time.Time) (time.Time, time.Time) {
	asOf = models.DateOnly(asOf)
	if sub.Terms.PaymentType == models.Postpaid {
		start := models.DateOnly(sub.StartDate)
		if sub.LastBillingDate != nil {
			start = models.DateOnly(*sub.LastBillingDate)
		}
		return start, asOf
	}
	return asOf, sub.NextBillingDateAfter(asOf)
}

// CreateDeposit opens a wallet top-up order with the gateway. The wallet is
// credited only when reconciliation confirms the payment settled.
func (s *BillingService) CreateDeposit(ctx context.Context, orgID string, businessID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error) {
	cfg := s.registry.Get(orgID)
	if cfg == nil {
		return nil, &models.ValidationError{Field: "org_id", Message: "unknown organization"}
	}
	if !amount.IsPositive() {
		return nil, &models.ValidationError{Field: "amount", Message: "deposit amount must be positive"}
	}
	if _, err := s.stores.Wallets.ForBusiness(ctx, businessID); err != nil {
		return nil, &models.ValidationError{Field: "business_id", Message: "business has no wallet"}
	}

	tx := &models.Transaction{
		ID:         s.newOrderID(),
		OrgID:      orgID,
		BusinessID: businessID,
		Type:       models.TxDeposit,
		Status:     models.TxPending,
		Amount:     amount,
		Currency:   cfg.Currency,
		CreatedAt:  s.now(),
	}
	if err := s.stores.Transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create deposit transaction: %w", err)
	}

	resp, err := s.provider.Charge(ctx, gateway.ChargeRequest{
		OrderID:     tx.ID,
		MerchantRef: businessID.String(),
		Amount:      amount,
		Currency:    cfg.Currency,
		Description: "wallet deposit",
	})
	if err != nil {
		// Leave the transaction PENDING; the poller resolves it against
		// the gateway.
		s.logger.Warn("deposit charge deferred", "transaction_id", tx.ID, "error", err)
		return tx, nil
	}
	tx.ProviderStatus = resp.PaymentStatus
	if err := s.stores.Transactions.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("record deposit status: %w", err)
	}
	return tx, nil
}

func encodeLines(lines []models.BillingLine) ([]byte, error) {
	raw, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode billing lines: %w", err)
	}
	return raw, nil
}
