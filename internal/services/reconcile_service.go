package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/mayank-tagline555/sooq-billing/internal/billing"
	"github.com/mayank-tagline555/sooq-billing/internal/gateway"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/store"
)

const (
	// pendingFailureHorizon is how long the gateway may keep reporting a
	// payment as authorization-pending before the poller writes it off as
	// failed. It only applies to gateway-confirmed pending states; a
	// transaction the gateway has no verdict on yet stays open.
	pendingFailureHorizon = 48 * time.Hour

	// maxDeferredRetries bounds follow-up checks after the gateway was
	// unreachable. With the initial attempt this yields at most four audit
	// rows per unreachable transaction.
	maxDeferredRetries = 3

	pollBatchSize = 100
)

// retryBackoff is the delay before each deferred retry, indexed by how many
// retries have already run.
var retryBackoff = []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute}

// ReconcileService resolves PENDING transactions against the gateway's
// order-status endpoint. Every attempt appends an audit row; settlement
// effects (wallet credit, billing record, subscription cursor) happen at
// most once, guarded by a row lock and a status re-check.
type ReconcileService struct {
	db       store.Atomic
	stores   store.Stores
	provider gateway.Provider
	logger   *slog.Logger

	now func() time.Time

	// schedule defers a retry. Tests swap it for a synchronous fake.
	schedule func(d time.Duration, fn func())
}

func NewReconcileService(db store.Atomic, stores store.Stores, provider gateway.Provider, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		db:       db,
		stores:   stores,
		provider: provider,
		logger:   logger,
		now:      time.Now,
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// ReconcileSummary reports what one poll did.
type ReconcileSummary struct {
	Checked     int `json:"checked"`
	Settled     int `json:"settled"`
	Failed      int `json:"failed"`
	StillOpen   int `json:"still_open"`
	TimedOut    int `json:"timed_out"`
	Unreachable int `json:"unreachable"`
	Errors      int `json:"errors"`
}

// Poll reconciles every open transaction in the organization.
func (s *ReconcileService) Poll(ctx context.Context, orgID string) (ReconcileSummary, error) {
	var summary ReconcileSummary

	open, err := s.stores.Transactions.OpenPending(ctx, orgID, s.now(), pollBatchSize)
	if err != nil {
		return summary, fmt.Errorf("query open transactions: %w", err)
	}
	summary.Checked = len(open)

	for i := range open {
		outcome, err := s.ReconcileTransaction(ctx, open[i].ID)
		if err != nil {
			summary.Errors++
			s.logger.Error("reconciliation failed",
				"org_id", orgID,
				"transaction_id", open[i].ID,
				"error", err)
			sentry.CaptureException(err)
			continue
		}
		switch outcome {
		case models.OutcomeSettled:
			summary.Settled++
		case models.OutcomeFailed:
			summary.Failed++
		case models.OutcomeTimedOut:
			summary.TimedOut++
		case models.OutcomeUnreachable:
			summary.Unreachable++
		default:
			summary.StillOpen++
		}
	}

	s.logger.Info("reconciliation poll complete",
		"org_id", orgID,
		"checked", summary.Checked,
		"settled", summary.Settled,
		"failed", summary.Failed,
		"still_open", summary.StillOpen,
		"timed_out", summary.TimedOut,
		"unreachable", summary.Unreachable,
		"errors", summary.Errors)
	return summary, nil
}

// ReconcileTransaction resolves a single transaction by id. It is safe to
// call concurrently with the poller and with itself.
func (s *ReconcileService) ReconcileTransaction(ctx context.Context, orderID string) (models.ReconciliationOutcome, error) {
	tx, err := s.stores.Transactions.Get(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load transaction: %w", err)
	}
	switch tx.Status {
	case models.TxSuccess:
		return models.OutcomeSettled, nil
	case models.TxFailed:
		return models.OutcomeFailed, nil
	}

	attempt, err := s.nextAttempt(ctx, orderID)
	if err != nil {
		return "", err
	}

	resp, err := s.provider.OrderStatus(ctx, orderID)
	var transient *billing.TransientGatewayError
	if errors.As(err, &transient) {
		return s.unreachable(ctx, tx, attempt, err)
	}
	if err != nil {
		// The gateway rejected the lookup outright; record it and keep the
		// transaction open for the next poll.
		s.appendLog(ctx, tx, attempt, models.OutcomeStillOpen, "", err.Error())
		return models.OutcomeStillOpen, err
	}

	status, mapErr := gateway.MapStatus(resp.Result, resp.PaymentStatus)
	if mapErr != nil {
		s.logger.Warn("unrecognized provider status",
			"transaction_id", orderID,
			"result", resp.Result,
			"payment_status", resp.PaymentStatus)
		s.appendLog(ctx, tx, attempt, models.OutcomeStillOpen, resp.PaymentStatus, "unrecognized provider status")
		return models.OutcomeStillOpen, nil
	}

	switch status {
	case models.TxSuccess:
		return s.settle(ctx, tx, attempt, resp.PaymentStatus)
	case models.TxFailed:
		return s.fail(ctx, tx, attempt, resp.PaymentStatus, models.OutcomeFailed, "")
	default:
		// The gateway confirms the payment is still in flight. Money may
		// yet arrive, so the transaction stays open until the gateway has
		// been saying so for longer than the failure horizon.
		if s.now().Sub(tx.CreatedAt) > pendingFailureHorizon {
			detail := fmt.Sprintf("authorization pending for more than %s", pendingFailureHorizon)
			return s.fail(ctx, tx, attempt, resp.PaymentStatus, models.OutcomeTimedOut, detail)
		}
		s.appendLog(ctx, tx, attempt, models.OutcomeStillOpen, resp.PaymentStatus, "")
		return models.OutcomeStillOpen, nil
	}
}

// settle finalizes a successful payment. The row lock plus the PENDING
// re-check make the side effects run exactly once even when a webhook and
// the poller race.
func (s *ReconcileService) settle(ctx context.Context, tx *models.Transaction, attempt int, providerStatus string) (models.ReconciliationOutcome, error) {
	err := s.db.Transact(ctx, func(st store.Stores) error {
		locked, err := st.Transactions.GetForUpdate(ctx, tx.ID)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if locked.Status != models.TxPending {
			return nil
		}

		now := s.now()
		locked.Status = models.TxSuccess
		locked.ProviderStatus = providerStatus
		locked.SettledAt = &now

		if locked.Type == models.TxDeposit && !locked.WalletCredited {
			if err := st.Wallets.Credit(ctx, locked.BusinessID, locked.Amount); err != nil {
				return &models.ValidationError{Field: "wallet", Message: fmt.Sprintf("deposit %s settled but business %s has no wallet", locked.ID, locked.BusinessID)}
			}
			locked.WalletCredited = true
		}

		if err := st.Transactions.Update(ctx, locked); err != nil {
			return fmt.Errorf("settle transaction: %w", err)
		}

		if locked.Type == models.TxPayment {
			if err := s.settleBillingSide(ctx, st, locked, now); err != nil {
				return err
			}
		}

		return st.ReconLogs.Append(ctx, &models.ReconciliationLog{
			TransactionID:  locked.ID,
			OrgID:          locked.OrgID,
			Attempt:        attempt,
			Outcome:        models.OutcomeSettled,
			ProviderStatus: providerStatus,
			CheckedAt:      now,
		})
	})
	if err != nil {
		return "", err
	}
	return models.OutcomeSettled, nil
}

func (s *ReconcileService) settleBillingSide(ctx context.Context, st store.Stores, tx *models.Transaction, now time.Time) error {
	rec, err := st.Billing.ByTransaction(ctx, tx.ID)
	if err != nil {
		return fmt.Errorf("find billing record: %w", err)
	}
	if rec != nil {
		if err := st.Billing.MarkPaid(ctx, rec.ID, tx.ID, now); err != nil {
			return fmt.Errorf("mark billing record paid: %w", err)
		}
	}
	if tx.SubscriptionID == nil {
		return nil
	}
	sub, err := st.Subscriptions.Get(ctx, *tx.SubscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	sub.AdvanceBillingCursor(now)
	sub.Status = models.StatusActive
	if !sub.AutoRenew {
		sub.Status = models.StatusCancelled
	}
	return st.Subscriptions.Save(ctx, sub)
}

// fail writes the transaction off as FAILED. The outcome distinguishes a
// gateway decline from a pending authorization that outlived the failure
// horizon.
func (s *ReconcileService) fail(ctx context.Context, tx *models.Transaction, attempt int, providerStatus string, outcome models.ReconciliationOutcome, detail string) (models.ReconciliationOutcome, error) {
	err := s.db.Transact(ctx, func(st store.Stores) error {
		locked, err := st.Transactions.GetForUpdate(ctx, tx.ID)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if locked.Status != models.TxPending {
			return nil
		}

		locked.Status = models.TxFailed
		locked.ProviderStatus = providerStatus
		if err := st.Transactions.Update(ctx, locked); err != nil {
			return fmt.Errorf("fail transaction: %w", err)
		}

		if locked.Type == models.TxPayment {
			rec, err := st.Billing.ByTransaction(ctx, locked.ID)
			if err != nil {
				return fmt.Errorf("find billing record: %w", err)
			}
			if rec != nil {
				if err := st.Billing.MarkFailed(ctx, rec.ID); err != nil {
					return fmt.Errorf("mark billing record failed: %w", err)
				}
			}
			if locked.SubscriptionID != nil {
				sub, err := st.Subscriptions.Get(ctx, *locked.SubscriptionID)
				if err != nil {
					return fmt.Errorf("load subscription: %w", err)
				}
				if sub.IsBillable() {
					sub.RecordChargeFailure(s.now())
					if err := st.Subscriptions.Save(ctx, sub); err != nil {
						return err
					}
				}
			}
		}

		return st.ReconLogs.Append(ctx, &models.ReconciliationLog{
			TransactionID:  locked.ID,
			OrgID:          locked.OrgID,
			Attempt:        attempt,
			Outcome:        outcome,
			ProviderStatus: providerStatus,
			Detail:         detail,
			CheckedAt:      s.now(),
		})
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// unreachable records the failed attempt and, within the retry budget,
// schedules a deferred re-check with increasing backoff.
func (s *ReconcileService) unreachable(ctx context.Context, tx *models.Transaction, attempt int, cause error) (models.ReconciliationOutcome, error) {
	s.appendLog(ctx, tx, attempt, models.OutcomeUnreachable, "", cause.Error())

	if tx.RetryCount >= maxDeferredRetries {
		s.logger.Warn("retry budget exhausted",
			"transaction_id", tx.ID,
			"retries", tx.RetryCount)
		return models.OutcomeUnreachable, nil
	}

	delay := retryBackoff[tx.RetryCount]
	tx.RetryCount++
	if err := s.stores.Transactions.Update(ctx, tx); err != nil {
		return "", fmt.Errorf("record retry count: %w", err)
	}

	orderID := tx.ID
	s.schedule(delay, func() {
		if _, err := s.ReconcileTransaction(context.Background(), orderID); err != nil {
			s.logger.Error("deferred reconciliation failed", "transaction_id", orderID, "error", err)
			sentry.CaptureException(err)
		}
	})
	s.logger.Warn("gateway unreachable, retry scheduled",
		"transaction_id", tx.ID,
		"attempt", attempt,
		"delay", delay)
	return models.OutcomeUnreachable, nil
}

func (s *ReconcileService) nextAttempt(ctx context.Context, orderID string) (int, error) {
	n, err := s.stores.ReconLogs.CountForTransaction(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return int(n) + 1, nil
}

func (s *ReconcileService) appendLog(ctx context.Context, tx *models.Transaction, attempt int, outcome models.ReconciliationOutcome, providerStatus, detail string) {
	entry := &models.ReconciliationLog{
		TransactionID:  tx.ID,
		OrgID:          tx.OrgID,
		Attempt:        attempt,
		Outcome:        outcome,
		ProviderStatus: providerStatus,
		Detail:         detail,
		CheckedAt:      s.now(),
	}
	if err := s.stores.ReconLogs.Append(ctx, entry); err != nil {
		s.logger.Error("append reconciliation log", "transaction_id", tx.ID, "error", err)
	}
}
