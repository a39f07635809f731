package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/mayank-tagline555/sooq-billing/internal/billing"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
	"github.com/mayank-tagline555/sooq-billing/internal/store"
)

// ProRataService runs the annual investor pass. Instead of a fixed fee,
// investors pay a rate on the value of their asset holdings, weighted by how
// long each position was held within the billing year.
type ProRataService struct {
	billing  *BillingService
	stores   store.Stores
	registry *org.Registry
	logger   *slog.Logger
	now      func() time.Time
}

func NewProRataService(billingSvc *BillingService, stores store.Stores, registry *org.Registry, logger *slog.Logger) *ProRataService {
	return &ProRataService{
		billing:  billingSvc,
		stores:   stores,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// ProRataSummary reports what one annual pass did.
type ProRataSummary struct {
	Subscriptions int  `json:"subscriptions"`
	Charged       int  `json:"charged"`
	Pending       int  `json:"pending"`
	Skipped       int  `json:"skipped"`
	Failed        int  `json:"failed"`
	DryRun        bool `json:"dry_run"`
}

// RunAnnualPass bills every pro-rata investor subscription in the
// organization. Postpaid terms settle the year that just ended; prepaid
// terms collect the coming year up front.
func (s *ProRataService) RunAnnualPass(ctx context.Context, orgID string, dryRun bool) (ProRataSummary, error) {
	cfg := s.registry.Get(orgID)
	if cfg == nil {
		return ProRataSummary{}, &models.ValidationError{Field: "org_id", Message: "unknown organization"}
	}

	asOf := models.DateOnly(s.now())
	summary := ProRataSummary{DryRun: dryRun}

	subs, err := s.stores.Subscriptions.ProRataSubscriptions(ctx, orgID)
	if err != nil {
		return summary, fmt.Errorf("query pro-rata subscriptions: %w", err)
	}
	summary.Subscriptions = len(subs)

	for i := range subs {
		sub := &subs[i]
		outcome, err := s.billInvestor(ctx, cfg, sub, asOf, dryRun)
		if err != nil {
			summary.Failed++
			s.logger.Error("pro-rata cycle failed",
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
		case outcomePending:
			summary.Pending++
		default:
			summary.Skipped++
		}
	}

	s.logger.Info("pro-rata pass complete",
		"org_id", orgID,
		"subscriptions", summary.Subscriptions,
		"charged", summary.Charged,
		"pending", summary.Pending,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"dry_run", dryRun)
	return summary, nil
}

func (s *ProRataService) billInvestor(ctx context.Context, cfg *org.OrgConfig, sub *models.Subscription, asOf time.Time, dryRun bool) (billOutcome, error) {
	holdings, err := s.stores.Assets.HoldingsForBusiness(ctx, sub.BusinessID)
	if err != nil {
		return 0, fmt.Errorf("load holdings: %w", err)
	}

	var (
		amount      = billing.PrepaidHoldingsCharge(holdings, sub.Terms.ProRataRate, asOf)
		periodStart = time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	)
	if sub.Terms.PaymentType == models.Postpaid {
		year := asOf.Year() - 1
		amount = billing.PostpaidHoldingsCharge(holdings, sub.Terms.ProRataRate, year)
		periodStart = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	periodEnd := periodStart.AddDate(1, 0, 0)

	if !amount.IsPositive() {
		if dryRun {
			return outcomeSkipped, nil
		}
		sub.AdvanceBillingCursor(asOf)
		if err := s.stores.Subscriptions.Save(ctx, sub); err != nil {
			return 0, fmt.Errorf("advance cursor: %w", err)
		}
		return outcomeSkipped, nil
	}

	if dryRun {
		return outcomeCharged, nil
	}

	cycle := billing.Cycle{
		Lines:  []models.BillingLine{{Label: models.LineProRata, PlanName: sub.Terms.PlanName, Amount: amount}},
		Amount: amount,
	}
	rec, err := s.billing.openCycle(ctx, cfg, sub, cycle, periodStart, periodEnd)
	if errors.Is(err, billing.ErrDuplicatePeriod) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return 0, err
	}
	return s.billing.chargeCycle(ctx, rec, sub, asOf)
}
