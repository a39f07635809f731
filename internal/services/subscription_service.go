package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/store"
)

// SubscriptionService owns the subscription lifecycle: subscribing a
// business to a plan template, staging plan changes, and cancellation.
type SubscriptionService struct {
	stores store.Stores
	logger *slog.Logger
	now    func() time.Time
}

func NewSubscriptionService(stores store.Stores, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		stores: stores,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe snapshots the template terms onto a new subscription. For a
// prepaid plan the first cycle bills immediately; a postpaid plan's first
// cycle bills one period out.
func (s *SubscriptionService) Subscribe(ctx context.Context, orgID string, business *models.Business, tpl *models.PlanTemplate) (*models.Subscription, error) {
	if tpl.Role != business.Role {
		return nil, &models.ValidationError{Field: "role", Message: fmt.Sprintf("plan is for %s businesses, not %s", tpl.Role, business.Role)}
	}

	start := models.DateOnly(s.now())
	sub := &models.Subscription{
		ID:         uuid.New(),
		OrgID:      orgID,
		BusinessID: business.ID,
		Status:     models.StatusActive,
		Terms:      tpl.Snapshot(),
		StartDate:  start,
		BillingDay: start.Day(),
		AutoRenew:  true,
	}
	if tpl.PaymentType == models.FreeTrial {
		sub.Status = models.StatusTrialing
	}
	if tpl.DurationMonths > 0 {
		end := start.AddDate(0, tpl.DurationMonths, 0)
		sub.EndDate = &end
	}

	switch tpl.PaymentType {
	case models.Prepaid:
		sub.NextBillingDate = &start
	default:
		next := sub.NextBillingDateAfter(start)
		sub.NextBillingDate = &next
	}

	if err := s.stores.Subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s.logger.Info("subscription created",
		"org_id", orgID,
		"business_id", business.ID.String(),
		"subscription_id", sub.ID.String(),
		"plan", tpl.Name)
	return sub, nil
}

// StagePlanChange records new terms to take effect at the next billing
// cycle. The currently running cycle keeps the old terms.
func (s *SubscriptionService) StagePlanChange(ctx context.Context, subscriptionID uuid.UUID, tpl *models.PlanTemplate) (*models.Subscription, error) {
	sub, err := s.stores.Subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.IsBillable() {
		return nil, &models.ValidationError{Field: "status", Message: "only active subscriptions can change plans"}
	}

	effective := s.now()
	if sub.NextBillingDate != nil {
		effective = *sub.NextBillingDate
	}
	if err := sub.StagePendingPlan(tpl.Snapshot(), effective); err != nil {
		return nil, err
	}
	if err := s.stores.Subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("stage plan change: %w", err)
	}

	s.logger.Info("plan change staged",
		"subscription_id", sub.ID.String(),
		"plan", tpl.Name,
		"effective", effective.Format(time.DateOnly))
	return sub, nil
}

// CancelAtPeriodEnd turns auto-renew off. A prepaid subscription runs out
// its paid period; a postpaid one receives a final close-out bill on the
// next pass before the cancel lands.
func (s *SubscriptionService) CancelAtPeriodEnd(ctx context.Context, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.stores.Subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.IsBillable() {
		return nil, &models.ValidationError{Field: "status", Message: "subscription is not active"}
	}

	sub.AutoRenew = false
	now := s.now()
	sub.CancelledAt = &now
	if err := s.stores.Subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	s.logger.Info("auto-renew disabled", "subscription_id", sub.ID.String())
	return sub, nil
}
