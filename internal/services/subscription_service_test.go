package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/store/storetest"
)

func newSubscriptionService(mem *storetest.Memory, at time.Time) *SubscriptionService {
	svc := NewSubscriptionService(mem.Stores(), testLogger())
	svc.now = func() time.Time { return at }
	return svc
}

func sellerTemplate(fee int64) *models.PlanTemplate {
	return &models.PlanTemplate{
		ID:               uuid.New(),
		OrgID:            testOrg,
		Name:             "basic",
		Role:             models.RoleSeller,
		Fee:              decimal.NewFromInt(fee),
		BillingFrequency: models.FrequencyMonthly,
		PaymentInterval:  models.IntervalMonthly,
		PaymentType:      models.Prepaid,
		Active:           true,
	}
}

func TestSubscribeSnapshotsTemplateTerms(t *testing.T) {
	at := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()
	svc := newSubscriptionService(mem, at)

	business := &models.Business{ID: uuid.New(), OrgID: testOrg, Role: models.RoleSeller}
	tpl := sellerTemplate(100)

	sub, err := svc.Subscribe(context.Background(), testOrg, business, tpl)
	require.NoError(t, err)

	// Edits to the catalog template must not reach the subscription.
	tpl.Fee = decimal.NewFromInt(999)
	tpl.Name = "basic-v2"

	got, err := mem.Stores().Subscriptions.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "basic", got.Terms.PlanName)
	assert.True(t, got.Terms.Fee.Equal(decimal.NewFromInt(100)))

	// Prepaid plans bill immediately, and future cycles anchor to the
	// start day of month.
	require.NotNil(t, got.NextBillingDate)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), *got.NextBillingDate)
	assert.Equal(t, 10, got.BillingDay)
}

func TestSubscribePostpaidBillsOnePeriodOut(t *testing.T) {
	at := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()
	svc := newSubscriptionService(mem, at)

	tpl := sellerTemplate(100)
	tpl.PaymentType = models.Postpaid
	business := &models.Business{ID: uuid.New(), OrgID: testOrg, Role: models.RoleSeller}

	sub, err := svc.Subscribe(context.Background(), testOrg, business, tpl)
	require.NoError(t, err)
	require.NotNil(t, sub.NextBillingDate)
	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), *sub.NextBillingDate)
}

func TestSubscribeRejectsRoleMismatch(t *testing.T) {
	at := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()
	svc := newSubscriptionService(mem, at)

	business := &models.Business{ID: uuid.New(), OrgID: testOrg, Role: models.RoleJeweler}

	_, err := svc.Subscribe(context.Background(), testOrg, business, sellerTemplate(100))
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "role", verr.Field)
}

func TestStagePlanChangeTakesEffectNextCycle(t *testing.T) {
	at := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()
	svc := newSubscriptionService(mem, at)

	next := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	subID := mem.AddSubscription(activeSub(prepaidTerms(100), next))

	tpl := sellerTemplate(150)
	tpl.Name = "premium"

	sub, err := svc.StagePlanChange(context.Background(), subID, tpl)
	require.NoError(t, err)
	assert.Equal(t, "basic", sub.Terms.PlanName, "current cycle keeps old terms")
	require.NotNil(t, sub.PendingEffectiveDate)
	assert.Equal(t, next, *sub.PendingEffectiveDate)

	pending, err := sub.PendingPlan()
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "premium", pending.PlanName)
}

func TestCancelAtPeriodEndDisablesAutoRenew(t *testing.T) {
	at := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()
	svc := newSubscriptionService(mem, at)

	subID := mem.AddSubscription(activeSub(prepaidTerms(100), at.AddDate(0, 1, 0)))

	sub, err := svc.CancelAtPeriodEnd(context.Background(), subID)
	require.NoError(t, err)
	assert.False(t, sub.AutoRenew)
	assert.Equal(t, models.StatusActive, sub.Status, "subscription runs out its paid period")
	require.NotNil(t, sub.CancelledAt)
}
