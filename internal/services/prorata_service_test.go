package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayank-tagline555/sooq-billing/internal/gateway"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/store/storetest"
)

func investorTerms(pt models.PaymentType) models.PlanTerms {
	return models.PlanTerms{
		PlanName:         "investor-annual",
		Role:             models.RoleInvestor,
		Fee:              decimal.Zero,
		BillingFrequency: models.FrequencyYearly,
		PaymentInterval:  models.IntervalYearly,
		PaymentType:      pt,
		ProRataRate:      decimal.RequireFromString("0.05"),
	}
}

func newProRataService(mem *storetest.Memory, gw *fakeGateway, at time.Time) *ProRataService {
	billingSvc := newBillingService(mem, gw, at)
	svc := NewProRataService(billingSvc, mem.Stores(), testRegistry(), testLogger())
	svc.now = func() time.Time { return at }
	return svc
}

func TestAnnualPassChargesPostpaidInvestorForPriorYear(t *testing.T) {
	janFirst := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()

	sub := activeSub(investorTerms(models.Postpaid), janFirst)
	subID := mem.AddSubscription(sub)
	mem.AddHolding(sub.BusinessID, models.AssetHolding{
		BusinessID: sub.BusinessID,
		AssetName:  "gold-bar",
		Quantity:   decimal.NewFromInt(10),
		UnitCost:   decimal.NewFromInt(100),
		AcquiredAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})

	gw := &fakeGateway{chargeResp: gateway.ChargeResponse{Result: "SUCCESS", PaymentStatus: "CAPTURED"}}
	svc := newProRataService(mem, gw, janFirst)

	summary, err := svc.RunAnnualPass(context.Background(), testOrg, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Subscriptions)
	assert.Equal(t, 1, summary.Charged)

	recs, err := mem.Stores().Billing.ForSubscription(context.Background(), subID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	// Held all of 2025: 10 units * 100 * 5%.
	assert.True(t, recs[0].Amount.Equal(decimal.NewFromInt(50)), "amount = %s", recs[0].Amount)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), recs[0].PeriodStart)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), recs[0].PeriodEnd)

	lines, err := recs[0].DecodeLines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, models.LineProRata, lines[0].Label)
}

func TestAnnualPassIsIdempotent(t *testing.T) {
	janFirst := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()

	sub := activeSub(investorTerms(models.Postpaid), janFirst)
	subID := mem.AddSubscription(sub)
	mem.AddHolding(sub.BusinessID, models.AssetHolding{
		BusinessID: sub.BusinessID,
		Quantity:   decimal.NewFromInt(10),
		UnitCost:   decimal.NewFromInt(100),
		AcquiredAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})

	gw := &fakeGateway{chargeResp: gateway.ChargeResponse{Result: "SUCCESS", PaymentStatus: "AUTHORIZED"}}
	svc := newProRataService(mem, gw, janFirst)

	_, err := svc.RunAnnualPass(context.Background(), testOrg, false)
	require.NoError(t, err)
	second, err := svc.RunAnnualPass(context.Background(), testOrg, false)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 1, gw.chargeCalls, "the prior-year period is billed once")

	recs, err := mem.Stores().Billing.ForSubscription(context.Background(), subID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestAnnualPassSkipsInvestorWithoutHoldings(t *testing.T) {
	janFirst := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()
	subID := mem.AddSubscription(activeSub(investorTerms(models.Postpaid), janFirst))

	gw := &fakeGateway{}
	svc := newProRataService(mem, gw, janFirst)

	summary, err := svc.RunAnnualPass(context.Background(), testOrg, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, gw.chargeCalls)

	sub, err := mem.Stores().Subscriptions.Get(context.Background(), subID)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.BillingCycleCount, "cursor still advances")
}

func TestAnnualPassPrepaidChargesComingYear(t *testing.T) {
	janFirst := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()

	sub := activeSub(investorTerms(models.Prepaid), janFirst)
	subID := mem.AddSubscription(sub)
	mem.AddHolding(sub.BusinessID, models.AssetHolding{
		BusinessID: sub.BusinessID,
		Quantity:   decimal.NewFromInt(4),
		UnitCost:   decimal.NewFromInt(250),
		AcquiredAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	gw := &fakeGateway{chargeResp: gateway.ChargeResponse{Result: "SUCCESS", PaymentStatus: "CAPTURED"}}
	svc := newProRataService(mem, gw, janFirst)

	_, err := svc.RunAnnualPass(context.Background(), testOrg, false)
	require.NoError(t, err)

	recs, err := mem.Stores().Billing.ForSubscription(context.Background(), subID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	// The full coming year up front: 4 * 250 * 5%.
	assert.True(t, recs[0].Amount.Equal(decimal.NewFromInt(50)), "amount = %s", recs[0].Amount)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), recs[0].PeriodStart)
}

func TestFeePassExcludesProRataInvestors(t *testing.T) {
	asOf := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()
	mem.AddSubscription(activeSub(investorTerms(models.Postpaid), asOf))

	gw := &fakeGateway{}
	svc := newBillingService(mem, gw, asOf)

	summary, err := svc.RunFeePass(context.Background(), testOrg, false)
	require.NoError(t, err)
	assert.Zero(t, summary.Due, "pro-rata investors belong to the annual pass")
}
