package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthlySub(fee int64) *Subscription {
	return &Subscription{
		Status: StatusActive,
		Terms: PlanTerms{
			PlanName:         "basic",
			Role:             RoleSeller,
			Fee:              decimal.NewFromInt(fee),
			BillingFrequency: FrequencyMonthly,
			PaymentInterval:  IntervalMonthly,
			PaymentType:      Prepaid,
		},
	}
}

func TestNextBillingDateMonthlyClampsShortMonths(t *testing.T) {
	s := monthlySub(100)

	next := s.NextBillingDateAfter(time.Date(2026, 1, 31, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), next)

	next = s.NextBillingDateAfter(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), next, "leap year keeps the 29th")

	next = s.NextBillingDateAfter(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), next)
}

func TestNextBillingDateAnchorsToBillingDay(t *testing.T) {
	s := monthlySub(100)
	s.BillingDay = 31

	// After clamping to Feb 28 the cycle returns to the 31st instead of
	// drifting to the 28th forever.
	next := s.NextBillingDateAfter(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), next)
}

func TestNextBillingDateYearlyHandlesLeapDay(t *testing.T) {
	s := monthlySub(1200)
	s.Terms.BillingFrequency = FrequencyYearly

	next := s.NextBillingDateAfter(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), next)

	next = s.NextBillingDateAfter(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2027, 6, 15, 0, 0, 0, 0, time.UTC), next)
}

func TestAdvanceBillingCursor(t *testing.T) {
	s := monthlySub(100)
	s.FailedChargeAttempts = 2
	billedAt := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)

	s.AdvanceBillingCursor(billedAt)

	require.NotNil(t, s.LastBillingDate)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *s.LastBillingDate)
	require.NotNil(t, s.NextBillingDate)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), *s.NextBillingDate)
	assert.Equal(t, 1, s.BillingCycleCount)
	assert.Equal(t, 1, s.PlanCycleCount)
	assert.Equal(t, 0, s.FailedChargeAttempts, "a settled cycle clears the failure streak")
}

func TestRecordChargeFailureKeepsSubscriptionDueUntilAllowanceSpent(t *testing.T) {
	s := monthlySub(100)
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	nb := due
	s.NextBillingDate = &nb

	for attempt := 1; attempt < MaxChargeAttempts; attempt++ {
		abandoned := s.RecordChargeFailure(due)
		assert.False(t, abandoned, "attempt %d stays within the allowance", attempt)
		assert.Equal(t, StatusActive, s.Status)
		assert.Equal(t, due, *s.NextBillingDate, "cursor holds so the next pass retries")
		assert.Equal(t, attempt, s.FailedChargeAttempts)
	}

	abandoned := s.RecordChargeFailure(due)
	assert.True(t, abandoned)
	assert.Equal(t, StatusPastDue, s.Status)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), *s.NextBillingDate, "abandonment moves past the period")
	assert.Equal(t, 0, s.FailedChargeAttempts)
	assert.Equal(t, 1, s.BillingCycleCount)
}

func TestStagePendingPlanRejectsRoleChange(t *testing.T) {
	s := monthlySub(100)
	wrongRole := s.Terms
	wrongRole.Role = RoleJeweler

	err := s.StagePendingPlan(wrongRole, time.Now())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "role", verr.Field)
}

func TestPendingPlanLifecycle(t *testing.T) {
	s := monthlySub(100)
	assert.Equal(t, PendingNone, s.PendingState(time.Now()))

	upgrade := s.Terms
	upgrade.PlanName = "premium"
	upgrade.Fee = decimal.NewFromInt(150)
	effective := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.StagePendingPlan(upgrade, effective))

	assert.Equal(t, PendingStaged, s.PendingState(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, PendingDue, s.PendingState(effective))
	assert.Equal(t, PendingDue, s.PendingState(effective.AddDate(0, 0, 5)))

	s.BillingCycleCount = 7
	s.PlanCycleCount = 7

	prev, applied, err := s.ApplyPendingPlan(effective)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "basic", prev.PlanName)
	assert.Equal(t, "premium", s.Terms.PlanName)
	assert.True(t, s.Terms.Fee.Equal(decimal.NewFromInt(150)))
	assert.Nil(t, s.PendingEffectiveDate)
	assert.Equal(t, 0, s.PlanCycleCount, "the new terms restart their own cycle count")
	assert.Equal(t, 7, s.BillingCycleCount, "the lifetime counter never resets")

	// A second apply is a no-op.
	_, applied, err = s.ApplyPendingPlan(effective)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "premium", s.Terms.PlanName)
}

func TestApplyPendingPlanNotDueIsNoOp(t *testing.T) {
	s := monthlySub(100)
	upgrade := s.Terms
	upgrade.PlanName = "premium"
	require.NoError(t, s.StagePendingPlan(upgrade, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))

	_, applied, err := s.ApplyPendingPlan(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "basic", s.Terms.PlanName)
	assert.Equal(t, PendingStaged, s.PendingState(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPlanTemplateSnapshotIsDetached(t *testing.T) {
	tpl := &PlanTemplate{
		Name:             "gold",
		Role:             RoleManufacturer,
		Fee:              decimal.NewFromInt(500),
		BillingFrequency: FrequencyMonthly,
		PaymentInterval:  IntervalMonthly,
		PaymentType:      Postpaid,
		Limits:           []byte(`{"max_metal_weight_grams":2000}`),
	}

	snap := tpl.Snapshot()

	tpl.Fee = decimal.NewFromInt(900)
	tpl.Name = "gold-v2"
	tpl.Limits[0] = ' '

	assert.Equal(t, "gold", snap.PlanName)
	assert.True(t, snap.Fee.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, byte('{'), snap.Limits[0], "limits JSON is copied, not shared")
}
