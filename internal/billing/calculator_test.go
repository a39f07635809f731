package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayank-tagline555/sooq-billing/internal/models"
)

func monthlyPlan(name string, fee int64, pt models.PaymentType) models.PlanTerms {
	return models.PlanTerms{
		PlanName:         name,
		Role:             models.RoleSeller,
		Fee:              decimal.NewFromInt(fee),
		BillingFrequency: models.FrequencyMonthly,
		PaymentInterval:  models.IntervalMonthly,
		PaymentType:      pt,
	}
}

func yearlyPaidMonthlyBilled(name string, fee int64, pt models.PaymentType) models.PlanTerms {
	t := monthlyPlan(name, fee, pt)
	t.PaymentInterval = models.IntervalYearly
	t.DurationMonths = 12
	return t
}

func window() (time.Time, time.Time) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func TestCalculateMonthlyPrepaid(t *testing.T) {
	start, end := window()
	cycle, err := Calculate(Input{
		Outgoing:    monthlyPlan("basic", 100, models.Prepaid),
		Current:     monthlyPlan("basic", 100, models.Prepaid),
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)
	assert.False(t, cycle.InvoiceOnly)
	assert.True(t, cycle.Amount.Equal(decimal.NewFromInt(100)))
	require.Len(t, cycle.Lines, 1)
	assert.Equal(t, models.LinePlanCharge, cycle.Lines[0].Label)
}

func TestCalculateZeroFeeSkipsCycle(t *testing.T) {
	start, end := window()
	_, err := Calculate(Input{
		Outgoing:    monthlyPlan("comp", 0, models.Prepaid),
		Current:     monthlyPlan("comp", 0, models.Prepaid),
		PeriodStart: start,
		PeriodEnd:   end,
	})
	assert.ErrorIs(t, err, ErrZeroCharge)
}

func TestCalculateFreeTrialInvoiceOnly(t *testing.T) {
	start, end := window()
	trial := monthlyPlan("trial", 0, models.FreeTrial)
	cycle, err := Calculate(Input{Outgoing: trial, Current: trial, PeriodStart: start, PeriodEnd: end})
	require.NoError(t, err)
	assert.True(t, cycle.InvoiceOnly)
	assert.True(t, cycle.Amount.IsZero())
}

func TestCalculateYearlyPrepaidMonthlyShare(t *testing.T) {
	start, end := window()
	terms := yearlyPaidMonthlyBilled("gold-year", 1200, models.Prepaid)
	for count := 0; count < 12; count++ {
		cycle, err := Calculate(Input{
			Outgoing:    terms,
			Current:     terms,
			CycleCount:  count,
			PeriodStart: start,
			PeriodEnd:   end,
		})
		require.NoError(t, err)
		assert.True(t, cycle.InvoiceOnly, "cycle %d must not charge", count)
		assert.True(t, cycle.Amount.Equal(decimal.NewFromInt(100)), "cycle %d share = %s", count, cycle.Amount)
	}
}

func TestCalculateYearlyPostpaidDefersUntilFinalCycle(t *testing.T) {
	start, end := window()
	terms := yearlyPaidMonthlyBilled("gold-year", 1200, models.Postpaid)

	mid, err := Calculate(Input{Outgoing: terms, Current: terms, CycleCount: 5, PeriodStart: start, PeriodEnd: end})
	require.NoError(t, err)
	assert.True(t, mid.InvoiceOnly)

	final, err := Calculate(Input{Outgoing: terms, Current: terms, CycleCount: 11, PeriodStart: start, PeriodEnd: end})
	require.NoError(t, err)
	assert.False(t, final.InvoiceOnly)
	assert.True(t, final.Amount.Equal(decimal.NewFromInt(1200)))
}

func TestCalculateYearlyPostpaidChargesBeforeExpiry(t *testing.T) {
	start, end := window()
	terms := yearlyPaidMonthlyBilled("gold-year", 1200, models.Postpaid)
	expiry := end.AddDate(0, 0, 3)

	cycle, err := Calculate(Input{
		Outgoing:    terms,
		Current:     terms,
		CycleCount:  4,
		PeriodStart: start,
		PeriodEnd:   end,
		EndDate:     &expiry,
	})
	require.NoError(t, err)
	assert.False(t, cycle.InvoiceOnly)
	assert.True(t, cycle.Amount.Equal(decimal.NewFromInt(1200)))
}

func TestTransitionPostpaidToPrepaidCombinesOneCharge(t *testing.T) {
	start, end := window()
	cycle, err := Calculate(Input{
		Outgoing:    monthlyPlan("old-postpaid", 100, models.Postpaid),
		Current:     monthlyPlan("new-prepaid", 130, models.Prepaid),
		Changed:     true,
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)
	require.Len(t, cycle.Lines, 2)
	assert.Equal(t, models.LinePostpaidClose, cycle.Lines[0].Label)
	assert.True(t, cycle.Lines[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, models.LinePrepaidOpen, cycle.Lines[1].Label)
	assert.True(t, cycle.Lines[1].Amount.Equal(decimal.NewFromInt(130)))
	assert.True(t, cycle.Amount.Equal(decimal.NewFromInt(230)))
	assert.False(t, cycle.InvoiceOnly)
}

func TestTransitionPrepaidToPostpaidChargesNewPlan(t *testing.T) {
	start, end := window()
	cycle, err := Calculate(Input{
		Outgoing:    monthlyPlan("old-prepaid", 100, models.Prepaid),
		Current:     monthlyPlan("new-postpaid", 130, models.Postpaid),
		Changed:     true,
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)
	require.Len(t, cycle.Lines, 1)
	assert.Equal(t, models.LinePlanCharge, cycle.Lines[0].Label)
	assert.Equal(t, "new-postpaid", cycle.Lines[0].PlanName)
	assert.True(t, cycle.Amount.Equal(decimal.NewFromInt(130)))
}

func TestTransitionPrepaidToPrepaidChargesNewPlan(t *testing.T) {
	start, end := window()
	cycle, err := Calculate(Input{
		Outgoing:    monthlyPlan("old", 100, models.Prepaid),
		Current:     monthlyPlan("new", 150, models.Prepaid),
		Changed:     true,
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)
	require.Len(t, cycle.Lines, 1)
	assert.Equal(t, models.LinePlanCharge, cycle.Lines[0].Label)
	assert.True(t, cycle.Amount.Equal(decimal.NewFromInt(150)))
}

func TestTransitionPostpaidToPostpaidChargesNewPlan(t *testing.T) {
	start, end := window()
	cycle, err := Calculate(Input{
		Outgoing:    monthlyPlan("old", 100, models.Postpaid),
		Current:     monthlyPlan("new", 150, models.Postpaid),
		Changed:     true,
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)
	require.Len(t, cycle.Lines, 1)
	assert.Equal(t, models.LinePlanCharge, cycle.Lines[0].Label)
	assert.Equal(t, "new", cycle.Lines[0].PlanName)
	assert.True(t, cycle.Amount.Equal(decimal.NewFromInt(150)))
}

func TestTransitionFreeTrialToPrepaidChargesNewPlanOnly(t *testing.T) {
	start, end := window()
	cycle, err := Calculate(Input{
		Outgoing:    monthlyPlan("trial", 0, models.FreeTrial),
		Current:     monthlyPlan("starter", 50, models.Prepaid),
		Changed:     true,
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)
	require.Len(t, cycle.Lines, 1)
	assert.Equal(t, models.LinePlanCharge, cycle.Lines[0].Label)
	assert.True(t, cycle.Amount.Equal(decimal.NewFromInt(50)))
}
