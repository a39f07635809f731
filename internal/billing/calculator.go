package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mayank-tagline555/sooq-billing/internal/models"
)

var twelve = decimal.NewFromInt(12)

// Input carries everything the calculator needs for one billing cycle. The
// caller resolves the window boundaries and applies any pending plan change
// first; Outgoing holds the terms that governed the closing period and
// Current the terms governing the opening one.
type Input struct {
	Outgoing models.PlanTerms
	Current  models.PlanTerms
	// Changed reports that a staged plan change took effect at this cycle
	// boundary.
	Changed bool

	// CycleCount is the number of cycles already billed under Current.
	CycleCount int

	PeriodStart time.Time
	PeriodEnd   time.Time

	// EndDate is the subscription's expiry, when set. A yearly-paid postpaid
	// plan whose expiry falls inside the coming cycle collects its full fee
	// now instead of deferring further.
	EndDate *time.Time
}

// Cycle is the priced outcome of one billing window.
type Cycle struct {
	Lines       []models.BillingLine
	Amount      decimal.Decimal
	InvoiceOnly bool
}

// Calculate prices one billing cycle. It returns ErrZeroCharge when nothing
// is payable and no invoice-only record is warranted, in which case the
// caller creates no record at all.
func Calculate(in Input) (Cycle, error) {
	if in.Changed {
		return calculateTransition(in)
	}
	return calculateSteadyState(in)
}

func calculateSteadyState(in Input) (Cycle, error) {
	t := in.Current

	if t.PaymentType == models.FreeTrial {
		return Cycle{
			Lines:       []models.BillingLine{{Label: models.LinePlanCharge, PlanName: t.PlanName, Amount: decimal.Zero}},
			Amount:      decimal.Zero,
			InvoiceOnly: true,
		}, nil
	}

	if t.MonthlyInvoicedYearly() {
		switch t.PaymentType {
		case models.Prepaid:
			// Paid up front for the year; each month only documents its
			// share of the fee.
			return monthlyShare(t), nil
		case models.Postpaid:
			if finalDeferredCycle(in) {
				if !t.Fee.IsPositive() {
					return Cycle{}, ErrZeroCharge
				}
				return Cycle{
					Lines:  []models.BillingLine{{Label: models.LinePlanCharge, PlanName: t.PlanName, Amount: t.Fee}},
					Amount: t.Fee,
				}, nil
			}
			// Intermediate months accrue without charging.
			return monthlyShare(t), nil
		}
	}

	if !t.Fee.IsPositive() {
		return Cycle{}, ErrZeroCharge
	}
	return Cycle{
		Lines:  []models.BillingLine{{Label: models.LinePlanCharge, PlanName: t.PlanName, Amount: t.Fee}},
		Amount: t.Fee,
	}, nil
}

// calculateTransition prices the cycle where a plan change takes effect.
// POSTPAID to PREPAID is the one special case: the closing period is still
// owed under the outgoing terms while the new prepaid period is owed up
// front, and both collapse into a single charge. Every other transition
// bills the incoming plan's fee under the usual timing rule, same as the
// no-change case.
func calculateTransition(in Input) (Cycle, error) {
	if in.Outgoing.PaymentType != models.Postpaid || in.Current.PaymentType != models.Prepaid {
		return calculateSteadyState(in)
	}

	var lines []models.BillingLine
	if in.Outgoing.Fee.IsPositive() {
		lines = append(lines, models.BillingLine{
			Label:    models.LinePostpaidClose,
			PlanName: in.Outgoing.PlanName,
			Amount:   in.Outgoing.Fee,
		})
	}
	if in.Current.Fee.IsPositive() {
		lines = append(lines, models.BillingLine{
			Label:    models.LinePrepaidOpen,
			PlanName: in.Current.PlanName,
			Amount:   in.Current.Fee,
		})
	}
	if len(lines) == 0 {
		return Cycle{}, ErrZeroCharge
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return Cycle{Lines: lines, Amount: total}, nil
}

func monthlyShare(t models.PlanTerms) Cycle {
	share := t.Fee.Div(twelve).Round(2)
	return Cycle{
		Lines:       []models.BillingLine{{Label: models.LinePlanCharge, PlanName: t.PlanName, Amount: share}},
		Amount:      share,
		InvoiceOnly: true,
	}
}

// finalDeferredCycle decides whether a yearly-paid postpaid plan collects
// now. Either the plan's duration is reached or the subscription expires
// before another monthly cycle can run.
func finalDeferredCycle(in Input) bool {
	duration := in.Current.DurationMonths
	if duration <= 0 {
		duration = 12
	}
	if in.CycleCount+1 >= duration {
		return true
	}
	if in.EndDate != nil && !in.EndDate.After(in.PeriodEnd.AddDate(0, 0, 7)) {
		return true
	}
	return false
}
