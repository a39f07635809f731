package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mayank-tagline555/sooq-billing/internal/models"
)

// PrepaidHoldingsCharge prices the coming year for a prepaid pro-rata
// investor: every unit still held pays the full annual rate up front.
func PrepaidHoldingsCharge(holdings []models.AssetHolding, rate decimal.Decimal, asOf time.Time) decimal.Decimal {
	total := decimal.Zero
	for i := range holdings {
		h := &holdings[i]
		remaining := h.RemainingQuantity(asOf)
		if !remaining.IsPositive() {
			continue
		}
		total = total.Add(remaining.Mul(h.UnitCost).Mul(rate))
	}
	return total.Round(2)
}

// PostpaidHoldingsCharge prices the year just ended for a postpaid pro-rata
// investor. Each unit pays the annual rate weighted by the fraction of the
// year it was actually held: sold units count days up to the sale, unsold
// units count days through year end, and units acquired mid-year count from
// the acquisition date.
func PostpaidHoldingsCharge(holdings []models.AssetHolding, rate decimal.Decimal, year int) decimal.Decimal {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)
	days := decimal.NewFromInt(int64(yearEnd.Sub(yearStart).Hours() / 24))

	total := decimal.Zero
	for i := range holdings {
		h := &holdings[i]
		start := models.DateOnly(h.AcquiredAt)
		if start.Before(yearStart) {
			start = yearStart
		}
		if !start.Before(yearEnd) {
			continue
		}
		perUnit := h.UnitCost.Mul(rate)

		remaining := h.Quantity
		for _, sale := range h.Sales {
			soldAt := models.DateOnly(sale.SoldAt)
			if soldAt.Before(yearStart) {
				remaining = remaining.Sub(sale.Quantity)
				continue
			}
			if !soldAt.Before(yearEnd) {
				continue
			}
			held := heldFraction(start, soldAt, days)
			total = total.Add(sale.Quantity.Mul(perUnit).Mul(held))
			remaining = remaining.Sub(sale.Quantity)
		}
		if remaining.IsPositive() {
			held := heldFraction(start, yearEnd, days)
			total = total.Add(remaining.Mul(perUnit).Mul(held))
		}
	}
	return total.Round(2)
}

func heldFraction(from, to time.Time, daysInYear decimal.Decimal) decimal.Decimal {
	if !to.After(from) {
		return decimal.Zero
	}
	held := decimal.NewFromInt(int64(to.Sub(from).Hours() / 24))
	return held.DivRound(daysInYear, 10)
}
