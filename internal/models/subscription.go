package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "ACTIVE"
	StatusTrialing  SubscriptionStatus = "TRIALING"
	StatusPastDue   SubscriptionStatus = "PAST_DUE"
	StatusCancelled SubscriptionStatus = "CANCELLED"
	StatusExpired   SubscriptionStatus = "EXPIRED"
)

// PendingPlanState describes where a staged plan change sits relative to a
// point in time.
type PendingPlanState int

const (
	PendingNone PendingPlanState = iota
	PendingStaged
	PendingDue
)

// Subscription binds a business to a snapshot of plan terms plus the billing
// cursor that drives cycle generation. At most one ACTIVE or TRIALING
// subscription may exist per business, enforced by a partial unique index.
type Subscription struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrgID      string    `gorm:"size:50;not null;index" json:"-"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index" json:"business_id"`

	Status SubscriptionStatus `gorm:"size:20;not null;default:'ACTIVE';index" json:"status"`

	Terms PlanTerms `gorm:"embedded;embeddedPrefix:plan_" json:"terms"`

	StartDate       time.Time  `gorm:"not null" json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	LastBillingDate *time.Time `json:"last_billing_date,omitempty"`
	NextBillingDate *time.Time `gorm:"index" json:"next_billing_date,omitempty"`

	// BillingDay anchors cycle boundaries to the subscribe day of month,
	// clamped in shorter months. Zero falls back to the cursor's own day.
	BillingDay int `gorm:"not null;default:0" json:"billing_day"`

	// BillingCycleCount counts every billed cycle over the subscription's
	// lifetime and never decreases. PlanCycleCount counts cycles under the
	// current terms and restarts when a staged plan change takes effect;
	// the yearly-postpaid deferral keys off it.
	BillingCycleCount int  `gorm:"not null;default:0" json:"billing_cycle_count"`
	PlanCycleCount    int  `gorm:"not null;default:0" json:"plan_cycle_count"`
	AutoRenew         bool `gorm:"not null;default:true" json:"auto_renew"`

	// FailedChargeAttempts counts consecutive declined charges for the
	// cycle currently due. It resets when a charge settles or the cycle is
	// abandoned.
	FailedChargeAttempts int `gorm:"not null;default:0" json:"failed_charge_attempts"`

	// PendingTerms holds a staged plan change as a JSON snapshot. Nil means
	// no change is staged. The change takes effect at PendingEffectiveDate
	// during the next billing pass.
	PendingTerms         datatypes.JSON `gorm:"type:jsonb" json:"pending_terms,omitempty"`
	PendingEffectiveDate *time.Time     `json:"pending_effective_date,omitempty"`

	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Business Business `gorm:"foreignKey:BusinessID" json:"-"`
}

func (Subscription) TableName() string { return "subscriptions" }

// IsBillable reports whether the subscription participates in billing passes.
func (s *Subscription) IsBillable() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// PendingPlan decodes the staged plan terms, or returns nil when none are
// staged.
func (s *Subscription) PendingPlan() (*PlanTerms, error) {
	if len(s.PendingTerms) == 0 {
		return nil, nil
	}
	var terms PlanTerms
	if err := json.Unmarshal(s.PendingTerms, &terms); err != nil {
		return nil, fmt.Errorf("decode pending plan terms: %w", err)
	}
	return &terms, nil
}

// StagePendingPlan stores new terms to take effect at effectiveDate. The
// staged terms must keep the business on the same role.
func (s *Subscription) StagePendingPlan(terms PlanTerms, effectiveDate time.Time) error {
	if terms.Role != s.Terms.Role {
		return &ValidationError{Field: "role", Message: fmt.Sprintf("pending plan role %s does not match subscription role %s", terms.Role, s.Terms.Role)}
	}
	raw, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("encode pending plan terms: %w", err)
	}
	s.PendingTerms = datatypes.JSON(raw)
	d := DateOnly(effectiveDate)
	s.PendingEffectiveDate = &d
	return nil
}

// PendingState classifies the staged change relative to asOf.
func (s *Subscription) PendingState(asOf time.Time) PendingPlanState {
	if len(s.PendingTerms) == 0 || s.PendingEffectiveDate == nil {
		return PendingNone
	}
	if !DateOnly(asOf).Before(DateOnly(*s.PendingEffectiveDate)) {
		return PendingDue
	}
	return PendingStaged
}

// ApplyPendingPlan swaps the staged terms in and clears the staging fields.
// Calling it when nothing is due is a no-op, so a billing pass may invoke it
// unconditionally. It returns the terms that were in force before the swap
// and whether a swap happened.
func (s *Subscription) ApplyPendingPlan(asOf time.Time) (previous PlanTerms, applied bool, err error) {
	if s.PendingState(asOf) != PendingDue {
		return s.Terms, false, nil
	}
	pending, err := s.PendingPlan()
	if err != nil {
		return s.Terms, false, err
	}
	if pending.Role != s.Terms.Role {
		return s.Terms, false, &ValidationError{Field: "role", Message: "pending plan role does not match subscription role"}
	}
	previous = s.Terms
	s.Terms = *pending
	s.PendingTerms = nil
	s.PendingEffectiveDate = nil
	s.PlanCycleCount = 0
	return previous, true, nil
}

// MaxChargeAttempts is how many declined charges a cycle tolerates before
// it is abandoned.
const MaxChargeAttempts = 3

// RecordChargeFailure bumps the consecutive-failure counter. Within the
// allowance the billing cursor stays put, so the subscription is selected
// again on the next pass and the same period is retried. Once the allowance
// is spent the period is abandoned: the cursor moves past it, the counter
// resets, and the subscription is flagged PAST_DUE for operator attention.
// It reports whether the cycle was abandoned.
func (s *Subscription) RecordChargeFailure(asOf time.Time) bool {
	s.FailedChargeAttempts++
	if s.FailedChargeAttempts < MaxChargeAttempts {
		return false
	}
	s.AdvanceBillingCursor(asOf)
	s.Status = StatusPastDue
	return true
}

// NextBillingDateAfter computes the next cycle boundary after from, honoring
// the billing frequency. The boundary lands on the billing day of month,
// clamped to the last day of shorter months, so a Jan 31 anniversary bills
// on Feb 28 and then returns to Mar 31 instead of drifting to Mar 28. A
// Feb 29 anniversary lands on Feb 28 in non-leap years.
func (s *Subscription) NextBillingDateAfter(from time.Time) time.Time {
	f := DateOnly(from)
	day := s.BillingDay
	if day <= 0 {
		day = f.Day()
	}
	switch s.Terms.BillingFrequency {
	case FrequencyYearly:
		return clampedDate(f.Year()+1, f.Month(), day)
	default:
		return clampedDate(f.Year(), f.Month()+1, day)
	}
}

// AdvanceBillingCursor moves the billing dates forward after a successful
// cycle at billedAt.
func (s *Subscription) AdvanceBillingCursor(billedAt time.Time) {
	d := DateOnly(billedAt)
	s.LastBillingDate = &d
	next := s.NextBillingDateAfter(billedAt)
	s.NextBillingDate = &next
	s.BillingCycleCount++
	s.PlanCycleCount++
	s.FailedChargeAttempts = 0
}

// DateOnly truncates t to midnight UTC. Billing math operates on calendar
// dates, not instants.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// clampedDate builds the UTC date (y, m, d) with d clamped to the month's
// last day. The month may overflow the year; time.Date normalizes it.
func clampedDate(y int, m time.Month, d int) time.Time {
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
