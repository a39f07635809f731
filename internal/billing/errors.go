package billing

import "errors"

var (
	// ErrDuplicatePeriod signals that a billing record for the same
	// subscription and period start already exists. The cycle is skipped.
	ErrDuplicatePeriod = errors.New("billing record already exists for period")

	// ErrZeroCharge signals a computed amount of zero or less. No record is
	// created and no gateway call is made.
	ErrZeroCharge = errors.New("computed charge amount is not positive")

	// ErrUnknownProviderStatus signals a gateway status string outside the
	// known mapping. The transaction stays PENDING.
	ErrUnknownProviderStatus = errors.New("unrecognized provider status")
)

// TransientGatewayError wraps a transport or gateway failure that is worth
// retrying. Reconciliation schedules deferred retries for it; billing leaves
// the transaction PENDING for the poller to pick up.
type TransientGatewayError struct {
	Op  string
	Err error
}

func (e *TransientGatewayError) Error() string {
	return "gateway " + e.Op + ": " + e.Err.Error()
}

func (e *TransientGatewayError) Unwrap() error { return e.Err }
