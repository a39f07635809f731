package gateway

import (
	"strings"

	"github.com/mayank-tagline555/sooq-billing/internal/billing"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
)

// MapStatus folds the gateway's (result, payment status) pair into the
// engine's transaction status. Unrecognized combinations return
// billing.ErrUnknownProviderStatus along with PENDING so the poller keeps
// the transaction open and retries later.
func MapStatus(result, paymentStatus string) (models.TransactionStatus, error) {
	result = strings.ToUpper(strings.TrimSpace(result))
	paymentStatus = strings.ToUpper(strings.TrimSpace(paymentStatus))

	if result == "FAILURE" {
		return models.TxFailed, nil
	}

	switch paymentStatus {
	case "CAPTURED":
		if result == "SUCCESS" {
			return models.TxSuccess, nil
		}
	case "DECLINED", "CANCELLED", "EXPIRED":
		return models.TxFailed, nil
	case "AUTHORIZED", "PENDING":
		return models.TxPending, nil
	}

	return models.TxPending, billing.ErrUnknownProviderStatus
}
