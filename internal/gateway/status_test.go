package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mayank-tagline555/sooq-billing/internal/billing"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		result        string
		paymentStatus string
		want          models.TransactionStatus
	}{
		{"SUCCESS", "CAPTURED", models.TxSuccess},
		{"FAILURE", "CAPTURED", models.TxFailed},
		{"FAILURE", "", models.TxFailed},
		{"SUCCESS", "DECLINED", models.TxFailed},
		{"", "CANCELLED", models.TxFailed},
		{"", "EXPIRED", models.TxFailed},
		{"SUCCESS", "AUTHORIZED", models.TxPending},
		{"", "PENDING", models.TxPending},
		{"success", "captured", models.TxSuccess},
		{" SUCCESS ", " CAPTURED ", models.TxSuccess},
	}
	for _, tc := range cases {
		got, err := MapStatus(tc.result, tc.paymentStatus)
		assert.NoError(t, err, "%s/%s", tc.result, tc.paymentStatus)
		assert.Equal(t, tc.want, got, "%s/%s", tc.result, tc.paymentStatus)
	}
}

func TestMapStatusUnknownStaysPending(t *testing.T) {
	got, err := MapStatus("PARTIAL", "ON_HOLD")
	assert.ErrorIs(t, err, billing.ErrUnknownProviderStatus)
	assert.Equal(t, models.TxPending, got)
}
