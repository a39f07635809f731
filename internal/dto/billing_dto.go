package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	OrgCount  int    `json:"org_count"`
}

type SubscribeRequest struct {
	BusinessID     uuid.UUID `json:"business_id"`
	PlanTemplateID uuid.UUID `json:"plan_template_id"`
}

type ChangePlanRequest struct {
	PlanTemplateID uuid.UUID `json:"plan_template_id"`
}

type DepositRequest struct {
	BusinessID uuid.UUID       `json:"business_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// PaymentNotification is the gateway's push callback for an order. It is a
// hint to reconcile immediately; the engine still verifies the status with
// its own order-status lookup.
type PaymentNotification struct {
	OrderID       string `json:"order_id"`
	Result        string `json:"result"`
	PaymentStatus string `json:"payment_status"`
}
