package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mayank-tagline555/sooq-billing/internal/dto"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
	"github.com/mayank-tagline555/sooq-billing/internal/services"
	"github.com/mayank-tagline555/sooq-billing/internal/store"
)

type ReconcileHandler struct {
	reconcile *services.ReconcileService
	stores    store.Stores
}

func NewReconcileHandler(reconcile *services.ReconcileService, stores store.Stores) *ReconcileHandler {
	return &ReconcileHandler{reconcile: reconcile, stores: stores}
}

// RunPoll reconciles all open transactions for the caller's org.
func (h *ReconcileHandler) RunPoll(c *fiber.Ctx) error {
	orgID := org.GetOrgID(c)

	summary, err := h.reconcile.Poll(c.Context(), orgID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(summary)
}

// ReconcileOne forces reconciliation of a single transaction by order id.
func (h *ReconcileHandler) ReconcileOne(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "transaction id is required",
		})
	}

	outcome, err := h.reconcile.ReconcileTransaction(c.Context(), orderID)
	if err != nil {
		return respondServiceError(c, err)
	}

	logs, err := h.stores.ReconLogs.ForTransaction(c.Context(), orderID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"outcome": outcome, "attempts": logs})
}

// TransactionHistory returns the append-only audit trail for an order.
func (h *ReconcileHandler) TransactionHistory(c *fiber.Ctx) error {
	orderID := c.Params("id")

	tx, err := h.stores.Transactions.Get(c.Context(), orderID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "transaction not found",
		})
	}

	logs, err := h.stores.ReconLogs.ForTransaction(c.Context(), orderID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"transaction": tx, "attempts": logs})
}
