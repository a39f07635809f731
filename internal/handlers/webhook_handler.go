package handlers

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/mayank-tagline555/sooq-billing/internal/dto"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
	"github.com/mayank-tagline555/sooq-billing/internal/services"
)

type WebhookHandler struct {
	reconcile *services.ReconcileService
	registry  *org.Registry
}

func NewWebhookHandler(reconcile *services.ReconcileService, registry *org.Registry) *WebhookHandler {
	return &WebhookHandler{
		reconcile: reconcile,
		registry:  registry,
	}
}

// HandlePaymentNotification receives the gateway's push callbacks, routed by
// :org_id with per-org auth. The payload's claimed status is never trusted;
// the notification only triggers an immediate reconciliation of the order,
// which verifies against the gateway's own order-status endpoint.
func (h *WebhookHandler) HandlePaymentNotification(c *fiber.Ctx) error {
	orgID := c.Params("org_id")
	if orgID == "" || !h.registry.Exists(orgID) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Unknown organization",
		})
	}

	expectedAuth := h.registry.GetWebhookAuth(orgID)
	if expectedAuth == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Webhooks not configured for this organization",
		})
	}

	authHeader := c.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(authHeader), []byte(expectedAuth)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var notification dto.PaymentNotification
	if err := c.BodyParser(&notification); err != nil || notification.OrderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid notification payload",
		})
	}

	outcome, err := h.reconcile.ReconcileTransaction(c.Context(), notification.OrderID)
	if err != nil {
		slog.Error("webhook reconciliation failed",
			"org_id", orgID,
			"transaction_id", notification.OrderID,
			"error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process payment notification",
		})
	}

	slog.Info("payment notification processed",
		"org_id", orgID,
		"transaction_id", notification.OrderID,
		"outcome", string(outcome))
	return c.JSON(fiber.Map{"received": true, "outcome": outcome})
}
