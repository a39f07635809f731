package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mayank-tagline555/sooq-billing/internal/dto"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
	"github.com/mayank-tagline555/sooq-billing/internal/services"
	"github.com/mayank-tagline555/sooq-billing/internal/store"
)

type SubscriptionHandler struct {
	db            *gorm.DB
	subscriptions *services.SubscriptionService
	stores        store.Stores
}

func NewSubscriptionHandler(db *gorm.DB, subscriptions *services.SubscriptionService, stores store.Stores) *SubscriptionHandler {
	return &SubscriptionHandler{db: db, subscriptions: subscriptions, stores: stores}
}

// Subscribe creates a subscription from a plan template.
func (h *SubscriptionHandler) Subscribe(c *fiber.Ctx) error {
	orgID := org.GetOrgID(c)

	var req dto.SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	var business models.Business
	if err := h.db.Scopes(org.ForOrg(orgID)).First(&business, "id = ?", req.BusinessID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "business not found",
		})
	}
	tpl, err := h.loadTemplate(orgID, req.PlanTemplateID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "plan template not found",
		})
	}

	sub, err := h.subscriptions.Subscribe(c.Context(), orgID, &business, tpl)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// ChangePlan stages a plan change for the next billing cycle.
func (h *SubscriptionHandler) ChangePlan(c *fiber.Ctx) error {
	orgID := org.GetOrgID(c)

	subID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "invalid subscription id",
		})
	}

	var req dto.ChangePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	tpl, err := h.loadTemplate(orgID, req.PlanTemplateID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "plan template not found",
		})
	}

	sub, err := h.subscriptions.StagePlanChange(c.Context(), subID, tpl)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(sub)
}

// Cancel turns auto-renew off; the subscription ends at the period boundary.
func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	subID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "invalid subscription id",
		})
	}

	sub, err := h.subscriptions.CancelAtPeriodEnd(c.Context(), subID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(sub)
}

// BillingHistory lists the billing records of a subscription, newest first.
func (h *SubscriptionHandler) BillingHistory(c *fiber.Ctx) error {
	subID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "invalid subscription id",
		})
	}

	recs, err := h.stores.Billing.ForSubscription(c.Context(), subID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(recs)
}

func (h *SubscriptionHandler) loadTemplate(orgID string, id uuid.UUID) (*models.PlanTemplate, error) {
	var tpl models.PlanTemplate
	err := h.db.Scopes(org.ForOrg(orgID)).
		Where("active = ?", true).
		First(&tpl, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}
