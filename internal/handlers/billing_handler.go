package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mayank-tagline555/sooq-billing/internal/dto"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
	"github.com/mayank-tagline555/sooq-billing/internal/services"
)

// BillingHandler exposes the billing passes to operators. The scheduler runs
// the same passes on cron; these endpoints exist for manual and catch-up
// runs.
type BillingHandler struct {
	billing *services.BillingService
	prorata *services.ProRataService
}

func NewBillingHandler(billing *services.BillingService, prorata *services.ProRataService) *BillingHandler {
	return &BillingHandler{billing: billing, prorata: prorata}
}

// RunFeePass triggers the recurring fee pass for the caller's org.
// ?dry_run=true reports what would happen without writing.
func (h *BillingHandler) RunFeePass(c *fiber.Ctx) error {
	orgID := org.GetOrgID(c)
	dryRun := c.QueryBool("dry_run")

	summary, err := h.billing.RunFeePass(c.Context(), orgID, dryRun)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(summary)
}

// RunProRataPass triggers the annual investor pass for the caller's org.
func (h *BillingHandler) RunProRataPass(c *fiber.Ctx) error {
	orgID := org.GetOrgID(c)
	dryRun := c.QueryBool("dry_run")

	summary, err := h.prorata.RunAnnualPass(c.Context(), orgID, dryRun)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(summary)
}

// CreateDeposit opens a wallet top-up order for a business.
func (h *BillingHandler) CreateDeposit(c *fiber.Ctx) error {
	orgID := org.GetOrgID(c)

	var req dto.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	tx, err := h.billing.CreateDeposit(c.Context(), orgID, req.BusinessID, req.Amount)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tx)
}

func respondServiceError(c *fiber.Ctx, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: verr.Error(),
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: err.Error(),
	})
}
