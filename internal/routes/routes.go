package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/mayank-tagline555/sooq-billing/internal/config"
	"github.com/mayank-tagline555/sooq-billing/internal/handlers"
	"github.com/mayank-tagline555/sooq-billing/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	billingHandler *handlers.BillingHandler,
	reconcileHandler *handlers.ReconcileHandler,
	webhookHandler *handlers.WebhookHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Health (no org required)
	api.Get("/health", healthHandler.Check)

	// Subscription lifecycle (protected)
	subs := api.Group("/subscriptions", middleware.JWTProtected(cfg))
	subs.Post("/", subscriptionHandler.Subscribe)
	subs.Put("/:id/plan", subscriptionHandler.ChangePlan)
	subs.Delete("/:id", subscriptionHandler.Cancel)
	subs.Get("/:id/billing", subscriptionHandler.BillingHistory)

	// Wallet deposits (protected)
	api.Post("/deposits", middleware.JWTProtected(cfg), billingHandler.CreateDeposit)

	// Operator endpoints: manual and catch-up runs of the scheduled passes
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(cfg))
	admin.Post("/billing/fee-pass", billingHandler.RunFeePass)
	admin.Post("/billing/pro-rata-pass", billingHandler.RunProRataPass)
	admin.Post("/reconcile/run", reconcileHandler.RunPoll)
	admin.Post("/reconcile/transactions/:id", reconcileHandler.ReconcileOne)
	admin.Get("/reconcile/transactions/:id", reconcileHandler.TransactionHistory)

	// Webhooks: per-org auth via :org_id path param (no JWT)
	webhooks := api.Group("/webhooks")
	webhooks.Post("/payments/:org_id", webhookHandler.HandlePaymentNotification)
}
