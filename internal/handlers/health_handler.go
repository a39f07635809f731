package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mayank-tagline555/sooq-billing/internal/database"
	"github.com/mayank-tagline555/sooq-billing/internal/dto"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
)

type HealthHandler struct {
	registry *org.Registry
}

func NewHealthHandler(registry *org.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		OrgCount:  len(h.registry.All()),
	})
}
