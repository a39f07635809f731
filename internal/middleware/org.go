package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mayank-tagline555/sooq-billing/internal/dto"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
)

// Paths that don't require org identification.
var orgSkipPaths = []string{
	"/api/health",
	"/api/webhooks/", // webhooks carry :org_id as a path param instead
}

// OrgMiddleware extracts org_id from JWT claims, the X-Org-ID header, or a
// query param, and validates it against the registry.
func OrgMiddleware(registry *org.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		for _, skip := range orgSkipPaths {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}

		if token, ok := c.Locals("user").(*jwt.Token); ok {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if orgID, ok := claims["org_id"].(string); ok && orgID != "" {
					c.Locals("org_id", orgID)
					return c.Next()
				}
			}
		}

		orgID := c.Get("X-Org-ID")
		if orgID == "" {
			orgID = c.Query("org_id")
		}
		if orgID != "" {
			if !registry.Exists(orgID) {
				return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
					Error:   true,
					Message: "Invalid org_id: " + orgID,
				})
			}
			c.Locals("org_id", orgID)
			return c.Next()
		}

		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "X-Org-ID header is required",
		})
	}
}
