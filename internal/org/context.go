package org

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GetOrgID extracts the org_id from Fiber context locals.
func GetOrgID(c *fiber.Ctx) string {
	if orgID, ok := c.Locals("org_id").(string); ok {
		return orgID
	}
	return ""
}

// GetBusinessID extracts the business UUID from JWT claims in context.
func GetBusinessID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}
