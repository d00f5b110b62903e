package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	applog "offerplacer/internal/log"
)

// OperatorKeyHash derives the comparison hash for the configured operator
// key. Empty key disables the guard (single-operator local use).
func OperatorKeyHash(key string) []byte {
	if key == "" {
		return nil
	}
	h, _ := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return h
}

// RequireOperator guards mutating routes with the X-Operator-Key header.
func RequireOperator(hash []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(hash) == 0 {
			return c.Next()
		}
		key := c.Get("X-Operator-Key")
		if key == "" || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
			applog.Security(c, "access.denied.operator", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "operator key required"})
		}
		return c.Next()
	}
}
