package middleware

import (
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the operator key checked by RequireAdminKey.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey allows the request only when the header matches the bcrypt hash.
// An empty hash closes the admin surface entirely.
func RequireAdminKey(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(AdminKeyHeader)
		if hash == "" || key == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
