package holdings

import (
	"context"

	holdingsvc "unicarbon-backend/internal/application/holdings"
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Viewer reads owner balances.
type Viewer interface {
	ViewHoldings(ctx context.Context, userID string) ([]holdingsvc.Holding, error)
	ViewHolding(ctx context.Context, userID, propertyID string) (*holdingsvc.Holding, error)
}

// Handlers bundles holdings handlers.
type Handlers struct {
	Service Viewer
}

// ViewHoldings GET /api/v1/holdings/:userId
func (h *Handlers) ViewHoldings(c *fiber.Ctx) error {
	data, err := h.Service.ViewHoldings(c.UserContext(), c.Params("userId"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Holdings fetched successfully", data, fiber.Map{"count": len(data)})
}

// ViewHolding GET /api/v1/holdings/:userId/:propertyId
func (h *Handlers) ViewHolding(c *fiber.Ctx) error {
	data, err := h.Service.ViewHolding(c.UserContext(), c.Params("userId"), c.Params("propertyId"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Holding fetched successfully", data, nil)
}
