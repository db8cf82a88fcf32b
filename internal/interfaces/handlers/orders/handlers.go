package orders

import (
	"context"

	ordersvc "unicarbon-backend/internal/application/orders"
	"unicarbon-backend/internal/application/settlement"
	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// OrderCreator opens payment orders and reads them back.
type OrderCreator interface {
	Create(ctx context.Context, in ordersvc.CreateInput) (*ordersvc.CreateResult, error)
	Get(ctx context.Context, orderID string) (*domain.Payment, error)
}

// Confirmer settles a paid order.
type Confirmer interface {
	Confirm(ctx context.Context, in settlement.ConfirmInput) (*settlement.ConfirmResult, error)
}

type Handlers struct {
	Orders     OrderCreator
	Settlement Confirmer
}

// Create POST /api/v1/orders
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body ordersvc.CreateInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	res, err := h.Orders.Create(c.UserContext(), body)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Payment order created", res, nil)
}

// Verify POST /api/v1/orders/verify
func (h *Handlers) Verify(c *fiber.Ctx) error {
	var body settlement.ConfirmInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	body.GatewayVerified = false
	res, err := h.Settlement.Confirm(c.UserContext(), body)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment verified and settled", fiber.Map{
		"txHash":  res.TxHash,
		"status":  res.Status,
		"payment": res.Payment,
	}, nil)
}

// Get GET /api/v1/orders/:orderId
func (h *Handlers) Get(c *fiber.Ctx) error {
	pay, err := h.Orders.Get(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Order retrieved", pay, nil)
}
