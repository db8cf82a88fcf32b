package transactions

import (
	"context"

	"unicarbon-backend/internal/application/reconcile"
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Reconciler applies a mined transaction's events to the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, txHash string) (*reconcile.Result, error)
}

type Handlers struct {
	Service Reconciler
}

// Verify POST /api/v1/tx/verify
func (h *Handlers) Verify(c *fiber.Ctx) error {
	var body struct {
		TxHash string `json:"txHash"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	res, err := h.Service.Reconcile(c.UserContext(), body.TxHash)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transaction processed", res, nil)
}
