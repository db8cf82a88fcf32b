package offsets

import (
	"context"

	offsetsvc "unicarbon-backend/internal/application/offsets"
	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Offsetter retires credits on-chain and resumes pending retirements.
type Offsetter interface {
	Offset(ctx context.Context, in offsetsvc.OffsetInput) (*domain.OffsetRecord, error)
	Resume(ctx context.Context, txHash string) (*domain.OffsetRecord, error)
}

type Handlers struct {
	Service Offsetter
}

// Offset POST /api/v1/offset
func (h *Handlers) Offset(c *fiber.Ctx) error {
	var body offsetsvc.OffsetInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	rec, err := h.Service.Offset(c.UserContext(), body)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Credits offset successfully", fiber.Map{"offsetRecord": rec}, nil)
}

// Resume POST /api/v1/offset/resume
func (h *Handlers) Resume(c *fiber.Ctx) error {
	var body struct {
		TxHash string `json:"txHash"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	rec, err := h.Service.Resume(c.UserContext(), body.TxHash)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Offset confirmed", fiber.Map{"offsetRecord": rec}, nil)
}
