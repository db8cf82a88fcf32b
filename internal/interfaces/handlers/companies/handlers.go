package companies

import (
	"context"

	companysvc "unicarbon-backend/internal/application/companies"
	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Registry registers and looks up companies by wallet.
type Registry interface {
	Register(ctx context.Context, name, wallet string) (*domain.Company, error)
	Get(ctx context.Context, wallet string) (*companysvc.Details, error)
}

type Handlers struct {
	Service Registry
}

// Register POST /api/v1/company
func (h *Handlers) Register(c *fiber.Ctx) error {
	var body struct {
		Name   string `json:"name"`
		Wallet string `json:"wallet"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	company, err := h.Service.Register(c.UserContext(), body.Name, body.Wallet)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Company registered", company, nil)
}

// Get GET /api/v1/company/:wallet
func (h *Handlers) Get(c *fiber.Ctx) error {
	details, err := h.Service.Get(c.UserContext(), c.Params("wallet"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Company retrieved", details, nil)
}
