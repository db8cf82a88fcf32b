package admin

import (
	"context"

	adminsvc "unicarbon-backend/internal/application/admin"
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Operator is the operator-only contract surface and pending-work queue.
type Operator interface {
	ProjectComplete(ctx context.Context, amount decimal.Decimal, projectName string) (*adminsvc.TxResult, error)
	Withdraw(ctx context.Context) (*adminsvc.TxResult, error)
	Price(ctx context.Context) (*adminsvc.Price, error)
	Pending(ctx context.Context, status string) (*adminsvc.Queue, error)
}

type Handlers struct {
	Service Operator
}

// ProjectComplete POST /api/v1/admin/project-complete
func (h *Handlers) ProjectComplete(c *fiber.Ctx) error {
	var body struct {
		Amount      decimal.Decimal `json:"amount"`
		ProjectName string          `json:"projectName"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	res, err := h.Service.ProjectComplete(c.UserContext(), body.Amount, body.ProjectName)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Project completed on-chain", res, nil)
}

// Withdraw POST /api/v1/admin/withdraw
func (h *Handlers) Withdraw(c *fiber.Ctx) error {
	res, err := h.Service.Withdraw(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Withdrawal confirmed", res, nil)
}

// Price GET /api/v1/admin/price
func (h *Handlers) Price(c *fiber.Ctx) error {
	res, err := h.Service.Price(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Price per credit", res, nil)
}

// Submissions GET /api/v1/admin/submissions?status=pending
func (h *Handlers) Submissions(c *fiber.Ctx) error {
	res, err := h.Service.Pending(c.UserContext(), c.Query("status"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Operator queue", res, fiber.Map{
		"submissions":     len(res.Submissions),
		"stalledPayments": len(res.StalledPayments),
	})
}
