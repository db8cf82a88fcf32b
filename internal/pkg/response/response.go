package response

import (
	"errors"

	"unicarbon-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Body is the standardized JSON envelope for every API response.
type Body struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Metadata interface{} `json:"metadata,omitempty"`
	Error    string      `json:"error,omitempty"`
	Code     string      `json:"code,omitempty"`
	Details  interface{} `json:"details,omitempty"`
	TxHash   string      `json:"txHash,omitempty"`
	Warning  string      `json:"warning,omitempty"`
}

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Body{
		Success:  true,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Body{
		Success:  true,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	return c.Status(statusCode).JSON(Body{
		Success: false,
		Error:   message,
		Details: details,
	})
}

// Unauthorized sends 401 with the same shape as other errors.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindInsufficientInventory, domain.KindInsufficientCredits,
		domain.KindPaymentNotVerified, domain.KindTransactionFailed:
		return fiber.StatusBadRequest
	case domain.KindNotFound, domain.KindReceiptNotFound:
		return fiber.StatusNotFound
	case domain.KindConflict, domain.KindIntegrity, domain.KindOversold, domain.KindSettlementInProgress:
		return fiber.StatusConflict
	case domain.KindPaymentGateway, domain.KindChainSettlementFailed:
		return fiber.StatusBadGateway
	case domain.KindChainPending:
		return fiber.StatusAccepted
	case domain.KindPartialSuccess:
		return fiber.StatusOK
	case domain.KindCompensationFailed, domain.KindUntrackedSubmission:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

// FromError renders a saga error. Errors that are not *domain.Error become a bare 500.
// PartialSuccess is rendered as a successful response carrying a warning, since the
// chain side of the operation went through.
func FromError(c *fiber.Ctx, err error) error {
	var e *domain.Error
	if !errors.As(err, &e) {
		log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
		return Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	status := StatusFor(e.Kind)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(e.Kind)).Str("tx_hash", e.TxHash).Str("path", c.Path()).Msg("Saga failure")
	}
	if e.Kind == domain.KindPartialSuccess {
		return c.Status(status).JSON(Body{
			Success: true,
			Warning: e.Message,
			Code:    string(e.Kind),
			Data:    e.Details,
			TxHash:  e.TxHash,
		})
	}
	return c.Status(status).JSON(Body{
		Success: false,
		Error:   e.Message,
		Code:    string(e.Kind),
		Details: e.Details,
		TxHash:  e.TxHash,
	})
}
