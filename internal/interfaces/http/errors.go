package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/pos-multitienda/internal/application/dto"
	"github.com/jhoicas/pos-multitienda/internal/domain"
)

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "sesión requerida"})
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

// writeError traduce un error de dominio a status + dto.ErrorResponse.
// Los fallos internos no exponen el detalle; llevan el id de intento para correlacionar con los logs.
func writeError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	var correlationID string
	var saleErr *domain.SaleError
	if errors.As(err, &saleErr) {
		correlationID = saleErr.AttemptID
	}
	resp := func(status int, code, msg string) error {
		return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: msg, CorrelationID: correlationID})
	}

	switch {
	case errors.Is(err, domain.ErrExposedPartial):
		return resp(fiber.StatusInternalServerError, "INTERNAL", "la venta no pudo completarse; quedó registrada para conciliación")
	case errors.Is(err, domain.ErrEmptyOrInvalidCart):
		return resp(fiber.StatusBadRequest, "EMPTY_CART", validationMessage(err))
	case errors.Is(err, domain.ErrInvalidPrice):
		return resp(fiber.StatusBadRequest, "INVALID_PRICE", validationMessage(err))
	case errors.Is(err, domain.ErrBusinessRuleViolation):
		return resp(fiber.StatusBadRequest, "BUSINESS_RULE", validationMessage(err))
	case errors.Is(err, domain.ErrInvalidInput):
		return resp(fiber.StatusBadRequest, "VALIDATION", "entrada inválida")
	case errors.Is(err, domain.ErrPermissionDenied):
		return resp(fiber.StatusForbidden, "FORBIDDEN", "sin permiso sobre la tienda o el recurso")
	case errors.Is(err, domain.ErrNotFound):
		return resp(fiber.StatusNotFound, "NOT_FOUND", "recurso no encontrado")
	case errors.Is(err, domain.ErrInsufficientStock):
		var short *domain.StockShortageError
		if errors.As(err, &short) {
			return resp(fiber.StatusConflict, "INSUFFICIENT_STOCK", short.Error())
		}
		return resp(fiber.StatusConflict, "INSUFFICIENT_STOCK", "stock insuficiente")
	case errors.Is(err, domain.ErrDuplicate):
		return resp(fiber.StatusConflict, "DUPLICATE", "recurso duplicado")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return resp(fiber.StatusServiceUnavailable, "TIMEOUT", "la operación no terminó a tiempo, intente de nuevo")
	}

	log.Error().Err(err).Str("correlation_id", correlationID).Str("path", c.Path()).Msg("error interno")
	return resp(fiber.StatusInternalServerError, "INTERNAL", "error interno, intente más tarde")
}

func validationMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return "carrito inválido"
}
