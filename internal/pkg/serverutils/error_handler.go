package serverutils

import (
	"errors"

	"neuroheart-chat-be/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps domain errors onto HTTP statuses:
// NotFound -> 404, InvalidRole -> 400, upstream failures -> 502.
// StaleWatermark never reaches this layer; the summarizer swallows it.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(err.Error()))
		case errors.Is(err, apperr.ErrInvalidRole):
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(err.Error()))
		case apperr.IsUpstream(err):
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse("upstream model call failed, please retry"))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("internal server error"))
	}
}
