package handlers

import (
	"errors"

	"github.com/coin-arcade/backend/internal/apperrors"
	"github.com/coin-arcade/backend/internal/http/dto"
	"github.com/coin-arcade/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps domain errors to their HTTP status with their
// message; anything else becomes an opaque 500. Both carry the request
// id so players can report failures the log can be searched for.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID := middleware.GetRequestID(c)

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status()).JSON(dto.ErrorResponse{Error: appErr.Message, RequestID: reqID})
	}
	log.Error("internal error",
		zap.String("request_id", reqID),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error", RequestID: reqID})
}
