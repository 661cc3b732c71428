package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/http/dto"
	"github.com/influencer-marketplace/backend/internal/middleware"
	"github.com/influencer-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindUnauthenticated:    fiber.StatusUnauthorized,
	services.KindForbidden:          fiber.StatusForbidden,
	services.KindNotFound:           fiber.StatusNotFound,
	services.KindInvalidTransition:  fiber.StatusConflict,
	services.KindDuplicate:          fiber.StatusConflict,
	services.KindConflict:           fiber.StatusConflict,
	services.KindNotAccepting:       fiber.StatusConflict,
	services.KindValidation:         fiber.StatusUnprocessableEntity,
	services.KindStorageUnavailable: fiber.StatusServiceUnavailable,
}

// fail writes err using the status of its workflow kind. Anything untyped is a 500.
func fail(c *fiber.Ctx, log *zap.Logger, err error) error {
	kind := services.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		log.Error("unclassified handler error", zap.String("path", c.Path()), zap.Error(err))
		return middleware.Reject(c, fiber.StatusInternalServerError, "internal", "internal error")
	}
	if kind == services.KindStorageUnavailable {
		log.Error("storage unavailable", zap.String("path", c.Path()), zap.Error(err))
		return middleware.Reject(c, status, string(kind), "storage unavailable")
	}
	return middleware.Reject(c, status, string(kind), err.Error())
}

func badRequest(c *fiber.Ctx, msg string) error {
	return middleware.Reject(c, fiber.StatusBadRequest, string(services.KindValidation), msg)
}

func paramID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

func page(c *fiber.Ctx) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return limit, offset
}

func list(c *fiber.Ctx, data any, limit, offset int) error {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return c.JSON(dto.ListResponse{OK: true, Data: data, Limit: limit, Offset: max(offset, 0)})
}
