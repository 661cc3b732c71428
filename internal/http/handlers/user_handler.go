package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/influencer-marketplace/backend/internal/http/dto"
	"github.com/influencer-marketplace/backend/internal/middleware"
	"github.com/influencer-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

type UserHandler struct {
	users   *services.UserService
	catalog *services.CatalogService
	log     *zap.Logger
}

func NewUserHandler(users *services.UserService, catalog *services.CatalogService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, catalog: catalog, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), middleware.GetActor(c).ID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

// Ping records the caller as active. The first ping creates the user mirror.
func (h *UserHandler) Ping(c *fiber.Ctx) error {
	var req dto.PingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
	}
	user, err := h.users.Touch(c.UserContext(), middleware.GetActor(c), req.DisplayName)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) MyApplications(c *fiber.Ctx) error {
	limit, offset := page(c)
	apps, err := h.catalog.ListMyApplications(c.UserContext(), middleware.GetActor(c), limit, offset)
	if err != nil {
		return fail(c, h.log, err)
	}
	return list(c, apps, limit, offset)
}
