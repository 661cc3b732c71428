package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/influencer-marketplace/backend/internal/http/dto"
	"github.com/influencer-marketplace/backend/internal/middleware"
	"github.com/influencer-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	users *services.UserService
	log   *zap.Logger
}

func NewNotificationHandler(users *services.UserService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{users: users, log: log}
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	limit, offset := page(c)
	ns, err := h.users.Notifications(c.UserContext(), middleware.GetActor(c), c.QueryBool("unread"), limit, offset)
	if err != nil {
		return fail(c, h.log, err)
	}
	return list(c, ns, limit, offset)
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	if err := h.users.MarkRead(c.UserContext(), middleware.GetActor(c), id); err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
