package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/http/dto"
	"github.com/influencer-marketplace/backend/internal/middleware"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

type WorkflowHandler struct {
	workflow *services.WorkflowService
	catalog  *services.CatalogService
	log      *zap.Logger
}

func NewWorkflowHandler(workflow *services.WorkflowService, catalog *services.CatalogService, log *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow, catalog: catalog, log: log}
}

// Transition handles the generic POST /transitions request.
func (h *WorkflowHandler) Transition(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	id, err := uuid.Parse(req.EntityID)
	if err != nil {
		return badRequest(c, "invalid entity_id")
	}
	return h.execute(c, models.EntityRef{Type: models.EntityType(req.EntityType), ID: id}, models.Action(req.Action), req.Payload)
}

// Action returns the handler of POST /<entities>/:id/actions/:action.
func (h *WorkflowHandler) Action(t models.EntityType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c)
		if !ok {
			return badRequest(c, "invalid id")
		}
		var req dto.ActionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request")
			}
		}
		return h.execute(c, models.EntityRef{Type: t, ID: id}, models.Action(c.Params("action")), req)
	}
}

func (h *WorkflowHandler) execute(c *fiber.Ctx, ref models.EntityRef, action models.Action, body dto.ActionRequest) error {
	entity, err := h.workflow.Execute(c.UserContext(), services.TransitionRequest{
		Actor:   middleware.GetActor(c),
		Entity:  ref,
		Action:  action,
		Payload: body.Payload(),
	})
	if err != nil {
		return fail(c, h.log, err)
	}

	status := fiber.StatusOK
	if entity.Ref().Type != ref.Type {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.SuccessResponse{OK: true, Data: entity})
}

// Events returns the audit history of one entity.
func (h *WorkflowHandler) Events(t models.EntityType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c)
		if !ok {
			return badRequest(c, "invalid id")
		}
		limit, offset := page(c)
		history, err := h.catalog.History(c.UserContext(), middleware.GetActor(c), models.EntityRef{Type: t, ID: id}, limit, offset)
		if err != nil {
			return fail(c, h.log, err)
		}
		return list(c, history, limit, offset)
	}
}
