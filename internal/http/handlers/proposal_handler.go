package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/influencer-marketplace/backend/internal/http/dto"
	"github.com/influencer-marketplace/backend/internal/middleware"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/services"
	"github.com/influencer-marketplace/backend/internal/storage"
	"go.uber.org/zap"
)

type ProposalHandler struct {
	catalog *services.CatalogService
	log     *zap.Logger
}

func NewProposalHandler(catalog *services.CatalogService, log *zap.Logger) *ProposalHandler {
	return &ProposalHandler{catalog: catalog, log: log}
}

func (h *ProposalHandler) CreateProposal(c *fiber.Ctx) error {
	var req dto.CreateProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	p, err := h.catalog.CreateProposal(c.UserContext(), middleware.GetActor(c), req.Input())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *ProposalHandler) GetProposal(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid proposal id")
	}
	p, err := h.catalog.Get(c.UserContext(), middleware.GetActor(c), models.EntityRef{Type: models.EntityProposal, ID: id})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *ProposalHandler) ListProposals(c *fiber.Ctx) error {
	limit, offset := page(c)
	filter := storage.ProposalFilter{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		s := models.ProposalStatus(strings.ToUpper(v))
		if !s.Valid() {
			return badRequest(c, "unknown status")
		}
		filter.Status = &s
	}

	proposals, err := h.catalog.ListProposals(c.UserContext(), middleware.GetActor(c), filter)
	if err != nil {
		return fail(c, h.log, err)
	}
	return list(c, proposals, limit, offset)
}

func (h *ProposalHandler) ListApplications(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid proposal id")
	}
	statuses, ok := applicationStatuses(c.Query("status"))
	if !ok {
		return badRequest(c, "unknown status")
	}
	limit, offset := page(c)
	apps, err := h.catalog.ListProposalApplications(c.UserContext(), middleware.GetActor(c), id, statuses, limit, offset)
	if err != nil {
		return fail(c, h.log, err)
	}
	return list(c, apps, limit, offset)
}
