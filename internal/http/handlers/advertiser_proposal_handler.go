package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/http/dto"
	"github.com/influencer-marketplace/backend/internal/middleware"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/services"
	"github.com/influencer-marketplace/backend/internal/storage"
	"go.uber.org/zap"
)

type AdvertiserProposalHandler struct {
	catalog *services.CatalogService
	log     *zap.Logger
}

func NewAdvertiserProposalHandler(catalog *services.CatalogService, log *zap.Logger) *AdvertiserProposalHandler {
	return &AdvertiserProposalHandler{catalog: catalog, log: log}
}

func (h *AdvertiserProposalHandler) CreateAdvertiserProposal(c *fiber.Ctx) error {
	var req dto.CreateAdvertiserProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	influencerID, err := uuid.Parse(req.InfluencerID)
	if err != nil {
		return badRequest(c, "invalid influencer_id")
	}

	p, err := h.catalog.CreateAdvertiserProposal(c.UserContext(), middleware.GetActor(c), services.AdvertiserProposalInput{
		InfluencerID:   influencerID,
		Title:          req.Title,
		Description:    req.Description,
		Budget:         req.Budget,
		CampaignPeriod: req.CampaignPeriod.Model(),
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *AdvertiserProposalHandler) GetAdvertiserProposal(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid advertiser proposal id")
	}
	p, err := h.catalog.Get(c.UserContext(), middleware.GetActor(c), models.EntityRef{Type: models.EntityAdvertiserProposal, ID: id})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *AdvertiserProposalHandler) ListAdvertiserProposals(c *fiber.Ctx) error {
	limit, offset := page(c)
	filter := storage.AdvertiserProposalFilter{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		s := models.AdvertiserProposalStatus(strings.ToUpper(v))
		if !s.Valid() {
			return badRequest(c, "unknown status")
		}
		filter.Status = &s
	}

	proposals, err := h.catalog.ListAdvertiserProposals(c.UserContext(), middleware.GetActor(c), filter)
	if err != nil {
		return fail(c, h.log, err)
	}
	return list(c, proposals, limit, offset)
}

func (h *AdvertiserProposalHandler) GetResponse(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid advertiser proposal id")
	}
	resp, err := h.catalog.GetResponse(c.UserContext(), middleware.GetActor(c), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: resp})
}
