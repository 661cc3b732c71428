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

type CampaignHandler struct {
	catalog *services.CatalogService
	log     *zap.Logger
}

func NewCampaignHandler(catalog *services.CatalogService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{catalog: catalog, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	campaign, err := h.catalog.CreateCampaign(c.UserContext(), middleware.GetActor(c), req.Input())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid campaign id")
	}
	campaign, err := h.catalog.Get(c.UserContext(), middleware.GetActor(c), models.EntityRef{Type: models.EntityCampaign, ID: id})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	limit, offset := page(c)
	filter := storage.CampaignFilter{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		s := models.CampaignStatus(strings.ToUpper(v))
		if !s.Valid() {
			return badRequest(c, "unknown status")
		}
		filter.Status = &s
	}

	campaigns, err := h.catalog.ListCampaigns(c.UserContext(), middleware.GetActor(c), filter)
	if err != nil {
		return fail(c, h.log, err)
	}
	return list(c, campaigns, limit, offset)
}

func (h *CampaignHandler) ListApplications(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid campaign id")
	}
	statuses, ok := applicationStatuses(c.Query("status"))
	if !ok {
		return badRequest(c, "unknown status")
	}
	limit, offset := page(c)
	apps, err := h.catalog.ListCampaignApplications(c.UserContext(), middleware.GetActor(c), id, statuses, limit, offset)
	if err != nil {
		return fail(c, h.log, err)
	}
	return list(c, apps, limit, offset)
}

// applicationStatuses parses a comma separated status filter.
func applicationStatuses(raw string) ([]models.ApplicationStatus, bool) {
	var out []models.ApplicationStatus
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		s := models.ApplicationStatus(strings.ToUpper(p))
		if !s.Valid() {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
