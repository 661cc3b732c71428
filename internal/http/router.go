package http

import (
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/influencer-marketplace/backend/internal/config"
	"github.com/influencer-marketplace/backend/internal/http/handlers"
	"github.com/influencer-marketplace/backend/internal/middleware"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	metrics *telemetry.Metrics,
	resolver middleware.ActorResolver,
	workflowHandler *handlers.WorkflowHandler,
	campaignHandler *handlers.CampaignHandler,
	proposalHandler *handlers.ProposalHandler,
	advertiserProposalHandler *handlers.AdvertiserProposalHandler,
	userHandler *handlers.UserHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSAllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	}

	api := app.Group("/api/v1",
		middleware.AuthMiddleware(resolver, log),
		middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log),
	)

	// Generic workflow request
	api.Post("/transitions", workflowHandler.Transition)

	// User
	api.Get("/me", userHandler.GetMe)
	api.Post("/me/ping", userHandler.Ping)
	api.Get("/me/applications", userHandler.MyApplications)

	// Notifications
	api.Get("/notifications", notificationHandler.ListNotifications)
	api.Post("/notifications/:id/read", notificationHandler.MarkRead)

	// Campaigns
	api.Post("/campaigns", campaignHandler.CreateCampaign)
	api.Get("/campaigns", campaignHandler.ListCampaigns)
	api.Get("/campaigns/:id", campaignHandler.GetCampaign)
	api.Get("/campaigns/:id/applications", campaignHandler.ListApplications)

	// Proposals
	api.Post("/proposals", proposalHandler.CreateProposal)
	api.Get("/proposals", proposalHandler.ListProposals)
	api.Get("/proposals/:id", proposalHandler.GetProposal)
	api.Get("/proposals/:id/applications", proposalHandler.ListApplications)

	// Advertiser proposals
	api.Post("/advertiser-proposals", advertiserProposalHandler.CreateAdvertiserProposal)
	api.Get("/advertiser-proposals", advertiserProposalHandler.ListAdvertiserProposals)
	api.Get("/advertiser-proposals/:id", advertiserProposalHandler.GetAdvertiserProposal)
	api.Get("/advertiser-proposals/:id/response", advertiserProposalHandler.GetResponse)

	// Actions and audit history per entity
	for prefix, t := range map[string]models.EntityType{
		"/campaigns":             models.EntityCampaign,
		"/applications":          models.EntityApplication,
		"/proposals":             models.EntityProposal,
		"/proposal-applications": models.EntityProposalApplication,
		"/advertiser-proposals":  models.EntityAdvertiserProposal,
	} {
		api.Post(prefix+"/:id/actions/:action", workflowHandler.Action(t))
		api.Get(prefix+"/:id/events", workflowHandler.Events(t))
	}

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
