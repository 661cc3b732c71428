package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/influencer-marketplace/backend/internal/auth"
	"github.com/influencer-marketplace/backend/internal/config"
	"github.com/influencer-marketplace/backend/internal/db"
	"github.com/influencer-marketplace/backend/internal/events"
	apphttp "github.com/influencer-marketplace/backend/internal/http"
	"github.com/influencer-marketplace/backend/internal/http/dto"
	"github.com/influencer-marketplace/backend/internal/http/handlers"
	"github.com/influencer-marketplace/backend/internal/notify"
	"github.com/influencer-marketplace/backend/internal/services"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, "marketplace-api")
	if err != nil {
		log.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	store, closeStore, err := db.OpenStore(ctx, cfg, true, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Events: Redis in production, an in-process bus with the memory store
	var (
		rdb        *redis.Client
		publisher  events.Publisher
		subscriber events.Subscriber
	)
	if cfg.StorageDriver == "memory" {
		bus := events.NewLocalBus()
		publisher, subscriber = bus, bus
	} else {
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
	}

	metrics := telemetry.NewMetrics("marketplace")

	// Notification fan-out
	dispatcher := notify.NewDispatcher(
		notify.NewDirectory(store),
		notify.Multi{notify.NewStoreNotifier(store), events.NewNotifier(publisher)},
		notify.Options{BatchSize: cfg.NotifyBatchSize, Concurrency: cfg.NotifyConcurrency, Timeout: cfg.NotifyTimeout},
		metrics, log,
	)

	// Services
	workflowService := services.NewWorkflowService(store, dispatcher, publisher, metrics, log)
	catalogService := services.NewCatalogService(store, log)
	userService := services.NewUserService(store, log)

	// Handlers
	resolver := auth.NewResolver(cfg.JWTSecret)
	wsHub := handlers.NewWSHub(resolver, subscriber, log)
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe websocket hub", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			reqID, _ := c.Locals("request_id").(string)
			return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error(), Kind: "internal", RequestID: reqID})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, metrics, resolver,
		handlers.NewWorkflowHandler(workflowService, catalogService, log),
		handlers.NewCampaignHandler(catalogService, log),
		handlers.NewProposalHandler(catalogService, log),
		handlers.NewAdvertiserProposalHandler(catalogService, log),
		handlers.NewUserHandler(userService, catalogService, log),
		handlers.NewNotificationHandler(userService, log),
		wsHub,
	)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("storage", cfg.StorageDriver))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}

	// Let in-flight fan-out finish before the store closes.
	dispatcher.Wait()
}
