package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/influencer-marketplace/backend/internal/config"
	"github.com/influencer-marketplace/backend/internal/db"
	"github.com/influencer-marketplace/backend/internal/events"
	"github.com/influencer-marketplace/backend/internal/jobs"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/notify"
	"github.com/influencer-marketplace/backend/internal/services"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	if cfg.StorageDriver == "memory" {
		log.Fatal("worker needs a shared store, STORAGE_DRIVER=memory is not supported")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, "marketplace-worker")
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

	store, closeStore, err := db.OpenStore(ctx, cfg, false, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	metrics := telemetry.NewMetrics("marketplace_worker")
	publisher := events.NewRedisPublisher(rdb, log)
	dispatcher := notify.NewDispatcher(
		notify.NewDirectory(store),
		notify.Multi{notify.NewStoreNotifier(store), events.NewNotifier(publisher)},
		notify.Options{BatchSize: cfg.NotifyBatchSize, Concurrency: cfg.NotifyConcurrency, Timeout: cfg.NotifyTimeout},
		metrics, log,
	)
	workflowService := services.NewWorkflowService(store, dispatcher, publisher, metrics, log)

	system := models.Actor{ID: cfg.SystemActorID, Role: models.RoleAdmin}
	expiry := jobs.NewCampaignExpiry(store, workflowService, system, metrics, log)

	// Health and metrics
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	go func() {
		if err := app.Listen(fmt.Sprintf(":%s", cfg.WorkerPort)); err != nil {
			log.Error("worker http server stopped", zap.Error(err))
		}
	}()

	log.Info("worker started", zap.Duration("expiry_interval", cfg.CampaignExpiryInterval))

	expiryTicker := time.NewTicker(cfg.CampaignExpiryInterval)
	defer expiryTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expiryTicker.C:
			runCampaignExpiry(ctx, expiry, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			_ = app.Shutdown()
			dispatcher.Wait()
			return
		}
	}
}

func runCampaignExpiry(ctx context.Context, job *jobs.CampaignExpiry, log *zap.Logger) {
	start := time.Now()
	n, err := job.Run(ctx)
	if err != nil {
		log.Error("campaign expiry failed", zap.Int("closed", n), zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("campaign expiry done", zap.Int("closed", n), zap.Duration("took", time.Since(start)))
	}
}
