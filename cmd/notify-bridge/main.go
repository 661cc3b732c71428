package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/influencer-marketplace/backend/internal/config"
	"github.com/influencer-marketplace/backend/internal/db"
	"github.com/influencer-marketplace/backend/internal/events"
	"github.com/influencer-marketplace/backend/internal/services"
	"go.uber.org/zap"
)

// notify-bridge subscribes to notification events and forwards them to the
// external delivery service.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	delivery := services.NewDeliveryClient(cfg.DeliveryInternalURL, log)

	err = subscriber.Subscribe(ctx, events.ChannelNotification, func(event events.Event) {
		forward(ctx, delivery, event, cfg.NotifyTimeout, log)
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.String("channel", events.ChannelNotification), zap.Error(err))
	}

	log.Info("notify-bridge started", zap.String("delivery_url", cfg.DeliveryInternalURL))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}

func forward(ctx context.Context, delivery *services.DeliveryClient, event events.Event, timeout time.Duration, log *zap.Logger) {
	recipients := events.NotificationRecipients(event)
	if len(recipients) == 0 {
		return
	}
	text, _ := event.Payload["message"].(string)
	link, _ := event.Payload["link"].(string)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := delivery.Deliver(ctx, recipients, text, link)
	if err != nil {
		log.Warn("failed to forward notification", zap.Int("recipients", len(recipients)), zap.Error(err))
		return
	}
	log.Debug("notification forwarded", zap.Int("recipients", len(recipients)), zap.Int("accepted", res.Accepted))
}
