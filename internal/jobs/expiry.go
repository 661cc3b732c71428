// Package jobs holds the periodic work run by cmd/worker.
package jobs

import (
	"context"
	"time"

	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/services"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"go.uber.org/zap"
)

const expiryBatch = 100

// Transitioner is the part of the workflow service the jobs drive.
type Transitioner interface {
	Execute(ctx context.Context, req services.TransitionRequest) (models.Entity, error)
}

// CampaignExpiry closes published campaigns whose period has ended. Closing
// goes through the workflow so holders are notified as for a manual close.
type CampaignExpiry struct {
	store    storage.Store
	workflow Transitioner
	actor    models.Actor
	metrics  *telemetry.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewCampaignExpiry(store storage.Store, workflow Transitioner, actor models.Actor, metrics *telemetry.Metrics, log *zap.Logger) *CampaignExpiry {
	return &CampaignExpiry{store: store, workflow: workflow, actor: actor, metrics: metrics, log: log, now: time.Now}
}

// Run closes every expired campaign and returns how many it closed.
func (j *CampaignExpiry) Run(ctx context.Context) (int, error) {
	now := j.now()
	status := models.CampaignStatusPublished
	closed, skipped := 0, 0

	for {
		var batch []models.Campaign
		err := j.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
			var err error
			batch, err = q.ListCampaigns(ctx, storage.CampaignFilter{
				Status:      &status,
				EndedBefore: &now,
				Limit:       expiryBatch,
				Offset:      skipped,
			})
			return err
		})
		if err != nil {
			return closed, err
		}

		for _, c := range batch {
			_, err := j.workflow.Execute(ctx, services.TransitionRequest{
				Actor:  j.actor,
				Entity: c.Ref(),
				Action: models.ActionClose,
			})
			switch {
			case err == nil:
				closed++
				j.metrics.RecordExpiredCampaign()
				j.log.Info("campaign expired", zap.String("campaign_id", c.ID.String()), zap.Time("ends_at", c.Period.EndsAt))
			case services.KindOf(err) == services.KindConflict || services.KindOf(err) == services.KindInvalidTransition:
				// closed by its owner meanwhile
			default:
				skipped++
				j.log.Error("failed to expire campaign", zap.String("campaign_id", c.ID.String()), zap.Error(err))
			}
		}

		if len(batch) < expiryBatch || ctx.Err() != nil {
			return closed, ctx.Err()
		}
	}
}
