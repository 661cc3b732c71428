package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/jackc/pgx/v5"
)

type CampaignRepo struct {
	db DBTX
}

const campaignColumns = `id, advertiser_id, status, title, description, budget, starts_at, ends_at, created_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var (
		c            models.Campaign
		starts, ends *time.Time
	)
	err := row.Scan(&c.ID, &c.AdvertiserID, &c.Status, &c.Title, &c.Description,
		&c.Budget, &starts, &ends, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	c.Period = models.Period{StartsAt: fromNullTime(starts), EndsAt: fromNullTime(ends)}
	return &c, nil
}

func (r *CampaignRepo) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return scanCampaign(r.db.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

func (r *CampaignRepo) GetCampaignForShare(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return scanCampaign(r.db.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR SHARE`, id))
}

func (r *CampaignRepo) InsertCampaign(ctx context.Context, c *models.Campaign) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO campaigns (advertiser_id, status, title, description, budget, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, c.AdvertiserID, c.Status, c.Title, c.Description, c.Budget,
		nullTime(c.Period.StartsAt), nullTime(c.Period.EndsAt),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err)
}

func (r *CampaignRepo) UpdateCampaign(ctx context.Context, c *models.Campaign, expected models.CampaignStatus) error {
	err := r.db.QueryRow(ctx, `
		UPDATE campaigns SET status = $3, title = $4, description = $5, budget = $6,
		       starts_at = $7, ends_at = $8, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`, c.ID, expected, c.Status, c.Title, c.Description, c.Budget,
		nullTime(c.Period.StartsAt), nullTime(c.Period.EndsAt),
	).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return missOrStale(ctx, r.db, "campaigns", c.ID)
	}
	return mapError(err)
}

func (r *CampaignRepo) ListCampaigns(ctx context.Context, f storage.CampaignFilter) ([]models.Campaign, error) {
	var w where
	if f.AdvertiserID != nil {
		w.add("advertiser_id = $%d", *f.AdvertiserID)
	}
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	if f.EndedBefore != nil {
		w.add("ends_at < $%d", *f.EndedBefore)
	}
	query, args := w.build(`SELECT `+campaignColumns+` FROM campaigns`, "created_at DESC, id", f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, mapError(rows.Err())
}
