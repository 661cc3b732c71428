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

type AdvertiserProposalRepo struct {
	db DBTX
}

const advertiserProposalColumns = `id, advertiser_id, influencer_id, status, title, description, budget,
	starts_at, ends_at, created_at, updated_at`

func scanAdvertiserProposal(row pgx.Row) (*models.AdvertiserProposal, error) {
	var (
		p            models.AdvertiserProposal
		starts, ends *time.Time
	)
	err := row.Scan(&p.ID, &p.AdvertiserID, &p.InfluencerID, &p.Status, &p.Title, &p.Description, &p.Budget,
		&starts, &ends, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	p.CampaignPeriod = models.Period{StartsAt: fromNullTime(starts), EndsAt: fromNullTime(ends)}
	return &p, nil
}

func (r *AdvertiserProposalRepo) GetAdvertiserProposal(ctx context.Context, id uuid.UUID) (*models.AdvertiserProposal, error) {
	return scanAdvertiserProposal(r.db.QueryRow(ctx,
		`SELECT `+advertiserProposalColumns+` FROM advertiser_proposals WHERE id = $1`, id))
}

func (r *AdvertiserProposalRepo) InsertAdvertiserProposal(ctx context.Context, p *models.AdvertiserProposal) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO advertiser_proposals (advertiser_id, influencer_id, status, title, description, budget, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.AdvertiserID, p.InfluencerID, p.Status, p.Title, p.Description, p.Budget,
		nullTime(p.CampaignPeriod.StartsAt), nullTime(p.CampaignPeriod.EndsAt),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (r *AdvertiserProposalRepo) UpdateAdvertiserProposal(ctx context.Context, p *models.AdvertiserProposal, expected models.AdvertiserProposalStatus) error {
	err := r.db.QueryRow(ctx, `
		UPDATE advertiser_proposals SET status = $3, title = $4, description = $5, budget = $6,
		       starts_at = $7, ends_at = $8, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`, p.ID, expected, p.Status, p.Title, p.Description, p.Budget,
		nullTime(p.CampaignPeriod.StartsAt), nullTime(p.CampaignPeriod.EndsAt),
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return missOrStale(ctx, r.db, "advertiser_proposals", p.ID)
	}
	return mapError(err)
}

func (r *AdvertiserProposalRepo) ListAdvertiserProposals(ctx context.Context, f storage.AdvertiserProposalFilter) ([]models.AdvertiserProposal, error) {
	var w where
	if f.AdvertiserID != nil {
		w.add("advertiser_id = $%d", *f.AdvertiserID)
	}
	if f.InfluencerID != nil {
		w.add("influencer_id = $%d", *f.InfluencerID)
	}
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	query, args := w.build(`SELECT `+advertiserProposalColumns+` FROM advertiser_proposals`, "created_at DESC, id", f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.AdvertiserProposal
	for rows.Next() {
		p, err := scanAdvertiserProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, mapError(rows.Err())
}
