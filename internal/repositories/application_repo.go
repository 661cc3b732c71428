package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/jackc/pgx/v5"
)

type ApplicationRepo struct {
	db DBTX
}

const applicationColumns = `id, campaign_id, influencer_id, status, message, applied_at, updated_at`

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	if err := row.Scan(&a.ID, &a.CampaignID, &a.InfluencerID, &a.Status, &a.Message, &a.AppliedAt, &a.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (r *ApplicationRepo) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return scanApplication(r.db.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
}

func (r *ApplicationRepo) FindApplication(ctx context.Context, campaignID, influencerID uuid.UUID) (*models.Application, error) {
	return scanApplication(r.db.QueryRow(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE campaign_id = $1 AND influencer_id = $2
	`, campaignID, influencerID))
}

// InsertApplication relies on the (campaign_id, influencer_id) unique index;
// a concurrent duplicate fails with storage.ErrDuplicate.
func (r *ApplicationRepo) InsertApplication(ctx context.Context, a *models.Application) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO applications (campaign_id, influencer_id, status, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, applied_at, updated_at
	`, a.CampaignID, a.InfluencerID, a.Status, a.Message).Scan(&a.ID, &a.AppliedAt, &a.UpdatedAt)
	return mapError(err)
}

func (r *ApplicationRepo) UpdateApplication(ctx context.Context, a *models.Application, expected models.ApplicationStatus) error {
	err := r.db.QueryRow(ctx, `
		UPDATE applications SET status = $3, message = $4, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`, a.ID, expected, a.Status, a.Message).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return missOrStale(ctx, r.db, "applications", a.ID)
	}
	return mapError(err)
}

func (r *ApplicationRepo) ListApplications(ctx context.Context, f storage.ApplicationFilter) ([]models.Application, error) {
	var w where
	if f.CampaignID != nil {
		w.add("campaign_id = $%d", *f.CampaignID)
	}
	if f.InfluencerID != nil {
		w.add("influencer_id = $%d", *f.InfluencerID)
	}
	if len(f.Statuses) > 0 {
		w.add("status = ANY($%d)", textArray(f.Statuses))
	}
	query, args := w.build(`SELECT `+applicationColumns+` FROM applications`, "applied_at, id", f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	return apps, mapError(rows.Err())
}
