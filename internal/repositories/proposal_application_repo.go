package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/jackc/pgx/v5"
)

type ProposalApplicationRepo struct {
	db DBTX
}

const proposalApplicationColumns = `id, proposal_id, advertiser_id, status, message, applied_at, updated_at`

func scanProposalApplication(row pgx.Row) (*models.ProposalApplication, error) {
	var a models.ProposalApplication
	if err := row.Scan(&a.ID, &a.ProposalID, &a.AdvertiserID, &a.Status, &a.Message, &a.AppliedAt, &a.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (r *ProposalApplicationRepo) GetProposalApplication(ctx context.Context, id uuid.UUID) (*models.ProposalApplication, error) {
	return scanProposalApplication(r.db.QueryRow(ctx,
		`SELECT `+proposalApplicationColumns+` FROM proposal_applications WHERE id = $1`, id))
}

func (r *ProposalApplicationRepo) FindProposalApplication(ctx context.Context, proposalID, advertiserID uuid.UUID) (*models.ProposalApplication, error) {
	return scanProposalApplication(r.db.QueryRow(ctx, `
		SELECT `+proposalApplicationColumns+` FROM proposal_applications
		WHERE proposal_id = $1 AND advertiser_id = $2
	`, proposalID, advertiserID))
}

func (r *ProposalApplicationRepo) InsertProposalApplication(ctx context.Context, a *models.ProposalApplication) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO proposal_applications (proposal_id, advertiser_id, status, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, applied_at, updated_at
	`, a.ProposalID, a.AdvertiserID, a.Status, a.Message).Scan(&a.ID, &a.AppliedAt, &a.UpdatedAt)
	return mapError(err)
}

func (r *ProposalApplicationRepo) UpdateProposalApplication(ctx context.Context, a *models.ProposalApplication, expected models.ApplicationStatus) error {
	err := r.db.QueryRow(ctx, `
		UPDATE proposal_applications SET status = $3, message = $4, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`, a.ID, expected, a.Status, a.Message).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return missOrStale(ctx, r.db, "proposal_applications", a.ID)
	}
	return mapError(err)
}

func (r *ProposalApplicationRepo) ListProposalApplications(ctx context.Context, f storage.ProposalApplicationFilter) ([]models.ProposalApplication, error) {
	var w where
	if f.ProposalID != nil {
		w.add("proposal_id = $%d", *f.ProposalID)
	}
	if f.AdvertiserID != nil {
		w.add("advertiser_id = $%d", *f.AdvertiserID)
	}
	if len(f.Statuses) > 0 {
		w.add("status = ANY($%d)", textArray(f.Statuses))
	}
	query, args := w.build(`SELECT `+proposalApplicationColumns+` FROM proposal_applications`, "applied_at, id", f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.ProposalApplication
	for rows.Next() {
		a, err := scanProposalApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, mapError(rows.Err())
}
