package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/jackc/pgx/v5"
)

type ResponseRepo struct {
	db DBTX
}

const responseColumns = `id, proposal_id, influencer_id, message, response_status, responded_at`

func scanResponse(row pgx.Row) (*models.AdvertiserProposalResponse, error) {
	var r models.AdvertiserProposalResponse
	if err := row.Scan(&r.ID, &r.ProposalID, &r.InfluencerID, &r.Message, &r.ResponseStatus, &r.RespondedAt); err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (r *ResponseRepo) GetResponse(ctx context.Context, proposalID uuid.UUID) (*models.AdvertiserProposalResponse, error) {
	return scanResponse(r.db.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM advertiser_proposal_responses WHERE proposal_id = $1`, proposalID))
}

func (r *ResponseRepo) GetResponseByID(ctx context.Context, id uuid.UUID) (*models.AdvertiserProposalResponse, error) {
	return scanResponse(r.db.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM advertiser_proposal_responses WHERE id = $1`, id))
}

// InsertResponse relies on the unique proposal_id index to refuse a second
// response to the same offer.
func (r *ResponseRepo) InsertResponse(ctx context.Context, resp *models.AdvertiserProposalResponse) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO advertiser_proposal_responses (proposal_id, influencer_id, message, response_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, responded_at
	`, resp.ProposalID, resp.InfluencerID, resp.Message, resp.ResponseStatus).Scan(&resp.ID, &resp.RespondedAt)
	return mapError(err)
}
