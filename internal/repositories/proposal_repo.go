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

type ProposalRepo struct {
	db DBTX
}

const proposalColumns = `id, influencer_id, status, title, description, desired_budget,
	available_from, available_to, is_negotiable, created_at, updated_at`

func scanProposal(row pgx.Row) (*models.Proposal, error) {
	var (
		p        models.Proposal
		from, to *time.Time
	)
	err := row.Scan(&p.ID, &p.InfluencerID, &p.Status, &p.Title, &p.Description, &p.DesiredBudget,
		&from, &to, &p.IsNegotiable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	p.AvailablePeriod = models.Period{StartsAt: fromNullTime(from), EndsAt: fromNullTime(to)}
	return &p, nil
}

func (r *ProposalRepo) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return scanProposal(r.db.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
}

func (r *ProposalRepo) GetProposalForShare(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return scanProposal(r.db.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR SHARE`, id))
}

func (r *ProposalRepo) InsertProposal(ctx context.Context, p *models.Proposal) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO proposals (influencer_id, status, title, description, desired_budget,
		                       available_from, available_to, is_negotiable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.InfluencerID, p.Status, p.Title, p.Description, p.DesiredBudget,
		nullTime(p.AvailablePeriod.StartsAt), nullTime(p.AvailablePeriod.EndsAt), p.IsNegotiable,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (r *ProposalRepo) UpdateProposal(ctx context.Context, p *models.Proposal, expected models.ProposalStatus) error {
	err := r.db.QueryRow(ctx, `
		UPDATE proposals SET status = $3, title = $4, description = $5, desired_budget = $6,
		       available_from = $7, available_to = $8, is_negotiable = $9, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`, p.ID, expected, p.Status, p.Title, p.Description, p.DesiredBudget,
		nullTime(p.AvailablePeriod.StartsAt), nullTime(p.AvailablePeriod.EndsAt), p.IsNegotiable,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return missOrStale(ctx, r.db, "proposals", p.ID)
	}
	return mapError(err)
}

func (r *ProposalRepo) ListProposals(ctx context.Context, f storage.ProposalFilter) ([]models.Proposal, error) {
	var w where
	if f.InfluencerID != nil {
		w.add("influencer_id = $%d", *f.InfluencerID)
	}
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	query, args := w.build(`SELECT `+proposalColumns+` FROM proposals`, "created_at DESC, id", f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, mapError(rows.Err())
}
