package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/storage"
)

// Resolver expands an audience into recipient ids, one page at a time.
type Resolver interface {
	Resolve(ctx context.Context, a Audience, batch int, fn func(ids []uuid.UUID) error) error
}

// Directory resolves audiences against the store.
type Directory struct {
	store storage.Store
}

func NewDirectory(store storage.Store) *Directory {
	return &Directory{store: store}
}

func (d *Directory) Resolve(ctx context.Context, a Audience, batch int, fn func(ids []uuid.UUID) error) error {
	// store pages are capped at 100 rows
	if batch <= 0 || batch > 100 {
		batch = 100
	}

	switch a.Kind {
	case AudienceUsers:
		for start := 0; start < len(a.Users); start += batch {
			end := min(start+batch, len(a.Users))
			if err := fn(a.Users[start:end]); err != nil {
				return err
			}
		}
		return nil

	case AudienceRole:
		after := uuid.Nil
		for {
			var ids []uuid.UUID
			err := d.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
				var err error
				ids, err = q.ListUserIDsByRole(ctx, a.Role, after, batch)
				return err
			})
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return nil
			}
			if err := fn(ids); err != nil {
				return err
			}
			if len(ids) < batch {
				return nil
			}
			after = ids[len(ids)-1]
		}

	case AudienceCampaignApplicants, AudienceProposalApplicants:
		for offset := 0; ; offset += batch {
			var ids []uuid.UUID
			err := d.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
				var err error
				ids, err = d.applicants(ctx, q, a, batch, offset)
				return err
			})
			if err != nil {
				return err
			}
			if len(ids) > 0 {
				if err := fn(ids); err != nil {
					return err
				}
			}
			if len(ids) < batch {
				return nil
			}
		}

	default:
		return fmt.Errorf("unknown audience kind %d", a.Kind)
	}
}

func (d *Directory) applicants(ctx context.Context, q storage.Queries, a Audience, limit, offset int) ([]uuid.UUID, error) {
	if a.Kind == AudienceCampaignApplicants {
		apps, err := q.ListApplications(ctx, storage.ApplicationFilter{
			CampaignID: &a.ParentID, Statuses: a.Statuses, Limit: limit, Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(apps))
		for i, app := range apps {
			ids[i] = app.InfluencerID
		}
		return ids, nil
	}

	apps, err := q.ListProposalApplications(ctx, storage.ProposalApplicationFilter{
		ProposalID: &a.ParentID, Statuses: a.Statuses, Limit: limit, Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(apps))
	for i, app := range apps {
		ids[i] = app.AdvertiserID
	}
	return ids, nil
}
