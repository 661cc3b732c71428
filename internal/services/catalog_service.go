package services

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/rbac"
	"github.com/influencer-marketplace/backend/internal/richtext"
	"github.com/influencer-marketplace/backend/internal/storage"
	"go.uber.org/zap"
)

// CatalogService creates records in DRAFT and serves every guarded read.
type CatalogService struct {
	store    storage.Store
	validate *validator.Validate
	log      *zap.Logger
}

func NewCatalogService(store storage.Store, log *zap.Logger) *CatalogService {
	return &CatalogService{store: store, validate: validator.New(), log: log}
}

type CampaignInput struct {
	Title       string        `validate:"required,max=200"`
	Description *string       `validate:"omitempty,max=5000"`
	Budget      int64         `validate:"gte=0"`
	Period      models.Period
}

type ProposalInput struct {
	Title           string  `validate:"required,max=200"`
	Description     *string `validate:"omitempty,max=5000"`
	DesiredBudget   int64   `validate:"gte=0"`
	AvailablePeriod models.Period
	IsNegotiable    bool
}

type AdvertiserProposalInput struct {
	InfluencerID   uuid.UUID `validate:"required"`
	Title          string    `validate:"required,max=200"`
	Description    *string   `validate:"omitempty,max=5000"`
	Budget         int64     `validate:"gte=0"`
	CampaignPeriod models.Period
}

func (s *CatalogService) checkCreate(actor models.Actor, t models.EntityType, input any, period models.Period) error {
	if actor.ID == uuid.Nil || !actor.Role.Valid() {
		return newError(KindUnauthenticated, "no resolvable actor")
	}
	if !rbac.CanCreate(actor.Role, t) {
		return newError(KindForbidden, "%s cannot create %s", strings.ToLower(string(actor.Role)), t)
	}
	if err := checkStruct(s.validate, input); err != nil {
		return err
	}
	if !period.Valid() {
		return newError(KindValidation, "period must start before it ends")
	}
	return nil
}

func (s *CatalogService) CreateCampaign(ctx context.Context, actor models.Actor, in CampaignInput) (*models.Campaign, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.checkCreate(actor, models.EntityCampaign, in, in.Period); err != nil {
		return nil, err
	}
	c := &models.Campaign{
		AdvertiserID: actor.ID,
		Status:       models.CampaignStatusDraft,
		Title:        in.Title,
		Description:  richtext.PlainTextPtr(in.Description),
		Budget:       in.Budget,
		Period:       in.Period,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		if err := q.InsertCampaign(ctx, c); err != nil {
			return err
		}
		return writeAudit(ctx, q, actor, c.Ref(), "create", "", string(c.Status))
	})
	if err != nil {
		return nil, fromStorage(err, "campaign", KindConflict)
	}
	s.log.Info("campaign created", zap.String("campaign_id", c.ID.String()), zap.String("advertiser_id", actor.ID.String()))
	return c, nil
}

func (s *CatalogService) CreateProposal(ctx context.Context, actor models.Actor, in ProposalInput) (*models.Proposal, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.checkCreate(actor, models.EntityProposal, in, in.AvailablePeriod); err != nil {
		return nil, err
	}
	p := &models.Proposal{
		InfluencerID:    actor.ID,
		Status:          models.ProposalStatusDraft,
		Title:           in.Title,
		Description:     richtext.PlainTextPtr(in.Description),
		DesiredBudget:   in.DesiredBudget,
		AvailablePeriod: in.AvailablePeriod,
		IsNegotiable:    in.IsNegotiable,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		if err := q.InsertProposal(ctx, p); err != nil {
			return err
		}
		return writeAudit(ctx, q, actor, p.Ref(), "create", "", string(p.Status))
	})
	if err != nil {
		return nil, fromStorage(err, "proposal", KindConflict)
	}
	s.log.Info("proposal created", zap.String("proposal_id", p.ID.String()), zap.String("influencer_id", actor.ID.String()))
	return p, nil
}

func (s *CatalogService) CreateAdvertiserProposal(ctx context.Context, actor models.Actor, in AdvertiserProposalInput) (*models.AdvertiserProposal, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.checkCreate(actor, models.EntityAdvertiserProposal, in, in.CampaignPeriod); err != nil {
		return nil, err
	}
	ap := &models.AdvertiserProposal{
		AdvertiserID:   actor.ID,
		InfluencerID:   in.InfluencerID,
		Status:         models.AdvertiserProposalStatusDraft,
		Title:          in.Title,
		Description:    richtext.PlainTextPtr(in.Description),
		Budget:         in.Budget,
		CampaignPeriod: in.CampaignPeriod,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		u, err := q.GetUser(ctx, in.InfluencerID)
		if ok, ferr := found(err); ferr != nil {
			return ferr
		} else if !ok || u.Role != models.RoleInfluencer {
			return newError(KindValidation, "recipient must be an influencer")
		}
		if err := q.InsertAdvertiserProposal(ctx, ap); err != nil {
			return err
		}
		return writeAudit(ctx, q, actor, ap.Ref(), "create", "", string(ap.Status))
	})
	if err != nil {
		return nil, fromStorage(err, "advertiser proposal", KindConflict)
	}
	s.log.Info("advertiser proposal created",
		zap.String("advertiser_proposal_id", ap.ID.String()),
		zap.String("influencer_id", ap.InfluencerID.String()),
	)
	return ap, nil
}

// view loads what the guard needs for ref inside q and checks the view action.
func view(ctx context.Context, q storage.Queries, actor models.Actor, ref models.EntityRef) (models.Entity, error) {
	var (
		entity models.Entity
		target rbac.Target
	)
	switch ref.Type {
	case models.EntityCampaign:
		c, err := q.GetCampaign(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		target = rbac.Target{Type: ref.Type, Status: string(c.Status), OwnerID: c.AdvertiserID}
		if actor.Role == models.RoleInfluencer && c.Status != models.CampaignStatusPublished {
			_, err := q.FindApplication(ctx, c.ID, actor.ID)
			if target.AlreadyApplied, err = found(err); err != nil {
				return nil, err
			}
		}
		entity = c
	case models.EntityApplication:
		a, err := q.GetApplication(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		c, err := q.GetCampaign(ctx, a.CampaignID)
		if err != nil {
			return nil, err
		}
		entity, target = a, rbac.Target{Type: ref.Type, Status: string(a.Status), OwnerID: c.AdvertiserID, CreatorID: a.InfluencerID}
	case models.EntityProposal:
		p, err := q.GetProposal(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		target = rbac.Target{Type: ref.Type, Status: string(p.Status), OwnerID: p.InfluencerID}
		if actor.Role == models.RoleAdvertiser && p.Status != models.ProposalStatusPublished {
			_, err := q.FindProposalApplication(ctx, p.ID, actor.ID)
			if target.AlreadyApplied, err = found(err); err != nil {
				return nil, err
			}
		}
		entity = p
	case models.EntityProposalApplication:
		a, err := q.GetProposalApplication(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		p, err := q.GetProposal(ctx, a.ProposalID)
		if err != nil {
			return nil, err
		}
		entity, target = a, rbac.Target{Type: ref.Type, Status: string(a.Status), OwnerID: p.InfluencerID, CreatorID: a.AdvertiserID}
	case models.EntityAdvertiserProposal:
		ap, err := q.GetAdvertiserProposal(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		entity, target = ap, rbac.Target{Type: ref.Type, Status: string(ap.Status), OwnerID: ap.AdvertiserID, RecipientID: ap.InfluencerID}
	case models.EntityAdvertiserProposalResponse:
		r, err := q.GetResponseByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		ap, err := q.GetAdvertiserProposal(ctx, r.ProposalID)
		if err != nil {
			return nil, err
		}
		entity, target = r, rbac.Target{Type: ref.Type, Status: string(r.ResponseStatus), OwnerID: ap.AdvertiserID, RecipientID: r.InfluencerID}
	default:
		return nil, newError(KindValidation, "unknown entity type %q", ref.Type)
	}
	if err := authorize(actor, target, models.ActionView); err != nil {
		return nil, err
	}
	return entity, nil
}

// Get returns any entity the actor may view.
func (s *CatalogService) Get(ctx context.Context, actor models.Actor, ref models.EntityRef) (models.Entity, error) {
	if actor.ID == uuid.Nil {
		return nil, newError(KindUnauthenticated, "no resolvable actor")
	}
	var entity models.Entity
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		var err error
		entity, err = view(ctx, q, actor, ref)
		return err
	})
	if err != nil {
		return nil, fromStorage(err, string(ref.Type), KindConflict)
	}
	return entity, nil
}

// GetResponse returns the reply attached to an advertiser proposal.
func (s *CatalogService) GetResponse(ctx context.Context, actor models.Actor, proposalID uuid.UUID) (*models.AdvertiserProposalResponse, error) {
	var resp *models.AdvertiserProposalResponse
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		if _, err := view(ctx, q, actor, models.EntityRef{Type: models.EntityAdvertiserProposal, ID: proposalID}); err != nil {
			return err
		}
		var err error
		resp, err = q.GetResponse(ctx, proposalID)
		return err
	})
	if err != nil {
		return nil, fromStorage(err, "response", KindConflict)
	}
	return resp, nil
}

// ListCampaigns shows advertisers their own campaigns, influencers the
// published ones and admins everything matching the filter.
func (s *CatalogService) ListCampaigns(ctx context.Context, actor models.Actor, f storage.CampaignFilter) ([]models.Campaign, error) {
	switch actor.Role {
	case models.RoleAdvertiser:
		f.AdvertiserID = &actor.ID
	case models.RoleInfluencer:
		published := models.CampaignStatusPublished
		f.Status = &published
		f.AdvertiserID = nil
	case models.RoleAdmin:
	default:
		return nil, newError(KindUnauthenticated, "no resolvable actor")
	}
	var out []models.Campaign
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		var err error
		out, err = q.ListCampaigns(ctx, f)
		return err
	})
	if err != nil {
		return nil, fromStorage(err, "campaigns", KindConflict)
	}
	return out, nil
}

func (s *CatalogService) ListProposals(ctx context.Context, actor models.Actor, f storage.ProposalFilter) ([]models.Proposal, error) {
	switch actor.Role {
	case models.RoleInfluencer:
		f.InfluencerID = &actor.ID
	case models.RoleAdvertiser:
		published := models.ProposalStatusPublished
		f.Status = &published
		f.InfluencerID = nil
	case models.RoleAdmin:
	default:
		return nil, newError(KindUnauthenticated, "no resolvable actor")
	}
	var out []models.Proposal
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		var err error
		out, err = q.ListProposals(ctx, f)
		return err
	})
	if err != nil {
		return nil, fromStorage(err, "proposals", KindConflict)
	}
	return out, nil
}

// ListAdvertiserProposals returns offers the actor sent or received. Drafts are
// never listed for the recipient.
func (s *CatalogService) ListAdvertiserProposals(ctx context.Context, actor models.Actor, f storage.AdvertiserProposalFilter) ([]models.AdvertiserProposal, error) {
	switch actor.Role {
	case models.RoleAdvertiser:
		f.AdvertiserID = &actor.ID
	case models.RoleInfluencer:
		f.InfluencerID = &actor.ID
		f.AdvertiserID = nil
	case models.RoleAdmin:
	default:
		return nil, newError(KindUnauthenticated, "no resolvable actor")
	}
	var out []models.AdvertiserProposal
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		var err error
		out, err = q.ListAdvertiserProposals(ctx, f)
		return err
	})
	if err != nil {
		return nil, fromStorage(err, "advertiser proposals", KindConflict)
	}
	if actor.Role == models.RoleInfluencer {
		visible := out[:0]
		for _, ap := range out {
			if ap.Status != models.AdvertiserProposalStatusDraft {
				visible = append(visible, ap)
			}
		}
		out = visible
	}
	return out, nil
}

// ListCampaignApplications is restricted to the campaign owner and admins.
func (s *CatalogService) ListCampaignApplications(ctx context.Context, actor models.Actor, campaignID uuid.UUID, statuses []models.ApplicationStatus, limit, offset int) ([]models.Application, error) {
	var out []models.Application
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		c, err := q.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin && c.AdvertiserID != actor.ID {
			return newError(KindForbidden, "%s", rbac.ReasonInsufficientPermission)
		}
		out, err = q.ListApplications(ctx, storage.ApplicationFilter{
			CampaignID: &campaignID, Statuses: statuses, Limit: limit, Offset: offset,
		})
		return err
	})
	if err != nil {
		return nil, fromStorage(err, "campaign", KindConflict)
	}
	return out, nil
}

func (s *CatalogService) ListProposalApplications(ctx context.Context, actor models.Actor, proposalID uuid.UUID, statuses []models.ApplicationStatus, limit, offset int) ([]models.ProposalApplication, error) {
	var out []models.ProposalApplication
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		p, err := q.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin && p.InfluencerID != actor.ID {
			return newError(KindForbidden, "%s", rbac.ReasonInsufficientPermission)
		}
		out, err = q.ListProposalApplications(ctx, storage.ProposalApplicationFilter{
			ProposalID: &proposalID, Statuses: statuses, Limit: limit, Offset: offset,
		})
		return err
	})
	if err != nil {
		return nil, fromStorage(err, "proposal", KindConflict)
	}
	return out, nil
}

// ListMyApplications returns the applications the actor created, to campaigns
// for influencers and to proposals for advertisers.
func (s *CatalogService) ListMyApplications(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Entity, error) {
	var out []models.Entity
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		switch actor.Role {
		case models.RoleInfluencer:
			apps, err := q.ListApplications(ctx, storage.ApplicationFilter{InfluencerID: &actor.ID, Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			for i := range apps {
				out = append(out, &apps[i])
			}
		case models.RoleAdvertiser:
			apps, err := q.ListProposalApplications(ctx, storage.ProposalApplicationFilter{AdvertiserID: &actor.ID, Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			for i := range apps {
				out = append(out, &apps[i])
			}
		default:
			return newError(KindForbidden, "only business roles have applications")
		}
		return nil
	})
	if err != nil {
		return nil, fromStorage(err, "applications", KindConflict)
	}
	return out, nil
}

// History returns the audit trail of an entity the actor may view.
func (s *CatalogService) History(ctx context.Context, actor models.Actor, ref models.EntityRef, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		if _, err := view(ctx, q, actor, ref); err != nil {
			return err
		}
		var err error
		out, err = q.ListAudit(ctx, ref, limit, offset)
		return err
	})
	if err != nil {
		return nil, fromStorage(err, string(ref.Type), KindConflict)
	}
	return out, nil
}
