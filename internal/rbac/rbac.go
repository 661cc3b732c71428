package rbac

import (
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
)

// Reason explains a Deny decision.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonInsufficientPermission Reason = "insufficient permission"
	ReasonAlreadyApplied         Reason = "already applied"
	ReasonNotAccepting           Reason = "not accepting applications"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }
func (d Decision) Denied() bool { return !d.Allowed }
func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny: " + string(d.Reason)
}

// Target is what the guard needs to know about the entity being acted on.
// For applications OwnerID is the owner of the parent campaign or proposal and
// CreatorID is the applicant.
type Target struct {
	Type           models.EntityType
	Status         string
	OwnerID        uuid.UUID
	CreatorID      uuid.UUID
	RecipientID    uuid.UUID
	AlreadyApplied bool // the actor holds an application on this campaign or proposal
}

// Actions only the owner may perform, per entity type.
var ownerActions = map[models.EntityType][]models.Action{
	models.EntityCampaign: {
		models.ActionView, models.ActionEdit, models.ActionPublish, models.ActionClose,
		models.ActionComplete, models.ActionCancel, models.ActionRepublish,
	},
	models.EntityApplication: {
		models.ActionView, models.ActionAccept, models.ActionReject, models.ActionComplete,
	},
	models.EntityProposal: {
		models.ActionView, models.ActionEdit, models.ActionPublish, models.ActionClose,
	},
	models.EntityProposalApplication: {
		models.ActionView, models.ActionAccept, models.ActionReject, models.ActionComplete,
	},
	models.EntityAdvertiserProposal: {
		models.ActionView, models.ActionEdit, models.ActionSend, models.ActionCancel, models.ActionComplete,
	},
	models.EntityAdvertiserProposalResponse: {
		models.ActionView,
	},
}

// Actions reserved to whoever created an application.
var creatorActions = map[models.EntityType][]models.Action{
	models.EntityApplication:         {models.ActionView, models.ActionCancel},
	models.EntityProposalApplication: {models.ActionView, models.ActionCancel},
}

// Actions reserved to the influencer an advertiser proposal is addressed to.
var recipientActions = map[models.EntityType][]models.Action{
	models.EntityAdvertiserProposal:         {models.ActionView, models.ActionRespond},
	models.EntityAdvertiserProposalResponse: {models.ActionView},
}

// businessActions create records on behalf of a business role; admins may not
// perform them for a role they do not hold.
var businessActions = []models.Action{models.ActionApply, models.ActionRespond}

// Authorize is the single authorization decision for every workflow action.
// Rules are evaluated in order and the first match wins.
func Authorize(actor models.Actor, t Target, action models.Action) Decision {
	if actor.Role == models.RoleAdmin && !contains(businessActions, action) {
		return allow()
	}

	if actor.ID != uuid.Nil {
		if t.OwnerID == actor.ID && contains(ownerActions[t.Type], action) {
			return allow()
		}
		if t.CreatorID == actor.ID && contains(creatorActions[t.Type], action) {
			return allow()
		}
		if t.RecipientID == actor.ID && actor.Role == models.RoleInfluencer && !unsent(t) && contains(recipientActions[t.Type], action) {
			return allow()
		}
	}

	if t.OwnerID != actor.ID {
		switch {
		case actor.Role == models.RoleInfluencer && t.Type == models.EntityCampaign:
			return applyDecision(t, action, string(models.CampaignStatusPublished))
		case actor.Role == models.RoleAdvertiser && t.Type == models.EntityProposal:
			return applyDecision(t, action, string(models.ProposalStatusPublished))
		}
	}

	return deny(ReasonInsufficientPermission)
}

// unsent reports an advertiser proposal still in DRAFT; its recipient cannot
// see it yet.
func unsent(t Target) bool {
	return t.Type == models.EntityAdvertiserProposal && t.Status == string(models.AdvertiserProposalStatusDraft)
}

func applyDecision(t Target, action models.Action, published string) Decision {
	switch action {
	case models.ActionView:
		// holders keep access after the parent leaves PUBLISHED
		if t.Status == published || t.AlreadyApplied {
			return allow()
		}
	case models.ActionApply:
		if t.Status != published {
			return deny(ReasonNotAccepting)
		}
		if t.AlreadyApplied {
			return deny(ReasonAlreadyApplied)
		}
		return allow()
	}
	return deny(ReasonInsufficientPermission)
}

// CanCreate reports whether a role may author a new record of the given type.
func CanCreate(role models.Role, t models.EntityType) bool {
	switch t {
	case models.EntityCampaign, models.EntityAdvertiserProposal:
		return role == models.RoleAdvertiser
	case models.EntityProposal:
		return role == models.RoleInfluencer
	default:
		return false
	}
}

func contains(actions []models.Action, a models.Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
