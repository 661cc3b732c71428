// Package notify turns committed workflow transitions into notifications.
//
// Planning is pure: Plan maps one Transition to the notices it produces.
// Resolving audiences and delivering messages happen afterwards in the
// Dispatcher, outside the transaction that made the change.
package notify

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
)

// Transition describes one committed state change. From is empty when the
// action created the entity.
type Transition struct {
	Entity models.EntityRef
	Parent *models.EntityRef // campaign or proposal of an application
	Action models.Action
	From   string
	To     string
	Actor  models.Actor

	OwnerID   uuid.UUID // owner of the entity, or of its parent for applications
	SubjectID uuid.UUID // applicant, or addressed influencer
	Title     string
}

type AudienceKind int

const (
	AudienceUsers AudienceKind = iota
	AudienceRole
	AudienceCampaignApplicants
	AudienceProposalApplicants
)

// Audience is a recipient set that may need resolving against the store.
type Audience struct {
	Kind     AudienceKind
	Users    []uuid.UUID
	Role     models.Role
	ParentID uuid.UUID
	Statuses []models.ApplicationStatus
}

func users(ids ...uuid.UUID) Audience {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			out = append(out, id)
		}
	}
	return Audience{Kind: AudienceUsers, Users: out}
}

func role(r models.Role) Audience { return Audience{Kind: AudienceRole, Role: r} }

func campaignApplicants(id uuid.UUID, statuses ...models.ApplicationStatus) Audience {
	return Audience{Kind: AudienceCampaignApplicants, ParentID: id, Statuses: statuses}
}

func proposalApplicants(id uuid.UUID, statuses ...models.ApplicationStatus) Audience {
	return Audience{Kind: AudienceProposalApplicants, ParentID: id, Statuses: statuses}
}

// Notice is one message addressed to an audience.
type Notice struct {
	Audience Audience
	Message  string
	Link     string
	Entity   models.EntityRef
}

// Message is what a Notifier delivers to each recipient.
type Message struct {
	Text   string
	Link   string
	Entity models.EntityRef
}

// Plan returns the notices a transition produces. Transitions with no rule
// produce nothing.
func Plan(t Transition) []Notice {
	var out []Notice
	link := Link(t.Entity)
	if t.Entity.Type == models.EntityAdvertiserProposalResponse && t.Parent != nil {
		link = Link(*t.Parent)
	}
	add := func(a Audience, format string, args ...any) {
		if a.Kind == AudienceUsers && len(a.Users) == 0 {
			return
		}
		out = append(out, Notice{
			Audience: a,
			Message:  fmt.Sprintf(format, args...),
			Link:     link,
			Entity:   t.Entity,
		})
	}
	title := t.Title
	if title == "" {
		title = string(t.Entity.Type)
	}
	active := []models.ApplicationStatus{models.ApplicationStatusPending, models.ApplicationStatusAccepted}

	switch t.Entity.Type {
	case models.EntityCampaign:
		switch models.CampaignStatus(t.To) {
		case models.CampaignStatusPublished:
			if t.From != t.To {
				add(role(models.RoleInfluencer), "New campaign published: %s", title)
			}
		case models.CampaignStatusClosed:
			add(campaignApplicants(t.Entity.ID, active...), "Campaign %q is closed", title)
		case models.CampaignStatusCancelled:
			add(campaignApplicants(t.Entity.ID, active...), "Campaign %q was cancelled", title)
		case models.CampaignStatusCompleted:
			add(campaignApplicants(t.Entity.ID, models.ApplicationStatusAccepted), "Campaign %q is completed", title)
		}

	case models.EntityApplication:
		switch {
		case t.From == "":
			add(users(t.OwnerID), "New application to %q", title)
		case t.To == string(models.ApplicationStatusAccepted):
			add(users(t.SubjectID), "Your application to %q was accepted", title)
		case t.To == string(models.ApplicationStatusRejected):
			add(users(t.SubjectID), "Your application to %q was rejected", title)
		case t.To == string(models.ApplicationStatusCompleted):
			add(users(t.SubjectID), "Your collaboration on %q is completed", title)
		case t.To == string(models.ApplicationStatusCancelled):
			add(users(t.OwnerID), "An application to %q was withdrawn", title)
		}

	case models.EntityProposal:
		switch models.ProposalStatus(t.To) {
		case models.ProposalStatusPublished:
			if t.From != t.To {
				add(role(models.RoleAdvertiser), "New influencer proposal: %s", title)
			}
		case models.ProposalStatusClosed:
			add(proposalApplicants(t.Entity.ID, active...), "Proposal %q is closed", title)
		case models.ProposalStatusRejected:
			add(users(t.OwnerID), "Your proposal %q was rejected by moderation", title)
		}

	case models.EntityProposalApplication:
		switch {
		case t.From == "":
			add(users(t.OwnerID), "An advertiser applied to your proposal %q", title)
		case t.To == string(models.ApplicationStatusAccepted):
			add(users(t.SubjectID), "Your application to proposal %q was accepted", title)
		case t.To == string(models.ApplicationStatusRejected):
			add(users(t.SubjectID), "Your application to proposal %q was rejected", title)
		case t.To == string(models.ApplicationStatusCompleted):
			add(users(t.SubjectID), "Your collaboration on proposal %q is completed", title)
		case t.To == string(models.ApplicationStatusCancelled):
			add(users(t.OwnerID), "An application to your proposal %q was withdrawn", title)
		}

	case models.EntityAdvertiserProposal:
		switch models.AdvertiserProposalStatus(t.To) {
		case models.AdvertiserProposalStatusSent:
			add(users(t.SubjectID), "You received a new offer: %s", title)
		case models.AdvertiserProposalStatusCancelled:
			if t.From == string(models.AdvertiserProposalStatusSent) {
				add(users(t.SubjectID), "The offer %q was withdrawn", title)
			}
		case models.AdvertiserProposalStatusCompleted:
			add(users(t.SubjectID), "The offer %q is completed", title)
		case models.AdvertiserProposalStatusAccepted, models.AdvertiserProposalStatusRejected:
			// respond notifies through the response record
			if t.Action != models.ActionRespond {
				outcome := strings.ToLower(t.To)
				add(users(t.OwnerID), "Your offer %q was marked %s", title, outcome)
				add(users(t.SubjectID), "The offer %q was marked %s", title, outcome)
			}
		}

	case models.EntityAdvertiserProposalResponse:
		switch models.ResponseStatus(t.To) {
		case models.ResponseStatusAccepted:
			add(users(t.OwnerID), "Your offer %q was accepted", title)
		case models.ResponseStatusRejected:
			add(users(t.OwnerID), "Your offer %q was declined", title)
		}
	}
	return out
}

var linkPrefixes = map[models.EntityType]string{
	models.EntityCampaign:            "/campaigns/",
	models.EntityApplication:         "/applications/",
	models.EntityProposal:            "/proposals/",
	models.EntityProposalApplication: "/proposal-applications/",
	models.EntityAdvertiserProposal:  "/advertiser-proposals/",
}

// Link is the in-app path of an entity, or "" for types without a page.
func Link(ref models.EntityRef) string {
	prefix, ok := linkPrefixes[ref.Type]
	if !ok {
		return ""
	}
	return prefix + ref.ID.String()
}
