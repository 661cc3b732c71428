package models

import (
	"time"

	"github.com/google/uuid"
)

type ProposalStatus string

const (
	ProposalStatusDraft     ProposalStatus = "DRAFT"
	ProposalStatusPublished ProposalStatus = "PUBLISHED"
	ProposalStatusClosed    ProposalStatus = "CLOSED"
	ProposalStatusRejected  ProposalStatus = "REJECTED"
)

// ProposalMachine: reject is a moderation edge reserved to admins by the guard.
var ProposalMachine = NewMachine("proposal", map[ProposalStatus]map[Action]ProposalStatus{
	ProposalStatusDraft: {
		ActionEdit:    ProposalStatusDraft,
		ActionPublish: ProposalStatusPublished,
		ActionReject:  ProposalStatusRejected,
	},
	ProposalStatusPublished: {
		ActionEdit:   ProposalStatusPublished,
		ActionClose:  ProposalStatusClosed,
		ActionReject: ProposalStatusRejected,
	},
	ProposalStatusClosed:   {},
	ProposalStatusRejected: {},
}, ProposalStatusClosed, ProposalStatusRejected)

func (s ProposalStatus) Valid() bool { return ProposalMachine.Knows(s) }

// Proposal is an influencer-authored collaboration offer.
type Proposal struct {
	ID              uuid.UUID      `json:"id"`
	InfluencerID    uuid.UUID      `json:"influencer_id"`
	Status          ProposalStatus `json:"status"`
	Title           string         `json:"title"`
	Description     *string        `json:"description,omitempty"`
	DesiredBudget   int64          `json:"desired_budget"`
	AvailablePeriod Period         `json:"available_period"`
	IsNegotiable    bool           `json:"is_negotiable"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (p *Proposal) Ref() EntityRef { return EntityRef{Type: EntityProposal, ID: p.ID} }
func (p *Proposal) CurrentStatus() string { return string(p.Status) }

func (p *Proposal) AcceptsApplications() bool {
	return p.Status == ProposalStatusPublished
}

// ProposalApplication is an advertiser's request to take up a proposal.
// It follows ApplicationMachine; at most one exists per (ProposalID, AdvertiserID).
type ProposalApplication struct {
	ID           uuid.UUID         `json:"id"`
	ProposalID   uuid.UUID         `json:"proposal_id"`
	AdvertiserID uuid.UUID         `json:"advertiser_id"`
	Status       ApplicationStatus `json:"status"`
	Message      string            `json:"message"`
	AppliedAt    time.Time         `json:"applied_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (a *ProposalApplication) Ref() EntityRef {
	return EntityRef{Type: EntityProposalApplication, ID: a.ID}
}
func (a *ProposalApplication) CurrentStatus() string { return string(a.Status) }
