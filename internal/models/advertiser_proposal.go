package models

import (
	"time"

	"github.com/google/uuid"
)

type AdvertiserProposalStatus string

const (
	AdvertiserProposalStatusDraft     AdvertiserProposalStatus = "DRAFT"
	AdvertiserProposalStatusSent      AdvertiserProposalStatus = "SENT"
	AdvertiserProposalStatusAccepted  AdvertiserProposalStatus = "ACCEPTED"
	AdvertiserProposalStatusRejected  AdvertiserProposalStatus = "REJECTED"
	AdvertiserProposalStatusCompleted AdvertiserProposalStatus = "COMPLETED"
	AdvertiserProposalStatusCancelled AdvertiserProposalStatus = "CANCELLED"
)

var AdvertiserProposalMachine = NewMachine("advertiser_proposal", map[AdvertiserProposalStatus]map[Action]AdvertiserProposalStatus{
	AdvertiserProposalStatusDraft: {
		ActionEdit:   AdvertiserProposalStatusDraft,
		ActionSend:   AdvertiserProposalStatusSent,
		ActionCancel: AdvertiserProposalStatusCancelled,
	},
	AdvertiserProposalStatusSent: {
		ActionAccept: AdvertiserProposalStatusAccepted,
		ActionReject: AdvertiserProposalStatusRejected,
		ActionCancel: AdvertiserProposalStatusCancelled,
	},
	AdvertiserProposalStatusAccepted: {
		ActionComplete: AdvertiserProposalStatusCompleted,
	},
	AdvertiserProposalStatusRejected:  {},
	AdvertiserProposalStatusCompleted: {},
	AdvertiserProposalStatusCancelled: {},
}, AdvertiserProposalStatusRejected, AdvertiserProposalStatusCompleted, AdvertiserProposalStatusCancelled)

func (s AdvertiserProposalStatus) Valid() bool { return AdvertiserProposalMachine.Knows(s) }

// AdvertiserProposal is a direct offer from an advertiser to one influencer.
type AdvertiserProposal struct {
	ID             uuid.UUID                `json:"id"`
	AdvertiserID   uuid.UUID                `json:"advertiser_id"`
	InfluencerID   uuid.UUID                `json:"influencer_id"`
	Status         AdvertiserProposalStatus `json:"status"`
	Title          string                   `json:"title"`
	Description    *string                  `json:"description,omitempty"`
	Budget         int64                    `json:"budget"`
	CampaignPeriod Period                   `json:"campaign_period"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

func (p *AdvertiserProposal) Ref() EntityRef {
	return EntityRef{Type: EntityAdvertiserProposal, ID: p.ID}
}
func (p *AdvertiserProposal) CurrentStatus() string { return string(p.Status) }

type ResponseStatus string

const (
	ResponseStatusAccepted ResponseStatus = "ACCEPTED"
	ResponseStatusRejected ResponseStatus = "REJECTED"
)

func (s ResponseStatus) Valid() bool {
	return s == ResponseStatusAccepted || s == ResponseStatusRejected
}

// ParentAction is the advertiser proposal action a response drives.
func (s ResponseStatus) ParentAction() (Action, bool) {
	switch s {
	case ResponseStatusAccepted:
		return ActionAccept, true
	case ResponseStatusRejected:
		return ActionReject, true
	default:
		return "", false
	}
}

// AdvertiserProposalResponse is the influencer's reply to a SENT advertiser proposal.
type AdvertiserProposalResponse struct {
	ID             uuid.UUID      `json:"id"`
	ProposalID     uuid.UUID      `json:"proposal_id"`
	InfluencerID   uuid.UUID      `json:"influencer_id"`
	Message        string         `json:"message"`
	ResponseStatus ResponseStatus `json:"response_status"`
	RespondedAt    time.Time      `json:"responded_at"`
}

func (r *AdvertiserProposalResponse) Ref() EntityRef {
	return EntityRef{Type: EntityAdvertiserProposalResponse, ID: r.ID}
}
func (r *AdvertiserProposalResponse) CurrentStatus() string { return string(r.ResponseStatus) }
