package models

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

// Campaign statuses
const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusPublished CampaignStatus = "PUBLISHED"
	CampaignStatusClosed    CampaignStatus = "CLOSED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
)

// CampaignMachine is the campaign lifecycle. CANCELLED is terminal except for
// the explicit republish action.
var CampaignMachine = NewMachine("campaign", map[CampaignStatus]map[Action]CampaignStatus{
	CampaignStatusDraft: {
		ActionEdit:    CampaignStatusDraft,
		ActionPublish: CampaignStatusPublished,
		ActionCancel:  CampaignStatusCancelled,
	},
	CampaignStatusPublished: {
		ActionEdit:   CampaignStatusPublished,
		ActionClose:  CampaignStatusClosed,
		ActionCancel: CampaignStatusCancelled,
	},
	CampaignStatusClosed: {
		ActionComplete: CampaignStatusCompleted,
		ActionCancel:   CampaignStatusCancelled,
	},
	CampaignStatusCancelled: {
		ActionRepublish: CampaignStatusPublished,
	},
	CampaignStatusCompleted: {},
}, CampaignStatusCompleted, CampaignStatusCancelled)

func (s CampaignStatus) Valid() bool { return CampaignMachine.Knows(s) }

// Period is an inclusive time window.
type Period struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

func (p Period) Valid() bool {
	return p.StartsAt.IsZero() || p.EndsAt.IsZero() || !p.EndsAt.Before(p.StartsAt)
}

type Campaign struct {
	ID           uuid.UUID      `json:"id"`
	AdvertiserID uuid.UUID      `json:"advertiser_id"`
	Status       CampaignStatus `json:"status"`
	Title        string         `json:"title"`
	Description  *string        `json:"description,omitempty"`
	Budget       int64          `json:"budget"` // minor currency units
	Period       Period         `json:"period"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (c *Campaign) Ref() EntityRef { return EntityRef{Type: EntityCampaign, ID: c.ID} }
func (c *Campaign) CurrentStatus() string { return string(c.Status) }

// AcceptsApplications reports whether influencers may apply right now.
func (c *Campaign) AcceptsApplications() bool {
	return c.Status == CampaignStatusPublished
}
