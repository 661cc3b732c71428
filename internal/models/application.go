package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is shared by campaign applications and proposal applications.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusAccepted  ApplicationStatus = "ACCEPTED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusCompleted ApplicationStatus = "COMPLETED"
	ApplicationStatusCancelled ApplicationStatus = "CANCELLED"
)

var ApplicationMachine = NewMachine("application", map[ApplicationStatus]map[Action]ApplicationStatus{
	ApplicationStatusPending: {
		ActionAccept: ApplicationStatusAccepted,
		ActionReject: ApplicationStatusRejected,
		ActionCancel: ApplicationStatusCancelled,
	},
	ApplicationStatusAccepted: {
		ActionComplete: ApplicationStatusCompleted,
	},
	ApplicationStatusRejected:  {},
	ApplicationStatusCompleted: {},
	ApplicationStatusCancelled: {},
}, ApplicationStatusRejected, ApplicationStatusCompleted, ApplicationStatusCancelled)

func (s ApplicationStatus) Valid() bool { return ApplicationMachine.Knows(s) }

// ActiveApplicationStatuses are the statuses whose holders still care about
// what happens to the parent campaign or proposal.
var ActiveApplicationStatuses = []ApplicationStatus{ApplicationStatusPending, ApplicationStatusAccepted}

// Application is an influencer's request to join a campaign.
// At most one exists per (CampaignID, InfluencerID).
type Application struct {
	ID           uuid.UUID         `json:"id"`
	CampaignID   uuid.UUID         `json:"campaign_id"`
	InfluencerID uuid.UUID         `json:"influencer_id"`
	Status       ApplicationStatus `json:"status"`
	Message      string            `json:"message"`
	AppliedAt    time.Time         `json:"applied_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (a *Application) Ref() EntityRef { return EntityRef{Type: EntityApplication, ID: a.ID} }
func (a *Application) CurrentStatus() string { return string(a.Status) }
