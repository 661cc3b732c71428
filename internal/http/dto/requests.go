package dto

import (
	"time"

	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/services"
)

type Period struct {
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

func (p *Period) Model() models.Period {
	var out models.Period
	if p == nil {
		return out
	}
	if p.StartsAt != nil {
		out.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		out.EndsAt = *p.EndsAt
	}
	return out
}

type CreateCampaignRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Budget      int64   `json:"budget"`
	Period      *Period `json:"period,omitempty"`
}

func (r CreateCampaignRequest) Input() services.CampaignInput {
	return services.CampaignInput{Title: r.Title, Description: r.Description, Budget: r.Budget, Period: r.Period.Model()}
}

type CreateProposalRequest struct {
	Title           string  `json:"title"`
	Description     *string `json:"description,omitempty"`
	DesiredBudget   int64   `json:"desired_budget"`
	AvailablePeriod *Period `json:"available_period,omitempty"`
	IsNegotiable    *bool   `json:"is_negotiable,omitempty"`
}

func (r CreateProposalRequest) Input() services.ProposalInput {
	in := services.ProposalInput{
		Title:           r.Title,
		Description:     r.Description,
		DesiredBudget:   r.DesiredBudget,
		AvailablePeriod: r.AvailablePeriod.Model(),
		IsNegotiable:    true,
	}
	if r.IsNegotiable != nil {
		in.IsNegotiable = *r.IsNegotiable
	}
	return in
}

type CreateAdvertiserProposalRequest struct {
	InfluencerID   string  `json:"influencer_id"`
	Title          string  `json:"title"`
	Description    *string `json:"description,omitempty"`
	Budget         int64   `json:"budget"`
	CampaignPeriod *Period `json:"campaign_period,omitempty"`
}

// ActionRequest is the body of POST .../actions/:action.
type ActionRequest struct {
	Message        *string `json:"message,omitempty"`
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	Budget         *int64  `json:"budget,omitempty"`
	Period         *Period `json:"period,omitempty"`
	IsNegotiable   *bool   `json:"is_negotiable,omitempty"`
	ResponseStatus string  `json:"response_status,omitempty"`
	Confirm        bool    `json:"confirm,omitempty"`
}

func (r ActionRequest) Payload() services.Payload {
	p := services.Payload{
		Message:        r.Message,
		Title:          r.Title,
		Description:    r.Description,
		Budget:         r.Budget,
		IsNegotiable:   r.IsNegotiable,
		ResponseStatus: models.ResponseStatus(r.ResponseStatus),
		Confirm:        r.Confirm,
	}
	if r.Period != nil {
		period := r.Period.Model()
		p.Period = &period
	}
	return p
}

// TransitionRequest is the generic inbound workflow request.
type TransitionRequest struct {
	EntityType string        `json:"entity_type"`
	EntityID   string        `json:"entity_id"`
	Action     string        `json:"action"`
	Payload    ActionRequest `json:"payload"`
}

type PingRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
}
