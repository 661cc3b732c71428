package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/richtext"
)

// Payload carries the optional fields an action may need: a message for
// apply/respond, patch fields for edit, the response status for respond and
// the explicit confirmation republish requires.
type Payload struct {
	Message        *string               `json:"message,omitempty" validate:"omitempty,max=2000"`
	Title          *string               `json:"title,omitempty" validate:"omitempty,max=200"`
	Description    *string               `json:"description,omitempty" validate:"omitempty,max=5000"`
	Budget         *int64                `json:"budget,omitempty" validate:"omitempty,gte=0"`
	Period         *models.Period        `json:"period,omitempty"`
	IsNegotiable   *bool                 `json:"is_negotiable,omitempty"`
	ResponseStatus models.ResponseStatus `json:"response_status,omitempty" validate:"omitempty,oneof=ACCEPTED REJECTED"`
	Confirm        bool                  `json:"confirm,omitempty"`
}

func (p Payload) message() string {
	if p.Message == nil {
		return ""
	}
	return strings.TrimSpace(*p.Message)
}

func (p Payload) hasPatch() bool {
	return p.Title != nil || p.Description != nil || p.Budget != nil || p.Period != nil || p.IsNegotiable != nil
}

// TransitionRequest is the inbound request of the engine.
type TransitionRequest struct {
	Actor   models.Actor
	Entity  models.EntityRef
	Action  models.Action
	Payload Payload
}

// checkStruct runs tag validation and converts failures to validation_failed.
func checkStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return newError(KindValidation, "%s", strings.Join(parts, "; "))
	}
	return &WorkflowError{Kind: KindValidation, Message: "invalid payload", Err: err}
}

// checkEdit validates the patch part of a payload for the edit action.
func checkEdit(p Payload) error {
	if !p.hasPatch() {
		return newError(KindValidation, "edit requires at least one field")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return newError(KindValidation, "title must not be empty")
	}
	if p.Period != nil && !p.Period.Valid() {
		return newError(KindValidation, "period must start before it ends")
	}
	return nil
}

func patchCampaign(c *models.Campaign, p Payload) {
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		c.Description = richtext.PlainTextPtr(p.Description)
	}
	if p.Budget != nil {
		c.Budget = *p.Budget
	}
	if p.Period != nil {
		c.Period = *p.Period
	}
}

func patchProposal(pr *models.Proposal, p Payload) {
	if p.Title != nil {
		pr.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		pr.Description = richtext.PlainTextPtr(p.Description)
	}
	if p.Budget != nil {
		pr.DesiredBudget = *p.Budget
	}
	if p.Period != nil {
		pr.AvailablePeriod = *p.Period
	}
	if p.IsNegotiable != nil {
		pr.IsNegotiable = *p.IsNegotiable
	}
}

func patchAdvertiserProposal(ap *models.AdvertiserProposal, p Payload) {
	if p.Title != nil {
		ap.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		ap.Description = richtext.PlainTextPtr(p.Description)
	}
	if p.Budget != nil {
		ap.Budget = *p.Budget
	}
	if p.Period != nil {
		ap.CampaignPeriod = *p.Period
	}
}
