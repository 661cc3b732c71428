package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/events"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/notify"
	"github.com/influencer-marketplace/backend/internal/rbac"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Fanout receives committed transitions. Dispatch must not block on delivery.
type Fanout interface {
	Dispatch(t notify.Transition)
}

// WorkflowService executes every state-changing action of the marketplace:
// load, authorize, check the transition table, write, then fan out.
type WorkflowService struct {
	store     storage.Store
	fanout    Fanout
	publisher events.Publisher
	metrics   *telemetry.Metrics
	validate  *validator.Validate
	log       *zap.Logger

	executors map[models.EntityType]executor
}

type executor func(ctx context.Context, q storage.Queries, req TransitionRequest) (models.Entity, *notify.Transition, error)

// NewWorkflowService wires the orchestrator. fanout, publisher and metrics
// may be nil.
func NewWorkflowService(
	store storage.Store,
	fanout Fanout,
	publisher events.Publisher,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) *WorkflowService {
	s := &WorkflowService{
		store:     store,
		fanout:    fanout,
		publisher: publisher,
		metrics:   metrics,
		validate:  validator.New(),
		log:       log,
	}
	s.executors = map[models.EntityType]executor{
		models.EntityCampaign:                   s.execCampaign,
		models.EntityApplication:                s.execApplication,
		models.EntityProposal:                   s.execProposal,
		models.EntityProposalApplication:        s.execProposalApplication,
		models.EntityAdvertiserProposal:         s.execAdvertiserProposal,
		models.EntityAdvertiserProposalResponse: s.execResponse,
	}
	return s
}

// Execute runs one action against one entity and returns the entity that
// changed (for apply and respond, the record that was created). Every error is
// a *WorkflowError.
func (s *WorkflowService) Execute(ctx context.Context, req TransitionRequest) (models.Entity, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("entity.type", string(req.Entity.Type)),
			attribute.String("entity.id", req.Entity.ID.String()),
			attribute.String("action", string(req.Action)),
		))
	defer span.End()

	start := time.Now()
	entity, tr, err := s.execute(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	s.metrics.RecordTransition(string(req.Entity.Type), string(req.Action), outcome, time.Since(start))

	if err != nil {
		fields := []zap.Field{
			zap.String("entity_type", string(req.Entity.Type)),
			zap.String("entity_id", req.Entity.ID.String()),
			zap.String("action", string(req.Action)),
			zap.String("actor_id", req.Actor.ID.String()),
			zap.Error(err),
		}
		if KindOf(err) == KindStorageUnavailable {
			s.log.Error("workflow action failed", fields...)
		} else {
			s.log.Debug("workflow action rejected", fields...)
		}
		return nil, err
	}

	s.log.Info("workflow transition",
		zap.String("entity_type", string(tr.Entity.Type)),
		zap.String("entity_id", tr.Entity.ID.String()),
		zap.String("action", string(tr.Action)),
		zap.String("from", tr.From),
		zap.String("to", tr.To),
		zap.String("actor_id", req.Actor.ID.String()),
	)
	s.afterCommit(ctx, *tr)
	return entity, nil
}

func (s *WorkflowService) execute(ctx context.Context, req TransitionRequest) (models.Entity, *notify.Transition, error) {
	if req.Actor.ID == uuid.Nil || !req.Actor.Role.Valid() {
		return nil, nil, newError(KindUnauthenticated, "no resolvable actor")
	}
	exec, ok := s.executors[req.Entity.Type]
	if !ok {
		return nil, nil, newError(KindValidation, "unknown entity type %q", req.Entity.Type)
	}
	if req.Action == "" {
		return nil, nil, newError(KindValidation, "action is required")
	}
	if err := checkStruct(s.validate, req.Payload); err != nil {
		return nil, nil, err
	}

	dup := KindConflict
	if req.Action == models.ActionApply {
		dup = KindDuplicate
	}

	var (
		entity models.Entity
		tr     *notify.Transition
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		var err error
		entity, tr, err = exec(ctx, q, req)
		return err
	})
	if err != nil {
		return nil, nil, fromStorage(err, string(req.Entity.Type), dup)
	}
	return entity, tr, nil
}

// afterCommit hands the transition to fan-out and the event bus. Neither can
// fail the request.
func (s *WorkflowService) afterCommit(ctx context.Context, tr notify.Transition) {
	if s.fanout != nil {
		s.fanout.Dispatch(tr)
	}
	if s.publisher == nil {
		return
	}
	payload := map[string]any{
		"entity_type": string(tr.Entity.Type),
		"entity_id":   tr.Entity.ID.String(),
		"action":      string(tr.Action),
		"from":        tr.From,
		"to":          tr.To,
		"actor_id":    tr.Actor.ID.String(),
	}
	if tr.Parent != nil {
		payload["parent_type"] = string(tr.Parent.Type)
		payload["parent_id"] = tr.Parent.ID.String()
	}
	err := s.publisher.Publish(context.WithoutCancel(ctx), events.ChannelWorkflow, events.Event{
		Type:    events.EventTransition,
		Payload: payload,
	})
	if err != nil {
		s.log.Warn("failed to publish transition event", zap.String("entity_id", tr.Entity.ID.String()), zap.Error(err))
	}
}

// authorize converts a guard decision into a typed error.
func authorize(actor models.Actor, t rbac.Target, action models.Action) error {
	d := rbac.Authorize(actor, t, action)
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case rbac.ReasonAlreadyApplied:
		return newError(KindDuplicate, "already applied")
	case rbac.ReasonNotAccepting:
		return newError(KindNotAccepting, "%s is not accepting applications", t.Type)
	default:
		return newError(KindForbidden, "%s", d.Reason)
	}
}

func advance[S ~string](m models.Machine[S], from S, action models.Action) (S, error) {
	to, ok := m.Next(from, action)
	if !ok {
		return to, newError(KindInvalidTransition, "%s cannot %s from %s", m.Name(), action, from)
	}
	return to, nil
}

func writeAudit(ctx context.Context, q storage.Queries, actor models.Actor, ref models.EntityRef, action models.Action, from, to string) error {
	id := actor.ID
	return q.InsertAudit(ctx, &models.AuditLog{
		ActorUserID: &id,
		ActorType:   strings.ToLower(string(actor.Role)),
		Action:      fmt.Sprintf("%s_%s", ref.Type, action),
		EntityType:  ref.Type,
		EntityID:    ref.ID,
		Meta:        map[string]any{"from": from, "to": to},
	})
}

// found reports whether a Find call located a record. storage.ErrNotFound is
// not an error here.
func found(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ---- Campaign ----

func (s *WorkflowService) execCampaign(ctx context.Context, q storage.Queries, req TransitionRequest) (models.Entity, *notify.Transition, error) {
	get := q.GetCampaign
	if req.Action == models.ActionApply {
		// close/cancel must not commit between the status check and the insert
		get = q.GetCampaignForShare
	}
	c, err := get(ctx, req.Entity.ID)
	if err != nil {
		return nil, nil, fromStorage(err, "campaign", KindConflict)
	}
	target := rbac.Target{Type: models.EntityCampaign, Status: string(c.Status), OwnerID: c.AdvertiserID}

	if req.Action == models.ActionApply {
		return s.applyToCampaign(ctx, q, req, c, target)
	}

	if err := authorize(req.Actor, target, req.Action); err != nil {
		return nil, nil, err
	}
	to, err := advance(models.CampaignMachine, c.Status, req.Action)
	if err != nil {
		return nil, nil, err
	}
	switch req.Action {
	case models.ActionRepublish:
		if !req.Payload.Confirm {
			return nil, nil, newError(KindValidation, "republish requires confirm")
		}
	case models.ActionEdit:
		if err := checkEdit(req.Payload); err != nil {
			return nil, nil, err
		}
		patchCampaign(c, req.Payload)
	}

	from := c.Status
	c.Status = to
	if err := q.UpdateCampaign(ctx, c, from); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, c.Ref(), req.Action, string(from), string(to)); err != nil {
		return nil, nil, err
	}
	return c, &notify.Transition{
		Entity:  c.Ref(),
		Action:  req.Action,
		From:    string(from),
		To:      string(to),
		Actor:   req.Actor,
		OwnerID: c.AdvertiserID,
		Title:   c.Title,
	}, nil
}

func (s *WorkflowService) applyToCampaign(ctx context.Context, q storage.Queries, req TransitionRequest, c *models.Campaign, target rbac.Target) (models.Entity, *notify.Transition, error) {
	var err error
	if req.Actor.Role == models.RoleInfluencer {
		_, err = q.FindApplication(ctx, c.ID, req.Actor.ID)
		if target.AlreadyApplied, err = found(err); err != nil {
			return nil, nil, err
		}
	}
	if err := authorize(req.Actor, target, models.ActionApply); err != nil {
		return nil, nil, err
	}
	msg := req.Payload.message()
	if msg == "" {
		return nil, nil, newError(KindValidation, "application message is required")
	}

	app := &models.Application{
		CampaignID:   c.ID,
		InfluencerID: req.Actor.ID,
		Status:       models.ApplicationStatusPending,
		Message:      msg,
	}
	if err := q.InsertApplication(ctx, app); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, app.Ref(), models.ActionApply, "", string(app.Status)); err != nil {
		return nil, nil, err
	}
	parent := c.Ref()
	return app, &notify.Transition{
		Entity:    app.Ref(),
		Parent:    &parent,
		Action:    models.ActionApply,
		To:        string(app.Status),
		Actor:     req.Actor,
		OwnerID:   c.AdvertiserID,
		SubjectID: req.Actor.ID,
		Title:     c.Title,
	}, nil
}

// ---- Application ----

func (s *WorkflowService) execApplication(ctx context.Context, q storage.Queries, req TransitionRequest) (models.Entity, *notify.Transition, error) {
	app, err := q.GetApplication(ctx, req.Entity.ID)
	if err != nil {
		return nil, nil, fromStorage(err, "application", KindConflict)
	}
	c, err := q.GetCampaign(ctx, app.CampaignID)
	if err != nil {
		return nil, nil, fromStorage(err, "campaign", KindConflict)
	}
	target := rbac.Target{
		Type:      models.EntityApplication,
		Status:    string(app.Status),
		OwnerID:   c.AdvertiserID,
		CreatorID: app.InfluencerID,
	}
	if err := authorize(req.Actor, target, req.Action); err != nil {
		return nil, nil, err
	}
	to, err := advance(models.ApplicationMachine, app.Status, req.Action)
	if err != nil {
		return nil, nil, err
	}

	from := app.Status
	app.Status = to
	if err := q.UpdateApplication(ctx, app, from); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, app.Ref(), req.Action, string(from), string(to)); err != nil {
		return nil, nil, err
	}
	parent := c.Ref()
	return app, &notify.Transition{
		Entity:    app.Ref(),
		Parent:    &parent,
		Action:    req.Action,
		From:      string(from),
		To:        string(to),
		Actor:     req.Actor,
		OwnerID:   c.AdvertiserID,
		SubjectID: app.InfluencerID,
		Title:     c.Title,
	}, nil
}

// ---- Proposal ----

func (s *WorkflowService) execProposal(ctx context.Context, q storage.Queries, req TransitionRequest) (models.Entity, *notify.Transition, error) {
	get := q.GetProposal
	if req.Action == models.ActionApply {
		get = q.GetProposalForShare
	}
	p, err := get(ctx, req.Entity.ID)
	if err != nil {
		return nil, nil, fromStorage(err, "proposal", KindConflict)
	}
	target := rbac.Target{Type: models.EntityProposal, Status: string(p.Status), OwnerID: p.InfluencerID}

	if req.Action == models.ActionApply {
		return s.applyToProposal(ctx, q, req, p, target)
	}

	if err := authorize(req.Actor, target, req.Action); err != nil {
		return nil, nil, err
	}
	to, err := advance(models.ProposalMachine, p.Status, req.Action)
	if err != nil {
		return nil, nil, err
	}
	if req.Action == models.ActionEdit {
		if err := checkEdit(req.Payload); err != nil {
			return nil, nil, err
		}
		patchProposal(p, req.Payload)
	}

	from := p.Status
	p.Status = to
	if err := q.UpdateProposal(ctx, p, from); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, p.Ref(), req.Action, string(from), string(to)); err != nil {
		return nil, nil, err
	}
	return p, &notify.Transition{
		Entity:  p.Ref(),
		Action:  req.Action,
		From:    string(from),
		To:      string(to),
		Actor:   req.Actor,
		OwnerID: p.InfluencerID,
		Title:   p.Title,
	}, nil
}

func (s *WorkflowService) applyToProposal(ctx context.Context, q storage.Queries, req TransitionRequest, p *models.Proposal, target rbac.Target) (models.Entity, *notify.Transition, error) {
	var err error
	if req.Actor.Role == models.RoleAdvertiser {
		_, err = q.FindProposalApplication(ctx, p.ID, req.Actor.ID)
		if target.AlreadyApplied, err = found(err); err != nil {
			return nil, nil, err
		}
	}
	if err := authorize(req.Actor, target, models.ActionApply); err != nil {
		return nil, nil, err
	}
	msg := req.Payload.message()
	if msg == "" {
		return nil, nil, newError(KindValidation, "application message is required")
	}

	app := &models.ProposalApplication{
		ProposalID:   p.ID,
		AdvertiserID: req.Actor.ID,
		Status:       models.ApplicationStatusPending,
		Message:      msg,
	}
	if err := q.InsertProposalApplication(ctx, app); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, app.Ref(), models.ActionApply, "", string(app.Status)); err != nil {
		return nil, nil, err
	}
	parent := p.Ref()
	return app, &notify.Transition{
		Entity:    app.Ref(),
		Parent:    &parent,
		Action:    models.ActionApply,
		To:        string(app.Status),
		Actor:     req.Actor,
		OwnerID:   p.InfluencerID,
		SubjectID: req.Actor.ID,
		Title:     p.Title,
	}, nil
}

// ---- ProposalApplication ----

func (s *WorkflowService) execProposalApplication(ctx context.Context, q storage.Queries, req TransitionRequest) (models.Entity, *notify.Transition, error) {
	app, err := q.GetProposalApplication(ctx, req.Entity.ID)
	if err != nil {
		return nil, nil, fromStorage(err, "proposal application", KindConflict)
	}
	p, err := q.GetProposal(ctx, app.ProposalID)
	if err != nil {
		return nil, nil, fromStorage(err, "proposal", KindConflict)
	}
	target := rbac.Target{
		Type:      models.EntityProposalApplication,
		Status:    string(app.Status),
		OwnerID:   p.InfluencerID,
		CreatorID: app.AdvertiserID,
	}
	if err := authorize(req.Actor, target, req.Action); err != nil {
		return nil, nil, err
	}
	to, err := advance(models.ApplicationMachine, app.Status, req.Action)
	if err != nil {
		return nil, nil, err
	}

	from := app.Status
	app.Status = to
	if err := q.UpdateProposalApplication(ctx, app, from); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, app.Ref(), req.Action, string(from), string(to)); err != nil {
		return nil, nil, err
	}
	parent := p.Ref()
	return app, &notify.Transition{
		Entity:    app.Ref(),
		Parent:    &parent,
		Action:    req.Action,
		From:      string(from),
		To:        string(to),
		Actor:     req.Actor,
		OwnerID:   p.InfluencerID,
		SubjectID: app.AdvertiserID,
		Title:     p.Title,
	}, nil
}

// ---- AdvertiserProposal ----

func (s *WorkflowService) execAdvertiserProposal(ctx context.Context, q storage.Queries, req TransitionRequest) (models.Entity, *notify.Transition, error) {
	ap, err := q.GetAdvertiserProposal(ctx, req.Entity.ID)
	if err != nil {
		return nil, nil, fromStorage(err, "advertiser proposal", KindConflict)
	}
	target := rbac.Target{
		Type:        models.EntityAdvertiserProposal,
		Status:      string(ap.Status),
		OwnerID:     ap.AdvertiserID,
		RecipientID: ap.InfluencerID,
	}
	if err := authorize(req.Actor, target, req.Action); err != nil {
		return nil, nil, err
	}
	if req.Action == models.ActionRespond {
		return s.respond(ctx, q, req, ap)
	}

	to, err := advance(models.AdvertiserProposalMachine, ap.Status, req.Action)
	if err != nil {
		return nil, nil, err
	}
	if req.Action == models.ActionEdit {
		if err := checkEdit(req.Payload); err != nil {
			return nil, nil, err
		}
		patchAdvertiserProposal(ap, req.Payload)
	}

	from := ap.Status
	ap.Status = to
	if err := q.UpdateAdvertiserProposal(ctx, ap, from); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, ap.Ref(), req.Action, string(from), string(to)); err != nil {
		return nil, nil, err
	}
	return ap, &notify.Transition{
		Entity:    ap.Ref(),
		Action:    req.Action,
		From:      string(from),
		To:        string(to),
		Actor:     req.Actor,
		OwnerID:   ap.AdvertiserID,
		SubjectID: ap.InfluencerID,
		Title:     ap.Title,
	}, nil
}

// respond records the influencer's reply and moves the offer to ACCEPTED or
// REJECTED in the same transaction.
func (s *WorkflowService) respond(ctx context.Context, q storage.Queries, req TransitionRequest, ap *models.AdvertiserProposal) (models.Entity, *notify.Transition, error) {
	rs := req.Payload.ResponseStatus
	parentAction, ok := rs.ParentAction()
	if !ok {
		return nil, nil, newError(KindValidation, "response_status must be ACCEPTED or REJECTED")
	}
	to, err := advance(models.AdvertiserProposalMachine, ap.Status, parentAction)
	if err != nil {
		return nil, nil, err
	}
	if _, err := q.GetResponse(ctx, ap.ID); err == nil {
		return nil, nil, newError(KindConflict, "advertiser proposal already has a response")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, err
	}

	resp := &models.AdvertiserProposalResponse{
		ProposalID:     ap.ID,
		InfluencerID:   req.Actor.ID,
		Message:        req.Payload.message(),
		ResponseStatus: rs,
	}
	if err := q.InsertResponse(ctx, resp); err != nil {
		return nil, nil, err
	}

	from := ap.Status
	ap.Status = to
	if err := q.UpdateAdvertiserProposal(ctx, ap, from); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, resp.Ref(), models.ActionRespond, "", string(rs)); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, q, req.Actor, ap.Ref(), parentAction, string(from), string(to)); err != nil {
		return nil, nil, err
	}
	parent := ap.Ref()
	return resp, &notify.Transition{
		Entity:    resp.Ref(),
		Parent:    &parent,
		Action:    models.ActionRespond,
		To:        string(rs),
		Actor:     req.Actor,
		OwnerID:   ap.AdvertiserID,
		SubjectID: ap.InfluencerID,
		Title:     ap.Title,
	}, nil
}

// ---- AdvertiserProposalResponse ----

// Responses are immutable. Authorized callers get invalid_transition for any
// action.
func (s *WorkflowService) execResponse(ctx context.Context, q storage.Queries, req TransitionRequest) (models.Entity, *notify.Transition, error) {
	resp, err := q.GetResponseByID(ctx, req.Entity.ID)
	if err != nil {
		return nil, nil, fromStorage(err, "response", KindConflict)
	}
	ap, err := q.GetAdvertiserProposal(ctx, resp.ProposalID)
	if err != nil {
		return nil, nil, fromStorage(err, "advertiser proposal", KindConflict)
	}
	target := rbac.Target{
		Type:        models.EntityAdvertiserProposalResponse,
		Status:      string(resp.ResponseStatus),
		OwnerID:     ap.AdvertiserID,
		RecipientID: resp.InfluencerID,
	}
	if err := authorize(req.Actor, target, req.Action); err != nil {
		return nil, nil, err
	}
	return nil, nil, newError(KindInvalidTransition, "response cannot %s", req.Action)
}
