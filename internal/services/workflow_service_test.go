package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/notify"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/influencer-marketplace/backend/internal/storage/memory"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"go.uber.org/zap"
)

type inbox struct {
	mu  sync.Mutex
	got map[uuid.UUID][]string
}

func (b *inbox) Notify(_ context.Context, ids []uuid.UUID, msg notify.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.got == nil {
		b.got = map[uuid.UUID][]string{}
	}
	for _, id := range ids {
		b.got[id] = append(b.got[id], msg.Text)
	}
	return nil
}

func (b *inbox) messages(id uuid.UUID) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.got[id]...)
}

type harness struct {
	t     *testing.T
	store storage.Store
	wf    *WorkflowService
	cat   *CatalogService
	users *UserService
	disp  *notify.Dispatcher
	inbox *inbox
}

func newHarness(t *testing.T, opts ...func(*harnessConfig)) *harness {
	t.Helper()
	cfg := harnessConfig{store: memory.New()}
	for _, o := range opts {
		o(&cfg)
	}
	h := &harness{t: t, store: cfg.store, inbox: &inbox{}}
	var n notify.Notifier = h.inbox
	if cfg.notifier != nil {
		n = cfg.notifier
	}
	h.disp = notify.NewDispatcher(notify.NewDirectory(cfg.store), n, notify.Options{}, nil, zap.NewNop())
	h.wf = NewWorkflowService(cfg.store, h.disp, nil, telemetry.NewMetrics("test"), zap.NewNop())
	h.cat = NewCatalogService(cfg.store, zap.NewNop())
	h.users = NewUserService(cfg.store, zap.NewNop())
	return h
}

type harnessConfig struct {
	store    storage.Store
	notifier notify.Notifier
}

func (h *harness) user(role models.Role) models.Actor {
	h.t.Helper()
	a := models.Actor{ID: uuid.New(), Role: role}
	if _, err := h.users.Touch(context.Background(), a, nil); err != nil {
		h.t.Fatalf("Touch() error = %v", err)
	}
	return a
}

func (h *harness) exec(actor models.Actor, ref models.EntityRef, action models.Action, p Payload) (models.Entity, error) {
	return h.wf.Execute(context.Background(), TransitionRequest{Actor: actor, Entity: ref, Action: action, Payload: p})
}

func (h *harness) mustExec(actor models.Actor, ref models.EntityRef, action models.Action, p Payload) models.Entity {
	h.t.Helper()
	e, err := h.exec(actor, ref, action, p)
	if err != nil {
		h.t.Fatalf("%s %s: %v", action, ref.Type, err)
	}
	return e
}

func (h *harness) campaign(owner models.Actor, title string) *models.Campaign {
	h.t.Helper()
	c, err := h.cat.CreateCampaign(context.Background(), owner, CampaignInput{Title: title, Budget: 50000})
	if err != nil {
		h.t.Fatalf("CreateCampaign() error = %v", err)
	}
	return c
}

func (h *harness) publishedCampaign(owner models.Actor) *models.Campaign {
	h.t.Helper()
	c := h.campaign(owner, "C1")
	return h.mustExec(owner, c.Ref(), models.ActionPublish, Payload{}).(*models.Campaign)
}

func (h *harness) campaignStatus(id uuid.UUID) models.CampaignStatus {
	h.t.Helper()
	var c *models.Campaign
	err := h.store.View(context.Background(), func(ctx context.Context, q storage.Queries) error {
		var err error
		c, err = q.GetCampaign(ctx, id)
		return err
	})
	if err != nil {
		h.t.Fatalf("GetCampaign() error = %v", err)
	}
	return c.Status
}

func msg(s string) Payload { return Payload{Message: &s} }

func wantKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %q, want %q (%v)", got, kind, err)
	}
}

func TestScenarioPublishNotifiesInfluencers(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	influencers := []models.Actor{h.user(models.RoleInfluencer), h.user(models.RoleInfluencer), h.user(models.RoleInfluencer)}
	other := h.user(models.RoleAdvertiser)

	c := h.campaign(owner, "C1")
	got := h.mustExec(owner, c.Ref(), models.ActionPublish, Payload{}).(*models.Campaign)
	if got.Status != models.CampaignStatusPublished {
		t.Fatalf("status = %s, want PUBLISHED", got.Status)
	}

	h.disp.Wait()
	for _, inf := range influencers {
		if n := len(h.inbox.messages(inf.ID)); n != 1 {
			t.Errorf("influencer %s got %d notifications, want 1", inf.ID, n)
		}
	}
	if n := len(h.inbox.messages(other.ID)); n != 0 {
		t.Errorf("advertiser got %d notifications, want 0", n)
	}
}

func TestScenarioApplyAndAccept(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	c := h.publishedCampaign(owner)
	h.disp.Wait()

	app := h.mustExec(inf, c.Ref(), models.ActionApply, msg("Interested")).(*models.Application)
	if app.Status != models.ApplicationStatusPending || app.Message != "Interested" {
		t.Fatalf("application = %+v", app)
	}
	if app.CampaignID != c.ID || app.InfluencerID != inf.ID {
		t.Fatalf("application keys = (%s, %s)", app.CampaignID, app.InfluencerID)
	}

	accepted := h.mustExec(owner, app.Ref(), models.ActionAccept, Payload{}).(*models.Application)
	if accepted.Status != models.ApplicationStatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", accepted.Status)
	}

	h.disp.Wait()
	msgs := h.inbox.messages(inf.ID)
	if len(msgs) != 2 || !strings.Contains(msgs[1], "accepted") {
		t.Errorf("applicant messages = %q, want publish + accepted", msgs)
	}
	if len(h.inbox.messages(owner.ID)) != 1 {
		t.Errorf("owner should be told about the new application")
	}
}

func TestScenarioCloseLeavesApplicationsIndependent(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	c := h.publishedCampaign(owner)
	app := h.mustExec(inf, c.Ref(), models.ActionApply, msg("Interested")).(*models.Application)
	h.disp.Wait()
	before := len(h.inbox.messages(inf.ID))

	closed := h.mustExec(owner, c.Ref(), models.ActionClose, Payload{}).(*models.Campaign)
	if closed.Status != models.CampaignStatusClosed {
		t.Fatalf("status = %s, want CLOSED", closed.Status)
	}
	h.disp.Wait()
	msgs := h.inbox.messages(inf.ID)
	if len(msgs) != before+1 || !strings.Contains(msgs[len(msgs)-1], "closed") {
		t.Errorf("applicant messages = %q, want a closed notice", msgs)
	}

	accepted := h.mustExec(owner, app.Ref(), models.ActionAccept, Payload{}).(*models.Application)
	if accepted.Status != models.ApplicationStatusAccepted {
		t.Errorf("status = %s, want ACCEPTED", accepted.Status)
	}
}

func TestScenarioAdvertiserProposalResponse(t *testing.T) {
	h := newHarness(t)
	adv := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)

	ap, err := h.cat.CreateAdvertiserProposal(context.Background(), adv, AdvertiserProposalInput{
		InfluencerID: inf.ID, Title: "P1", Budget: 1000,
	})
	if err != nil {
		t.Fatalf("CreateAdvertiserProposal() error = %v", err)
	}
	sent := h.mustExec(adv, ap.Ref(), models.ActionSend, Payload{}).(*models.AdvertiserProposal)
	if sent.Status != models.AdvertiserProposalStatusSent {
		t.Fatalf("status = %s, want SENT", sent.Status)
	}

	resp := h.mustExec(inf, ap.Ref(), models.ActionRespond, Payload{ResponseStatus: models.ResponseStatusAccepted}).(*models.AdvertiserProposalResponse)
	if resp.ResponseStatus != models.ResponseStatusAccepted || resp.ProposalID != ap.ID {
		t.Fatalf("response = %+v", resp)
	}

	got, err := h.cat.Get(context.Background(), adv, ap.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if s := got.(*models.AdvertiserProposal).Status; s != models.AdvertiserProposalStatusAccepted {
		t.Fatalf("parent status = %s, want ACCEPTED", s)
	}

	_, err = h.exec(inf, ap.Ref(), models.ActionRespond, Payload{ResponseStatus: models.ResponseStatusRejected})
	wantKind(t, err, KindInvalidTransition)

	stored, err := h.cat.GetResponse(context.Background(), adv, ap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != resp.ID || stored.ResponseStatus != models.ResponseStatusAccepted {
		t.Errorf("stored response = %+v, want the first one", stored)
	}

	h.disp.Wait()
	if msgs := h.inbox.messages(adv.ID); len(msgs) != 1 || !strings.Contains(msgs[0], "accepted") {
		t.Errorf("advertiser messages = %q", msgs)
	}
}

func TestRespondReject(t *testing.T) {
	h := newHarness(t)
	adv := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	ap, _ := h.cat.CreateAdvertiserProposal(context.Background(), adv, AdvertiserProposalInput{InfluencerID: inf.ID, Title: "P2"})
	h.mustExec(adv, ap.Ref(), models.ActionSend, Payload{})

	_, err := h.exec(inf, ap.Ref(), models.ActionRespond, Payload{})
	wantKind(t, err, KindValidation)

	_, err = h.exec(adv, ap.Ref(), models.ActionRespond, Payload{ResponseStatus: models.ResponseStatusAccepted})
	wantKind(t, err, KindForbidden)

	h.mustExec(inf, ap.Ref(), models.ActionRespond, Payload{ResponseStatus: models.ResponseStatusRejected})
	got, _ := h.cat.Get(context.Background(), adv, ap.Ref())
	if s := got.(*models.AdvertiserProposal).Status; s != models.AdvertiserProposalStatusRejected {
		t.Errorf("parent status = %s, want REJECTED", s)
	}
}

func TestRespondToDraftIsForbidden(t *testing.T) {
	h := newHarness(t)
	adv := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	ap, _ := h.cat.CreateAdvertiserProposal(context.Background(), adv, AdvertiserProposalInput{InfluencerID: inf.ID, Title: "P3"})

	_, err := h.exec(inf, ap.Ref(), models.ActionRespond, Payload{ResponseStatus: models.ResponseStatusAccepted})
	wantKind(t, err, KindForbidden)
}

func TestDuplicateApply(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	c := h.publishedCampaign(owner)

	first := h.mustExec(inf, c.Ref(), models.ActionApply, msg("first")).(*models.Application)
	_, err := h.exec(inf, c.Ref(), models.ActionApply, msg("second"))
	wantKind(t, err, KindDuplicate)

	apps, err := h.cat.ListCampaignApplications(context.Background(), owner, c.ID, nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 1 || apps[0].ID != first.ID || apps[0].Message != "first" {
		t.Errorf("applications = %+v, want only the first", apps)
	}
}

func TestConcurrentApply(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	c := h.publishedCampaign(owner)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.exec(inf, c.Ref(), models.ActionApply, msg("Interested"))
		}(i)
	}
	wg.Wait()

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case KindOf(err) == KindDuplicate:
			dup++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 || dup != n-1 {
		t.Errorf("ok = %d, duplicate = %d, want 1 and %d", ok, dup, n-1)
	}

	apps, _ := h.cat.ListCampaignApplications(context.Background(), owner, c.ID, nil, 0, 0)
	if len(apps) != 1 {
		t.Errorf("stored applications = %d, want 1", len(apps))
	}
}

func TestNonOwnerCannotClose(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	other := h.user(models.RoleAdvertiser)
	c := h.publishedCampaign(owner)

	_, err := h.exec(other, c.Ref(), models.ActionClose, Payload{})
	wantKind(t, err, KindForbidden)
	if s := h.campaignStatus(c.ID); s != models.CampaignStatusPublished {
		t.Errorf("status = %s, want PUBLISHED", s)
	}
}

func TestAcceptTwice(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	c := h.publishedCampaign(owner)
	app := h.mustExec(inf, c.Ref(), models.ActionApply, msg("hi")).(*models.Application)

	h.mustExec(owner, app.Ref(), models.ActionAccept, Payload{})
	_, err := h.exec(owner, app.Ref(), models.ActionAccept, Payload{})
	wantKind(t, err, KindInvalidTransition)
}

func TestIllegalTransitionDoesNotMutate(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	c := h.campaign(owner, "draft")

	for _, action := range []models.Action{models.ActionClose, models.ActionComplete, models.ActionRepublish} {
		_, err := h.exec(owner, c.Ref(), action, Payload{Confirm: true})
		wantKind(t, err, KindInvalidTransition)
	}
	if s := h.campaignStatus(c.ID); s != models.CampaignStatusDraft {
		t.Errorf("status = %s, want DRAFT", s)
	}
	history, err := h.cat.History(context.Background(), owner, c.Ref(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("audit entries = %d, want only the create entry", len(history))
	}
}

func TestApplyRules(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	admin := h.user(models.RoleAdmin)
	draft := h.campaign(owner, "draft")
	published := h.publishedCampaign(owner)

	_, err := h.exec(inf, draft.Ref(), models.ActionApply, msg("hi"))
	wantKind(t, err, KindNotAccepting)

	_, err = h.exec(inf, published.Ref(), models.ActionApply, msg("   "))
	wantKind(t, err, KindValidation)

	_, err = h.exec(admin, published.Ref(), models.ActionApply, msg("hi"))
	wantKind(t, err, KindForbidden)

	_, err = h.exec(owner, published.Ref(), models.ActionApply, msg("hi"))
	wantKind(t, err, KindForbidden)
}

func TestApplicantCancels(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	c := h.publishedCampaign(owner)
	app := h.mustExec(inf, c.Ref(), models.ActionApply, msg("hi")).(*models.Application)

	_, err := h.exec(owner, app.Ref(), models.ActionCancel, Payload{})
	wantKind(t, err, KindForbidden)

	got := h.mustExec(inf, app.Ref(), models.ActionCancel, Payload{}).(*models.Application)
	if got.Status != models.ApplicationStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
}

func TestProposalApplicantCancels(t *testing.T) {
	h := newHarness(t)
	author := h.user(models.RoleInfluencer)
	adv := h.user(models.RoleAdvertiser)

	p, err := h.cat.CreateProposal(context.Background(), author, ProposalInput{Title: "P1"})
	if err != nil {
		t.Fatal(err)
	}
	h.mustExec(author, p.Ref(), models.ActionPublish, Payload{})
	pa := h.mustExec(adv, p.Ref(), models.ActionApply, msg("hi")).(*models.ProposalApplication)

	_, err = h.exec(author, pa.Ref(), models.ActionCancel, Payload{})
	wantKind(t, err, KindForbidden)

	got := h.mustExec(adv, pa.Ref(), models.ActionCancel, Payload{}).(*models.ProposalApplication)
	if got.Status != models.ApplicationStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}

	h.disp.Wait()
	msgs := h.inbox.messages(author.ID)
	if len(msgs) != 2 || !strings.Contains(msgs[1], "withdrawn") {
		t.Errorf("author messages = %q, want application + withdrawal notices", msgs)
	}
}

func TestNonOwnerCannotDecideApplication(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	other := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	c := h.publishedCampaign(owner)
	app := h.mustExec(inf, c.Ref(), models.ActionApply, msg("hi")).(*models.Application)

	for _, action := range []models.Action{models.ActionAccept, models.ActionReject} {
		_, err := h.exec(other, app.Ref(), action, Payload{})
		wantKind(t, err, KindForbidden)
	}

	got, err := h.cat.Get(context.Background(), inf, app.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if s := got.(*models.Application).Status; s != models.ApplicationStatusPending {
		t.Errorf("status = %s, want PENDING", s)
	}
}

func TestProposalCloseNotifiesHolders(t *testing.T) {
	h := newHarness(t)
	author := h.user(models.RoleInfluencer)
	pending := h.user(models.RoleAdvertiser)
	accepted := h.user(models.RoleAdvertiser)
	rejected := h.user(models.RoleAdvertiser)

	p, err := h.cat.CreateProposal(context.Background(), author, ProposalInput{Title: "P1"})
	if err != nil {
		t.Fatal(err)
	}
	h.mustExec(author, p.Ref(), models.ActionPublish, Payload{})
	h.mustExec(pending, p.Ref(), models.ActionApply, msg("hi"))
	a := h.mustExec(accepted, p.Ref(), models.ActionApply, msg("hi")).(*models.ProposalApplication)
	r := h.mustExec(rejected, p.Ref(), models.ActionApply, msg("hi")).(*models.ProposalApplication)
	h.mustExec(author, a.Ref(), models.ActionAccept, Payload{})
	h.mustExec(author, r.Ref(), models.ActionReject, Payload{})
	h.disp.Wait()
	before := len(h.inbox.messages(rejected.ID))

	h.mustExec(author, p.Ref(), models.ActionClose, Payload{})
	h.disp.Wait()

	tests := []struct {
		name string
		id   uuid.UUID
		want bool
	}{
		{"pending holder", pending.ID, true},
		{"accepted holder", accepted.ID, true},
		{"rejected holder", rejected.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed := false
			for _, m := range h.inbox.messages(tt.id) {
				if strings.Contains(m, "is closed") {
					closed = true
				}
			}
			if closed != tt.want {
				t.Errorf("close notice delivered = %v, want %v", closed, tt.want)
			}
		})
	}
	if n := len(h.inbox.messages(rejected.ID)); n != before {
		t.Errorf("rejected holder got %d new messages, want 0", n-before)
	}
}

func TestAdminOfferOverrideNotifiesBothSides(t *testing.T) {
	tests := []struct {
		action models.Action
		want   models.AdvertiserProposalStatus
	}{
		{models.ActionAccept, models.AdvertiserProposalStatusAccepted},
		{models.ActionReject, models.AdvertiserProposalStatusRejected},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			h := newHarness(t)
			adv := h.user(models.RoleAdvertiser)
			inf := h.user(models.RoleInfluencer)
			admin := h.user(models.RoleAdmin)

			ap, err := h.cat.CreateAdvertiserProposal(context.Background(), adv, AdvertiserProposalInput{InfluencerID: inf.ID, Title: "P1"})
			if err != nil {
				t.Fatal(err)
			}
			h.mustExec(adv, ap.Ref(), models.ActionSend, Payload{})
			got := h.mustExec(admin, ap.Ref(), tt.action, Payload{}).(*models.AdvertiserProposal)
			if got.Status != tt.want {
				t.Fatalf("status = %s, want %s", got.Status, tt.want)
			}

			h.disp.Wait()
			if msgs := h.inbox.messages(adv.ID); len(msgs) != 1 {
				t.Errorf("advertiser messages = %q, want one override notice", msgs)
			}
			if msgs := h.inbox.messages(inf.ID); len(msgs) != 2 {
				t.Errorf("influencer messages = %q, want offer + override notices", msgs)
			}
		})
	}
}

func TestRepublishRequiresConfirm(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	c := h.publishedCampaign(owner)
	h.mustExec(owner, c.Ref(), models.ActionCancel, Payload{})

	_, err := h.exec(owner, c.Ref(), models.ActionRepublish, Payload{})
	wantKind(t, err, KindValidation)
	if s := h.campaignStatus(c.ID); s != models.CampaignStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", s)
	}

	got := h.mustExec(owner, c.Ref(), models.ActionRepublish, Payload{Confirm: true}).(*models.Campaign)
	if got.Status != models.CampaignStatusPublished {
		t.Errorf("status = %s, want PUBLISHED", got.Status)
	}
}

func TestEditPatchesFields(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	c := h.campaign(owner, "old")

	title := "new title"
	budget := int64(7500)
	got := h.mustExec(owner, c.Ref(), models.ActionEdit, Payload{Title: &title, Budget: &budget}).(*models.Campaign)
	if got.Title != title || got.Budget != budget || got.Status != models.CampaignStatusDraft {
		t.Errorf("campaign = %+v", got)
	}

	_, err := h.exec(owner, c.Ref(), models.ActionEdit, Payload{})
	wantKind(t, err, KindValidation)

	negative := int64(-1)
	_, err = h.exec(owner, c.Ref(), models.ActionEdit, Payload{Budget: &negative})
	wantKind(t, err, KindValidation)
}

func TestProposalModeration(t *testing.T) {
	h := newHarness(t)
	author := h.user(models.RoleInfluencer)
	adv := h.user(models.RoleAdvertiser)
	admin := h.user(models.RoleAdmin)

	p, err := h.cat.CreateProposal(context.Background(), author, ProposalInput{Title: "Reels", DesiredBudget: 300})
	if err != nil {
		t.Fatal(err)
	}
	h.mustExec(author, p.Ref(), models.ActionPublish, Payload{})

	pa := h.mustExec(adv, p.Ref(), models.ActionApply, msg("let's work")).(*models.ProposalApplication)
	_, err = h.exec(adv, p.Ref(), models.ActionApply, msg("again"))
	wantKind(t, err, KindDuplicate)

	h.mustExec(author, pa.Ref(), models.ActionAccept, Payload{})

	_, err = h.exec(author, p.Ref(), models.ActionReject, Payload{})
	wantKind(t, err, KindForbidden)

	got := h.mustExec(admin, p.Ref(), models.ActionReject, Payload{}).(*models.Proposal)
	if got.Status != models.ProposalStatusRejected {
		t.Errorf("status = %s, want REJECTED", got.Status)
	}

	h.disp.Wait()
	if msgs := h.inbox.messages(author.ID); len(msgs) < 2 {
		t.Errorf("author messages = %q, want application + moderation notices", msgs)
	}
}

func TestUnauthenticatedAndNotFound(t *testing.T) {
	h := newHarness(t)
	owner := h.user(models.RoleAdvertiser)
	c := h.campaign(owner, "x")

	_, err := h.exec(models.Actor{}, c.Ref(), models.ActionPublish, Payload{})
	wantKind(t, err, KindUnauthenticated)

	_, err = h.exec(owner, models.EntityRef{Type: models.EntityCampaign, ID: uuid.New()}, models.ActionPublish, Payload{})
	wantKind(t, err, KindNotFound)

	_, err = h.exec(owner, models.EntityRef{Type: "deal", ID: c.ID}, models.ActionPublish, Payload{})
	wantKind(t, err, KindValidation)
}

// failingStore fails every call the way an unreachable database does.
type failingStore struct{ err error }

func (s failingStore) WithinTx(context.Context, func(context.Context, storage.Queries) error) error {
	return s.err
}

func (s failingStore) View(context.Context, func(context.Context, storage.Queries) error) error {
	return s.err
}

func TestStorageUnavailable(t *testing.T) {
	for _, cause := range []error{storage.ErrUnavailable, errors.New("dial tcp: connection refused")} {
		wf := NewWorkflowService(failingStore{err: cause}, nil, nil, nil, zap.NewNop())
		_, err := wf.Execute(context.Background(), TransitionRequest{
			Actor:  models.Actor{ID: uuid.New(), Role: models.RoleAdvertiser},
			Entity: models.EntityRef{Type: models.EntityCampaign, ID: uuid.New()},
			Action: models.ActionPublish,
		})
		wantKind(t, err, KindStorageUnavailable)
		if errors.Is(err, ErrConflict) {
			t.Error("storage failure must not look like a conflict")
		}
	}
}

// staleStore loses every conditional campaign update, as if another writer
// got there first.
type staleStore struct{ storage.Store }

type staleQueries struct{ storage.Queries }

func (staleQueries) UpdateCampaign(context.Context, *models.Campaign, models.CampaignStatus) error {
	return storage.ErrStaleStatus
}

func (s staleStore) WithinTx(ctx context.Context, fn func(context.Context, storage.Queries) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		return fn(ctx, staleQueries{q})
	})
}

// shareStore records which parent reads take a share lock.
type shareStore struct {
	storage.Store
	mu     sync.Mutex
	shared []models.EntityType
}

type shareQueries struct {
	storage.Queries
	s *shareStore
}

func (q shareQueries) GetCampaignForShare(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	q.s.record(models.EntityCampaign)
	return q.Queries.GetCampaignForShare(ctx, id)
}

func (q shareQueries) GetProposalForShare(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	q.s.record(models.EntityProposal)
	return q.Queries.GetProposalForShare(ctx, id)
}

func (s *shareStore) record(t models.EntityType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = append(s.shared, t)
}

func (s *shareStore) WithinTx(ctx context.Context, fn func(context.Context, storage.Queries) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		return fn(ctx, shareQueries{Queries: q, s: s})
	})
}

func TestApplyLocksParent(t *testing.T) {
	store := &shareStore{Store: memory.New()}
	h := newHarness(t, func(c *harnessConfig) { c.store = store })
	adv := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)

	c := h.publishedCampaign(adv)
	p, err := h.cat.CreateProposal(context.Background(), inf, ProposalInput{Title: "P1"})
	if err != nil {
		t.Fatal(err)
	}
	h.mustExec(inf, p.Ref(), models.ActionPublish, Payload{})
	if len(store.shared) != 0 {
		t.Fatalf("non-apply actions took share locks: %v", store.shared)
	}

	h.mustExec(inf, c.Ref(), models.ActionApply, msg("hi"))
	h.mustExec(adv, p.Ref(), models.ActionApply, msg("hi"))
	h.mustExec(adv, c.Ref(), models.ActionClose, Payload{})

	want := []models.EntityType{models.EntityCampaign, models.EntityProposal}
	if len(store.shared) != len(want) {
		t.Fatalf("shared reads = %v, want %v", store.shared, want)
	}
	for i := range want {
		if store.shared[i] != want[i] {
			t.Errorf("shared[%d] = %s, want %s", i, store.shared[i], want[i])
		}
	}
}

func TestConcurrentWriterConflict(t *testing.T) {
	inner := memory.New()
	h := newHarness(t, func(c *harnessConfig) { c.store = inner })
	owner := h.user(models.RoleAdvertiser)
	c := h.campaign(owner, "race")

	wf := NewWorkflowService(staleStore{inner}, nil, nil, nil, zap.NewNop())
	_, err := wf.Execute(context.Background(), TransitionRequest{Actor: owner, Entity: c.Ref(), Action: models.ActionPublish})
	wantKind(t, err, KindConflict)
	if s := h.campaignStatus(c.ID); s != models.CampaignStatusDraft {
		t.Errorf("status = %s, want DRAFT", s)
	}
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	failing := notify.NotifierFunc(func(context.Context, []uuid.UUID, notify.Message) error {
		return errors.New("delivery down")
	})
	h := newHarness(t, func(c *harnessConfig) { c.notifier = failing })
	owner := h.user(models.RoleAdvertiser)
	h.user(models.RoleInfluencer)

	c := h.campaign(owner, "C1")
	got, err := h.exec(owner, c.Ref(), models.ActionPublish, Payload{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	h.disp.Wait()
	if got.CurrentStatus() != string(models.CampaignStatusPublished) {
		t.Errorf("status = %s, want PUBLISHED", got.CurrentStatus())
	}
}
