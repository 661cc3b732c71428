package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
)

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	adv := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name  string
		actor models.Actor
		in    CampaignInput
		kind  ErrorKind
	}{
		{"influencer cannot create campaigns", inf, CampaignInput{Title: "x"}, KindForbidden},
		{"title required", adv, CampaignInput{Title: "  "}, KindValidation},
		{"negative budget", adv, CampaignInput{Title: "x", Budget: -5}, KindValidation},
		{"inverted period", adv, CampaignInput{Title: "x", Period: models.Period{StartsAt: now, EndsAt: now.Add(-time.Hour)}}, KindValidation},
		{"anonymous", models.Actor{}, CampaignInput{Title: "x"}, KindUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.cat.CreateCampaign(ctx, tt.actor, tt.in)
			wantKind(t, err, tt.kind)
		})
	}

	c, err := h.cat.CreateCampaign(ctx, adv, CampaignInput{Title: " Summer ", Budget: 100})
	if err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}
	if c.Status != models.CampaignStatusDraft || c.Title != "Summer" || c.AdvertiserID != adv.ID {
		t.Errorf("campaign = %+v", c)
	}
}

func TestCreateAdvertiserProposalRecipient(t *testing.T) {
	h := newHarness(t)
	adv := h.user(models.RoleAdvertiser)
	otherAdv := h.user(models.RoleAdvertiser)
	ctx := context.Background()

	_, err := h.cat.CreateAdvertiserProposal(ctx, adv, AdvertiserProposalInput{InfluencerID: otherAdv.ID, Title: "x"})
	wantKind(t, err, KindValidation)

	_, err = h.cat.CreateAdvertiserProposal(ctx, adv, AdvertiserProposalInput{InfluencerID: uuid.New(), Title: "x"})
	wantKind(t, err, KindValidation)
}

func TestVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(models.RoleAdvertiser)
	other := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)

	draft := h.campaign(owner, "draft")
	published := h.publishedCampaign(owner)

	if _, err := h.cat.Get(ctx, inf, published.Ref()); err != nil {
		t.Errorf("influencer must see published campaign: %v", err)
	}
	_, err := h.cat.Get(ctx, inf, draft.Ref())
	wantKind(t, err, KindForbidden)
	_, err = h.cat.Get(ctx, other, draft.Ref())
	wantKind(t, err, KindForbidden)
	_, err = h.cat.Get(ctx, owner, models.EntityRef{Type: models.EntityCampaign, ID: uuid.New()})
	wantKind(t, err, KindNotFound)

	list, err := h.cat.ListCampaigns(ctx, inf, storage.CampaignFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != published.ID {
		t.Errorf("influencer list = %+v, want only the published campaign", list)
	}
	list, _ = h.cat.ListCampaigns(ctx, owner, storage.CampaignFilter{})
	if len(list) != 2 {
		t.Errorf("owner list = %d campaigns, want 2", len(list))
	}
	list, _ = h.cat.ListCampaigns(ctx, other, storage.CampaignFilter{})
	if len(list) != 0 {
		t.Errorf("other advertiser list = %d campaigns, want 0", len(list))
	}

	_, err = h.cat.ListCampaignApplications(ctx, other, published.ID, nil, 0, 0)
	wantKind(t, err, KindForbidden)
}

func TestHoldersSeeClosedParents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	adv := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	stranger := h.user(models.RoleInfluencer)

	c := h.publishedCampaign(adv)
	h.mustExec(inf, c.Ref(), models.ActionApply, msg("hi"))
	h.mustExec(adv, c.Ref(), models.ActionClose, Payload{})

	if _, err := h.cat.Get(ctx, inf, c.Ref()); err != nil {
		t.Errorf("applicant must see closed campaign: %v", err)
	}
	_, err := h.cat.Get(ctx, stranger, c.Ref())
	wantKind(t, err, KindForbidden)

	p, err := h.cat.CreateProposal(ctx, inf, ProposalInput{Title: "P1"})
	if err != nil {
		t.Fatal(err)
	}
	h.mustExec(inf, p.Ref(), models.ActionPublish, Payload{})
	h.mustExec(adv, p.Ref(), models.ActionApply, msg("hi"))
	h.mustExec(inf, p.Ref(), models.ActionClose, Payload{})

	if _, err := h.cat.Get(ctx, adv, p.Ref()); err != nil {
		t.Errorf("holder must see closed proposal: %v", err)
	}
	_, err = h.cat.Get(ctx, h.user(models.RoleAdvertiser), p.Ref())
	wantKind(t, err, KindForbidden)
}

func TestRecipientDoesNotListDrafts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	adv := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)

	draft, _ := h.cat.CreateAdvertiserProposal(ctx, adv, AdvertiserProposalInput{InfluencerID: inf.ID, Title: "draft"})
	sent, _ := h.cat.CreateAdvertiserProposal(ctx, adv, AdvertiserProposalInput{InfluencerID: inf.ID, Title: "sent"})
	h.mustExec(adv, sent.Ref(), models.ActionSend, Payload{})

	list, err := h.cat.ListAdvertiserProposals(ctx, inf, storage.AdvertiserProposalFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != sent.ID {
		t.Errorf("recipient list = %+v, want only the sent offer", list)
	}
	_, err = h.cat.Get(ctx, inf, draft.Ref())
	wantKind(t, err, KindForbidden)
}

func TestHistoryAndMyApplications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(models.RoleAdvertiser)
	inf := h.user(models.RoleInfluencer)
	c := h.publishedCampaign(owner)
	app := h.mustExec(inf, c.Ref(), models.ActionApply, msg("hi")).(*models.Application)
	h.mustExec(owner, app.Ref(), models.ActionAccept, Payload{})

	history, err := h.cat.History(ctx, inf, app.Ref(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Action != "application_accept" {
		t.Errorf("history = %+v", history)
	}

	mine, err := h.cat.ListMyApplications(ctx, inf, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].Ref() != app.Ref() {
		t.Errorf("my applications = %+v", mine)
	}
}

func TestInbox(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(models.RoleInfluencer)
	stranger := h.user(models.RoleInfluencer)

	var id uuid.UUID
	err := h.store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		ns := []models.Notification{{UserID: u.ID, Message: "hello"}}
		if err := q.InsertNotifications(ctx, ns); err != nil {
			return err
		}
		id = ns[0].ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	wantKind(t, h.users.MarkRead(ctx, stranger, id), KindNotFound)
	if err := h.users.MarkRead(ctx, u, id); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	unread, err := h.users.Notifications(ctx, u, true, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 0 {
		t.Errorf("unread = %d, want 0", len(unread))
	}
}
