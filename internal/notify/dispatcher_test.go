package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/influencer-marketplace/backend/internal/storage/memory"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]uuid.UUID
	seen    map[uuid.UUID]int
}

func (r *recorder) Notify(_ context.Context, ids []uuid.UUID, _ Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[uuid.UUID]int{}
	}
	r.batches = append(r.batches, ids)
	for _, id := range ids {
		r.seen[id]++
	}
	return nil
}

func seedUsers(t *testing.T, store storage.Store, role models.Role, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	err := store.WithinTx(context.Background(), func(ctx context.Context, q storage.Queries) error {
		for i := range ids {
			ids[i] = uuid.New()
			if err := q.UpsertUser(ctx, &models.User{ID: ids[i], Role: role}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed users: %v", err)
	}
	return ids
}

func TestDispatcherBroadcastBatches(t *testing.T) {
	store := memory.New()
	influencers := seedUsers(t, store, models.RoleInfluencer, 250)
	seedUsers(t, store, models.RoleAdvertiser, 5)
	actor := models.Actor{ID: uuid.New(), Role: models.RoleAdvertiser}

	rec := &recorder{}
	d := NewDispatcher(NewDirectory(store), rec, Options{BatchSize: 100, Concurrency: 2}, telemetry.NewMetrics("test"), zap.NewNop())

	tr := Transition{
		Entity: models.EntityRef{Type: models.EntityCampaign, ID: uuid.New()},
		From:   "DRAFT", To: "PUBLISHED", Actor: actor, OwnerID: actor.ID, Title: "Spring launch",
	}
	if err := d.Deliver(context.Background(), tr); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if len(rec.batches) != 3 {
		t.Errorf("batches = %d, want 3", len(rec.batches))
	}
	if len(rec.seen) != len(influencers) {
		t.Fatalf("recipients = %d, want %d", len(rec.seen), len(influencers))
	}
	for _, id := range influencers {
		if rec.seen[id] != 1 {
			t.Errorf("influencer %s notified %d times, want 1", id, rec.seen[id])
		}
	}
}

func TestDispatcherSkipsActor(t *testing.T) {
	actor := models.Actor{ID: uuid.New(), Role: models.RoleInfluencer}
	rec := &recorder{}
	d := NewDispatcher(NewDirectory(memory.New()), rec, Options{}, nil, zap.NewNop())

	// The applicant cancelling is also the subject; only the owner hears about it.
	owner := uuid.New()
	tr := Transition{
		Entity: models.EntityRef{Type: models.EntityApplication, ID: uuid.New()},
		From:   "PENDING", To: "CANCELLED", Actor: actor, OwnerID: owner, SubjectID: actor.ID,
	}
	if err := d.Deliver(context.Background(), tr); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if rec.seen[owner] != 1 || rec.seen[actor.ID] != 0 {
		t.Errorf("seen = %v, want only owner", rec.seen)
	}
}

func TestDispatcherFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	failing := NotifierFunc(func(context.Context, []uuid.UUID, Message) error {
		return errors.New("delivery service down")
	})
	d := NewDispatcher(NewDirectory(memory.New()), failing, Options{Timeout: time.Second}, nil, zap.New(core))

	tr := Transition{
		Entity: models.EntityRef{Type: models.EntityApplication, ID: uuid.New()},
		From:   "PENDING", To: "ACCEPTED", SubjectID: uuid.New(),
	}
	d.Dispatch(tr)
	d.Wait()

	if logs.FilterMessage("notification batch failed").Len() != 1 {
		t.Errorf("batch failure log entries = %d, want 1", logs.FilterMessage("notification batch failed").Len())
	}
	if logs.FilterMessage("notification fan-out incomplete").Len() != 1 {
		t.Errorf("fan-out summary log entries = %d, want 1", logs.FilterMessage("notification fan-out incomplete").Len())
	}
}

func TestStoreNotifierWritesInbox(t *testing.T) {
	store := memory.New()
	user := uuid.New()
	ref := models.EntityRef{Type: models.EntityCampaign, ID: uuid.New()}

	n := NewStoreNotifier(store)
	if err := n.Notify(context.Background(), []uuid.UUID{user}, Message{Text: "hello", Link: Link(ref), Entity: ref}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	var got []models.Notification
	_ = store.View(context.Background(), func(ctx context.Context, q storage.Queries) error {
		var err error
		got, err = q.ListNotifications(ctx, user, true, 10, 0)
		return err
	})
	if len(got) != 1 {
		t.Fatalf("inbox size = %d, want 1", len(got))
	}
	if got[0].Message != "hello" || got[0].EntityID == nil || *got[0].EntityID != ref.ID {
		t.Errorf("notification = %+v", got[0])
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	m := Multi{NotifierFunc(func(context.Context, []uuid.UUID, Message) error { return boom }), rec}

	err := m.Notify(context.Background(), []uuid.UUID{uuid.New()}, Message{Text: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("Notify() error = %v, want boom", err)
	}
	if len(rec.batches) != 1 {
		t.Error("second notifier must still be called")
	}
}
