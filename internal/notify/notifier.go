package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
)

// Notifier delivers one message to a batch of recipients. Delivery is best
// effort; an error means some or all recipients may have been missed.
type Notifier interface {
	Notify(ctx context.Context, recipients []uuid.UUID, msg Message) error
}

// StoreNotifier writes messages to the in-app inbox.
type StoreNotifier struct {
	store storage.Store
}

func NewStoreNotifier(store storage.Store) *StoreNotifier {
	return &StoreNotifier{store: store}
}

func (n *StoreNotifier) Notify(ctx context.Context, recipients []uuid.UUID, msg Message) error {
	if len(recipients) == 0 {
		return nil
	}
	rows := make([]models.Notification, len(recipients))
	for i, id := range recipients {
		rows[i] = models.Notification{UserID: id, Message: msg.Text}
		if msg.Link != "" {
			link := msg.Link
			rows[i].Link = &link
		}
		if msg.Entity.Type != "" {
			et, eid := msg.Entity.Type, msg.Entity.ID
			rows[i].EntityType = &et
			rows[i].EntityID = &eid
		}
	}
	return n.store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		return q.InsertNotifications(ctx, rows)
	})
}

// Multi fans a message out to several notifiers. Every notifier is tried;
// the failures are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, recipients []uuid.UUID, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, recipients, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, recipients []uuid.UUID, msg Message) error

func (f NotifierFunc) Notify(ctx context.Context, recipients []uuid.UUID, msg Message) error {
	return f(ctx, recipients, msg)
}
