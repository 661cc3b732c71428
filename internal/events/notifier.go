package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/notify"
)

// Notifier publishes notification batches so the websocket hub and the
// delivery bridge can push them to users.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) Notify(ctx context.Context, recipients []uuid.UUID, msg notify.Message) error {
	if len(recipients) == 0 {
		return nil
	}
	ids := make([]string, len(recipients))
	for i, id := range recipients {
		ids[i] = id.String()
	}
	payload := map[string]any{
		"user_ids": ids,
		"message":  msg.Text,
	}
	if msg.Link != "" {
		payload["link"] = msg.Link
	}
	if msg.Entity.Type != "" {
		payload["entity_type"] = string(msg.Entity.Type)
		payload["entity_id"] = msg.Entity.ID.String()
	}
	if err := n.pub.Publish(ctx, ChannelNotification, Event{Type: EventNotification, Payload: payload}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// NotificationRecipients extracts the user ids of a notification event.
// Malformed ids are skipped.
func NotificationRecipients(e Event) []uuid.UUID {
	var raw []any
	switch v := e.Payload["user_ids"].(type) {
	case []any:
		raw = v
	case []string:
		for _, s := range v {
			raw = append(raw, s)
		}
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
