package events

import "context"

// Channels
const (
	ChannelWorkflow     = "events:workflow"
	ChannelNotification = "events:notification"
)

// Event types
const (
	EventTransition   = "workflow_transition"
	EventNotification = "notification"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(Event)) error
}
