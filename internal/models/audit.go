package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          uuid.UUID  `json:"id"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"`
	ActorType   string     `json:"actor_type"` // advertiser/influencer/admin/system
	Action      string     `json:"action"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    uuid.UUID  `json:"entity_id"`
	Meta        any        `json:"meta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Notification is one recipient's in-app copy of a fan-out message.
type Notification struct {
	ID         uuid.UUID   `json:"id"`
	UserID     uuid.UUID   `json:"user_id"`
	Message    string      `json:"message"`
	Link       *string     `json:"link,omitempty"`
	EntityType *EntityType `json:"entity_type,omitempty"`
	EntityID   *uuid.UUID  `json:"entity_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ReadAt     *time.Time  `json:"read_at,omitempty"`
}
