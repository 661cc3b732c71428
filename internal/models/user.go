package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdvertiser Role = "ADVERTISER"
	RoleInfluencer Role = "INFLUENCER"
	RoleAdmin      Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdvertiser, RoleInfluencer, RoleAdmin:
		return true
	}
	return false
}

// Actor is the resolved caller of a workflow operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// User mirrors the identity provider's account record.
type User struct {
	ID           uuid.UUID `json:"id"`
	Role         Role      `json:"role"`
	DisplayName  *string   `json:"display_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}
