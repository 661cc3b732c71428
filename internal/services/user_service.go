package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
	"go.uber.org/zap"
)

// UserService keeps the local mirror of identity accounts and serves the
// notification inbox.
type UserService struct {
	store storage.Store
	log   *zap.Logger
}

func NewUserService(store storage.Store, log *zap.Logger) *UserService {
	return &UserService{store: store, log: log}
}

// Touch records the actor as active, creating the mirror row on first sight.
// Broadcast fan-out only reaches users that exist here.
func (s *UserService) Touch(ctx context.Context, actor models.Actor, displayName *string) (*models.User, error) {
	if actor.ID == uuid.Nil || !actor.Role.Valid() {
		return nil, newError(KindUnauthenticated, "no resolvable actor")
	}
	u := &models.User{ID: actor.ID, Role: actor.Role, DisplayName: displayName}
	err := s.store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		return q.UpsertUser(ctx, u)
	})
	if err != nil {
		return nil, fromStorage(err, "user", KindConflict)
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u *models.User
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		var err error
		u, err = q.GetUser(ctx, id)
		return err
	})
	if err != nil {
		return nil, fromStorage(err, "user", KindConflict)
	}
	return u, nil
}

func (s *UserService) Notifications(ctx context.Context, actor models.Actor, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.store.View(ctx, func(ctx context.Context, q storage.Queries) error {
		var err error
		out, err = q.ListNotifications(ctx, actor.ID, unreadOnly, limit, offset)
		return err
	})
	if err != nil {
		return nil, fromStorage(err, "notifications", KindConflict)
	}
	return out, nil
}

// MarkRead marks one of the actor's notifications read. Other users'
// notifications are reported as not found.
func (s *UserService) MarkRead(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, q storage.Queries) error {
		return q.MarkNotificationRead(ctx, id, actor.ID)
	})
	return fromStorage(err, "notification", KindConflict)
}
