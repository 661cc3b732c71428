package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/jackc/pgx/v5"
)

type NotificationRepo struct {
	db DBTX
}

var notificationColumns = []string{"id", "user_id", "message", "link", "entity_type", "entity_id", "created_at"}

// InsertNotifications bulk-loads one fan-out batch with COPY. IDs and
// timestamps are assigned client side since COPY returns nothing.
func (r *NotificationRepo) InsertNotifications(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(ns))
	for i := range ns {
		if ns[i].ID == uuid.Nil {
			ns[i].ID = uuid.New()
		}
		ns[i].CreatedAt = now
		n := ns[i]
		rows[i] = []any{n.ID, n.UserID, n.Message, n.Link, n.EntityType, n.EntityID, n.CreatedAt}
	}
	_, err := r.db.CopyFrom(ctx, pgx.Identifier{"notifications"}, notificationColumns, pgx.CopyFromRows(rows))
	return mapError(err)
}

func (r *NotificationRepo) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var w where
	w.add("user_id = $%d", userID)
	if unreadOnly {
		w.conds = append(w.conds, "read_at IS NULL")
	}
	query, args := w.build(`SELECT id, user_id, message, link, entity_type, entity_id, created_at, read_at FROM notifications`,
		"created_at DESC, id", limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Link, &n.EntityType, &n.EntityID, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, n)
	}
	return out, mapError(rows.Err())
}

// MarkNotificationRead keeps the first read time. A notification owned by
// someone else is reported as missing.
func (r *NotificationRepo) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
