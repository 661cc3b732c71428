package repositories

import (
	"context"
	"encoding/json"

	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
)

type AuditRepo struct {
	db DBTX
}

func (r *AuditRepo) InsertAudit(ctx context.Context, entry *models.AuditLog) error {
	var meta []byte
	if entry.Meta != nil {
		var err error
		if meta, err = json.Marshal(entry.Meta); err != nil {
			return err
		}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO audit_log (actor_user_id, actor_type, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, entry.ActorUserID, entry.ActorType, entry.Action, entry.EntityType, entry.EntityID, meta,
	).Scan(&entry.ID, &entry.CreatedAt)
	return mapError(err)
}

// ListAudit returns the history of one entity, newest first.
func (r *AuditRepo) ListAudit(ctx context.Context, ref models.EntityRef, limit, offset int) ([]models.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, actor_user_id, actor_type, action, entity_type, entity_id, meta, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, ref.Type, ref.ID, storage.ClampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var (
			e    models.AuditLog
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.ActorType, &e.Action, &e.EntityType, &e.EntityID, &meta, &e.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		if len(meta) > 0 {
			var m map[string]any
			if err := json.Unmarshal(meta, &m); err == nil {
				e.Meta = m
			}
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err())
}
