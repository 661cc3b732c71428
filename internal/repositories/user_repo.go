package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
)

type UserRepo struct {
	db DBTX
}

func (r *UserRepo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, role, display_name, created_at, last_active_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Role, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// UpsertUser mirrors an identity account. role follows the latest token and a
// nil display name keeps the stored one.
func (r *UserRepo) UpsertUser(ctx context.Context, u *models.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, role, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			display_name = COALESCE(EXCLUDED.display_name, users.display_name),
			last_active_at = now()
		RETURNING display_name, created_at, last_active_at
	`, u.ID, u.Role, u.DisplayName).Scan(&u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	return mapError(err)
}

func (r *UserRepo) ListUserIDsByRole(ctx context.Context, role models.Role, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM users WHERE role = $1 AND id > $2 ORDER BY id LIMIT $3
	`, role, after, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		ids = append(ids, id)
	}
	return ids, mapError(rows.Err())
}
