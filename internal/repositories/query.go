package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/storage"
)

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

// add appends cond, where %d stands for the next placeholder number.
func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

// build appends the WHERE clause plus ORDER/LIMIT/OFFSET to query.
func (w *where) build(query, order string, limit, offset int) (string, []any) {
	if len(w.conds) > 0 {
		query += " WHERE " + strings.Join(w.conds, " AND ")
	}
	n := len(w.args)
	query += fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", order, n+1, n+2)
	return query, append(w.args, storage.ClampLimit(limit), max(offset, 0))
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromNullTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func textArray[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// missOrStale explains a conditional update that matched no rows: the row is
// either gone or its status moved on.
func missOrStale(ctx context.Context, db DBTX, table string, id uuid.UUID) error {
	var exists bool
	err := db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return mapError(err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrStaleStatus
}
