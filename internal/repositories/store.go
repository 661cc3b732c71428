// Package repositories is the PostgreSQL implementation of storage.Store.
package repositories

import (
	"context"
	"errors"

	"github.com/influencer-marketplace/backend/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Queries groups every repository over one connection or transaction.
type Queries struct {
	*CampaignRepo
	*ApplicationRepo
	*ProposalRepo
	*ProposalApplicationRepo
	*AdvertiserProposalRepo
	*ResponseRepo
	*UserRepo
	*AuditRepo
	*NotificationRepo
}

func NewQueries(db DBTX) *Queries {
	return &Queries{
		CampaignRepo:            &CampaignRepo{db: db},
		ApplicationRepo:         &ApplicationRepo{db: db},
		ProposalRepo:            &ProposalRepo{db: db},
		ProposalApplicationRepo: &ProposalApplicationRepo{db: db},
		AdvertiserProposalRepo:  &AdvertiserProposalRepo{db: db},
		ResponseRepo:            &ResponseRepo{db: db},
		UserRepo:                &UserRepo{db: db},
		AuditRepo:               &AuditRepo{db: db},
		NotificationRepo:        &NotificationRepo{db: db},
	}
}

var _ storage.Queries = (*Queries)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, q storage.Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError(err)
	}
	if err := fn(ctx, NewQueries(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, q storage.Queries) error) error {
	return fn(ctx, NewQueries(s.pool))
}

var _ storage.Store = (*Store)(nil)

// mapError translates driver errors onto the storage sentinels. Errors it does
// not recognise are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &driverError{sentinel: storage.ErrDuplicate, err: err}
		case "23503": // foreign_key_violation
			return &driverError{sentinel: storage.ErrNotFound, err: err}
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return &driverError{sentinel: storage.ErrStaleStatus, err: err}
		case "57P01", "57P02", "57P03", "53300": // shutdown, too_many_connections
			return &driverError{sentinel: storage.ErrUnavailable, err: err}
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return &driverError{sentinel: storage.ErrUnavailable, err: err}
	}
	return err
}

// driverError keeps the original driver error reachable while matching a
// storage sentinel with errors.Is.
type driverError struct {
	sentinel error
	err      error
}

func (e *driverError) Error() string { return e.sentinel.Error() + ": " + e.err.Error() }

func (e *driverError) Is(target error) bool { return target == e.sentinel }

func (e *driverError) Unwrap() error { return e.err }
