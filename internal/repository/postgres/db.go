package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/quicktix/internal/repository"
)

// serialization failures are retried this many times before giving up
const maxTxAttempts = 3

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
	db   DB
}

var _ repository.Transactor = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// With returns a copy of the store whose repositories run on db.
func (s *Store) With(db DB) *Store {
	cp := *s
	cp.db = db
	return &cp
}

// RunTx runs fn in a serializable transaction and retries it when Postgres
// reports a serialization failure or deadlock.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos) error,
) error {
	return s.RunTxWithOpts(ctx, nil, fn)
}

func (s *Store) RunTxWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx repository.Repos) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.runTxOnce(ctx, txOpts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}

	return err
}

func (s *Store) runTxOnce(
	ctx context.Context,
	txOpts pgx.TxOptions,
	fn func(ctx context.Context, tx repository.Repos) error,
) error {
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, s.With(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Seats() repository.SeatRepository {
	return &SeatRepo{pool: s.pool, db: s.db}
}

func (s *Store) Orders() repository.OrderRepository {
	return &OrderRepo{pool: s.pool, db: s.db}
}

func (s *Store) Events() repository.EventRepository {
	return &EventRepo{pool: s.pool, db: s.db}
}

func (s *Store) Users() repository.UserRepository {
	return &UserRepo{pool: s.pool, db: s.db}
}

func (s *Store) Catalog() repository.CatalogRepository {
	return &CatalogRepo{pool: s.pool, db: s.db}
}

func (s *Store) Community() repository.CommunityRepository {
	return &CommunityRepo{pool: s.pool, db: s.db}
}

// pick returns the transaction handle when set, the pool otherwise.
func pick(pool *pgxpool.Pool, db DB) DB {
	if db != nil {
		return db
	}
	return pool
}
