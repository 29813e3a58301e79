package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

type OrderRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OrderRepo) With(db DB) *OrderRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() DB {
	return pick(r.pool, r.db)
}

const orderColumns = `id, user_id, event_id, seat_ids, total_cents, currency, payment_status, payment_ref, created_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.EventID,
		&o.SeatIDs,
		&o.TotalCents,
		&o.Currency,
		&o.PaymentStatus,
		&o.PaymentRef,
		&o.CreatedAt,
	)
	return o, err
}

// Create inserts the order and fills CreatedAt from the database clock.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	const op = "postgres.OrderRepo.Create"

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	err := r.handle().QueryRow(ctx,
		`INSERT INTO orders(id, user_id, event_id, seat_ids, total_cents, currency, payment_status, payment_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		o.ID, o.UserID, o.EventID, o.SeatIDs, o.TotalCents, o.Currency, o.PaymentStatus, o.PaymentRef,
	).Scan(&o.CreatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *OrderRepo) SetPaymentStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.PaymentStatus,
	ref string,
) error {
	const op = "postgres.OrderRepo.SetPaymentStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE orders SET payment_status = $2, payment_ref = $3 WHERE id = $1`,
		id, status, ref,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	const op = "postgres.OrderRepo.Get"

	o, err := scanOrder(r.handle().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		return domain.Order{}, wrapDBErr(op, err)
	}

	return o, nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	const op = "postgres.OrderRepo.ListByUser"

	rows, err := r.handle().Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *OrderRepo) CountByEvent(ctx context.Context, eventIDs []int64) (map[int64]int64, error) {
	const op = "postgres.OrderRepo.CountByEvent"

	out := make(map[int64]int64, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	rows, err := r.handle().Query(ctx,
		`SELECT event_id, COUNT(*)
		 FROM orders
		 WHERE event_id = ANY($1) AND payment_status = 'paid'
		 GROUP BY event_id`,
		eventIDs,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
