package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

type SeatRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SeatRepo) With(db DB) *SeatRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SeatRepo) handle() DB {
	return pick(r.pool, r.db)
}

const seatColumns = `event_id, seat_id, ticket_type_id, status, COALESCE(holder_id, ''), hold_expires_at, version`

func scanSeat(row pgx.Row) (domain.Seat, error) {
	var s domain.Seat
	err := row.Scan(
		&s.EventID,
		&s.ID,
		&s.TicketTypeID,
		&s.Status,
		&s.HolderID,
		&s.HoldExpiresAt,
		&s.Version,
	)
	return s, err
}

// ListSeats returns the raw stored state of every seat of an event ordered by
// seat id. Expiry is not applied here.
//
// Returns:
//   - error: repository.ErrNotFound if the event has no seat map.
func (r *SeatRepo) ListSeats(ctx context.Context, eventID int64) ([]domain.Seat, error) {
	const op = "postgres.SeatRepo.ListSeats"

	rows, err := r.handle().Query(ctx,
		`SELECT `+seatColumns+`
		 FROM event_seats
		 WHERE event_id = $1
		 ORDER BY seat_id`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if len(out) == 0 {
		return nil, wrapDBErr(op, repository.ErrNotFound)
	}

	return out, nil
}

func (r *SeatRepo) GetSeat(ctx context.Context, eventID int64, seatID string) (domain.Seat, error) {
	const op = "postgres.SeatRepo.GetSeat"

	s, err := scanSeat(r.handle().QueryRow(ctx,
		`SELECT `+seatColumns+`
		 FROM event_seats
		 WHERE event_id = $1 AND seat_id = $2`,
		eventID, seatID,
	))
	if err != nil {
		return domain.Seat{}, wrapDBErr(op, err)
	}

	return s, nil
}

// CompareAndSwap applies next to the seat only if its version still equals
// expectedVersion. The version check and the write are a single UPDATE, so
// of two concurrent callers holding the same version exactly one succeeds.
//
// Returns:
//   - domain.Seat: the seat after the write, with the bumped version.
//   - error: repository.ErrStaleState if the version moved.
//   - error: repository.ErrNotFound if the seat does not exist.
func (r *SeatRepo) CompareAndSwap(
	ctx context.Context,
	eventID int64,
	seatID string,
	expectedVersion int64,
	next domain.SeatState,
) (domain.Seat, error) {
	const op = "postgres.SeatRepo.CompareAndSwap"

	var holder *string
	if next.HolderID != "" {
		holder = &next.HolderID
	}

	s, err := scanSeat(r.handle().QueryRow(ctx,
		`UPDATE event_seats
		 SET status = $4, holder_id = $5, hold_expires_at = $6, version = version + 1
		 WHERE event_id = $1 AND seat_id = $2 AND version = $3
		 RETURNING `+seatColumns,
		eventID, seatID, expectedVersion,
		next.Status, holder, next.HoldExpiresAt,
	))
	if err == nil {
		return s, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Seat{}, wrapDBErr(op, err)
	}

	// Nothing matched: tell a lost race apart from an unknown seat.
	var exists bool
	if err := r.handle().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM event_seats WHERE event_id = $1 AND seat_id = $2)`,
		eventID, seatID,
	).Scan(&exists); err != nil {
		return domain.Seat{}, wrapDBErr(op, err)
	}

	if !exists {
		return domain.Seat{}, wrapDBErr(op, repository.ErrNotFound)
	}

	return domain.Seat{}, wrapDBErr(op, repository.ErrStaleState)
}

// InitSeats creates the seat map of a freshly created event. All seats start
// available at version 0.
//
// Returns:
//   - error: repository.ErrConflict if a seat id repeats.
func (r *SeatRepo) InitSeats(ctx context.Context, eventID int64, seats []domain.SeatSpec) error {
	const op = "postgres.SeatRepo.InitSeats"

	if len(seats) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(
			`INSERT INTO event_seats(event_id, seat_id, ticket_type_id, status, version)
			 VALUES ($1, $2, $3, 'available', 0)`,
			eventID, s.ID, s.TicketTypeID,
		)
	}

	if err := r.handle().SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ReclaimExpired releases every hold that expired at or before now. Each row
// gets a version bump so a concurrent CAS based on the old state loses.
func (r *SeatRepo) ReclaimExpired(ctx context.Context, now time.Time) ([]int64, error) {
	const op = "postgres.SeatRepo.ReclaimExpired"

	rows, err := r.handle().Query(ctx,
		`UPDATE event_seats
		 SET status = 'available', holder_id = NULL, hold_expires_at = NULL, version = version + 1
		 WHERE status = 'held' AND hold_expires_at <= $1
		 RETURNING event_id`,
		now,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	seen := make(map[int64]struct{})
	var events []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			events = append(events, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return events, nil
}
