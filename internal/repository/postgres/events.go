package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	return pick(r.pool, r.db)
}

const eventColumns = `id, user_id, event_type, name, slug, description, featured_image, location,
	start_date_time, end_date_time, status, artist_ids, performer_ids, instructor_ids,
	speaker_ids, trailer_links, showtimes, ticket_details, created_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		e       domain.Event
		tickets []byte
	)

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Type,
		&e.Name,
		&e.Slug,
		&e.Description,
		&e.FeaturedImage,
		&e.Location,
		&e.StartsAt,
		&e.EndsAt,
		&e.Status,
		&e.ArtistIDs,
		&e.PerformerIDs,
		&e.InstructorIDs,
		&e.SpeakerIDs,
		&e.TrailerLinks,
		&e.Showtimes,
		&tickets,
		&e.CreatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}

	if len(tickets) > 0 {
		if err := json.Unmarshal(tickets, &e.TicketDetails); err != nil {
			return domain.Event{}, err
		}
	}

	return e, nil
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Create inserts the base event record.
//
// Returns:
//   - int64: the new event id.
//   - error: repository.ErrConflict if the slug is already taken.
func (r *EventRepo) Create(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "postgres.EventRepo.Create"

	tickets, err := json.Marshal(orEmpty(e.TicketDetails))
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	if e.Status == "" {
		e.Status = domain.EventActive
	}

	err = r.handle().QueryRow(ctx,
		`INSERT INTO events(
			user_id, event_type, name, slug, description, featured_image, location,
			start_date_time, end_date_time, status, artist_ids, performer_ids,
			instructor_ids, speaker_ids, trailer_links, showtimes, ticket_details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id, created_at`,
		e.UserID, e.Type, e.Name, e.Slug, e.Description, e.FeaturedImage, e.Location,
		e.StartsAt, e.EndsAt, e.Status,
		orEmpty(e.ArtistIDs), orEmpty(e.PerformerIDs), orEmpty(e.InstructorIDs), orEmpty(e.SpeakerIDs),
		orEmpty(e.TrailerLinks), orEmpty(e.Showtimes), tickets,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return e.ID, nil
}

func (r *EventRepo) Get(ctx context.Context, id int64) (domain.Event, error) {
	const op = "postgres.EventRepo.Get"

	e, err := scanEvent(r.handle().QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	))
	if err != nil {
		return domain.Event{}, wrapDBErr(op, err)
	}

	return e, nil
}

func (r *EventRepo) GetBySlug(ctx context.Context, slug string) (domain.Event, error) {
	const op = "postgres.EventRepo.GetBySlug"

	e, err := scanEvent(r.handle().QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE slug = $1`,
		slug,
	))
	if err != nil {
		return domain.Event{}, wrapDBErr(op, err)
	}

	return e, nil
}

func (r *EventRepo) SlugsLike(ctx context.Context, base string) ([]string, error) {
	const op = "postgres.EventRepo.SlugsLike"

	rows, err := r.handle().Query(ctx,
		`SELECT slug FROM events WHERE slug = $1 OR slug LIKE $2`,
		base, base+"-%",
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	slugs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return slugs, nil
}

// ListActive returns active events within the filter's date range and
// location, ordered by start time. Artist and price criteria are left to
// the caller.
func (r *EventRepo) ListActive(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	const op = "postgres.EventRepo.ListActive"

	rows, err := r.handle().Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE status = 'active'
		   AND ($1::timestamptz IS NULL OR start_date_time >= $1)
		   AND ($2::timestamptz IS NULL OR start_date_time <= $2)
		   AND ($3::timestamptz IS NULL OR start_date_time > $3)
		   AND ($4 = '' OR location = $4)
		 ORDER BY start_date_time NULLS LAST, id`,
		f.From, f.To, f.StartsAfter, f.Location,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	events, err := collectEvents(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return events, nil
}

func (r *EventRepo) SetStatus(ctx context.Context, id int64, status domain.EventStatus) error {
	const op = "postgres.EventRepo.SetStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE events SET status = $2 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *EventRepo) Locations(ctx context.Context) ([]string, error) {
	const op = "postgres.EventRepo.Locations"

	rows, err := r.handle().Query(ctx,
		`SELECT DISTINCT location
		 FROM events
		 WHERE status = 'active' AND location <> ''
		 ORDER BY location`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	locations, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return locations, nil
}
