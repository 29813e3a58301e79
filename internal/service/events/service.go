package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
	"github.com/kirinyoku/quicktix/internal/uow"
)

const slugAttempts = 3

type Uploader interface {
	Upload(ctx context.Context, dir, filename, contentType string, r io.Reader) (string, error)
}

type Cache interface {
	InvalidateEvent(ctx context.Context, eventID int64, slug string) error
}

type Notifier interface {
	PublishEventChanged(ctx context.Context, eventID int64) error
}

type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type CreateEventInput struct {
	UserID        int64
	Type          domain.EventType
	Name          string
	Description   string
	Location      string
	StartsAt      *time.Time
	EndsAt        *time.Time
	ArtistIDs     []int64
	PerformerIDs  []int64
	InstructorIDs []int64
	SpeakerIDs    []int64
	TrailerLinks  []string
	Showtimes     []time.Time
	Tickets       []domain.TicketLine
	// Seats lays out the seat map. When empty, one seat per ticket is
	// generated from the ticket lines.
	Seats []domain.SeatSpec
	Image *Image
}

type Service struct {
	store    repository.Transactor
	uow      *uow.UoW
	uploader Uploader
	cache    Cache
	notifier Notifier
	logger   *slog.Logger
}

func New(
	store repository.Transactor,
	uploader Uploader,
	cache Cache,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		uow:      uow.NewUoW(store),
		uploader: uploader,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateEvent validates the payload against its event type, uploads the
// featured image, picks a unique slug and stores the event together with its
// seat map in one transaction.
//
// Returns:
//   - domain.Event: the stored event.
//   - error: domain.ErrValidation for payloads the event type rejects.
//   - error: events.ErrUploadFailed if the image could not be stored.
//   - error: events.ErrSlugExhausted if every slug attempt collided.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	const op = "service.events.CreateEvent"

	seats, err := validate(&in)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s:%w", op, err)
	}

	if s.uploader == nil {
		return domain.Event{}, fmt.Errorf("%s:%w: storage is not configured", op, ErrUploadFailed)
	}

	imageURL, err := s.uploader.Upload(ctx, "events", in.Image.Filename, in.Image.ContentType, in.Image.Body)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s:%w: %w", op, ErrUploadFailed, err)
	}

	ev := domain.Event{
		UserID:        in.UserID,
		Type:          in.Type,
		Name:          in.Name,
		Description:   in.Description,
		FeaturedImage: imageURL,
		Location:      in.Location,
		StartsAt:      in.StartsAt,
		EndsAt:        in.EndsAt,
		Status:        domain.EventActive,
		ArtistIDs:     in.ArtistIDs,
		PerformerIDs:  in.PerformerIDs,
		InstructorIDs: in.InstructorIDs,
		SpeakerIDs:    in.SpeakerIDs,
		TrailerLinks:  in.TrailerLinks,
		Showtimes:     in.Showtimes,
		TicketDetails: in.Tickets,
	}

	base := Slugify(in.Name)

	for attempt := 0; attempt < slugAttempts; attempt++ {
		taken, err := s.store.Events().SlugsLike(ctx, base)
		if err != nil {
			return domain.Event{}, fmt.Errorf("%s:%w", op, err)
		}
		ev.Slug = NextSlug(base, taken)

		err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
			id, err := tx.Events().Create(ctx, &ev)
			if err != nil {
				return err
			}

			if len(seats) > 0 {
				if err := tx.Seats().InitSeats(ctx, id, seats); err != nil {
					return err
				}
			}

			after(func(ctx context.Context) {
				s.changed(ctx, ev)
			})

			return nil
		})
		if errors.Is(err, repository.ErrConflict) {
			// another event took the slug between lookup and insert
			s.logger.Debug("slug taken, retrying", "slug", ev.Slug)
			continue
		}
		if err != nil {
			return domain.Event{}, fmt.Errorf("%s:%w", op, err)
		}

		s.logger.Info("event created", "event_id", ev.ID, "slug", ev.Slug, "type", ev.Type, "seats", len(seats))

		return ev, nil
	}

	return domain.Event{}, fmt.Errorf("%s:%w", op, ErrSlugExhausted)
}

func (s *Service) changed(ctx context.Context, ev domain.Event) {
	if s.cache != nil {
		if err := s.cache.InvalidateEvent(ctx, ev.ID, ev.Slug); err != nil {
			s.logger.Warn("event cache invalidation failed", "event_id", ev.ID, "error", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.PublishEventChanged(ctx, ev.ID); err != nil {
			s.logger.Warn("event change publish failed", "event_id", ev.ID, "error", err)
		}
	}
}

// validate checks in and returns the seat map to create.
func validate(in *CreateEventInput) ([]domain.SeatSpec, error) {
	ve := &domain.ValidationError{}

	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)

	if in.UserID <= 0 {
		ve.Add("user_id", "is required")
	}
	if in.Name == "" {
		ve.Add("name", "is required")
	}

	checkKind(*in, ve)

	if in.EndsAt != nil {
		if in.StartsAt == nil {
			ve.Add("end_date_time", "requires start_date_time")
		} else if !in.EndsAt.After(*in.StartsAt) {
			ve.Add("end_date_time", "must be after start_date_time")
		}
	}

	switch {
	case in.Image == nil || in.Image.Body == nil:
		ve.Add("featured_image", "Featured image is required.")
	case !strings.HasPrefix(in.Image.ContentType, "image/"):
		ve.Add("featured_image", "Featured image must be an image file.")
	}

	generated := 0
	priced := make(map[int64]bool, len(in.Tickets))
	for _, line := range in.Tickets {
		if line.TicketTypeID <= 0 {
			ve.Add("ticket_details", "ticket_type_id is required")
		}
		if line.PriceCents < 0 {
			ve.Add("ticket_details", "price must not be negative")
		}
		if line.Quantity < 0 {
			ve.Add("ticket_details", "quantity must not be negative")
		}
		if priced[line.TicketTypeID] {
			ve.Add("ticket_details", "ticket type listed twice")
		}
		priced[line.TicketTypeID] = true
		if line.Quantity > 0 {
			generated += min(line.Quantity, MaxSeatsPerEvent+1)
		}
	}

	tooMany := fmt.Sprintf("at most %d seats per event", MaxSeatsPerEvent)
	if len(in.Seats) > MaxSeatsPerEvent {
		ve.Add("seats", tooMany)
		return nil, ve.Err()
	}
	if len(in.Seats) == 0 && generated > MaxSeatsPerEvent {
		ve.Add("ticket_details", tooMany)
		return nil, ve.Err()
	}

	seats := in.Seats
	if len(seats) == 0 {
		seats = generateSeats(in.Tickets)
	}

	seen := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if seat.ID == "" {
			ve.Add("seats", "seat id is required")
			continue
		}
		if seen[seat.ID] {
			ve.Add("seats", "duplicate seat "+seat.ID)
		}
		seen[seat.ID] = true
		if !priced[seat.TicketTypeID] {
			ve.Add("seats", "seat "+seat.ID+" has an unpriced ticket type")
		}
	}

	if err := ve.Err(); err != nil {
		return nil, err
	}

	return seats, nil
}

// MaxSeatsPerEvent caps the seat map of one event, whether listed or
// generated from ticket quantities.
const MaxSeatsPerEvent = 10000

// generateSeats lays out Quantity seats per ticket line, named
// <ticket type>-<n>.
func generateSeats(lines []domain.TicketLine) []domain.SeatSpec {
	var out []domain.SeatSpec
	for _, line := range lines {
		for n := 1; n <= line.Quantity; n++ {
			out = append(out, domain.SeatSpec{
				ID:           fmt.Sprintf("%d-%d", line.TicketTypeID, n),
				TicketTypeID: line.TicketTypeID,
			})
		}
	}
	return out
}
