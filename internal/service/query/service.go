package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
	redisx "github.com/kirinyoku/quicktix/internal/redis"
	"github.com/kirinyoku/quicktix/internal/repository"
	redisrepo "github.com/kirinyoku/quicktix/internal/repository/redis"
)

type Config struct {
	DetailsTTL   time.Duration
	ListTTL      time.Duration
	SeatsTTL     time.Duration
	LocationsTTL time.Duration
}

// Service serves the read models. Results are cached in Redis; a nil cache
// reads straight from the store.
type Service struct {
	store repository.Repos
	cache *redisrepo.Cache
	clock clock.Clock
	cfg   Config
}

func New(store repository.Repos, cache *redisrepo.Cache, clk clock.Clock, cfg Config) *Service {
	if cfg.DetailsTTL <= 0 {
		cfg.DetailsTTL = 60 * time.Second
	}

	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 15 * time.Second
	}

	if cfg.SeatsTTL <= 0 {
		cfg.SeatsTTL = 30 * time.Second
	}

	if cfg.LocationsTTL <= 0 {
		cfg.LocationsTTL = 10 * time.Minute
	}

	if clk == nil {
		clk = clock.Real()
	}

	return &Service{
		store: store,
		cache: cache,
		clock: clk,
		cfg:   cfg,
	}
}

func cached[T any](
	ctx context.Context,
	s *Service,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if s.cache == nil {
		return loader(ctx)
	}
	return redisrepo.GetOrSetJSON(ctx, s.cache, key, ttl, loader)
}

// ListEvents returns active events matching filter, enriched with artist and
// ticket type names.
//
// Date range and location are applied by the store. Artist membership and
// price range are applied here.
func (s *Service) ListEvents(ctx context.Context, filter domain.EventFilter) ([]EventView, error) {
	const op = "service.query.ListEvents"

	var gen int64
	if s.cache != nil {
		// a failed read leaves gen at 0, which only risks a stale listing
		gen, _ = s.cache.ListGeneration(ctx)
	}
	key := redisx.KeyEventList(gen, filterHash(filter))

	views, err := cached(ctx, s, key, s.cfg.ListTTL, func(ctx context.Context) ([]EventView, error) {
		events, err := s.store.Events().ListActive(ctx, filter)
		if err != nil {
			return nil, err
		}

		events = FilterByArtists(events, filter.ArtistIDs)
		events = FilterByPrice(events, filter.MinPrice, filter.MaxPrice)

		return s.enrichAll(ctx, events)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return views, nil
}

// Trending returns up to eight active events ranked by paid orders.
func (s *Service) Trending(ctx context.Context) ([]EventView, error) {
	const op = "service.query.Trending"

	views, err := cached(ctx, s, redisx.KeyTrending(), s.cfg.ListTTL, func(ctx context.Context) ([]EventView, error) {
		events, err := s.store.Events().ListActive(ctx, domain.EventFilter{})
		if err != nil {
			return nil, err
		}

		ids := make([]int64, len(events))
		for i, ev := range events {
			ids[i] = ev.ID
		}

		counts, err := s.store.Orders().CountByEvent(ctx, ids)
		if err != nil {
			return nil, err
		}

		return s.enrichAll(ctx, RankTrending(events, counts))
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return views, nil
}

// Upcoming returns up to eight active events that have not started yet.
func (s *Service) Upcoming(ctx context.Context) ([]EventView, error) {
	const op = "service.query.Upcoming"

	views, err := cached(ctx, s, redisx.KeyUpcoming(), s.cfg.ListTTL, func(ctx context.Context) ([]EventView, error) {
		now := s.clock.Now()

		events, err := s.store.Events().ListActive(ctx, domain.EventFilter{StartsAfter: &now})
		if err != nil {
			return nil, err
		}

		return s.enrichAll(ctx, Upcoming(events, now))
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return views, nil
}

// EventDetails returns one event by slug.
//
// Returns:
//   - error: query.ErrEventNotFound if no event has the slug.
func (s *Service) EventDetails(ctx context.Context, slug string) (EventView, error) {
	const op = "service.query.EventDetails"

	view, err := cached(ctx, s, redisx.KeyEventDetails(slug), s.cfg.DetailsTTL, func(ctx context.Context) (EventView, error) {
		ev, err := s.store.Events().GetBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return EventView{}, ErrEventNotFound
			}
			return EventView{}, err
		}

		views, err := s.enrichAll(ctx, []domain.Event{ev})
		if err != nil {
			return EventView{}, err
		}

		return views[0], nil
	})
	if err != nil {
		return EventView{}, fmt.Errorf("%s:%w", op, err)
	}

	return view, nil
}

// EventSeats returns the seat map of the event with the given slug as
// readers must see it at the time of the call: expired holds are reported
// as available even when the cached copy predates their expiry.
func (s *Service) EventSeats(ctx context.Context, slug string) (SeatMap, error) {
	const op = "service.query.EventSeats"

	ev, err := s.EventDetails(ctx, slug)
	if err != nil {
		return SeatMap{}, fmt.Errorf("%s:%w", op, err)
	}

	m, err := s.SeatMapByID(ctx, ev.ID)
	if err != nil {
		return SeatMap{}, fmt.Errorf("%s:%w", op, err)
	}

	return m, nil
}

// SeatMapByID is EventSeats keyed by event id.
func (s *Service) SeatMapByID(ctx context.Context, eventID int64) (SeatMap, error) {
	const op = "service.query.SeatMapByID"

	loader := func(ctx context.Context) ([]domain.Seat, error) {
		seats, err := s.store.Seats().ListSeats(ctx, eventID)
		if errors.Is(err, repository.ErrNotFound) {
			return []domain.Seat{}, nil
		}
		return seats, err
	}

	var (
		raw []domain.Seat
		err error
	)
	if gen, genErr := s.seatGeneration(ctx, eventID); genErr == nil {
		raw, err = cached(ctx, s, redisx.KeyEventSeats(eventID, gen), s.cfg.SeatsTTL, loader)
	} else {
		// without the generation a cached map could be stale, so skip the cache
		raw, err = loader(ctx)
	}
	if err != nil {
		return SeatMap{}, fmt.Errorf("%s:%w", op, err)
	}

	return buildSeatMap(eventID, raw, s.clock.Now()), nil
}

// seatGeneration must be read before the seats are loaded.
func (s *Service) seatGeneration(ctx context.Context, eventID int64) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.SeatGeneration(ctx, eventID)
}

func (s *Service) Locations(ctx context.Context) ([]string, error) {
	const op = "service.query.Locations"

	locations, err := cached(ctx, s, redisx.KeyLocations(), s.cfg.LocationsTTL, func(ctx context.Context) ([]string, error) {
		return s.store.Events().Locations(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return locations, nil
}

func (s *Service) Artists(ctx context.Context) ([]domain.Artist, error) {
	const op = "service.query.Artists"

	artists, err := cached(ctx, s, redisx.KeyArtists(), s.cfg.LocationsTTL, func(ctx context.Context) ([]domain.Artist, error) {
		return s.store.Users().ActiveArtists(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return artists, nil
}

// enrichAll resolves names for a batch with one artist lookup and one
// ticket type lookup.
func (s *Service) enrichAll(ctx context.Context, events []domain.Event) ([]EventView, error) {
	views := make([]EventView, 0, len(events))
	if len(events) == 0 {
		return views, nil
	}

	artists, err := s.store.Users().ActiveArtists(ctx)
	if err != nil {
		return nil, err
	}

	artistNames := make(map[int64]string, len(artists))
	for _, a := range artists {
		artistNames[a.ID] = a.Name
	}

	var typeIDs []int64
	seen := make(map[int64]struct{})
	for _, ev := range events {
		for _, line := range ev.TicketDetails {
			if _, ok := seen[line.TicketTypeID]; !ok {
				seen[line.TicketTypeID] = struct{}{}
				typeIDs = append(typeIDs, line.TicketTypeID)
			}
		}
	}

	typeNames, err := s.store.Catalog().Names(ctx, domain.KindTicketType, typeIDs)
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		views = append(views, enrich(ev, artistNames, typeNames))
	}

	return views, nil
}

// filterHash keys cached listings. Equal filters hash equally.
func filterHash(f domain.EventFilter) string {
	b, _ := json.Marshal(f)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
