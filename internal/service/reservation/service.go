package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
	redisrepo "github.com/kirinyoku/quicktix/internal/repository/redis"
)

type Config struct {
	MinHoldTTL     time.Duration
	MaxHoldTTL     time.Duration
	DefaultHoldTTL time.Duration
	// MaxAttempts bounds how often a lost compare-and-swap is retried.
	MaxAttempts int
}

type Cache interface {
	InvalidateSeats(ctx context.Context, eventID int64) error
}

type Notifier interface {
	PublishSeatsChanged(ctx context.Context, eventID int64) error
}

type Limiter interface {
	Allow(ctx context.Context, id string) (redisrepo.Decision, error)
}

// Service is the hold manager. Holds are written as seat state through
// compare-and-swap, never through locks, so concurrent acquires on one seat
// produce exactly one winner.
type Service struct {
	store    repository.Repos
	cache    Cache
	notifier Notifier
	limiter  Limiter
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
}

func New(
	store repository.Repos,
	cache Cache,
	notifier Notifier,
	limiter Limiter,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MinHoldTTL <= 0 {
		cfg.MinHoldTTL = 15 * time.Second
	}

	if cfg.MaxHoldTTL <= 0 || cfg.MaxHoldTTL < cfg.MinHoldTTL {
		cfg.MaxHoldTTL = 10 * time.Minute
	}

	if cfg.DefaultHoldTTL <= 0 {
		cfg.DefaultHoldTTL = 5 * time.Minute
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	if clk == nil {
		clk = clock.Real()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		cache:    cache,
		notifier: notifier,
		limiter:  limiter,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
	}
}

// Acquire places or extends a hold on one seat.
//
// Parameters:
//   - ctx: request-scoped context.
//   - eventID, seatID: the seat to hold.
//   - holderID: the session or user the hold belongs to.
//   - ttl: requested hold duration; zero means the default, other values
//     are clamped to the configured bounds.
//   - clientKey: rate limit bucket of the caller; empty disables limiting.
//
// Returns:
//   - domain.Hold: the hold now in place.
//   - error: reservation.ErrSeatSold if the seat is sold.
//   - error: reservation.ErrSeatHeld if another holder has an active hold.
//   - error: reservation.ErrHoldContention if every attempt lost a race.
//   - error: reservation.ErrRateLimited if the caller exceeded its budget.
func (s *Service) Acquire(
	ctx context.Context,
	eventID int64,
	seatID string,
	holderID string,
	ttl time.Duration,
	clientKey string,
) (domain.Hold, error) {
	const op = "service.reservation.Acquire"

	if holderID == "" {
		return domain.Hold{}, fmt.Errorf("%s:%w", op, domain.Invalid("holder_id", "is required"))
	}

	if err := s.allow(ctx, clientKey); err != nil {
		return domain.Hold{}, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.ensureActive(ctx, eventID); err != nil {
		return domain.Hold{}, fmt.Errorf("%s:%w", op, err)
	}

	ttl = s.clampTTL(ttl)

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		seat, err := s.getSeat(ctx, eventID, seatID)
		if err != nil {
			return domain.Hold{}, fmt.Errorf("%s:%w", op, err)
		}

		now := s.clock.Now()
		current := seat.Effective(now)

		switch current.Status {
		case domain.SeatSold:
			return domain.Hold{}, fmt.Errorf("%s:%w", op, ErrSeatSold)
		case domain.SeatHeld:
			if current.HolderID != holderID {
				return domain.Hold{}, fmt.Errorf("%s:%w", op, ErrSeatHeld)
			}
		}

		expires := now.Add(ttl)
		// re-acquiring never shortens a hold
		if current.Status == domain.SeatHeld && current.HoldExpiresAt.After(expires) {
			expires = *current.HoldExpiresAt
		}

		updated, err := s.store.Seats().CompareAndSwap(
			ctx, eventID, seatID, seat.Version,
			domain.HeldState(holderID, expires),
		)
		if errors.Is(err, repository.ErrStaleState) {
			continue
		}
		if err != nil {
			return domain.Hold{}, fmt.Errorf("%s:%w", op, err)
		}

		s.changed(ctx, eventID)

		return domain.Hold{
			EventID:   eventID,
			SeatID:    seatID,
			HolderID:  holderID,
			ExpiresAt: *updated.HoldExpiresAt,
		}, nil
	}

	return domain.Hold{}, fmt.Errorf("%s:%w", op, ErrHoldContention)
}

// Release drops holderID's hold on a seat. Releasing a seat the holder does
// not hold, including one whose hold already expired, is a no-op.
//
// Returns:
//   - error: reservation.ErrSeatNotFound if the seat does not exist.
//   - error: reservation.ErrHoldContention if every attempt lost a race.
func (s *Service) Release(ctx context.Context, eventID int64, seatID, holderID string) error {
	const op = "service.reservation.Release"

	released, err := s.release(ctx, eventID, seatID, holderID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if released {
		s.changed(ctx, eventID)
	}

	return nil
}

// ReleaseAll drops every active hold holderID has on an event and reports
// how many seats were freed.
func (s *Service) ReleaseAll(ctx context.Context, eventID int64, holderID string) (int, error) {
	const op = "service.reservation.ReleaseAll"

	holds, err := s.Holds(ctx, eventID, holderID)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	n := 0
	for _, h := range holds {
		released, err := s.release(ctx, eventID, h.SeatID, holderID)
		if err != nil {
			return n, fmt.Errorf("%s:%w", op, err)
		}
		if released {
			n++
		}
	}

	if n > 0 {
		s.changed(ctx, eventID)
	}

	return n, nil
}

// Holds lists the active holds holderID has on an event.
func (s *Service) Holds(ctx context.Context, eventID int64, holderID string) ([]domain.Hold, error) {
	const op = "service.reservation.Holds"

	seats, err := s.store.Seats().ListSeats(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.clock.Now()
	holds := make([]domain.Hold, 0)
	for _, seat := range seats {
		if seat.HeldBy(holderID, now) {
			holds = append(holds, domain.Hold{
				EventID:   eventID,
				SeatID:    seat.ID,
				HolderID:  holderID,
				ExpiresAt: *seat.HoldExpiresAt,
			})
		}
	}

	return holds, nil
}

// Reclaim turns every expired hold back into an available seat. Reads already
// treat expired holds as absent, so this only keeps stored state tidy.
//
// Returns:
//   - int: the number of events whose seat map changed.
func (s *Service) Reclaim(ctx context.Context) (int, error) {
	const op = "service.reservation.Reclaim"

	events, err := s.store.Seats().ReclaimExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	for _, id := range events {
		s.changed(ctx, id)
	}

	return len(events), nil
}

func (s *Service) release(ctx context.Context, eventID int64, seatID, holderID string) (bool, error) {
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		seat, err := s.getSeat(ctx, eventID, seatID)
		if err != nil {
			return false, err
		}

		if !seat.HeldBy(holderID, s.clock.Now()) {
			return false, nil
		}

		_, err = s.store.Seats().CompareAndSwap(ctx, eventID, seatID, seat.Version, domain.Available())
		if errors.Is(err, repository.ErrStaleState) {
			continue
		}
		if err != nil {
			return false, err
		}

		return true, nil
	}

	return false, ErrHoldContention
}

func (s *Service) getSeat(ctx context.Context, eventID int64, seatID string) (domain.Seat, error) {
	seat, err := s.store.Seats().GetSeat(ctx, eventID, seatID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Seat{}, ErrSeatNotFound
	}
	return seat, err
}

func (s *Service) ensureActive(ctx context.Context, eventID int64) error {
	ev, err := s.store.Events().Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}

	if !ev.IsActive() {
		return ErrEventInactive
	}

	return nil
}

func (s *Service) allow(ctx context.Context, clientKey string) error {
	if s.limiter == nil || clientKey == "" {
		return nil
	}

	d, err := s.limiter.Allow(ctx, clientKey)
	if err != nil {
		return err
	}

	if !d.Allowed {
		return &RateLimitedError{RetryAfter: d.RetryAfter}
	}

	return nil
}

// changed propagates a seat transition to the cache and subscribers. Both are
// best effort: the transition is already durable.
func (s *Service) changed(ctx context.Context, eventID int64) {
	if s.cache != nil {
		if err := s.cache.InvalidateSeats(ctx, eventID); err != nil {
			s.logger.Warn("seat cache invalidation failed", "event_id", eventID, "error", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.PublishSeatsChanged(ctx, eventID); err != nil {
			s.logger.Warn("seat change publish failed", "event_id", eventID, "error", err)
		}
	}
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = s.cfg.DefaultHoldTTL
	}

	if ttl < s.cfg.MinHoldTTL {
		return s.cfg.MinHoldTTL
	}

	if ttl > s.cfg.MaxHoldTTL {
		return s.cfg.MaxHoldTTL
	}

	return ttl
}
