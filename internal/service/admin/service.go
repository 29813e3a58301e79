package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
	"github.com/kirinyoku/quicktix/internal/uow"
)

type Cache interface {
	InvalidateEvent(ctx context.Context, eventID int64, slug string) error
}

type Notifier interface {
	PublishEventChanged(ctx context.Context, eventID int64) error
}

// Reclaimer frees expired holds.
type Reclaimer interface {
	Reclaim(ctx context.Context) (int, error)
}

type Service struct {
	store     repository.Transactor
	cache     Cache
	notifier  Notifier
	reclaimer Reclaimer
	uow       *uow.UoW
	logger    *slog.Logger
}

func New(
	store repository.Transactor,
	cache Cache,
	notifier Notifier,
	reclaimer Reclaimer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:     store,
		cache:     cache,
		notifier:  notifier,
		reclaimer: reclaimer,
		uow:       uow.NewUoW(store),
		logger:    logger,
	}
}

// ActivateEvent makes an event visible to listings and open for holds.
func (s *Service) ActivateEvent(ctx context.Context, eventID int64) error {
	return s.setStatus(ctx, "service.admin.ActivateEvent", eventID, domain.EventActive)
}

// DeactivateEvent hides an event. Existing holds and orders are kept, new
// holds and checkouts are rejected.
func (s *Service) DeactivateEvent(ctx context.Context, eventID int64) error {
	return s.setStatus(ctx, "service.admin.DeactivateEvent", eventID, domain.EventInactive)
}

func (s *Service) setStatus(ctx context.Context, op string, eventID int64, status domain.EventStatus) error {
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		ev, err := tx.Events().Get(ctx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrEventNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tx.Events().SetStatus(ctx, eventID, status); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			if s.cache != nil {
				if err := s.cache.InvalidateEvent(ctx, eventID, ev.Slug); err != nil {
					s.logger.Warn("event cache invalidation failed", "event_id", eventID, "error", err)
				}
			}
			if s.notifier != nil {
				if err := s.notifier.PublishEventChanged(ctx, eventID); err != nil {
					s.logger.Warn("event change publish failed", "event_id", eventID, "error", err)
				}
			}
		})

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("event status changed", "event_id", eventID, "status", status)

	return nil
}

// ReclaimHolds runs the expired hold sweep on demand and reports how many
// events changed.
func (s *Service) ReclaimHolds(ctx context.Context) (int, error) {
	const op = "service.admin.ReclaimHolds"

	n, err := s.reclaimer.Reclaim(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return n, nil
}
