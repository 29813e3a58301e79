// Package catalog manages the small owner-scoped resources events refer to:
// ticket types, instructors, performers and speakers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
	"github.com/kirinyoku/quicktix/internal/validate"
)

var (
	ErrItemNotFound = errors.New("catalog item not found")
	ErrUnknownKind  = errors.New("unknown catalog kind")
	ErrForbidden    = errors.New("catalog item belongs to another user")
)

const (
	statusActive   = "active"
	statusInactive = "inactive"
)

var kinds = map[domain.CatalogKind]bool{
	domain.KindTicketType: true,
	domain.KindInstructor: true,
	domain.KindPerformer:  true,
	domain.KindSpeaker:    true,
}

// ParseKind maps a path segment to a catalog kind.
func ParseKind(s string) (domain.CatalogKind, error) {
	k := domain.CatalogKind(strings.ToLower(strings.TrimSpace(s)))
	if !kinds[k] {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	UserID int64
	Admin  bool
}

type Input struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

type Service struct {
	repos  repository.Repos
	logger *slog.Logger
}

func New(repos repository.Repos, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repos: repos, logger: logger}
}

func (s *Service) Create(ctx context.Context, actor Actor, kind domain.CatalogKind, in Input) (domain.CatalogItem, error) {
	const op = "service.catalog.Create"

	if err := s.check(kind, &in); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("%s:%w", op, err)
	}

	item := domain.CatalogItem{
		Kind:        kind,
		UserID:      actor.UserID,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
	}
	if _, err := s.repos.Catalog().Create(ctx, &item); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("catalog item created", "kind", kind, "id", item.ID, "user_id", actor.UserID)

	return item, nil
}

// List returns the items of kind owned by the caller. Never nil.
func (s *Service) List(ctx context.Context, actor Actor, kind domain.CatalogKind) ([]domain.CatalogItem, error) {
	const op = "service.catalog.List"

	if !kinds[kind] {
		return nil, fmt.Errorf("%s:%w", op, ErrUnknownKind)
	}

	items, err := s.repos.Catalog().ListByOwner(ctx, kind, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if items == nil {
		items = []domain.CatalogItem{}
	}

	return items, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, kind domain.CatalogKind, id int64) (domain.CatalogItem, error) {
	const op = "service.catalog.Get"

	item, err := s.owned(ctx, actor, kind, id)
	if err != nil {
		return domain.CatalogItem{}, fmt.Errorf("%s:%w", op, err)
	}

	return item, nil
}

func (s *Service) Update(
	ctx context.Context,
	actor Actor,
	kind domain.CatalogKind,
	id int64,
	in Input,
) (domain.CatalogItem, error) {
	const op = "service.catalog.Update"

	if err := s.check(kind, &in); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("%s:%w", op, err)
	}

	item, err := s.owned(ctx, actor, kind, id)
	if err != nil {
		return domain.CatalogItem{}, fmt.Errorf("%s:%w", op, err)
	}

	item.Name = in.Name
	item.Description = in.Description
	item.Color = in.Color

	if err := s.repos.Catalog().Update(ctx, item); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("%s:%w", op, err)
	}

	return item, nil
}

func (s *Service) Activate(ctx context.Context, actor Actor, kind domain.CatalogKind, id int64) error {
	return s.setStatus(ctx, "service.catalog.Activate", actor, kind, id, statusActive)
}

func (s *Service) Deactivate(ctx context.Context, actor Actor, kind domain.CatalogKind, id int64) error {
	return s.setStatus(ctx, "service.catalog.Deactivate", actor, kind, id, statusInactive)
}

func (s *Service) setStatus(
	ctx context.Context,
	op string,
	actor Actor,
	kind domain.CatalogKind,
	id int64,
	status string,
) error {
	if _, err := s.owned(ctx, actor, kind, id); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.repos.Catalog().SetStatus(ctx, kind, id, status); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) check(kind domain.CatalogKind, in *Input) error {
	if !kinds[kind] {
		return ErrUnknownKind
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if kind != domain.KindTicketType {
		in.Color = ""
	}

	return validate.Struct(in)
}

// owned loads an item the actor may act on. Admins may act on any item.
func (s *Service) owned(ctx context.Context, actor Actor, kind domain.CatalogKind, id int64) (domain.CatalogItem, error) {
	if !kinds[kind] {
		return domain.CatalogItem{}, ErrUnknownKind
	}

	item, err := s.repos.Catalog().Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.CatalogItem{}, ErrItemNotFound
		}
		return domain.CatalogItem{}, err
	}

	if !actor.Admin && item.UserID != actor.UserID {
		return domain.CatalogItem{}, ErrForbidden
	}

	return item, nil
}
