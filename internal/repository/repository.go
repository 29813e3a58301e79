package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/quicktix/internal/domain"
)

// SeatRepository is the seat map store. Every state transition goes through
// CompareAndSwap.
type SeatRepository interface {
	ListSeats(ctx context.Context, eventID int64) ([]domain.Seat, error)
	GetSeat(ctx context.Context, eventID int64, seatID string) (domain.Seat, error)
	// CompareAndSwap writes next only when the stored version equals
	// expectedVersion and returns the updated seat with its bumped version.
	CompareAndSwap(
		ctx context.Context,
		eventID int64,
		seatID string,
		expectedVersion int64,
		next domain.SeatState,
	) (domain.Seat, error)
	InitSeats(ctx context.Context, eventID int64, seats []domain.SeatSpec) error
	// ReclaimExpired turns holds expired at now into available seats and
	// returns the ids of events that changed.
	ReclaimExpired(ctx context.Context, now time.Time) ([]int64, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, ref string) error
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	// CountByEvent returns paid order counts keyed by event id.
	CountByEvent(ctx context.Context, eventIDs []int64) (map[int64]int64, error)
}

type EventRepository interface {
	Create(ctx context.Context, e *domain.Event) (int64, error)
	Get(ctx context.Context, id int64) (domain.Event, error)
	GetBySlug(ctx context.Context, slug string) (domain.Event, error)
	// SlugsLike returns every stored slug equal to base or of the form base-N.
	SlugsLike(ctx context.Context, base string) ([]string, error)
	// ListActive applies the date range and location criteria of filter.
	ListActive(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error)
	SetStatus(ctx context.Context, id int64, status domain.EventStatus) error
	Locations(ctx context.Context) ([]string, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	SaveProfile(ctx context.Context, userID int64, role domain.Role, details []byte) error
	ProfileDetails(ctx context.Context, userID int64) ([]byte, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	MarkVerified(ctx context.Context, id int64) error
	// ActiveArtists lists active users registered with the artist role.
	ActiveArtists(ctx context.Context) ([]domain.Artist, error)
}

type CatalogRepository interface {
	Create(ctx context.Context, item *domain.CatalogItem) (int64, error)
	Get(ctx context.Context, kind domain.CatalogKind, id int64) (domain.CatalogItem, error)
	ListByOwner(ctx context.Context, kind domain.CatalogKind, userID int64) ([]domain.CatalogItem, error)
	Update(ctx context.Context, item domain.CatalogItem) error
	SetStatus(ctx context.Context, kind domain.CatalogKind, id int64, status string) error
	// Names maps ids of the given kind to their names. Unknown ids are omitted.
	Names(ctx context.Context, kind domain.CatalogKind, ids []int64) (map[int64]string, error)
}

type CommunityRepository interface {
	Follow(ctx context.Context, userID, followerID int64) error
	Unfollow(ctx context.Context, userID, followerID int64) error
	CreateInquiry(ctx context.Context, in *domain.Inquiry) (int64, error)
}

// Repos groups the repositories bound to one handle: the pool or a transaction.
type Repos interface {
	Seats() SeatRepository
	Orders() OrderRepository
	Events() EventRepository
	Users() UserRepository
	Catalog() CatalogRepository
	Community() CommunityRepository
}

// Transactor runs fn inside a transaction. Repositories handed to fn are
// bound to it; returning an error rolls back every write fn made.
type Transactor interface {
	Repos
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
}
