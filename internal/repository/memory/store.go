// Package memory is an in-process implementation of the repositories. It
// keeps the same contracts as the Postgres store, including version-checked
// seat writes and transaction rollback, and backs the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

type seatKey struct {
	eventID int64
	seatID  string
}

type followKey struct {
	userID     int64
	followerID int64
}

type profileRecord struct {
	role    domain.Role
	details []byte
}

type Store struct {
	mu        sync.Mutex
	seats     map[seatKey]domain.Seat
	orders    map[uuid.UUID]domain.Order
	events    map[int64]domain.Event
	users     map[int64]domain.User
	profiles  map[int64]profileRecord
	catalog   map[int64]domain.CatalogItem
	follows   map[followKey]struct{}
	inquiries map[int64]domain.Inquiry
	seq       int64

	// transactions are serialized, which gives them serializable isolation
	// against each other
	txMu sync.Mutex
}

var _ repository.Transactor = (*Store)(nil)

func New() *Store {
	return &Store{
		seats:     make(map[seatKey]domain.Seat),
		orders:    make(map[uuid.UUID]domain.Order),
		events:    make(map[int64]domain.Event),
		users:     make(map[int64]domain.User),
		profiles:  make(map[int64]profileRecord),
		catalog:   make(map[int64]domain.CatalogItem),
		follows:   make(map[followKey]struct{}),
		inquiries: make(map[int64]domain.Inquiry),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// undoLog collects inverse operations of the writes made inside a transaction.
type undoLog struct {
	fns []func()
}

func (l *undoLog) rollback() {
	for i := len(l.fns) - 1; i >= 0; i-- {
		l.fns[i]()
	}
	l.fns = nil
}

// remember must be called with the store lock held, before m[k] is written.
func remember[K comparable, V any](l *undoLog, m map[K]V, k K) {
	if l == nil {
		return
	}
	old, ok := m[k]
	l.fns = append(l.fns, func() {
		if ok {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

// view binds repositories to either the store itself or a transaction.
type view struct {
	s   *Store
	log *undoLog
}

func (v *view) Seats() repository.SeatRepository          { return seatRepo{v} }
func (v *view) Orders() repository.OrderRepository        { return orderRepo{v} }
func (v *view) Events() repository.EventRepository        { return eventRepo{v} }
func (v *view) Users() repository.UserRepository          { return userRepo{v} }
func (v *view) Catalog() repository.CatalogRepository     { return catalogRepo{v} }
func (v *view) Community() repository.CommunityRepository { return communityRepo{v} }

func (s *Store) root() *view { return &view{s: s} }

func (s *Store) Seats() repository.SeatRepository          { return s.root().Seats() }
func (s *Store) Orders() repository.OrderRepository        { return s.root().Orders() }
func (s *Store) Events() repository.EventRepository        { return s.root().Events() }
func (s *Store) Users() repository.UserRepository          { return s.root().Users() }
func (s *Store) Catalog() repository.CatalogRepository     { return s.root().Catalog() }
func (s *Store) Community() repository.CommunityRepository { return s.root().Community() }

// RunTx runs fn with repositories that record every write. When fn fails the
// writes are undone in reverse order.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &undoLog{}
	if err := fn(ctx, &view{s: s, log: log}); err != nil {
		s.mu.Lock()
		log.rollback()
		s.mu.Unlock()
		return err
	}

	return nil
}

func cloneSeat(st domain.Seat) domain.Seat {
	if st.HoldExpiresAt != nil {
		t := *st.HoldExpiresAt
		st.HoldExpiresAt = &t
	}
	return st
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneEvent(e domain.Event) domain.Event {
	e.ArtistIDs = cloneSlice(e.ArtistIDs)
	e.PerformerIDs = cloneSlice(e.PerformerIDs)
	e.InstructorIDs = cloneSlice(e.InstructorIDs)
	e.SpeakerIDs = cloneSlice(e.SpeakerIDs)
	e.TrailerLinks = cloneSlice(e.TrailerLinks)
	e.Showtimes = cloneSlice(e.Showtimes)
	e.TicketDetails = cloneSlice(e.TicketDetails)
	if e.StartsAt != nil {
		t := *e.StartsAt
		e.StartsAt = &t
	}
	if e.EndsAt != nil {
		t := *e.EndsAt
		e.EndsAt = &t
	}
	return e
}

func now() time.Time { return time.Now().UTC() }
