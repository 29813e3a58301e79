package memory

import (
	"context"
	"sort"
	"time"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

type seatRepo struct{ v *view }

func (r seatRepo) ListSeats(_ context.Context, eventID int64) ([]domain.Seat, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()

	var out []domain.Seat
	for k, st := range r.v.s.seats {
		if k.eventID == eventID {
			out = append(out, cloneSeat(st))
		}
	}

	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r seatRepo) GetSeat(_ context.Context, eventID int64, seatID string) (domain.Seat, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()

	st, ok := r.v.s.seats[seatKey{eventID, seatID}]
	if !ok {
		return domain.Seat{}, repository.ErrNotFound
	}

	return cloneSeat(st), nil
}

func (r seatRepo) CompareAndSwap(
	_ context.Context,
	eventID int64,
	seatID string,
	expectedVersion int64,
	next domain.SeatState,
) (domain.Seat, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()

	k := seatKey{eventID, seatID}
	st, ok := r.v.s.seats[k]
	if !ok {
		return domain.Seat{}, repository.ErrNotFound
	}

	if st.Version != expectedVersion {
		return domain.Seat{}, repository.ErrStaleState
	}

	remember(r.v.log, r.v.s.seats, k)

	st.SeatState = next
	st.Version++
	st = cloneSeat(st)
	r.v.s.seats[k] = st

	return cloneSeat(st), nil
}

func (r seatRepo) InitSeats(_ context.Context, eventID int64, seats []domain.SeatSpec) error {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()

	seen := make(map[string]struct{}, len(seats))
	for _, sp := range seats {
		if _, dup := seen[sp.ID]; dup {
			return repository.ErrConflict
		}
		if _, exists := r.v.s.seats[seatKey{eventID, sp.ID}]; exists {
			return repository.ErrConflict
		}
		seen[sp.ID] = struct{}{}
	}

	for _, sp := range seats {
		k := seatKey{eventID, sp.ID}
		remember(r.v.log, r.v.s.seats, k)
		r.v.s.seats[k] = domain.Seat{
			EventID:      eventID,
			ID:           sp.ID,
			TicketTypeID: sp.TicketTypeID,
			SeatState:    domain.Available(),
		}
	}

	return nil
}

func (r seatRepo) ReclaimExpired(_ context.Context, at time.Time) ([]int64, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()

	seen := make(map[int64]struct{})
	var events []int64
	for k, st := range r.v.s.seats {
		if st.Status != domain.SeatHeld || st.HoldExpiresAt == nil || st.HoldExpiresAt.After(at) {
			continue
		}

		remember(r.v.log, r.v.s.seats, k)
		st.SeatState = domain.Available()
		st.Version++
		r.v.s.seats[k] = st

		if _, ok := seen[k.eventID]; !ok {
			seen[k.eventID] = struct{}{}
			events = append(events, k.eventID)
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })

	return events, nil
}
