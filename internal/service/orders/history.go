package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

const unknownName = "Unknown"

// BookingHistory lists the user's paid orders with ticket counts grouped by
// ticket type name.
func (s *Service) BookingHistory(ctx context.Context, userID int64) ([]domain.BookingHistoryEntry, error) {
	const op = "service.orders.BookingHistory"

	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	events := make(map[int64]domain.Event)
	seatTypes := make(map[int64]map[string]int64)

	entries := make([]domain.BookingHistoryEntry, 0, len(orders))
	for _, o := range orders {
		if o.PaymentStatus != domain.PaymentPaid {
			continue
		}

		ev, ok := events[o.EventID]
		if !ok {
			ev, err = s.store.Events().Get(ctx, o.EventID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s:%w", op, err)
			}
			events[o.EventID] = ev
		}

		types, ok := seatTypes[o.EventID]
		if !ok {
			types, err = s.seatTypes(ctx, o.EventID)
			if err != nil {
				return nil, fmt.Errorf("%s:%w", op, err)
			}
			seatTypes[o.EventID] = types
		}

		tickets, err := s.ticketCounts(ctx, o.SeatIDs, types)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}

		name := ev.Name
		if name == "" {
			name = unknownName
		}

		entries = append(entries, domain.BookingHistoryEntry{
			OrderID:       o.ID,
			EventName:     name,
			StartDateTime: ev.StartsAt,
			Tickets:       tickets,
		})
	}

	return entries, nil
}

// PaymentHistory lists every order of the user with its payment status,
// newest first.
func (s *Service) PaymentHistory(ctx context.Context, userID int64) ([]domain.Order, error) {
	const op = "service.orders.PaymentHistory"

	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if orders == nil {
		orders = []domain.Order{}
	}

	return orders, nil
}

func (s *Service) seatTypes(ctx context.Context, eventID int64) (map[string]int64, error) {
	seats, err := s.store.Seats().ListSeats(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return map[string]int64{}, nil
		}
		return nil, err
	}

	out := make(map[string]int64, len(seats))
	for _, seat := range seats {
		out[seat.ID] = seat.TicketTypeID
	}

	return out, nil
}

func (s *Service) ticketCounts(ctx context.Context, seatIDs []string, types map[string]int64) ([]domain.TicketCount, error) {
	perType := make(map[int64]int)
	var ids []int64
	for _, seatID := range seatIDs {
		tt := types[seatID]
		if _, ok := perType[tt]; !ok {
			ids = append(ids, tt)
		}
		perType[tt]++
	}

	names, err := s.store.Catalog().Names(ctx, domain.KindTicketType, ids)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int)
	for tt, n := range perType {
		name, ok := names[tt]
		if !ok || name == "" {
			name = unknownName
		}
		byName[name] += n
	}

	out := make([]domain.TicketCount, 0, len(byName))
	for name, n := range byName {
		out = append(out, domain.TicketCount{Type: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })

	return out, nil
}
