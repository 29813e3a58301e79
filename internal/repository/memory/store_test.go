package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *Store {
	t.Helper()

	s := New()
	require.NoError(t, s.Seats().InitSeats(context.Background(), 1, []domain.SeatSpec{
		{ID: "A1", TicketTypeID: 10},
		{ID: "A2", TicketTypeID: 10},
	}))
	return s
}

func TestCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	exp := time.Now().Add(time.Minute)

	seat, err := s.Seats().CompareAndSwap(ctx, 1, "A1", 0, domain.HeldState("h1", exp))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seat.Version)
	assert.Equal(t, domain.SeatHeld, seat.Status)
	assert.Equal(t, "h1", seat.HolderID)

	_, err = s.Seats().CompareAndSwap(ctx, 1, "A1", 0, domain.HeldState("h2", exp))
	assert.ErrorIs(t, err, repository.ErrStaleState)

	_, err = s.Seats().CompareAndSwap(ctx, 1, "Z9", 0, domain.Available())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCompareAndSwapSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	exp := time.Now().Add(time.Minute)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Seats().CompareAndSwap(ctx, 1, "A2", 0, domain.HeldState("h", exp)); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestInitSeatsRejectsDuplicates(t *testing.T) {
	s := seededStore(t)

	err := s.Seats().InitSeats(context.Background(), 2, []domain.SeatSpec{{ID: "B1"}, {ID: "B1"}})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.Seats().ListSeats(context.Background(), 2)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	boom := errors.New("boom")

	err := s.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		if _, err := tx.Seats().CompareAndSwap(ctx, 1, "A1", 0, domain.Sold()); err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, &domain.Order{UserID: 1, EventID: 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	seat, err := s.Seats().GetSeat(ctx, 1, "A1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatAvailable, seat.Status)
	assert.Equal(t, int64(0), seat.Version)

	orders, err := s.Orders().ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestReclaimExpired(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Seats().CompareAndSwap(ctx, 1, "A1", 0, domain.HeldState("h", now.Add(-time.Second)))
	require.NoError(t, err)
	_, err = s.Seats().CompareAndSwap(ctx, 1, "A2", 0, domain.HeldState("h", now.Add(time.Minute)))
	require.NoError(t, err)

	events, err := s.Seats().ReclaimExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, events)

	a1, _ := s.Seats().GetSeat(ctx, 1, "A1")
	a2, _ := s.Seats().GetSeat(ctx, 1, "A2")
	assert.Equal(t, domain.SeatAvailable, a1.Status)
	assert.Equal(t, int64(2), a1.Version)
	assert.Equal(t, domain.SeatHeld, a2.Status)
}

func TestUsersEmailUnique(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Users().Create(ctx, &domain.User{Email: "Ann@Example.com", Role: domain.RoleCustomer})
	require.NoError(t, err)

	_, err = s.Users().Create(ctx, &domain.User{Email: "ann@example.com", Role: domain.RoleCustomer})
	assert.ErrorIs(t, err, repository.ErrConflict)
}
