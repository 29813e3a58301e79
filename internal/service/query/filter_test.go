package query

import (
	"testing"
	"time"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/stretchr/testify/assert"
)

func ids(events []domain.Event) []int64 {
	out := make([]int64, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestRankTrendingStableAndCapped(t *testing.T) {
	var events []domain.Event
	for i := int64(1); i <= 10; i++ {
		events = append(events, domain.Event{ID: i})
	}

	counts := map[int64]int64{3: 5, 7: 5, 9: 10, 1: 1}

	got := RankTrending(events, counts)

	assert.Equal(t, []int64{9, 3, 7, 1, 2, 4, 5, 6}, ids(got))
	// input untouched
	assert.Equal(t, int64(1), events[0].ID)
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	events := []domain.Event{
		{ID: 1, StartsAt: ptr(now)},
		{ID: 2, StartsAt: ptr(now.Add(-time.Hour))},
		{ID: 3, StartsAt: ptr(now.Add(3 * time.Hour))},
		{ID: 4},
		{ID: 5, StartsAt: ptr(now.Add(time.Hour))},
	}
	for i := int64(6); i <= 15; i++ {
		events = append(events, domain.Event{ID: i, StartsAt: ptr(now.Add(time.Duration(i) * time.Hour))})
	}

	got := Upcoming(events, now)

	assert.Len(t, got, 8)
	assert.Equal(t, []int64{5, 3, 6, 7, 8, 9, 10, 11}, ids(got))
}

func TestFilterByArtists(t *testing.T) {
	events := []domain.Event{
		{ID: 1, ArtistIDs: []int64{10, 11}},
		{ID: 2, ArtistIDs: []int64{12}},
		{ID: 3},
	}

	assert.Equal(t, []int64{1}, ids(FilterByArtists(events, []int64{11, 99})))
	assert.Equal(t, []int64{1, 2, 3}, ids(FilterByArtists(events, nil)))
}

func TestFilterByPrice(t *testing.T) {
	events := []domain.Event{
		{ID: 1, TicketDetails: []domain.TicketLine{{PriceCents: 500}, {PriceCents: 5000}}},
		{ID: 2, TicketDetails: []domain.TicketLine{{PriceCents: 2000}}},
		{ID: 3},
	}

	assert.Equal(t, []int64{1, 2}, ids(FilterByPrice(events, ptr[int64](1000), nil)))
	assert.Equal(t, []int64{2}, ids(FilterByPrice(events, ptr[int64](1000), ptr[int64](3000))))
	assert.Equal(t, []int64{1}, ids(FilterByPrice(events, nil, ptr[int64](500))))
	assert.Len(t, FilterByPrice(events, nil, nil), 3)
}

func TestBuildSeatMapHidesHoldersAndExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Second), now.Add(time.Minute)

	raw := []domain.Seat{
		{ID: "A", SeatState: domain.SeatState{Status: domain.SeatHeld, HolderID: "x", HoldExpiresAt: &past}, Version: 3},
		{ID: "B", SeatState: domain.SeatState{Status: domain.SeatHeld, HolderID: "y", HoldExpiresAt: &future}},
		{ID: "C", SeatState: domain.SeatState{Status: domain.SeatSold}},
	}

	m := buildSeatMap(1, raw, now)

	assert.Equal(t, domain.SeatAvailable, m.Seats[0].Status)
	assert.Equal(t, int64(3), m.Seats[0].Version)
	assert.Equal(t, domain.SeatHeld, m.Seats[1].Status)
	assert.Empty(t, m.Seats[1].HolderID)
	assert.Equal(t, domain.SeatCounts{Available: 1, Held: 1, Sold: 1, Total: 3}, m.Counts)
	assert.Equal(t, "y", raw[1].HolderID)
}
