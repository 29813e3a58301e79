package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type seeded struct {
	svc      *Service
	store    *memory.Store
	artistID int64
	typeID   int64
	events   map[string]int64
}

func seed(t *testing.T) *seeded {
	t.Helper()

	ctx := context.Background()
	store := memory.New()

	artistID, err := store.Users().Create(ctx, &domain.User{Email: "dj@x.io", Role: domain.RoleArtist})
	require.NoError(t, err)
	details, _ := json.Marshal(domain.ArtistProfile{StageName: "DJ Nova"})
	require.NoError(t, store.Users().SaveProfile(ctx, artistID, domain.RoleArtist, details))

	typeID, err := store.Catalog().Create(ctx, &domain.CatalogItem{Kind: domain.KindTicketType, Name: "General"})
	require.NoError(t, err)

	mk := func(slug, location string, start time.Time, price int64, artists ...int64) int64 {
		id, err := store.Events().Create(ctx, &domain.Event{
			Name:      slug,
			Slug:      slug,
			Location:  location,
			StartsAt:  &start,
			Status:    domain.EventActive,
			ArtistIDs: artists,
			TicketDetails: []domain.TicketLine{
				{TicketTypeID: typeID, PriceCents: price, Quantity: 10},
				{TicketTypeID: 777, PriceCents: price * 2, Quantity: 2},
			},
		})
		require.NoError(t, err)
		return id
	}

	events := map[string]int64{
		"past":   mk("past", "BMICH", now.Add(-24*time.Hour), 1000),
		"soon":   mk("soon", "BMICH", now.Add(time.Hour), 2500, artistID),
		"later":  mk("later", "Nelum Pokuna", now.Add(48*time.Hour), 8000, 424242),
		"hidden": mk("hidden", "BMICH", now.Add(2*time.Hour), 100),
	}
	require.NoError(t, store.Events().SetStatus(ctx, events["hidden"], domain.EventInactive))

	svc := New(store, nil, clock.Fake(now), Config{})

	return &seeded{svc: svc, store: store, artistID: artistID, typeID: typeID, events: events}
}

func slugs(views []EventView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Slug
	}
	return out
}

func TestListEventsFiltersAndEnriches(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	all, err := s.svc.ListEvents(ctx, domain.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"past", "soon", "later"}, slugs(all))

	byLocation, err := s.svc.ListEvents(ctx, domain.EventFilter{Location: "BMICH"})
	require.NoError(t, err)
	assert.Equal(t, []string{"past", "soon"}, slugs(byLocation))

	byArtist, err := s.svc.ListEvents(ctx, domain.EventFilter{ArtistIDs: []int64{s.artistID}})
	require.NoError(t, err)
	require.Equal(t, []string{"soon"}, slugs(byArtist))
	assert.Equal(t, []ArtistRef{{ArtistID: s.artistID, ArtistName: "DJ Nova"}}, byArtist[0].Artists)
	assert.Equal(t, "General", byArtist[0].Tickets[0].TicketTypeName)
	assert.Equal(t, "Unknown", byArtist[0].Tickets[1].TicketTypeName)

	lo, hi := int64(3000), int64(6000)
	byPrice, err := s.svc.ListEvents(ctx, domain.EventFilter{MinPrice: &lo, MaxPrice: &hi})
	require.NoError(t, err)
	assert.Equal(t, []string{"soon"}, slugs(byPrice))
}

func TestEventDetailsUnknownArtist(t *testing.T) {
	s := seed(t)

	view, err := s.svc.EventDetails(context.Background(), "later")
	require.NoError(t, err)
	assert.Equal(t, []ArtistRef{{ArtistID: 424242, ArtistName: "Unknown"}}, view.Artists)

	_, err = s.svc.EventDetails(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestUpcomingAndTrending(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	up, err := s.svc.Upcoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"soon", "later"}, slugs(up))

	for i := 0; i < 2; i++ {
		require.NoError(t, s.store.Orders().Create(ctx, &domain.Order{
			ID: uuid.New(), EventID: s.events["later"], PaymentStatus: domain.PaymentPaid,
		}))
	}
	require.NoError(t, s.store.Orders().Create(ctx, &domain.Order{
		ID: uuid.New(), EventID: s.events["soon"], PaymentStatus: domain.PaymentPending,
	}))

	trending, err := s.svc.Trending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"later", "past", "soon"}, slugs(trending))
}

func TestEventSeats(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	id := s.events["soon"]
	require.NoError(t, s.store.Seats().InitSeats(ctx, id, []domain.SeatSpec{{ID: "A1"}, {ID: "A2"}}))
	_, err := s.store.Seats().CompareAndSwap(ctx, id, "A1", 0, domain.HeldState("h", now.Add(-time.Second)))
	require.NoError(t, err)

	m, err := s.svc.EventSeats(ctx, "soon")
	require.NoError(t, err)
	assert.Equal(t, id, m.EventID)
	assert.Equal(t, int64(2), m.Counts.Available)

	empty, err := s.svc.EventSeats(ctx, "later")
	require.NoError(t, err)
	assert.Empty(t, empty.Seats)
}

func TestLocationsAndArtists(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	locations, err := s.svc.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BMICH", "Nelum Pokuna"}, locations)

	artists, err := s.svc.Artists(ctx)
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, "DJ Nova", artists[0].Name)
}
